package raid_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/Unwrenchable/fizz-caps/internal/game/dice"
	"github.com/Unwrenchable/fizz-caps/internal/game/player"
	"github.com/Unwrenchable/fizz-caps/internal/game/raid"
	"github.com/Unwrenchable/fizz-caps/internal/scripting"
)

func gear(names ...string) []player.GearItem {
	out := make([]player.GearItem, 0, len(names))
	for _, n := range names {
		out = append(out, player.GearItem{Name: n, Rarity: "common"})
	}
	return out
}

func TestDefault_HalvesHPAndStealsNewest(t *testing.T) {
	out := raid.Default{}.Resolve(context.Background(), raid.Input{
		Spot: "Hoover Dam", HP: 151, MaxHP: 200, Gear: gear("old", "new"),
	})
	assert.Equal(t, 75, out.HP)
	assert.Equal(t, 76, out.Damage)
	assert.Equal(t, gear("old"), out.Gear)
	assert.Equal(t, gear("new"), out.Stolen)
}

func TestDefault_MinimumOneHPAndEmptyGear(t *testing.T) {
	out := raid.Default{}.Resolve(context.Background(), raid.Input{Spot: "Lucky 38", HP: 1, MaxHP: 100})
	assert.Equal(t, 1, out.HP)
	assert.Zero(t, out.Damage)
	assert.NotNil(t, out.Gear)
	assert.Empty(t, out.Gear)
	assert.Empty(t, out.Stolen)
}

func TestDefault_DoesNotAliasInput(t *testing.T) {
	in := raid.Input{HP: 100, MaxHP: 100, Gear: gear("a", "b")}
	out := raid.Default{}.Resolve(context.Background(), in)
	out.Gear[0].Name = "mutated"
	assert.Equal(t, "a", in.Gear[0].Name)
}

func TestProperty_DefaultPartitionsGear(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		maxHP := rapid.IntRange(100, 1000).Draw(rt, "max_hp")
		hp := rapid.IntRange(0, maxHP).Draw(rt, "hp")
		n := rapid.IntRange(0, 10).Draw(rt, "gear")
		names := make([]string, n)
		for i := range names {
			names[i] = rapid.StringMatching(`[A-Za-z ]{1,12}`).Draw(rt, "name")
		}
		in := raid.Input{HP: hp, MaxHP: maxHP, Gear: gear(names...)}

		out := raid.Default{}.Resolve(context.Background(), in)
		assert.GreaterOrEqual(rt, out.HP, 1)
		assert.LessOrEqual(rt, out.HP, maxHP)
		assert.Equal(rt, append(append([]player.GearItem{}, out.Gear...), out.Stolen...), in.Gear)
		if n > 0 {
			assert.Len(rt, out.Stolen, 1)
		}
	})
}

func newScripts(t *testing.T, src dice.Source) *scripting.Manager {
	t.Helper()
	logger := zaptest.NewLogger(t)
	mgr := scripting.NewManager(dice.NewLoggedRoller(src, logger), logger)
	t.Cleanup(mgr.Close)
	return mgr
}

func loadScript(t *testing.T, mgr *scripting.Manager, src string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "raid.lua"), []byte(src), 0644))
	require.NoError(t, mgr.Load(raid.Namespace, dir, 0))
}

func TestScript_UsesHookResult(t *testing.T) {
	mgr := newScripts(t, dice.NewCryptoSource())
	loadScript(t, mgr, `
		function on_raid(spot, hp, max_hp, gear_count)
			return hp - 30, 0
		end
	`)
	r := raid.NewScript(mgr, raid.Default{}, zaptest.NewLogger(t))

	out := r.Resolve(context.Background(), raid.Input{Spot: "Area 51 Gate", HP: 100, MaxHP: 100, Gear: gear("a", "b")})
	assert.Equal(t, 70, out.HP)
	assert.Equal(t, 30, out.Damage)
	assert.Empty(t, out.Gear)
	assert.Equal(t, gear("a", "b"), out.Stolen)
}

func TestScript_ClampsOutOfRangeResults(t *testing.T) {
	mgr := newScripts(t, dice.NewCryptoSource())
	loadScript(t, mgr, `function on_raid() return 9999, 42 end`)
	r := raid.NewScript(mgr, raid.Default{}, zaptest.NewLogger(t))

	out := r.Resolve(context.Background(), raid.Input{HP: 50, MaxHP: 150, Gear: gear("a")})
	assert.Equal(t, 150, out.HP)
	assert.Equal(t, gear("a"), out.Gear)
	assert.Empty(t, out.Stolen)
}

func TestScript_FallsBack(t *testing.T) {
	cases := map[string]string{
		"missing hook":  `-- nothing`,
		"runtime error": `function on_raid() error("boom") end`,
		"non numeric":   `function on_raid() return "lots", nil end`,
		"runaway":       `function on_raid() while true do end end`,
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			mgr := newScripts(t, dice.NewCryptoSource())
			loadScript(t, mgr, src)
			r := raid.NewScript(mgr, raid.Default{}, zaptest.NewLogger(t))

			in := raid.Input{Spot: "Black Mountain", HP: 120, MaxHP: 150, Gear: gear("a", "b")}
			assert.Equal(t, raid.Default{}.Resolve(context.Background(), in), r.Resolve(context.Background(), in))
		})
	}
}

func contentDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "content", "scripts", "raid")
}

func TestScript_ShippedRaidScript(t *testing.T) {
	// Every die lands on 1: 4d10+10 = 14, 6d10+20 = 26.
	mgr := newScripts(t, dice.NewScripted(0.0))
	require.NoError(t, mgr.Load(raid.Namespace, contentDir(t), 0))
	r := raid.NewScript(mgr, raid.Default{}, zaptest.NewLogger(t))

	out := r.Resolve(context.Background(), raid.Input{Spot: "Hoover Dam", HP: 100, MaxHP: 100, Gear: gear("a", "b")})
	assert.Equal(t, 86, out.HP)
	assert.Equal(t, gear("a"), out.Gear)
	assert.Equal(t, gear("b"), out.Stolen)

	out = r.Resolve(context.Background(), raid.Input{Spot: "Area 51 Gate", HP: 100, MaxHP: 100})
	assert.Equal(t, 74, out.HP)
	assert.Empty(t, out.Stolen)

	out = r.Resolve(context.Background(), raid.Input{Spot: "Lucky 38", HP: 5, MaxHP: 100})
	assert.Equal(t, 1, out.HP, "raids never kill")
}
