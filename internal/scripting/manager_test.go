package scripting_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/Unwrenchable/fizz-caps/internal/game/dice"
	"github.com/Unwrenchable/fizz-caps/internal/scripting"
)

func newTestManager(t testing.TB, src dice.Source) (*scripting.Manager, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)
	if src == nil {
		src = dice.NewCryptoSource()
	}
	mgr := scripting.NewManager(dice.NewLoggedRoller(src, logger), logger)
	t.Cleanup(mgr.Close)
	return mgr, logs
}

func writeTempLua(t testing.TB, filename, src string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), []byte(src), 0644))
	return dir
}

func hasLevel(logs *observer.ObservedLogs, level zapcore.Level) bool {
	for _, e := range logs.All() {
		if e.Level == level {
			return true
		}
	}
	return false
}

func TestManager_Load_CallsHook(t *testing.T) {
	mgr, _ := newTestManager(t, nil)
	dir := writeTempLua(t, "hooks.lua", `
		function split(a, b)
			return a + b, a - b
		end
	`)
	require.NoError(t, mgr.Load("raid", dir, 0))

	ret, err := mgr.CallHook(context.Background(), "raid", "split", 2, lua.LNumber(7), lua.LNumber(3))
	require.NoError(t, err)
	assert.Equal(t, []lua.LValue{lua.LNumber(10), lua.LNumber(4)}, ret)
	assert.True(t, mgr.Has("raid", "split"))
	assert.False(t, mgr.Has("raid", "missing"))
}

func TestManager_CallHook_MissingHook(t *testing.T) {
	mgr, _ := newTestManager(t, nil)
	dir := writeTempLua(t, "empty.lua", `-- nothing here`)
	require.NoError(t, mgr.Load("raid", dir, 0))

	_, err := mgr.CallHook(context.Background(), "raid", "on_raid", 1)
	assert.ErrorIs(t, err, scripting.ErrNoHook)
}

func TestManager_CallHook_UnknownNamespace(t *testing.T) {
	mgr, _ := newTestManager(t, nil)
	_, err := mgr.CallHook(context.Background(), "nowhere", "on_raid", 1)
	assert.ErrorIs(t, err, scripting.ErrNoHook)
}

func TestManager_CallHook_RuntimeErrorIsLoggedAndReturned(t *testing.T) {
	mgr, logs := newTestManager(t, nil)
	dir := writeTempLua(t, "bad.lua", `
		function bad_hook()
			error("intentional error")
		end
	`)
	require.NoError(t, mgr.Load("raid", dir, 0))

	_, err := mgr.CallHook(context.Background(), "raid", "bad_hook", 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, scripting.ErrNoHook)
	assert.True(t, hasLevel(logs, zap.WarnLevel))
}

func TestManager_CallHook_BudgetIsPerCall(t *testing.T) {
	mgr, _ := newTestManager(t, nil)
	dir := writeTempLua(t, "loop.lua", `
		function spin(n)
			local x = 0
			for i = 1, n do x = x + 1 end
			return x
		end
	`)
	require.NoError(t, mgr.Load("raid", dir, 500))

	for i := 0; i < 20; i++ {
		ret, err := mgr.CallHook(context.Background(), "raid", "spin", 1, lua.LNumber(10))
		require.NoError(t, err, "call %d", i)
		assert.Equal(t, lua.LNumber(10), ret[0])
	}

	_, err := mgr.CallHook(context.Background(), "raid", "spin", 1, lua.LNumber(1_000_000))
	assert.Error(t, err, "a runaway call exhausts its budget")

	ret, err := mgr.CallHook(context.Background(), "raid", "spin", 1, lua.LNumber(3))
	require.NoError(t, err, "the VM stays usable after an exhausted budget")
	assert.Equal(t, lua.LNumber(3), ret[0])
}

func TestManager_CallHook_CancelledContext(t *testing.T) {
	mgr, _ := newTestManager(t, nil)
	dir := writeTempLua(t, "loop.lua", `function forever() while true do end end`)
	require.NoError(t, mgr.Load("raid", dir, 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := mgr.CallHook(ctx, "raid", "forever", 1)
	assert.Error(t, err)
}

func TestManager_Load_InvalidLua(t *testing.T) {
	mgr, _ := newTestManager(t, nil)
	dir := writeTempLua(t, "bad.lua", `this is not valid lua @@@@`)
	assert.Error(t, mgr.Load("raid", dir, 0))
}

func TestManager_Load_MissingDir(t *testing.T) {
	mgr, _ := newTestManager(t, nil)
	assert.Error(t, mgr.Load("raid", filepath.Join(t.TempDir(), "nope"), 0))
}

func TestManager_Load_MultipleFilesOrderedByName(t *testing.T) {
	mgr, _ := newTestManager(t, nil)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.lua"), []byte(`base_val = 10`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.lua"), []byte(`
		function get_val() return base_val end
	`), 0644))
	require.NoError(t, mgr.Load("ordered", dir, 0))

	ret, err := mgr.CallHook(context.Background(), "ordered", "get_val", 1)
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(10), ret[0])
}

func TestManager_Load_ReplacesNamespace(t *testing.T) {
	mgr, _ := newTestManager(t, nil)
	require.NoError(t, mgr.Load("raid", writeTempLua(t, "v1.lua", `function v() return 1 end`), 0))
	require.NoError(t, mgr.Load("raid", writeTempLua(t, "v2.lua", `function v() return 2 end`), 0))

	ret, err := mgr.CallHook(context.Background(), "raid", "v", 1)
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(2), ret[0])
}

func TestManager_FizzModule(t *testing.T) {
	mgr, logs := newTestManager(t, dice.NewScripted(0.5))
	dir := writeTempLua(t, "fizz.lua", `
		function use_fizz()
			fizz.log("rolling")
			return fizz.roll("2d6+1"), fizz.random()
		end
		function bad_roll()
			return fizz.roll("banana")
		end
	`)
	require.NoError(t, mgr.Load("raid", dir, 0))

	ret, err := mgr.CallHook(context.Background(), "raid", "use_fizz", 2)
	require.NoError(t, err)
	// Scripted(0.5) scales to face 4 on a d6: 4 + 4 + 1.
	assert.Equal(t, lua.LNumber(9), ret[0])
	assert.Equal(t, lua.LNumber(0.5), ret[1])
	assert.True(t, hasLevel(logs, zap.InfoLevel))

	_, err = mgr.CallHook(context.Background(), "raid", "bad_roll", 1)
	assert.Error(t, err)
}

func TestManager_Close(t *testing.T) {
	mgr, _ := newTestManager(t, nil)
	require.NoError(t, mgr.Load("raid", writeTempLua(t, "x.lua", `function get_x() return 1 end`), 0))
	mgr.Close()

	_, err := mgr.CallHook(context.Background(), "raid", "get_x", 1)
	assert.ErrorIs(t, err, scripting.ErrNoHook)
}

func TestNewManager_PanicsOnNil(t *testing.T) {
	assert.Panics(t, func() { scripting.NewManager(nil, zap.NewNop()) })
	roller := dice.NewLoggedRoller(dice.NewCryptoSource(), zap.NewNop())
	assert.Panics(t, func() { scripting.NewManager(roller, nil) })
}

func TestManager_ConcurrentCallsSameNamespace(t *testing.T) {
	mgr, _ := newTestManager(t, nil)
	dir := writeTempLua(t, "hooks.lua", `function add(a, b) return a + b end`)
	require.NoError(t, mgr.Load("raid", dir, 0))

	const goroutines = 10
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				ret, err := mgr.CallHook(context.Background(), "raid", "add", 1, lua.LNumber(1), lua.LNumber(2))
				assert.NoError(t, err)
				if assert.Len(t, ret, 1) {
					assert.Equal(t, lua.LNumber(3), ret[0])
				}
			}
		}()
	}
	wg.Wait()
}

func TestProperty_CallHookUnknownNeverPanics(t *testing.T) {
	mgr, _ := newTestManager(t, nil)
	rapid.Check(t, func(rt *rapid.T) {
		ns := rapid.StringMatching(`[a-z]{1,10}`).Draw(rt, "namespace")
		hook := rapid.StringMatching(`[a-z]{1,10}`).Draw(rt, "hook")
		_, err := mgr.CallHook(context.Background(), ns, hook, 1)
		if err == nil {
			rt.Fatalf("expected ErrNoHook for %s.%s", ns, hook)
		}
	})
}
