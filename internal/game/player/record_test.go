package player_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/Unwrenchable/fizz-caps/internal/game/player"
)

func TestNewRecord_Defaults(t *testing.T) {
	r := player.NewRecord()
	assert.Equal(t, 1, r.Level)
	assert.Equal(t, 100, r.HP)
	assert.Equal(t, 100, r.MaxHP)
	assert.Zero(t, r.Caps)
	assert.NotNil(t, r.Gear)
	assert.Empty(t, r.Gear)
	assert.Empty(t, r.Consumables)
	assert.Empty(t, r.ClaimedSpots)
	assert.NoError(t, r.Validate())
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, 1, player.LevelFor(0))
	assert.Equal(t, 1, player.LevelFor(999))
	assert.Equal(t, 2, player.LevelFor(1000))
	assert.Equal(t, 2, player.LevelFor(1005))
	assert.Equal(t, 5, player.LevelFor(4025))
	assert.Equal(t, 1, player.LevelFor(-5))
}

func TestApplyClaim_CrossesLevelExactly(t *testing.T) {
	r := player.NewRecord()
	r.Caps = 975
	r.HP = 40

	gained := r.ApplyClaim(player.Claim{Spot: "Goodsprings Saloon", Caps: 25})

	assert.Equal(t, 1, gained)
	assert.Equal(t, int64(1000), r.Caps)
	assert.Equal(t, 2, r.Level)
	assert.Equal(t, 150, r.MaxHP)
	assert.Equal(t, 150, r.HP, "hp refills on level up")
}

func TestApplyClaim_CrossesLevelPastBoundary(t *testing.T) {
	r := player.NewRecord()
	r.Caps = 980

	r.ApplyClaim(player.Claim{Spot: "Goodsprings Saloon", Caps: 25})

	assert.Equal(t, int64(1005), r.Caps)
	assert.Equal(t, 2, r.Level)
	assert.Equal(t, 150, r.MaxHP)
	assert.Equal(t, 150, r.HP)
}

func TestApplyClaim_NoLevelChangeLeavesHP(t *testing.T) {
	r := player.Record{Level: 2, HP: 90, MaxHP: 150, Caps: 1100}

	gained := r.ApplyClaim(player.Claim{Spot: "Primm Rollercoaster", Caps: 25})

	assert.Zero(t, gained)
	assert.Equal(t, 2, r.Level)
	assert.Equal(t, 150, r.MaxHP)
	assert.Equal(t, 90, r.HP)
}

func TestApplyClaim_GearAndHistory(t *testing.T) {
	r := player.NewRecord()
	gear := &player.GearItem{Name: "10mm Pistol", Rarity: "common", AssetID: "a1"}

	r.ApplyClaim(player.Claim{Spot: "Goodsprings Saloon", Caps: 25, Gear: gear})
	r.ApplyClaim(player.Claim{Spot: "Goodsprings Saloon", Caps: 25})

	require.Len(t, r.Gear, 1)
	assert.Equal(t, *gear, r.Gear[0])
	assert.Equal(t, []string{"Goodsprings Saloon"}, r.ClaimedSpots, "claim history is a set")
	assert.True(t, r.HasClaimed("Goodsprings Saloon"))
	assert.False(t, r.HasClaimed("Hoover Dam"))
}

func TestApplyRaid_ClampsAndReplaces(t *testing.T) {
	r := player.NewRecord()
	r.Gear = []player.GearItem{{Name: "a"}, {Name: "b"}}

	r.ApplyRaid(500, nil)
	assert.Equal(t, r.MaxHP, r.HP)
	assert.NotNil(t, r.Gear)
	assert.Empty(t, r.Gear)

	r.ApplyRaid(-3, []player.GearItem{{Name: "a"}})
	assert.Zero(t, r.HP)
	assert.Len(t, r.Gear, 1)
}

func TestValidate_Rejects(t *testing.T) {
	bad := []player.Record{
		{Level: 0, HP: 100, MaxHP: 100},
		{Level: 1, HP: 100, MaxHP: 99},
		{Level: 1, HP: 101, MaxHP: 100},
		{Level: 1, HP: -1, MaxHP: 100},
		{Level: 1, HP: 100, MaxHP: 100, Caps: -1},
	}
	for i, r := range bad {
		assert.Error(t, r.Validate(), "case %d", i)
	}
}

func TestProperty_ApplyClaimKeepsInvariants(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		r := player.NewRecord()
		claims := rapid.IntRange(1, 200).Draw(rt, "claims")
		reward := rapid.Int64Range(1, 500).Draw(rt, "reward")
		prevMax := r.MaxHP
		for i := 0; i < claims; i++ {
			r.ApplyClaim(player.Claim{Spot: "s", Caps: reward})
			require.NoError(rt, r.Validate())
			assert.Equal(rt, player.LevelFor(r.Caps), r.Level)
			assert.GreaterOrEqual(rt, r.MaxHP, prevMax, "max hp never decreases")
			prevMax = r.MaxHP
		}
		assert.Equal(rt, player.DefaultHP+player.MaxHPStep*(r.Level-1), r.MaxHP)
	})
}
