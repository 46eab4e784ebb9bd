// Package player owns the persistent per-wallet player record: level, hit
// points, caps balance, inventories and claim history.
package player

import (
	"fmt"
	"slices"
)

// Progression constants.
const (
	// DefaultHP is the starting and minimum MaxHP.
	DefaultHP = 100
	// CapsPerLevel is the caps needed per level step.
	CapsPerLevel = 1000
	// MaxHPStep is the MaxHP gained per level.
	MaxHPStep = 50
)

// GearItem is a collectible reward. Immutable once created.
type GearItem struct {
	Name   string `json:"name"`
	Rarity string `json:"rarity"`
	// AssetID is the issuer's handle for the minted collectible.
	AssetID string `json:"asset_id"`
	URI     string `json:"uri,omitempty"`
}

// ConsumableItem is a consumable (stimpak) held by the player.
type ConsumableItem struct {
	Name    string `json:"name"`
	Tier    string `json:"tier"`
	AssetID string `json:"asset_id"`
}

// Record is the persisted aggregate for one wallet.
//
// Invariant: 0 <= HP <= MaxHP; MaxHP >= DefaultHP; Caps >= 0;
// Level == LevelFor(Caps) after every claim.
type Record struct {
	Level        int              `json:"lvl"`
	HP           int              `json:"hp"`
	MaxHP        int              `json:"max_hp"`
	Caps         int64            `json:"caps"`
	Gear         []GearItem       `json:"gear"`
	Consumables  []ConsumableItem `json:"stimpaks"`
	ClaimedSpots []string         `json:"claimed"`
	// Version increments on every successful save.
	Version int64 `json:"version"`
}

// NewRecord returns the default record for a wallet seen for the first time.
//
// Postcondition: Level 1, HP == MaxHP == DefaultHP, zero caps, empty (non-nil) inventories.
func NewRecord() Record {
	return Record{
		Level:        1,
		HP:           DefaultHP,
		MaxHP:        DefaultHP,
		Gear:         []GearItem{},
		Consumables:  []ConsumableItem{},
		ClaimedSpots: []string{},
	}
}

// LevelFor returns the level implied by a caps balance.
//
// Postcondition: returns caps/CapsPerLevel + 1; negative balances are level 1.
func LevelFor(caps int64) int {
	if caps < 0 {
		return 1
	}
	return int(caps/CapsPerLevel) + 1
}

// Validate checks the record invariants that hold at all times.
func (r *Record) Validate() error {
	switch {
	case r.Level < 1:
		return fmt.Errorf("player: level must be >= 1, got %d", r.Level)
	case r.MaxHP < DefaultHP:
		return fmt.Errorf("player: max hp must be >= %d, got %d", DefaultHP, r.MaxHP)
	case r.HP < 0 || r.HP > r.MaxHP:
		return fmt.Errorf("player: hp %d outside [0, %d]", r.HP, r.MaxHP)
	case r.Caps < 0:
		return fmt.Errorf("player: caps must be >= 0, got %d", r.Caps)
	}
	return nil
}

// HasClaimed reports whether spot is in the claim history.
func (r *Record) HasClaimed(spot string) bool {
	return slices.Contains(r.ClaimedSpots, spot)
}

// Claim is the reward applied to a record by one successful claim.
type Claim struct {
	Spot string
	Caps int64
	Gear *GearItem
}

// ApplyClaim credits a claim: caps, gear append, claim history, level
// recomputation. When the level rises, MaxHP grows by MaxHPStep per level
// gained and HP refills to the new MaxHP. It returns the number of levels gained.
//
// Precondition: c.Caps >= 0.
// Postcondition: r.Level == LevelFor(r.Caps).
func (r *Record) ApplyClaim(c Claim) int {
	r.Caps += c.Caps
	if c.Gear != nil {
		r.Gear = append(r.Gear, *c.Gear)
	}
	if !r.HasClaimed(c.Spot) {
		r.ClaimedSpots = append(r.ClaimedSpots, c.Spot)
	}

	prev := r.Level
	r.Level = LevelFor(r.Caps)
	gained := r.Level - prev
	if gained > 0 {
		r.MaxHP += MaxHPStep * gained
		r.HP = r.MaxHP
		return gained
	}
	return 0
}

// ApplyRaid replaces HP and gear with a raid's outcome. HP is clamped to [0, MaxHP].
func (r *Record) ApplyRaid(hp int, gear []GearItem) {
	r.HP = min(max(hp, 0), r.MaxHP)
	if gear == nil {
		gear = []GearItem{}
	}
	r.Gear = gear
}
