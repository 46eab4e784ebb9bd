// Package raid resolves the penalty applied when a claim on a high-risk
// spot is raided: a replacement hit-point value and gear inventory.
package raid

import (
	"context"
	"slices"

	"github.com/Unwrenchable/fizz-caps/internal/game/player"
)

// Input is the player state a raid acts on, captured after the claim's
// gear has been appended.
type Input struct {
	Spot  string
	HP    int
	MaxHP int
	Gear  []player.GearItem
}

// Outcome is the replacement state produced by a raid.
type Outcome struct {
	HP     int               `json:"hp"`
	Damage int               `json:"damage"`
	Stolen []player.GearItem `json:"stolen"`
	Gear   []player.GearItem `json:"-"`
}

// Resolver produces the raid outcome for a triggered raid.
type Resolver interface {
	Resolve(ctx context.Context, in Input) Outcome
}

// Default halves hit points (floor, minimum 1) and steals the most recently
// acquired gear item.
type Default struct{}

// Resolve implements Resolver.
func (Default) Resolve(_ context.Context, in Input) Outcome {
	hp := max(in.HP/2, 1)
	return keepOldest(in, hp, len(in.Gear)-1)
}

// keepOldest builds an Outcome keeping the first keep gear items. keep and
// hp are clamped into range.
func keepOldest(in Input, hp, keep int) Outcome {
	hp = min(max(hp, 0), in.MaxHP)
	keep = min(max(keep, 0), len(in.Gear))

	kept := slices.Clone(in.Gear[:keep])
	if kept == nil {
		kept = []player.GearItem{}
	}
	stolen := slices.Clone(in.Gear[keep:])
	if stolen == nil {
		stolen = []player.GearItem{}
	}
	return Outcome{
		HP:     hp,
		Damage: max(in.HP-hp, 0),
		Stolen: stolen,
		Gear:   kept,
	}
}
