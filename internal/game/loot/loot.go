// Package loot resolves claim draws into gear drops and raid triggers.
// Both resolvers are pure: the caller supplies the random draw.
package loot

import (
	"fmt"

	"github.com/Unwrenchable/fizz-caps/internal/game/catalog"
)

// Tier is a gear rarity tier.
type Tier string

// Gear tiers, rarest first.
const (
	TierNone      Tier = ""
	TierLegendary Tier = "legendary"
	TierRare      Tier = "rare"
	TierCommon    Tier = "common"
)

// RaidChance is the probability that a claim on a high-risk spot triggers a raid.
const RaidChance = 0.07

// Band is one row of the gear drop table: draws strictly below Below
// (and not captured by an earlier row) yield Item.
type Band struct {
	Below float64
	Tier  Tier
	Item  string
}

// DropTable is evaluated in order; the first band whose Below exceeds the
// draw wins. Order matters: bands are defined by priority, rarest first.
var DropTable = []Band{
	{Below: 0.03, Tier: TierLegendary, Item: "Power Armor T-51b"},
	{Below: 0.12, Tier: TierRare, Item: "Service Rifle"},
	{Below: 0.30, Tier: TierCommon, Item: "10mm Pistol"},
}

// Outcome is the resolved gear drop for a claim.
type Outcome struct {
	Tier Tier
	Item string
}

// Dropped reports whether the outcome carries gear.
func (o Outcome) Dropped() bool {
	return o.Tier != TierNone
}

// String returns "Item (tier)" or "none".
func (o Outcome) String() string {
	if !o.Dropped() {
		return "none"
	}
	return fmt.Sprintf("%s (%s)", o.Item, o.Tier)
}

// ResolveLoot maps a draw in [0, 1) onto DropTable.
//
// Precondition: 0 <= draw < 1.
// Postcondition: draw < 0.03 → legendary; < 0.12 → rare; < 0.30 → common; else none.
// Boundary values fall into the next, more common, band.
func ResolveLoot(draw float64) Outcome {
	for _, b := range DropTable {
		if draw < b.Below {
			return Outcome{Tier: b.Tier, Item: b.Item}
		}
	}
	return Outcome{}
}

// ResolveRaid reports whether a claim on spot is raided. It requires both
// high-risk membership (substring match against highRisk) and draw < RaidChance.
func ResolveRaid(spot string, highRisk []string, draw float64) bool {
	return catalog.IsHighRisk(spot, highRisk) && draw < RaidChance
}
