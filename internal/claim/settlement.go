package claim

import (
	"fmt"
	"strings"

	"github.com/Unwrenchable/fizz-caps/internal/game/player"
	"github.com/Unwrenchable/fizz-caps/internal/game/raid"
	"github.com/Unwrenchable/fizz-caps/internal/issuer"
)

// Settlement is the result of a successful claim.
type Settlement struct {
	Spot    string
	Caps    int64
	Gear    *player.GearItem
	Raid    *raid.Outcome
	HP      int
	Level   int
	LevelUp bool
	Message string
	Receipt issuer.Receipt
}

// Message composes the human-readable claim summary, e.g.
// "Hoover Dam LOOTED! +25 CAPS + GEAR! → RAIDED!".
func Message(spot string, caps int64, gear, raided, levelUp bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s LOOTED! +%d CAPS", spot, caps)
	if gear {
		b.WriteString(" + GEAR!")
	}
	if raided {
		b.WriteString(" → RAIDED!")
	}
	if levelUp {
		b.WriteString(" LEVEL UP!")
	}
	return b.String()
}

// ExplorerURL returns the block explorer link for a transaction on cluster.
// Non-mainnet clusters are passed as a query parameter.
func ExplorerURL(cluster, txID string) string {
	if cluster == "" || cluster == "mainnet-beta" {
		return "https://solscan.io/tx/" + txID
	}
	return fmt.Sprintf("https://solscan.io/tx/%s?cluster=%s", txID, cluster)
}
