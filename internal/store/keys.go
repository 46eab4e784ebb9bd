package store

import (
	"strings"

	"github.com/gosimple/slug"
)

// Key namespaces. Player records and cooldown markers never share a prefix.
const (
	playerPrefix   = "player:"
	cooldownPrefix = "cooldown:claim:"
)

// PlayerPrefix is the key prefix shared by every player record.
const PlayerPrefix = playerPrefix

// PlayerKey returns the key of the player record for wallet.
func PlayerKey(wallet string) string {
	return playerPrefix + wallet
}

// CooldownKey returns the key of the cooldown marker for (wallet, spot).
// The spot is slugged so display names with spaces and punctuation produce
// stable keys; "Vault 77 (Secret)" becomes "vault-77-secret".
func CooldownKey(wallet, spot string) string {
	return cooldownPrefix + wallet + ":" + SpotSlug(spot)
}

// SpotSlug returns the URL- and key-safe slug of a spot name.
func SpotSlug(spot string) string {
	return slug.Make(spot)
}

// WalletFromPlayerKey returns the wallet of a player record key and whether
// key was one.
func WalletFromPlayerKey(key string) (string, bool) {
	return strings.CutPrefix(key, playerPrefix)
}
