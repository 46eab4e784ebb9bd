// Package issuer defines the asset issuer capability the claim orchestrator
// mints through: fungible caps and collectible gear. Idempotency is the
// caller's responsibility; an issuer may fail or be slow.
package issuer

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidMint is returned for non-positive amounts or empty recipients.
var ErrInvalidMint = errors.New("issuer: invalid mint request")

// Receipt is the audit handle of one fungible mint.
type Receipt struct {
	// ID is the issuer's opaque transaction reference.
	ID       string    `json:"id"`
	Wallet   string    `json:"wallet"`
	Amount   int64     `json:"amount"`
	IssuedAt time.Time `json:"issued_at"`
}

// Attribute is a single collectible trait.
type Attribute struct {
	Trait string `json:"trait_type"`
	Value string `json:"value"`
}

// Metadata describes a collectible to mint.
type Metadata struct {
	Name        string      `json:"name"`
	Symbol      string      `json:"symbol"`
	Description string      `json:"description"`
	Image       string      `json:"image,omitempty"`
	Attributes  []Attribute `json:"attributes"`
}

// AssetHandle identifies a minted collectible.
type AssetHandle struct {
	ID string `json:"id"`
	// URI is where the collectible's metadata document lives, if uploaded.
	URI string `json:"uri,omitempty"`
}

// Issuer mints reward assets to wallets.
type Issuer interface {
	// MintFungible mints amount whole caps to wallet.
	MintFungible(ctx context.Context, amount int64, wallet string) (Receipt, error)
	// MintCollectible mints one collectible described by md and transfers it to wallet.
	MintCollectible(ctx context.Context, md Metadata, wallet string) (AssetHandle, error)
}

// BalanceReporter is implemented by issuers that can report a wallet's
// fungible balance in whole caps.
type BalanceReporter interface {
	Balance(ctx context.Context, wallet string) (int64, error)
}

// Auditor is implemented by issuers that can list total whole caps minted per wallet.
type Auditor interface {
	Totals(ctx context.Context) (map[string]int64, error)
}

// MetadataUploader persists collectible metadata documents and returns their URI.
type MetadataUploader interface {
	Upload(ctx context.Context, key string, md Metadata) (string, error)
}

// ValidateMint rejects non-positive amounts and empty recipients.
func ValidateMint(amount int64, wallet string) error {
	if amount <= 0 || wallet == "" {
		return ErrInvalidMint
	}
	return nil
}

// BaseUnits converts whole caps to ledger base units at the given precision,
// e.g. 25 caps at 9 decimals is 25_000_000_000.
//
// Precondition: 0 <= decimals <= 18.
func BaseUnits(amount int64, decimals int) int64 {
	for i := 0; i < decimals; i++ {
		amount *= 10
	}
	return amount
}

// WholeCaps converts ledger base units back to whole caps, truncating.
func WholeCaps(base int64, decimals int) int64 {
	for i := 0; i < decimals; i++ {
		base /= 10
	}
	return base
}
