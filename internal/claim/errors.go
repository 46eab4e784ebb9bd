package claim

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidRequest is returned when the wallet or spot is missing, or
	// the wallet is not a base58 public key.
	ErrInvalidRequest = errors.New("claim: invalid request")
	// ErrSpotNotFound is returned when the spot is not in the catalog.
	ErrSpotNotFound = errors.New("claim: spot not found")
	// ErrIssuerFailure is returned when the issuer definitively rejected a mint.
	ErrIssuerFailure = errors.New("claim: issuer failure")
	// ErrStoreFailure is returned when the store could not be read or written.
	ErrStoreFailure = errors.New("claim: store failure")
	// ErrOutcomeUnknown is returned when the fungible mint timed out or was
	// cancelled. The cooldown marker is kept so a retry cannot double-mint.
	ErrOutcomeUnknown = errors.New("claim: issuance outcome unknown")
)

// OnCooldownError is returned when the (wallet, spot) pair was claimed
// within the cooldown window.
type OnCooldownError struct {
	Spot      string
	Remaining time.Duration
}

func (e *OnCooldownError) Error() string {
	return fmt.Sprintf("claim: %s on cooldown for %s", e.Spot, e.Remaining.Round(time.Second))
}

// LevelTooLowError is returned when the player's level is below the spot's
// required level.
type LevelTooLowError struct {
	Spot     string
	Required int
	Current  int
}

func (e *LevelTooLowError) Error() string {
	return fmt.Sprintf("claim: %s requires level %d, player is level %d", e.Spot, e.Required, e.Current)
}
