// Package claim implements the reward-claim state machine: validation,
// level and cooldown gates, idempotent issuance, loot and raid resolution,
// and the player state mutation that settles a claim.
package claim

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Unwrenchable/fizz-caps/internal/game/catalog"
	"github.com/Unwrenchable/fizz-caps/internal/game/dice"
	"github.com/Unwrenchable/fizz-caps/internal/game/loot"
	"github.com/Unwrenchable/fizz-caps/internal/game/player"
	"github.com/Unwrenchable/fizz-caps/internal/game/raid"
	"github.com/Unwrenchable/fizz-caps/internal/issuer"
	"github.com/Unwrenchable/fizz-caps/internal/observability"
	"github.com/Unwrenchable/fizz-caps/internal/store"
)

// Request is one claim attempt.
type Request struct {
	Wallet string `json:"wallet"`
	Spot   string `json:"spot"`
}

// Config holds the claim tunables.
type Config struct {
	RewardCaps    int64
	Cooldown      time.Duration
	IssuerTimeout time.Duration
}

// Deps are the collaborators an Orchestrator drives.
type Deps struct {
	Catalog *catalog.Catalog
	Players *player.Manager
	Store   store.Store
	Issuer  issuer.Issuer
	Roller  *dice.Roller
	Raids   raid.Resolver
	Logger  *zap.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Orchestrator settles claims. It holds no mutable state of its own: every
// cross-request guarantee rests on the store's atomic primitives, so any
// number of Orchestrators may share one store.
type Orchestrator struct {
	cfg     Config
	catalog *catalog.Catalog
	players *player.Manager
	store   store.Store
	issuer  issuer.Issuer
	roller  *dice.Roller
	raids   raid.Resolver
	logger  *zap.Logger
	now     func() time.Time
}

// NewOrchestrator creates an Orchestrator.
//
// Precondition: every field of deps except Now must be non-nil;
// cfg.RewardCaps, cfg.Cooldown and cfg.IssuerTimeout must be positive.
func NewOrchestrator(cfg Config, deps Deps) *Orchestrator {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		cfg:     cfg,
		catalog: deps.Catalog,
		players: deps.Players,
		store:   deps.Store,
		issuer:  deps.Issuer,
		roller:  deps.Roller,
		raids:   deps.Raids,
		logger:  deps.Logger,
		now:     now,
	}
}

// Claim runs the claim state machine for req.
//
// At most one claim per (wallet, spot) reaches the issuer within a
// cooldown window, regardless of concurrency or retries: the cooldown
// marker is written atomically before any mint.
//
// Postcondition: on success the fungible reward has been minted exactly
// once and the player record reflects it. A failed gear mint does not fail
// the claim; the settlement carries no gear. On failure no Settlement is
// returned and the error matches one of the package's sentinels or typed
// errors via errors.Is / errors.As.
func (o *Orchestrator) Claim(ctx context.Context, req Request) (Settlement, error) {
	wallet := strings.TrimSpace(req.Wallet)
	spot := strings.TrimSpace(req.Spot)
	if wallet == "" || spot == "" {
		return Settlement{}, fmt.Errorf("%w: wallet and spot are required", ErrInvalidRequest)
	}
	if !ValidWallet(wallet) {
		return Settlement{}, fmt.Errorf("%w: malformed wallet %q", ErrInvalidRequest, wallet)
	}

	loc, ok := o.catalog.Lookup(spot)
	if !ok {
		return Settlement{}, fmt.Errorf("%w: %q", ErrSpotNotFound, spot)
	}
	log := o.logger.With(observability.Wallet(wallet), zap.String("spot", loc.Name))
	key := store.CooldownKey(wallet, loc.Name)

	// Eligibility. These checks are advisory; the gate below is authoritative.
	cooling, err := o.store.Exists(ctx, key)
	if err != nil {
		return Settlement{}, fmt.Errorf("%w: checking cooldown: %w", ErrStoreFailure, err)
	}
	if cooling {
		return Settlement{}, o.cooldownError(ctx, key, loc.Name)
	}
	rec, err := o.players.LoadOrCreate(ctx, wallet)
	if err != nil {
		return Settlement{}, fmt.Errorf("%w: %w", ErrStoreFailure, err)
	}
	if rec.Level < loc.RequiredLevel {
		return Settlement{}, &LevelTooLowError{Spot: loc.Name, Required: loc.RequiredLevel, Current: rec.Level}
	}

	// Cooldown gate.
	expiry := o.now().Add(o.cfg.Cooldown).UTC()
	won, err := o.store.SetIfAbsent(ctx, key, []byte(expiry.Format(time.RFC3339Nano)), o.cfg.Cooldown)
	if err != nil {
		return Settlement{}, fmt.Errorf("%w: setting cooldown: %w", ErrStoreFailure, err)
	}
	if !won {
		log.Debug("lost cooldown gate to a concurrent claim")
		return Settlement{}, o.cooldownError(ctx, key, loc.Name)
	}

	// Issuance.
	receipt, err := o.mintFungible(ctx, wallet)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			log.Error("fungible mint outcome unknown, cooldown kept", zap.Error(err))
			return Settlement{}, fmt.Errorf("%w: %w", ErrOutcomeUnknown, err)
		}
		if delErr := o.store.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			log.Error("releasing cooldown after failed mint", zap.Error(delErr))
		}
		log.Error("fungible mint failed, cooldown released", zap.Error(err))
		return Settlement{}, fmt.Errorf("%w: %w", ErrIssuerFailure, err)
	}
	log = log.With(zap.String("receipt", receipt.ID))

	// The fungible mint is committed from here on: the claim settles even if
	// the client goes away or the gear mint fails.
	ctx = context.WithoutCancel(ctx)

	// Loot and raid draws.
	drop := loot.ResolveLoot(o.roller.Draw("loot"))
	var gear *player.GearItem
	if drop.Dropped() {
		gear, err = o.mintGear(ctx, wallet, loc, drop)
		if err != nil {
			log.Error("collectible mint failed, settling without gear",
				zap.String("item", drop.Item),
				zap.String("rarity", string(drop.Tier)),
				zap.Error(err),
			)
		}
	}
	raided := false
	if loc.HighRisk {
		raided = loot.ResolveRaid(loc.Name, o.catalog.HighRisk(), o.roller.Draw("raid"))
	}

	// State mutation. The closure may run more than once under contention;
	// the raid outcome of the attempt that commits wins.
	var (
		levelUp bool
		outcome *raid.Outcome
	)
	rec, err = o.players.Update(ctx, wallet, func(r *player.Record) error {
		levelUp = r.ApplyClaim(player.Claim{Spot: loc.Name, Caps: o.cfg.RewardCaps, Gear: gear}) > 0
		outcome = nil
		if raided {
			res := o.raids.Resolve(ctx, raid.Input{Spot: loc.Name, HP: r.HP, MaxHP: r.MaxHP, Gear: r.Gear})
			r.ApplyRaid(res.HP, res.Gear)
			outcome = &res
		}
		return nil
	})
	if err != nil {
		log.Error("persisting claim failed after mint, needs reconciliation", zap.Error(err))
		return Settlement{}, fmt.Errorf("%w: %w", ErrStoreFailure, err)
	}

	s := Settlement{
		Spot:    loc.Name,
		Caps:    o.cfg.RewardCaps,
		Gear:    gear,
		Raid:    outcome,
		HP:      rec.HP,
		Level:   rec.Level,
		LevelUp: levelUp,
		Message: Message(loc.Name, o.cfg.RewardCaps, gear != nil, outcome != nil, levelUp),
		Receipt: receipt,
	}
	log.Info("claim settled",
		zap.Int64("caps", s.Caps),
		zap.Stringer("loot", drop),
		zap.Bool("raided", outcome != nil),
		zap.Int("level", s.Level),
	)
	return s, nil
}

func (o *Orchestrator) mintFungible(ctx context.Context, wallet string) (issuer.Receipt, error) {
	mintCtx, cancel := context.WithTimeout(ctx, o.cfg.IssuerTimeout)
	defer cancel()
	return o.issuer.MintFungible(mintCtx, o.cfg.RewardCaps, wallet)
}

func (o *Orchestrator) mintGear(ctx context.Context, wallet string, loc *catalog.Location, drop loot.Outcome) (*player.GearItem, error) {
	mintCtx, cancel := context.WithTimeout(ctx, o.cfg.IssuerTimeout)
	defer cancel()
	h, err := o.issuer.MintCollectible(mintCtx, GearMetadata(loc.Name, drop), wallet)
	if err != nil {
		return nil, err
	}
	return &player.GearItem{Name: drop.Item, Rarity: string(drop.Tier), AssetID: h.ID, URI: h.URI}, nil
}

// GearMetadata describes the collectible minted for a gear drop at spot.
func GearMetadata(spot string, drop loot.Outcome) issuer.Metadata {
	return issuer.Metadata{
		Name:        drop.Item,
		Symbol:      "FIZZGEAR",
		Description: fmt.Sprintf("%s looted at %s.", drop.Item, spot),
		Attributes: []issuer.Attribute{
			{Trait: "rarity", Value: string(drop.Tier)},
			{Trait: "spot", Value: spot},
		},
	}
}

// cooldownError reads the marker's stored expiry to report the time left.
// A marker that vanished or cannot be parsed reports the full window.
func (o *Orchestrator) cooldownError(ctx context.Context, key, spot string) error {
	remaining := o.cfg.Cooldown
	raw, err := o.store.Get(ctx, key)
	if err == nil {
		if expiry, perr := time.Parse(time.RFC3339Nano, string(raw)); perr == nil {
			remaining = max(expiry.Sub(o.now()), 0)
		}
	}
	return &OnCooldownError{Spot: spot, Remaining: remaining}
}
