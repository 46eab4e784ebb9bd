package player

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Unwrenchable/fizz-caps/internal/observability"
	"github.com/Unwrenchable/fizz-caps/internal/store"
)

// DefaultMaxAttempts bounds the compare-and-swap retry loop in Update.
const DefaultMaxAttempts = 8

// ErrContention is returned by Update when every compare-and-swap attempt lost a race.
var ErrContention = errors.New("player: record update lost every compare-and-swap attempt")

// Manager loads, creates and saves player records through a store.Store.
// All cross-request synchronization goes through the store's atomic
// primitives, so several server instances may share one backend.
type Manager struct {
	store       store.Store
	logger      *zap.Logger
	maxAttempts int
}

// NewManager creates a Manager.
//
// Precondition: s and logger must be non-nil.
func NewManager(s store.Store, logger *zap.Logger) *Manager {
	return &Manager{store: s, logger: logger, maxAttempts: DefaultMaxAttempts}
}

// load returns the raw and decoded record for wallet, creating the default
// record if none exists. Two concurrent first loads both observe the
// winner's write.
func (m *Manager) load(ctx context.Context, wallet string) ([]byte, Record, error) {
	key := store.PlayerKey(wallet)
	raw, err := m.store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		fresh, encErr := json.Marshal(NewRecord())
		if encErr != nil {
			return nil, Record{}, fmt.Errorf("encoding default player: %w", encErr)
		}
		created, setErr := m.store.SetIfAbsent(ctx, key, fresh, 0)
		if setErr != nil {
			return nil, Record{}, fmt.Errorf("creating player: %w", setErr)
		}
		if created {
			m.logger.Info("player created", observability.Wallet(wallet))
			return fresh, NewRecord(), nil
		}
		raw, err = m.store.Get(ctx, key)
	}
	if err != nil {
		return nil, Record{}, fmt.Errorf("loading player: %w", err)
	}

	rec, err := decode(raw)
	if err != nil {
		return nil, Record{}, err
	}
	return raw, rec, nil
}

func decode(raw []byte) (Record, error) {
	rec := NewRecord()
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, fmt.Errorf("decoding player: %w", err)
	}
	if rec.Gear == nil {
		rec.Gear = []GearItem{}
	}
	if rec.Consumables == nil {
		rec.Consumables = []ConsumableItem{}
	}
	if rec.ClaimedSpots == nil {
		rec.ClaimedSpots = []string{}
	}
	return rec, nil
}

// LoadOrCreate returns the record for wallet, persisting the default record
// on first reference.
//
// Precondition: wallet must be non-empty.
// Postcondition: Returns one well-typed Record or a non-nil error.
func (m *Manager) LoadOrCreate(ctx context.Context, wallet string) (Record, error) {
	_, rec, err := m.load(ctx, wallet)
	return rec, err
}

// Lookup returns the stored record for wallet without creating one. A
// missing record yields an error matching store.ErrNotFound.
func (m *Manager) Lookup(ctx context.Context, wallet string) (Record, error) {
	raw, err := m.store.Get(ctx, store.PlayerKey(wallet))
	if err != nil {
		return Record{}, fmt.Errorf("loading player: %w", err)
	}
	return decode(raw)
}

// Save replaces the persisted record for wallet. Callers that read before
// writing must use Update instead to avoid lost updates.
//
// Precondition: rec must satisfy Validate.
func (m *Manager) Save(ctx context.Context, wallet string, rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding player: %w", err)
	}
	if err := m.store.Set(ctx, store.PlayerKey(wallet), raw, 0); err != nil {
		return fmt.Errorf("saving player: %w", err)
	}
	return nil
}

// Update applies fn to the current record for wallet and persists the
// result with compare-and-swap, retrying on conflict. fn may run more than
// once and must derive its changes only from the record it is given. An
// error from fn aborts the update without writing.
//
// Postcondition: Returns the persisted record with Version incremented, or
// ErrContention after DefaultMaxAttempts lost races.
func (m *Manager) Update(ctx context.Context, wallet string, fn func(*Record) error) (Record, error) {
	key := store.PlayerKey(wallet)
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Record{}, err
		}
		prev, rec, err := m.load(ctx, wallet)
		if err != nil {
			return Record{}, err
		}
		if err := fn(&rec); err != nil {
			return Record{}, err
		}
		if err := rec.Validate(); err != nil {
			return Record{}, err
		}
		rec.Version++

		next, err := json.Marshal(rec)
		if err != nil {
			return Record{}, fmt.Errorf("encoding player: %w", err)
		}
		ok, err := m.store.CompareAndSwap(ctx, key, prev, next, 0)
		if err != nil {
			return Record{}, fmt.Errorf("saving player: %w", err)
		}
		if ok {
			return rec, nil
		}
		m.logger.Debug("player update conflict, retrying",
			observability.Wallet(wallet),
			zap.Int("attempt", attempt),
		)
	}
	return Record{}, ErrContention
}
