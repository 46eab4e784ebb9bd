package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Unwrenchable/fizz-caps/internal/store"
)

// liveRow matches rows that have not expired. Expiry is judged by the
// database clock so every server instance agrees.
const liveRow = `(expires_at IS NULL OR expires_at > NOW())`

// expiresAt computes the expiry column from a millisecond ttl parameter;
// a non-positive ttl stores NULL (never expires).
const expiresAt = `CASE WHEN $%d::bigint > 0 THEN NOW() + ($%d::bigint::double precision * INTERVAL '1 millisecond') END`

func expiresAtParam(n int) string {
	return fmt.Sprintf(expiresAt, n, n)
}

func ttlMillis(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return max(ttl.Milliseconds(), 1)
}

// KVStore is a store.Store backed by the kv table. Expired rows are
// invisible to every operation and purged by Sweep.
type KVStore struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewKVStore creates a KVStore backed by the given pool.
//
// Precondition: db must be a valid, open connection pool with the kv
// migration applied; logger must be non-nil.
func NewKVStore(db *pgxpool.Pool, logger *zap.Logger) *KVStore {
	return &KVStore{db: db, logger: logger}
}

// Exists implements store.Store.
func (s *KVStore) Exists(ctx context.Context, key string) (bool, error) {
	var ok bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM kv WHERE key = $1 AND `+liveRow+`)`,
		key,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("kv exists %q: %w", key, err)
	}
	return ok, nil
}

// Get implements store.Store.
func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow(ctx,
		`SELECT value FROM kv WHERE key = $1 AND `+liveRow,
		key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kv get %q: %w", key, err)
	}
	return value, nil
}

// SetIfAbsent implements store.Store. An expired row counts as absent and
// is overwritten in the same statement, so the check and the write are
// one atomic step.
func (s *KVStore) SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`INSERT INTO kv (key, value, expires_at)
		 VALUES ($1, $2, `+expiresAtParam(3)+`)
		 ON CONFLICT (key) DO UPDATE
		 SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, updated_at = NOW()
		 WHERE kv.expires_at IS NOT NULL AND kv.expires_at <= NOW()`,
		key, value, ttlMillis(ttl),
	)
	if err != nil {
		return false, fmt.Errorf("kv set-if-absent %q: %w", key, err)
	}
	return tag.RowsAffected() == 1, nil
}

// Set implements store.Store.
func (s *KVStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO kv (key, value, expires_at)
		 VALUES ($1, $2, `+expiresAtParam(3)+`)
		 ON CONFLICT (key) DO UPDATE
		 SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, updated_at = NOW()`,
		key, value, ttlMillis(ttl),
	)
	if err != nil {
		return fmt.Errorf("kv set %q: %w", key, err)
	}
	return nil
}

// Delete implements store.Store.
func (s *KVStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM kv WHERE key = $1`, key); err != nil {
		return fmt.Errorf("kv delete %q: %w", key, err)
	}
	return nil
}

// CompareAndSwap implements store.Store.
func (s *KVStore) CompareAndSwap(ctx context.Context, key string, prev, next []byte, ttl time.Duration) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE kv
		 SET value = $3, expires_at = `+expiresAtParam(4)+`, updated_at = NOW()
		 WHERE key = $1 AND value = $2 AND `+liveRow,
		key, prev, next, ttlMillis(ttl),
	)
	if err != nil {
		return false, fmt.Errorf("kv compare-and-swap %q: %w", key, err)
	}
	return tag.RowsAffected() == 1, nil
}

// Ping implements store.Store.
func (s *KVStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Sweep deletes expired rows and returns how many were removed.
func (s *KVStore) Sweep(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM kv WHERE expires_at IS NOT NULL AND expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("kv sweep: %w", err)
	}
	if n := tag.RowsAffected(); n > 0 {
		s.logger.Debug("swept expired keys", zap.Int64("count", n))
	}
	return tag.RowsAffected(), nil
}

// Keys lists live keys with the given prefix, e.g. "player:".
func (s *KVStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.Query(ctx,
		`SELECT key FROM kv WHERE key LIKE $1 || '%' AND `+liveRow+` ORDER BY key`,
		prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("kv keys %q: %w", prefix, err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("kv keys %q: %w", prefix, err)
	}
	return keys, nil
}
