package postgres_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Unwrenchable/fizz-caps/internal/issuer"
	"github.com/Unwrenchable/fizz-caps/internal/storage/postgres"
	"github.com/Unwrenchable/fizz-caps/internal/testutil"
)

type stubUploader struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (u *stubUploader) Upload(_ context.Context, key string, _ issuer.Metadata) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.err != nil {
		return "", u.err
	}
	u.keys = append(u.keys, key)
	return "https://assets.example/" + key, nil
}

func TestLedger(t *testing.T) {
	pool := testutil.NewPool(t)
	up := &stubUploader{}
	ledger := postgres.NewLedger(pool, 9, up, zaptest.NewLogger(t))
	ctx := context.Background()

	t.Run("MintFungibleAccumulates", func(t *testing.T) {
		r1, err := ledger.MintFungible(ctx, 25, "wallet-a")
		require.NoError(t, err)
		assert.NotEmpty(t, r1.ID)
		assert.Equal(t, int64(25), r1.Amount)
		assert.False(t, r1.IssuedAt.IsZero())

		_, err = ledger.MintFungible(ctx, 25, "wallet-a")
		require.NoError(t, err)

		bal, err := ledger.Balance(ctx, "wallet-a")
		require.NoError(t, err)
		assert.Equal(t, int64(50), bal)

		var base int64
		require.NoError(t, pool.QueryRow(ctx,
			`SELECT SUM(amount)::bigint FROM issuances WHERE wallet = 'wallet-a'`).Scan(&base))
		assert.Equal(t, int64(50_000_000_000), base, "amounts are stored in base units")
	})

	t.Run("RejectsInvalid", func(t *testing.T) {
		_, err := ledger.MintFungible(ctx, 0, "wallet-a")
		assert.ErrorIs(t, err, issuer.ErrInvalidMint)
		_, err = ledger.MintCollectible(ctx, issuer.Metadata{Name: "x"}, "")
		assert.ErrorIs(t, err, issuer.ErrInvalidMint)
	})

	t.Run("BalanceOfUnknownWallet", func(t *testing.T) {
		bal, err := ledger.Balance(ctx, "nobody")
		require.NoError(t, err)
		assert.Zero(t, bal)
	})

	t.Run("Totals", func(t *testing.T) {
		_, err := ledger.MintFungible(ctx, 25, "wallet-b")
		require.NoError(t, err)
		totals, err := ledger.Totals(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(50), totals["wallet-a"])
		assert.Equal(t, int64(25), totals["wallet-b"])
	})

	t.Run("MintCollectibleUploadsMetadata", func(t *testing.T) {
		md := issuer.Metadata{
			Name:   "Service Rifle",
			Symbol: "FIZZGEAR",
			Attributes: []issuer.Attribute{
				{Trait: "rarity", Value: "rare"},
			},
		}
		h, err := ledger.MintCollectible(ctx, md, "wallet-c")
		require.NoError(t, err)
		assert.Equal(t, "https://assets.example/"+issuer.CollectibleKey("Service Rifle", h.ID), h.URI)

		got, err := ledger.Collectibles(ctx, "wallet-c")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, h.ID, got[0].ID)
		assert.Equal(t, md, got[0].Metadata)
	})

	t.Run("UploadFailureRecordsNothing", func(t *testing.T) {
		up.mu.Lock()
		up.err = errors.New("bucket unavailable")
		up.mu.Unlock()
		defer func() {
			up.mu.Lock()
			up.err = nil
			up.mu.Unlock()
		}()

		_, err := ledger.MintCollectible(ctx, issuer.Metadata{Name: "10mm Pistol"}, "wallet-d")
		require.Error(t, err)
		got, err := ledger.Collectibles(ctx, "wallet-d")
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
