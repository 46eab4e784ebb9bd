package reconcile_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Unwrenchable/fizz-caps/internal/game/player"
	"github.com/Unwrenchable/fizz-caps/internal/issuer"
	"github.com/Unwrenchable/fizz-caps/internal/reconcile"
	"github.com/Unwrenchable/fizz-caps/internal/store"
)

type fixture struct {
	ledger  *issuer.Memory
	players *player.Manager
	store   *store.Memory
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	s := store.NewMemory()
	return fixture{
		ledger:  issuer.NewMemory(nil),
		players: player.NewManager(s, zaptest.NewLogger(t)),
		store:   s,
	}
}

// credit mints and credits a claim the way a settled claim does.
func (f fixture) credit(t *testing.T, wallet string, caps int64) {
	t.Helper()
	ctx := context.Background()
	_, err := f.ledger.MintFungible(ctx, caps, wallet)
	require.NoError(t, err)
	_, err = f.players.Update(ctx, wallet, func(r *player.Record) error {
		r.ApplyClaim(player.Claim{Spot: "Goodsprings Saloon", Caps: caps})
		return nil
	})
	require.NoError(t, err)
}

func TestRun_Consistent(t *testing.T) {
	f := newFixture(t)
	f.credit(t, "W1", 25)
	f.credit(t, "W1", 25)
	f.credit(t, "W2", 25)

	a := reconcile.NewAuditor(f.ledger, f.players, f.store, zaptest.NewLogger(t))
	report, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Checked)
	assert.Empty(t, report.Discrepancies)
}

func TestRun_FindsDrift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.credit(t, "W1", 25)

	// Minted but the state write never landed.
	_, err := f.ledger.MintFungible(ctx, 25, "W2")
	require.NoError(t, err)
	// Credited without a mint.
	rec := player.NewRecord()
	rec.Caps = 100
	require.NoError(t, f.players.Save(ctx, "W3", rec))

	a := reconcile.NewAuditor(f.ledger, f.players, f.store, zaptest.NewLogger(t))
	report, err := a.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Checked)
	assert.Equal(t, []reconcile.Discrepancy{
		{Wallet: "W2", Ledger: 25, Record: 0, Delta: 25},
		{Wallet: "W3", Ledger: 0, Record: 100, Delta: -100},
	}, report.Discrepancies)

	last, ok := a.Last()
	require.True(t, ok)
	assert.Equal(t, report, last)
}

func TestRun_WithoutListerOnlyAuditsLedgerWallets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := player.NewRecord()
	rec.Caps = 100
	require.NoError(t, f.players.Save(ctx, "W3", rec))

	a := reconcile.NewAuditor(f.ledger, f.players, nil, zaptest.NewLogger(t))
	report, err := a.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Checked)
}

type brokenLedger struct{}

func (brokenLedger) Totals(context.Context) (map[string]int64, error) {
	return nil, errors.New("ledger offline")
}

func TestRun_LedgerError(t *testing.T) {
	f := newFixture(t)
	a := reconcile.NewAuditor(brokenLedger{}, f.players, f.store, zaptest.NewLogger(t))
	_, err := a.Run(context.Background())
	assert.ErrorContains(t, err, "ledger offline")
	_, ok := a.Last()
	assert.False(t, ok)
}

func TestScheduleAudit_RunsImmediately(t *testing.T) {
	f := newFixture(t)
	f.credit(t, "W1", 25)
	logger := zaptest.NewLogger(t)
	a := reconcile.NewAuditor(f.ledger, f.players, f.store, logger)

	s, err := reconcile.NewScheduler(logger)
	require.NoError(t, err)
	_, err = reconcile.ScheduleAudit(context.Background(), s, a, time.Hour)
	require.NoError(t, err)
	s.Start()
	t.Cleanup(func() { _ = s.Shutdown() })

	require.Eventually(t, func() bool {
		_, ok := a.Last()
		return ok
	}, 5*time.Second, 20*time.Millisecond)
	last, _ := a.Last()
	assert.Equal(t, 1, last.Checked)
}

func TestScheduleSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Set(ctx, "cooldown:claim:w:x", []byte("t"), time.Millisecond))
	logger := zaptest.NewLogger(t)

	s, err := reconcile.NewScheduler(logger)
	require.NoError(t, err)
	_, err = reconcile.ScheduleSweep(ctx, s, f.store, 50*time.Millisecond, logger)
	require.NoError(t, err)
	s.Start()
	t.Cleanup(func() { _ = s.Shutdown() })

	require.Eventually(t, func() bool { return f.store.Len() == 0 }, 5*time.Second, 20*time.Millisecond)
}
