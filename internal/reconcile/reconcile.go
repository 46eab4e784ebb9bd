// Package reconcile audits the issuance ledger against player records. A
// claim whose state write failed after its mint leaves the ledger ahead of
// the record; the audit surfaces that drift for out-of-band repair.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Unwrenchable/fizz-caps/internal/game/player"
	"github.com/Unwrenchable/fizz-caps/internal/issuer"
	"github.com/Unwrenchable/fizz-caps/internal/observability"
	"github.com/Unwrenchable/fizz-caps/internal/store"
)

// Discrepancy is one wallet whose ledger total and record balance disagree.
type Discrepancy struct {
	Wallet string `json:"wallet"`
	Ledger int64  `json:"ledger_caps"`
	Record int64  `json:"record_caps"`
	// Delta is Ledger - Record; positive means minted but never credited.
	Delta int64 `json:"delta"`
}

// Report is the result of one audit run.
type Report struct {
	At            time.Time     `json:"at"`
	Checked       int           `json:"checked"`
	Discrepancies []Discrepancy `json:"discrepancies"`
}

// Auditor compares ledger totals with player records.
type Auditor struct {
	ledger  issuer.Auditor
	players *player.Manager
	lister  store.Lister
	logger  *zap.Logger
	now     func() time.Time

	mu   sync.RWMutex
	last *Report
}

// NewAuditor creates an Auditor. lister may be nil; when set, wallets with a
// record but no ledger entries are audited too.
//
// Precondition: ledger, players and logger must be non-nil.
func NewAuditor(ledger issuer.Auditor, players *player.Manager, lister store.Lister, logger *zap.Logger) *Auditor {
	return &Auditor{ledger: ledger, players: players, lister: lister, logger: logger, now: time.Now}
}

// Run performs one audit, stores it as the latest report and returns it.
//
// Postcondition: Discrepancies are sorted by wallet.
func (a *Auditor) Run(ctx context.Context) (Report, error) {
	totals, err := a.ledger.Totals(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("reading ledger totals: %w", err)
	}

	wallets := make(map[string]struct{}, len(totals))
	for w := range totals {
		wallets[w] = struct{}{}
	}
	if a.lister != nil {
		keys, err := a.lister.Keys(ctx, store.PlayerPrefix)
		if err != nil {
			return Report{}, fmt.Errorf("listing players: %w", err)
		}
		for _, k := range keys {
			if w, ok := store.WalletFromPlayerKey(k); ok {
				wallets[w] = struct{}{}
			}
		}
	}

	ordered := make([]string, 0, len(wallets))
	for w := range wallets {
		ordered = append(ordered, w)
	}
	sort.Strings(ordered)

	report := Report{At: a.now().UTC(), Discrepancies: []Discrepancy{}}
	for _, w := range ordered {
		var caps int64
		rec, err := a.players.Lookup(ctx, w)
		switch {
		case err == nil:
			caps = rec.Caps
		case errors.Is(err, store.ErrNotFound):
		default:
			return Report{}, fmt.Errorf("auditing %s: %w", w, err)
		}
		report.Checked++
		if ledger := totals[w]; ledger != caps {
			d := Discrepancy{Wallet: w, Ledger: ledger, Record: caps, Delta: ledger - caps}
			report.Discrepancies = append(report.Discrepancies, d)
			a.logger.Warn("ledger discrepancy",
				observability.Wallet(w),
				zap.Int64("ledger_caps", d.Ledger),
				zap.Int64("record_caps", d.Record),
			)
		}
	}

	a.mu.Lock()
	a.last = &report
	a.mu.Unlock()

	a.logger.Info("reconciliation complete",
		zap.Int("checked", report.Checked),
		zap.Int("discrepancies", len(report.Discrepancies)),
	)
	return report, nil
}

// Last returns the most recent report, if any run has completed.
func (a *Auditor) Last() (Report, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.last == nil {
		return Report{}, false
	}
	return *a.last, true
}
