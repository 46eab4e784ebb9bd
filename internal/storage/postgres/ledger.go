package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Unwrenchable/fizz-caps/internal/issuer"
	"github.com/Unwrenchable/fizz-caps/internal/observability"
)

// Ledger is a durable issuer that records every mint in Postgres. It
// implements issuer.Issuer, issuer.BalanceReporter and issuer.Auditor.
type Ledger struct {
	db       *pgxpool.Pool
	decimals int
	uploader issuer.MetadataUploader
	logger   *zap.Logger
}

// NewLedger creates a Ledger storing amounts at the given base-unit
// precision. uploader may be nil, in which case collectibles carry no URI.
//
// Precondition: db must have the issuance migrations applied; 0 <= decimals <= 18.
func NewLedger(db *pgxpool.Pool, decimals int, uploader issuer.MetadataUploader, logger *zap.Logger) *Ledger {
	return &Ledger{db: db, decimals: decimals, uploader: uploader, logger: logger}
}

// MintFungible implements issuer.Issuer.
func (l *Ledger) MintFungible(ctx context.Context, amount int64, wallet string) (issuer.Receipt, error) {
	if err := issuer.ValidateMint(amount, wallet); err != nil {
		return issuer.Receipt{}, err
	}
	r := issuer.Receipt{ID: uuid.NewString(), Wallet: wallet, Amount: amount}
	err := l.db.QueryRow(ctx,
		`INSERT INTO issuances (id, wallet, amount, decimals)
		 VALUES ($1, $2, $3, $4)
		 RETURNING issued_at`,
		r.ID, wallet, issuer.BaseUnits(amount, l.decimals), l.decimals,
	).Scan(&r.IssuedAt)
	if err != nil {
		return issuer.Receipt{}, fmt.Errorf("recording issuance: %w", err)
	}
	r.IssuedAt = r.IssuedAt.UTC()
	l.logger.Info("fungible minted",
		observability.Wallet(wallet),
		zap.String("receipt", r.ID),
		zap.Int64("amount", amount),
	)
	return r, nil
}

// MintCollectible implements issuer.Issuer. The metadata document is
// uploaded before the row is written so a recorded collectible always has
// its URI.
func (l *Ledger) MintCollectible(ctx context.Context, md issuer.Metadata, wallet string) (issuer.AssetHandle, error) {
	if err := issuer.ValidateMint(1, wallet); err != nil {
		return issuer.AssetHandle{}, err
	}
	h := issuer.AssetHandle{ID: uuid.NewString()}
	if l.uploader != nil {
		uri, err := l.uploader.Upload(ctx, issuer.CollectibleKey(md.Name, h.ID), md)
		if err != nil {
			return issuer.AssetHandle{}, fmt.Errorf("uploading collectible metadata: %w", err)
		}
		h.URI = uri
	}

	doc, err := json.Marshal(md)
	if err != nil {
		return issuer.AssetHandle{}, fmt.Errorf("encoding collectible metadata: %w", err)
	}
	_, err = l.db.Exec(ctx,
		`INSERT INTO collectibles (id, wallet, name, symbol, metadata, uri)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		h.ID, wallet, md.Name, md.Symbol, doc, h.URI,
	)
	if err != nil {
		return issuer.AssetHandle{}, fmt.Errorf("recording collectible: %w", err)
	}
	return h, nil
}

// Balance implements issuer.BalanceReporter.
func (l *Ledger) Balance(ctx context.Context, wallet string) (int64, error) {
	var base int64
	err := l.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0)::bigint FROM issuances WHERE wallet = $1`,
		wallet,
	).Scan(&base)
	if err != nil {
		return 0, fmt.Errorf("summing issuances: %w", err)
	}
	return issuer.WholeCaps(base, l.decimals), nil
}

// Totals implements issuer.Auditor.
func (l *Ledger) Totals(ctx context.Context) (map[string]int64, error) {
	rows, err := l.db.Query(ctx,
		`SELECT wallet, SUM(amount)::bigint FROM issuances GROUP BY wallet`,
	)
	if err != nil {
		return nil, fmt.Errorf("totalling issuances: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var (
			wallet string
			base   int64
		)
		if err := rows.Scan(&wallet, &base); err != nil {
			return nil, fmt.Errorf("scanning issuance total: %w", err)
		}
		out[wallet] = issuer.WholeCaps(base, l.decimals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("totalling issuances: %w", err)
	}
	return out, nil
}

// Collectible is one recorded collectible mint.
type Collectible struct {
	issuer.AssetHandle
	Wallet   string
	Metadata issuer.Metadata
	MintedAt time.Time
}

// Collectibles lists the collectibles minted to wallet, oldest first.
func (l *Ledger) Collectibles(ctx context.Context, wallet string) ([]Collectible, error) {
	rows, err := l.db.Query(ctx,
		`SELECT id, uri, wallet, metadata, minted_at
		 FROM collectibles WHERE wallet = $1 ORDER BY minted_at, id`,
		wallet,
	)
	if err != nil {
		return nil, fmt.Errorf("listing collectibles: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Collectible, error) {
		var (
			c   Collectible
			doc []byte
		)
		if err := row.Scan(&c.ID, &c.URI, &c.Wallet, &doc, &c.MintedAt); err != nil {
			return Collectible{}, err
		}
		if err := json.Unmarshal(doc, &c.Metadata); err != nil {
			return Collectible{}, fmt.Errorf("decoding collectible %s: %w", c.ID, err)
		}
		return c, nil
	})
}
