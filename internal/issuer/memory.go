package issuer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// Memory is an in-process issuer that records every mint. It implements
// Issuer, BalanceReporter and Auditor, and can be told to fail or stall
// to exercise the orchestrator's failure paths.
type Memory struct {
	mu          sync.Mutex
	balances    map[string]int64
	receipts    []Receipt
	collectible map[string][]AssetHandle
	uploader    MetadataUploader

	// FailFungible, when non-nil, is returned by MintFungible before minting.
	FailFungible error
	// FailCollectible, when non-nil, is returned by MintCollectible before minting.
	FailCollectible error
	// Delay stalls each mint; a context deadline shorter than Delay aborts it.
	Delay time.Duration
}

// NewMemory returns an empty Memory issuer. uploader may be nil.
func NewMemory(uploader MetadataUploader) *Memory {
	return &Memory{
		balances:    make(map[string]int64),
		collectible: make(map[string][]AssetHandle),
		uploader:    uploader,
	}
}

func (m *Memory) wait(ctx context.Context) error {
	if m.Delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(m.Delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// MintFungible implements Issuer.
func (m *Memory) MintFungible(ctx context.Context, amount int64, wallet string) (Receipt, error) {
	if err := ValidateMint(amount, wallet); err != nil {
		return Receipt{}, err
	}
	if err := m.wait(ctx); err != nil {
		return Receipt{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailFungible != nil {
		return Receipt{}, m.FailFungible
	}
	r := Receipt{ID: uuid.NewString(), Wallet: wallet, Amount: amount, IssuedAt: time.Now().UTC()}
	m.balances[wallet] += amount
	m.receipts = append(m.receipts, r)
	return r, nil
}

// MintCollectible implements Issuer.
func (m *Memory) MintCollectible(ctx context.Context, md Metadata, wallet string) (AssetHandle, error) {
	if err := ValidateMint(1, wallet); err != nil {
		return AssetHandle{}, err
	}
	if err := m.wait(ctx); err != nil {
		return AssetHandle{}, err
	}
	m.mu.Lock()
	fail := m.FailCollectible
	m.mu.Unlock()
	if fail != nil {
		return AssetHandle{}, fail
	}

	h := AssetHandle{ID: uuid.NewString()}
	if m.uploader != nil {
		uri, err := m.uploader.Upload(ctx, CollectibleKey(md.Name, h.ID), md)
		if err != nil {
			return AssetHandle{}, fmt.Errorf("uploading collectible metadata: %w", err)
		}
		h.URI = uri
	}

	m.mu.Lock()
	m.collectible[wallet] = append(m.collectible[wallet], h)
	m.mu.Unlock()
	return h, nil
}

// Balance implements BalanceReporter.
func (m *Memory) Balance(_ context.Context, wallet string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[wallet], nil
}

// Totals implements Auditor.
func (m *Memory) Totals(_ context.Context) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64, len(m.balances))
	for w, b := range m.balances {
		out[w] = b
	}
	return out, nil
}

// Receipts returns a copy of every fungible receipt issued so far.
func (m *Memory) Receipts() []Receipt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Receipt(nil), m.receipts...)
}

// Collectibles returns the collectibles minted to wallet.
func (m *Memory) Collectibles(wallet string) []AssetHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]AssetHandle(nil), m.collectible[wallet]...)
}

// CollectibleKey returns the object key for a collectible's metadata document,
// e.g. "gear/power-armor-t-51b/<id>.json".
func CollectibleKey(name, id string) string {
	return fmt.Sprintf("gear/%s/%s.json", slug.Make(name), id)
}
