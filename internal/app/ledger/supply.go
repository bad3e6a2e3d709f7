package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jstz-labs/fa2-ledger/internal/kv"
)

// SupplyBook owns the persisted per-token total supply. Supply is maintained
// incrementally from mint and burn deltas, never recomputed from balances, and
// transfers never touch it.
type SupplyBook struct {
	store kv.Store
}

// NewSupplyBook creates a supply book over the given store handle.
func NewSupplyBook(store kv.Store) *SupplyBook {
	return &SupplyBook{store: store}
}

func (s *SupplyBook) load(ctx context.Context) (map[int64]int64, error) {
	raw, ok, err := s.store.Get(ctx, supplyKey)
	if err != nil {
		return nil, fmt.Errorf("load supply: %w", err)
	}
	if !ok {
		return make(map[int64]int64), nil
	}
	var supply map[int64]int64
	if err := json.Unmarshal(raw, &supply); err != nil {
		return nil, fmt.Errorf("decode supply: %w", err)
	}
	return supply, nil
}

func (s *SupplyBook) save(ctx context.Context, supply map[int64]int64) error {
	raw, err := json.Marshal(supply)
	if err != nil {
		return fmt.Errorf("encode supply: %w", err)
	}
	if err := s.store.Set(ctx, supplyKey, raw); err != nil {
		return fmt.Errorf("save supply: %w", err)
	}
	return nil
}

// Supply returns the tracked total supply of tokenID, zero when unknown.
func (s *SupplyBook) Supply(ctx context.Context, tokenID int64) (int64, error) {
	supply, err := s.load(ctx)
	if err != nil {
		return 0, err
	}
	return supply[tokenID], nil
}

// Adjust applies delta to the tracked supply of tokenID, flooring the result
// at zero. A burn beyond the tracked supply clamps silently; this asymmetry
// with strict balance debits is intentional.
func (s *SupplyBook) Adjust(ctx context.Context, tokenID int64, delta int64) error {
	supply, err := s.load(ctx)
	if err != nil {
		return err
	}
	next := supply[tokenID] + delta
	if next < 0 {
		next = 0
	}
	supply[tokenID] = next
	return s.save(ctx, supply)
}
