package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jstz-labs/fa2-ledger/internal/kv"
)

// Fixed key names of the persisted collections. The layout matches the wire
// format expected by existing deployments: nested string-keyed JSON mappings
// with numeric leaves, one document per collection.
const (
	balancesKey  = "fa2_balances"
	operatorsKey = "fa2_operators"
	metadataKey  = "fa2_token_metadata"
	supplyKey    = "fa2_total_supply"
	minterKey    = "fa2_minter"
)

// Balances is the in-memory image of the balance collection: owner address →
// token id → amount. It is the unit of the read-modify-write cycle; mutations
// become durable only when the holding BalanceBook saves the image back.
type Balances map[string]map[int64]int64

// Balance returns the amount owner holds of tokenID. Unknown keys are zero.
func (b Balances) Balance(owner string, tokenID int64) int64 {
	return b[owner][tokenID]
}

// Set overwrites the balance unconditionally. Callers are responsible for
// invariant checks before calling; a balance reduced to zero stays as a
// zero-valued record rather than being deleted.
func (b Balances) Set(owner string, tokenID int64, amount int64) {
	tokens, ok := b[owner]
	if !ok {
		tokens = make(map[int64]int64)
		b[owner] = tokens
	}
	tokens[tokenID] = amount
}

// BalanceBook owns the persisted balance collection. No other component
// writes the collection directly.
type BalanceBook struct {
	store kv.Store
}

// NewBalanceBook creates a balance book over the given store handle.
func NewBalanceBook(store kv.Store) *BalanceBook {
	return &BalanceBook{store: store}
}

// Load reads the whole balance collection. A missing record is an empty
// collection, never an error.
func (b *BalanceBook) Load(ctx context.Context) (Balances, error) {
	raw, ok, err := b.store.Get(ctx, balancesKey)
	if err != nil {
		return nil, fmt.Errorf("load balances: %w", err)
	}
	if !ok {
		return make(Balances), nil
	}
	var balances Balances
	if err := json.Unmarshal(raw, &balances); err != nil {
		return nil, fmt.Errorf("decode balances: %w", err)
	}
	return balances, nil
}

// Save writes the whole balance collection back in one store write, making
// every mutation applied to the image durable at once.
func (b *BalanceBook) Save(ctx context.Context, balances Balances) error {
	raw, err := json.Marshal(balances)
	if err != nil {
		return fmt.Errorf("encode balances: %w", err)
	}
	if err := b.store.Set(ctx, balancesKey, raw); err != nil {
		return fmt.Errorf("save balances: %w", err)
	}
	return nil
}

// Balance reads a single balance without keeping the collection image.
func (b *BalanceBook) Balance(ctx context.Context, owner string, tokenID int64) (int64, error) {
	balances, err := b.Load(ctx)
	if err != nil {
		return 0, err
	}
	return balances.Balance(owner, tokenID), nil
}
