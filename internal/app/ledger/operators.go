package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/jstz-labs/fa2-ledger/internal/app/domain/token"
	"github.com/jstz-labs/fa2-ledger/internal/kv"
)

// grantRecord is the persisted form of one operator grant. A null token_id
// means the grant covers all tokens. Sets of these records replace the
// concatenated "owner:operator:*" keys of earlier deployments, which were
// ambiguous for addresses containing the separator.
type grantRecord struct {
	Owner    string `json:"owner"`
	Operator string `json:"operator"`
	TokenID  *int64 `json:"token_id"`
}

// OperatorRegistry owns the persisted set of operator grants. Grants have no
// expiry and are removed only by explicit revoke.
type OperatorRegistry struct {
	store kv.Store
}

// NewOperatorRegistry creates an operator registry over the given store handle.
func NewOperatorRegistry(store kv.Store) *OperatorRegistry {
	return &OperatorRegistry{store: store}
}

func (r *OperatorRegistry) load(ctx context.Context) (map[token.Grant]struct{}, error) {
	raw, ok, err := r.store.Get(ctx, operatorsKey)
	if err != nil {
		return nil, fmt.Errorf("load operators: %w", err)
	}
	grants := make(map[token.Grant]struct{})
	if !ok {
		return grants, nil
	}
	var records []grantRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode operators: %w", err)
	}
	for _, rec := range records {
		scope := token.AllTokensScope()
		if rec.TokenID != nil {
			scope = token.TokenScope(*rec.TokenID)
		}
		grants[token.Grant{Owner: rec.Owner, Operator: rec.Operator, Scope: scope}] = struct{}{}
	}
	return grants, nil
}

func (r *OperatorRegistry) save(ctx context.Context, grants map[token.Grant]struct{}) error {
	records := make([]grantRecord, 0, len(grants))
	for g := range grants {
		rec := grantRecord{Owner: g.Owner, Operator: g.Operator}
		if !g.Scope.AllTokens {
			id := g.Scope.TokenID
			rec.TokenID = &id
		}
		records = append(records, rec)
	}
	// Deterministic order keeps the persisted document stable across writes.
	sort.Slice(records, func(i, j int) bool {
		if records[i].Owner != records[j].Owner {
			return records[i].Owner < records[j].Owner
		}
		if records[i].Operator != records[j].Operator {
			return records[i].Operator < records[j].Operator
		}
		switch {
		case records[i].TokenID == nil:
			return records[j].TokenID != nil
		case records[j].TokenID == nil:
			return false
		default:
			return *records[i].TokenID < *records[j].TokenID
		}
	})
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode operators: %w", err)
	}
	if err := r.store.Set(ctx, operatorsKey, raw); err != nil {
		return fmt.Errorf("save operators: %w", err)
	}
	return nil
}

// Apply adds then removes grants in a single read-modify-write cycle. Both
// directions are idempotent: granting twice or revoking an absent grant is a
// no-op, not an error.
func (r *OperatorRegistry) Apply(ctx context.Context, adds, removes []token.Grant) error {
	grants, err := r.load(ctx)
	if err != nil {
		return err
	}
	for _, g := range adds {
		grants[g] = struct{}{}
	}
	for _, g := range removes {
		delete(grants, g)
	}
	return r.save(ctx, grants)
}

// Grant records a single delegation.
func (r *OperatorRegistry) Grant(ctx context.Context, g token.Grant) error {
	return r.Apply(ctx, []token.Grant{g}, nil)
}

// Revoke removes a single delegation.
func (r *OperatorRegistry) Revoke(ctx context.Context, g token.Grant) error {
	return r.Apply(ctx, nil, []token.Grant{g})
}

// IsAuthorized reports whether operator may transfer tokenID on owner's
// behalf: either an all-tokens grant or a grant scoped to tokenID exists for
// the pair. Self-transfer (owner == operator) is not decided here; the
// transaction engine short-circuits that case before consulting the registry.
func (r *OperatorRegistry) IsAuthorized(ctx context.Context, owner, operator string, tokenID int64) (bool, error) {
	grants, err := r.load(ctx)
	if err != nil {
		return false, err
	}
	if _, ok := grants[token.Grant{Owner: owner, Operator: operator, Scope: token.AllTokensScope()}]; ok {
		return true, nil
	}
	_, ok := grants[token.Grant{Owner: owner, Operator: operator, Scope: token.TokenScope(tokenID)}]
	return ok, nil
}
