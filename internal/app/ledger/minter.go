package ledger

import (
	"context"
	"fmt"

	"github.com/jstz-labs/fa2-ledger/internal/kv"
)

// MinterAuthority owns the single address allowed to mint. The slot starts
// unset and is claimed by the first caller to exercise a minter-gated action.
type MinterAuthority struct {
	store kv.Store
}

// NewMinterAuthority creates a minter authority over the given store handle.
func NewMinterAuthority(store kv.Store) *MinterAuthority {
	return &MinterAuthority{store: store}
}

// Minter returns the current minter address and whether one is set.
func (m *MinterAuthority) Minter(ctx context.Context) (string, bool, error) {
	raw, ok, err := m.store.Get(ctx, minterKey)
	if err != nil {
		return "", false, fmt.Errorf("load minter: %w", err)
	}
	if !ok || len(raw) == 0 {
		return "", false, nil
	}
	return string(raw), true, nil
}

func (m *MinterAuthority) persist(ctx context.Context, address string) error {
	if err := m.store.Set(ctx, minterKey, []byte(address)); err != nil {
		return fmt.Errorf("save minter: %w", err)
	}
	return nil
}

// IsAuthorized reports whether caller may mint. When no minter is set the
// caller claims the slot as a side effect and the call reports true; this
// bootstrap must stay consistent with SetMinter's.
func (m *MinterAuthority) IsAuthorized(ctx context.Context, caller string) (bool, error) {
	minter, ok, err := m.Minter(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		if err := m.persist(ctx, caller); err != nil {
			return false, err
		}
		return true, nil
	}
	return minter == caller, nil
}

// SetMinter reassigns the minter slot. On an unset slot the caller itself
// becomes minter regardless of requested, mirroring the bootstrap in
// IsAuthorized; the requested address only takes effect once a minter exists
// and the caller is that minter. Returns the address that now holds the slot
// and whether this call bootstrapped it.
func (m *MinterAuthority) SetMinter(ctx context.Context, caller, requested string) (string, bool, error) {
	minter, ok, err := m.Minter(ctx)
	if err != nil {
		return "", false, err
	}
	if !ok {
		if err := m.persist(ctx, caller); err != nil {
			return "", false, err
		}
		return caller, true, nil
	}
	if caller != minter {
		return "", false, NewAuthorizationError(caller, "only the current minter can change the minter address")
	}
	if err := m.persist(ctx, requested); err != nil {
		return "", false, err
	}
	return requested, false, nil
}
