package ledger

import (
	"context"
	"testing"

	"github.com/jstz-labs/fa2-ledger/internal/app/domain/token"
	"github.com/jstz-labs/fa2-ledger/internal/kv/memory"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(memory.New(), nil)
}

// mintAs seeds a balance through the engine, making caller the minter if the
// ledger is fresh.
func mintAs(t *testing.T, e *Engine, caller, to string, tokenID, amount int64) {
	t.Helper()
	if err := e.Mint(context.Background(), caller, to, tokenID, amount); err != nil {
		t.Fatalf("mint %d of token %d to %s: %v", amount, tokenID, to, err)
	}
}

func balance(t *testing.T, e *Engine, owner string, tokenID int64) int64 {
	t.Helper()
	got, err := e.Balance(context.Background(), owner, tokenID)
	if err != nil {
		t.Fatalf("balance %s token %d: %v", owner, tokenID, err)
	}
	return got
}

func TestEngine_MintTransferScenario(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	mintAs(t, e, "alice", "alice", 1, 100)
	if err := e.Transfer(ctx, "alice", "alice", "bob", 1, 40); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	if got := balance(t, e, "alice", 1); got != 60 {
		t.Fatalf("alice balance = %d, want 60", got)
	}
	if got := balance(t, e, "bob", 1); got != 40 {
		t.Fatalf("bob balance = %d, want 40", got)
	}
	supply, err := e.TotalSupply(ctx, 1)
	if err != nil {
		t.Fatalf("total supply: %v", err)
	}
	if supply != 100 {
		t.Fatalf("supply = %d, want 100 (transfer must not change supply)", supply)
	}
}

func TestEngine_UnknownBalanceIsZero(t *testing.T) {
	e := newTestEngine(t)
	if got := balance(t, e, "nobody", 42); got != 0 {
		t.Fatalf("unknown balance = %d, want 0", got)
	}
}

func TestEngine_TransferRejectsNonPositiveAmount(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	mintAs(t, e, "alice", "alice", 1, 10)

	for _, amount := range []int64{0, -5} {
		err := e.Transfer(ctx, "alice", "alice", "bob", 1, amount)
		if !IsValidationError(err) {
			t.Fatalf("amount %d: expected validation error, got %v", amount, err)
		}
	}
	if got := balance(t, e, "alice", 1); got != 10 {
		t.Fatalf("alice balance changed: %d", got)
	}
	if got := balance(t, e, "bob", 1); got != 0 {
		t.Fatalf("bob balance changed: %d", got)
	}
}

func TestEngine_TransferRejectsOverdraft(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	mintAs(t, e, "alice", "alice", 1, 10)

	err := e.Transfer(ctx, "alice", "alice", "bob", 1, 11)
	if !IsInsufficientBalance(err) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	if got := balance(t, e, "alice", 1); got != 10 {
		t.Fatalf("alice balance changed: %d", got)
	}
	if got := balance(t, e, "bob", 1); got != 0 {
		t.Fatalf("bob balance changed: %d", got)
	}
}

func TestEngine_TransferRequiresAuthorization(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	mintAs(t, e, "alice", "alice", 1, 100)

	err := e.Transfer(ctx, "mallory", "alice", "mallory", 1, 5)
	if !IsForbidden(err) {
		t.Fatalf("expected authorization error, got %v", err)
	}
	if got := balance(t, e, "alice", 1); got != 100 {
		t.Fatalf("alice balance changed: %d", got)
	}
}

func TestEngine_AllTokensOperatorCanTransfer(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	mintAs(t, e, "alice", "alice", 1, 100)

	adds := []token.Grant{{Owner: "alice", Operator: "carol", Scope: token.AllTokensScope()}}
	if err := e.UpdateOperators(ctx, "alice", adds, nil); err != nil {
		t.Fatalf("update operators: %v", err)
	}

	if err := e.Transfer(ctx, "carol", "alice", "dave", 1, 10); err != nil {
		t.Fatalf("operator transfer: %v", err)
	}
	if got := balance(t, e, "alice", 1); got != 90 {
		t.Fatalf("alice balance = %d, want 90", got)
	}
	if got := balance(t, e, "dave", 1); got != 10 {
		t.Fatalf("dave balance = %d, want 10", got)
	}
}

func TestEngine_ScopedOperatorLimitedToToken(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	mintAs(t, e, "alice", "alice", 1, 50)
	mintAs(t, e, "alice", "alice", 2, 50)

	adds := []token.Grant{{Owner: "alice", Operator: "carol", Scope: token.TokenScope(1)}}
	if err := e.UpdateOperators(ctx, "alice", adds, nil); err != nil {
		t.Fatalf("update operators: %v", err)
	}

	if err := e.Transfer(ctx, "carol", "alice", "dave", 1, 5); err != nil {
		t.Fatalf("scoped transfer on granted token: %v", err)
	}
	if err := e.Transfer(ctx, "carol", "alice", "dave", 2, 5); !IsForbidden(err) {
		t.Fatalf("expected authorization error on other token, got %v", err)
	}
}

func TestEngine_RevokedOperatorRejected(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	mintAs(t, e, "alice", "alice", 1, 50)

	grant := token.Grant{Owner: "alice", Operator: "carol", Scope: token.AllTokensScope()}
	if err := e.UpdateOperators(ctx, "alice", []token.Grant{grant}, nil); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := e.UpdateOperators(ctx, "alice", nil, []token.Grant{grant}); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := e.Transfer(ctx, "carol", "alice", "dave", 1, 5); !IsForbidden(err) {
		t.Fatalf("expected authorization error after revoke, got %v", err)
	}
}

func TestEngine_UpdateOperatorsOwnerOnly(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	adds := []token.Grant{{Owner: "alice", Operator: "mallory", Scope: token.AllTokensScope()}}
	err := e.UpdateOperators(ctx, "mallory", adds, nil)
	if !IsForbidden(err) {
		t.Fatalf("expected authorization error, got %v", err)
	}
	ok, err := e.IsOperator(ctx, "alice", "mallory", 1)
	if err != nil {
		t.Fatalf("is operator: %v", err)
	}
	if ok {
		t.Fatal("grant must not be recorded for a rejected update")
	}
}

func TestEngine_UpdateOperatorsRejectsEmptyUpdate(t *testing.T) {
	e := newTestEngine(t)
	if err := e.UpdateOperators(context.Background(), "alice", nil, nil); !IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestEngine_BatchTransferGroupIsAtomic(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	mintAs(t, e, "alice", "alice", 1, 50)

	// Second line overdraws, so the first line must not stick either.
	group := token.TransferGroup{
		From: "alice",
		Lines: []token.TransferLine{
			{To: "bob", TokenID: 1, Amount: 30},
			{To: "carol", TokenID: 1, Amount: 30},
		},
	}
	err := e.BatchTransfer(ctx, "alice", []token.TransferGroup{group})
	if !IsInsufficientBalance(err) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	if got := balance(t, e, "alice", 1); got != 50 {
		t.Fatalf("alice balance = %d, want 50 (group must roll back in full)", got)
	}
	if got := balance(t, e, "bob", 1); got != 0 {
		t.Fatalf("bob balance = %d, want 0", got)
	}
}

func TestEngine_BatchTransferKeepsCommittedGroups(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	mintAs(t, e, "alice", "alice", 1, 50)
	mintAs(t, e, "alice", "bob", 1, 5)

	groups := []token.TransferGroup{
		{From: "alice", Lines: []token.TransferLine{{To: "carol", TokenID: 1, Amount: 20}}},
		{From: "bob", Lines: []token.TransferLine{{To: "carol", TokenID: 1, Amount: 10}}},
	}
	// Caller is alice: authorized for group one, not for bob's group.
	err := e.BatchTransfer(ctx, "alice", groups)
	if !IsForbidden(err) {
		t.Fatalf("expected authorization error, got %v", err)
	}
	if got := balance(t, e, "alice", 1); got != 30 {
		t.Fatalf("alice balance = %d, want 30 (committed group must stay)", got)
	}
	if got := balance(t, e, "carol", 1); got != 20 {
		t.Fatalf("carol balance = %d, want 20", got)
	}
	if got := balance(t, e, "bob", 1); got != 5 {
		t.Fatalf("bob balance = %d, want 5 (rejected group must not apply)", got)
	}
}

func TestEngine_BatchTransferAuthorizesBeforeApplying(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	mintAs(t, e, "alice", "alice", 1, 50)
	mintAs(t, e, "alice", "alice", 2, 50)

	// Carol holds a grant for token 1 only; the group also moves token 2, so
	// nothing in the group may apply.
	adds := []token.Grant{{Owner: "alice", Operator: "carol", Scope: token.TokenScope(1)}}
	if err := e.UpdateOperators(ctx, "alice", adds, nil); err != nil {
		t.Fatalf("update operators: %v", err)
	}
	group := token.TransferGroup{
		From: "alice",
		Lines: []token.TransferLine{
			{To: "dave", TokenID: 1, Amount: 10},
			{To: "dave", TokenID: 2, Amount: 10},
		},
	}
	if err := e.BatchTransfer(ctx, "carol", []token.TransferGroup{group}); !IsForbidden(err) {
		t.Fatalf("expected authorization error, got %v", err)
	}
	if got := balance(t, e, "alice", 1); got != 50 {
		t.Fatalf("alice token 1 balance = %d, want 50", got)
	}
	if got := balance(t, e, "dave", 1); got != 0 {
		t.Fatalf("dave token 1 balance = %d, want 0", got)
	}
}

func TestEngine_MintBootstrapsMinter(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	mintAs(t, e, "alice", "alice", 1, 100)

	minter, ok, err := e.Minter(ctx)
	if err != nil {
		t.Fatalf("minter: %v", err)
	}
	if !ok || minter != "alice" {
		t.Fatalf("minter = %q (set=%t), want alice", minter, ok)
	}

	// Bob is not the minter now.
	if err := e.Mint(ctx, "bob", "bob", 1, 100); !IsForbidden(err) {
		t.Fatalf("expected authorization error, got %v", err)
	}
	if got := balance(t, e, "bob", 1); got != 0 {
		t.Fatalf("bob balance = %d, want 0", got)
	}
	supply, err := e.TotalSupply(ctx, 1)
	if err != nil {
		t.Fatalf("total supply: %v", err)
	}
	if supply != 100 {
		t.Fatalf("supply = %d, want 100", supply)
	}
}

func TestEngine_MintRejectsNonPositiveAmount(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	if err := e.Mint(ctx, "alice", "alice", 1, 0); !IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	// Amount validation happens before the minter bootstrap, so the failed
	// call must not have claimed the slot.
	if _, ok, err := e.Minter(ctx); err != nil || ok {
		t.Fatalf("minter set after rejected mint (set=%t, err=%v)", ok, err)
	}
}

func TestEngine_BurnReducesBalanceAndSupply(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	mintAs(t, e, "alice", "alice", 1, 100)

	if err := e.Burn(ctx, "alice", "alice", 1, 30); err != nil {
		t.Fatalf("burn: %v", err)
	}
	if got := balance(t, e, "alice", 1); got != 70 {
		t.Fatalf("alice balance = %d, want 70", got)
	}
	supply, err := e.TotalSupply(ctx, 1)
	if err != nil {
		t.Fatalf("total supply: %v", err)
	}
	if supply != 70 {
		t.Fatalf("supply = %d, want 70", supply)
	}
}

func TestEngine_BurnRejectsOverdraft(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	mintAs(t, e, "alice", "alice", 1, 60)

	if err := e.Burn(ctx, "alice", "alice", 1, 1000); !IsInsufficientBalance(err) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	if got := balance(t, e, "alice", 1); got != 60 {
		t.Fatalf("alice balance = %d, want 60", got)
	}
}

func TestEngine_BurnOwnerOnly(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	mintAs(t, e, "alice", "alice", 1, 100)

	// Even an all-tokens operator cannot burn on the owner's behalf.
	adds := []token.Grant{{Owner: "alice", Operator: "carol", Scope: token.AllTokensScope()}}
	if err := e.UpdateOperators(ctx, "alice", adds, nil); err != nil {
		t.Fatalf("update operators: %v", err)
	}
	if err := e.Burn(ctx, "carol", "alice", 1, 10); !IsForbidden(err) {
		t.Fatalf("expected authorization error, got %v", err)
	}
	if got := balance(t, e, "alice", 1); got != 100 {
		t.Fatalf("alice balance = %d, want 100", got)
	}
}

func TestEngine_BalanceOfPreservesOrder(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	mintAs(t, e, "alice", "alice", 1, 100)
	mintAs(t, e, "alice", "bob", 2, 7)

	requests := []token.BalanceRequest{
		{Owner: "bob", TokenID: 2},
		{Owner: "nobody", TokenID: 99},
		{Owner: "alice", TokenID: 1},
	}
	results, err := e.BalanceOf(ctx, requests)
	if err != nil {
		t.Fatalf("balance_of: %v", err)
	}
	want := []int64{7, 0, 100}
	if len(results) != len(want) {
		t.Fatalf("got %d results, want %d", len(results), len(want))
	}
	for i, res := range results {
		if res.Request != requests[i] {
			t.Fatalf("result %d request = %+v, want %+v", i, res.Request, requests[i])
		}
		if res.Balance != want[i] {
			t.Fatalf("result %d balance = %d, want %d", i, res.Balance, want[i])
		}
	}
}

func TestEngine_SetMinterBootstrapAssignsCaller(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	// On a fresh ledger the caller claims the slot; the requested address is
	// ignored by the bootstrap path.
	assigned, bootstrapped, err := e.SetMinter(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("set minter: %v", err)
	}
	if !bootstrapped || assigned != "alice" {
		t.Fatalf("assigned = %q (bootstrapped=%t), want alice via bootstrap", assigned, bootstrapped)
	}
}

func TestEngine_SetMinterReassignment(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	mintAs(t, e, "alice", "alice", 1, 1) // alice bootstraps the slot

	if _, _, err := e.SetMinter(ctx, "bob", "bob"); !IsForbidden(err) {
		t.Fatalf("expected authorization error, got %v", err)
	}

	assigned, bootstrapped, err := e.SetMinter(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("reassign minter: %v", err)
	}
	if bootstrapped || assigned != "bob" {
		t.Fatalf("assigned = %q (bootstrapped=%t), want bob", assigned, bootstrapped)
	}
	if err := e.Mint(ctx, "alice", "alice", 1, 1); !IsForbidden(err) {
		t.Fatalf("old minter must lose mint rights, got %v", err)
	}
	if err := e.Mint(ctx, "bob", "bob", 1, 1); err != nil {
		t.Fatalf("new minter mint: %v", err)
	}
}

func TestEngine_SetMinterRequiresNewMinter(t *testing.T) {
	e := newTestEngine(t)
	if _, _, err := e.SetMinter(context.Background(), "alice", ""); !IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestEngine_MetadataRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.TokenMetadata(ctx, 1); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}

	meta := token.Metadata{
		TokenID:  1,
		Symbol:   "KT",
		Name:     "Kit Token",
		Decimals: 6,
		Extras:   map[string]string{"site": "https://example.net"},
	}
	if err := e.SetTokenMetadata(ctx, meta); err != nil {
		t.Fatalf("set metadata: %v", err)
	}
	got, err := e.TokenMetadata(ctx, 1)
	if err != nil {
		t.Fatalf("get metadata: %v", err)
	}
	if got.Symbol != "KT" || got.Name != "Kit Token" || got.Decimals != 6 {
		t.Fatalf("metadata mismatch: %+v", got)
	}
	if got.Extras["site"] != "https://example.net" {
		t.Fatalf("extras mismatch: %+v", got.Extras)
	}

	// Last write wins, no ownership check.
	meta.Name = "Kit Token v2"
	if err := e.SetTokenMetadata(ctx, meta); err != nil {
		t.Fatalf("overwrite metadata: %v", err)
	}
	got, err = e.TokenMetadata(ctx, 1)
	if err != nil {
		t.Fatalf("get metadata: %v", err)
	}
	if got.Name != "Kit Token v2" {
		t.Fatalf("metadata not overwritten: %+v", got)
	}
}

func TestEngine_MetadataRequiresSymbolAndName(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	if err := e.SetTokenMetadata(ctx, token.Metadata{TokenID: 1, Name: "n"}); !IsValidationError(err) {
		t.Fatalf("missing symbol: expected validation error, got %v", err)
	}
	if err := e.SetTokenMetadata(ctx, token.Metadata{TokenID: 1, Symbol: "s"}); !IsValidationError(err) {
		t.Fatalf("missing name: expected validation error, got %v", err)
	}
}
