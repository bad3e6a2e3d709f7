package ledger

import (
	"context"
	"fmt"

	"github.com/jstz-labs/fa2-ledger/internal/app/domain/token"
	"github.com/jstz-labs/fa2-ledger/internal/kv"
	"github.com/jstz-labs/fa2-ledger/pkg/logger"
)

// Engine composes the ledger components and enforces the financial
// invariants: balances never go negative, supply mirrors mint minus burn, and
// every privileged action is checked against the caller identity before any
// state is mutated. Each component exclusively owns its persisted collection;
// the engine never writes a collection directly.
//
// The engine assumes the hosting platform serializes invocations against one
// ledger instance. Ported to a concurrent host it needs an external
// serialization mechanism; there is no in-process locking here.
type Engine struct {
	balances  *BalanceBook
	supply    *SupplyBook
	operators *OperatorRegistry
	metadata  *MetadataRegistry
	minter    *MinterAuthority
	log       *logger.Logger
}

// NewEngine wires an engine over a single store handle.
func NewEngine(store kv.Store, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.NewDefault("fa2-ledger")
	}
	return &Engine{
		balances:  NewBalanceBook(store),
		supply:    NewSupplyBook(store),
		operators: NewOperatorRegistry(store),
		metadata:  NewMetadataRegistry(store),
		minter:    NewMinterAuthority(store),
		log:       log,
	}
}

// authorizeTransfer applies the three-way rule: the caller is the owner, or
// holds an all-tokens grant from the owner, or holds a grant scoped to the
// token being moved.
func (e *Engine) authorizeTransfer(ctx context.Context, caller, from string, tokenID int64) error {
	if caller == from {
		return nil
	}
	ok, err := e.operators.IsAuthorized(ctx, from, caller, tokenID)
	if err != nil {
		return err
	}
	if !ok {
		return NewAuthorizationError(caller,
			fmt.Sprintf("not authorized to transfer token_id %d from %s", tokenID, from))
	}
	return nil
}

// Transfer moves amount units of tokenID from one address to another on
// behalf of caller. Supply is untouched.
func (e *Engine) Transfer(ctx context.Context, caller, from, to string, tokenID, amount int64) error {
	group := token.TransferGroup{
		From:  from,
		Lines: []token.TransferLine{{To: to, TokenID: tokenID, Amount: amount}},
	}
	return e.BatchTransfer(ctx, caller, []token.TransferGroup{group})
}

// BatchTransfer applies transfer groups in order. Every line in a group is
// validated and authorized before any line in that group is applied, so a
// group commits in full or not at all (a single balance-collection write per
// group). Groups are independent: processing stops at the first rejected
// group, but groups already committed stay committed.
func (e *Engine) BatchTransfer(ctx context.Context, caller string, groups []token.TransferGroup) error {
	for _, group := range groups {
		if err := e.applyGroup(ctx, caller, group); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) applyGroup(ctx context.Context, caller string, group token.TransferGroup) error {
	// Validate and authorize every line before touching any balance.
	for _, line := range group.Lines {
		if line.Amount <= 0 {
			return NewValidationError("amount", "must be a positive integer")
		}
		if err := e.authorizeTransfer(ctx, caller, group.From, line.TokenID); err != nil {
			return err
		}
	}

	balances, err := e.balances.Load(ctx)
	if err != nil {
		return err
	}
	for _, line := range group.Lines {
		available := balances.Balance(group.From, line.TokenID)
		if available < line.Amount {
			return &InsufficientBalanceError{
				Owner:     group.From,
				TokenID:   line.TokenID,
				Requested: line.Amount,
				Available: available,
			}
		}
		balances.Set(group.From, line.TokenID, available-line.Amount)
		balances.Set(line.To, line.TokenID, balances.Balance(line.To, line.TokenID)+line.Amount)
	}
	if err := e.balances.Save(ctx, balances); err != nil {
		return err
	}

	e.log.WithFields(map[string]interface{}{
		"caller": caller,
		"from":   group.From,
		"lines":  len(group.Lines),
	}).Debug("transfer group committed")
	return nil
}

// Mint credits amount units of tokenID to an address and raises the tracked
// supply. Only the minter may mint; on a fresh ledger the caller claims the
// minter slot as part of the authorization check.
func (e *Engine) Mint(ctx context.Context, caller, to string, tokenID, amount int64) error {
	if to == "" {
		return RequiredError("to")
	}
	if amount <= 0 {
		return NewValidationError("amount", "must be a positive integer")
	}
	ok, err := e.minter.IsAuthorized(ctx, caller)
	if err != nil {
		return err
	}
	if !ok {
		return NewAuthorizationError(caller, "only the minter can mint tokens")
	}

	balances, err := e.balances.Load(ctx)
	if err != nil {
		return err
	}
	balances.Set(to, tokenID, balances.Balance(to, tokenID)+amount)
	if err := e.balances.Save(ctx, balances); err != nil {
		return err
	}
	if err := e.supply.Adjust(ctx, tokenID, amount); err != nil {
		return err
	}

	e.log.Infof("minted %d of token %d to %s", amount, tokenID, to)
	return nil
}

// Burn debits amount units of tokenID from an address and lowers the tracked
// supply, flooring it at zero. Burning is owner-only; operators cannot burn
// on an owner's behalf.
func (e *Engine) Burn(ctx context.Context, caller, from string, tokenID, amount int64) error {
	if from == "" {
		return RequiredError("from")
	}
	if amount <= 0 {
		return NewValidationError("amount", "must be a positive integer")
	}
	if caller != from {
		return NewAuthorizationError(caller, "can only burn your own tokens")
	}

	balances, err := e.balances.Load(ctx)
	if err != nil {
		return err
	}
	available := balances.Balance(from, tokenID)
	if available < amount {
		return &InsufficientBalanceError{
			Owner:     from,
			TokenID:   tokenID,
			Requested: amount,
			Available: available,
		}
	}
	balances.Set(from, tokenID, available-amount)
	if err := e.balances.Save(ctx, balances); err != nil {
		return err
	}
	if err := e.supply.Adjust(ctx, tokenID, -amount); err != nil {
		return err
	}

	e.log.Infof("burned %d of token %d from %s", amount, tokenID, from)
	return nil
}

// UpdateOperators applies grant additions then removals on behalf of caller.
// Every entry's declared owner must equal the caller; an address only manages
// its own delegations. Any unauthorized entry aborts the whole call before
// anything is written.
func (e *Engine) UpdateOperators(ctx context.Context, caller string, adds, removes []token.Grant) error {
	if len(adds) == 0 && len(removes) == 0 {
		return NewValidationError("operators", "no operators to update")
	}
	for _, g := range append(append([]token.Grant{}, adds...), removes...) {
		if g.Owner != caller {
			return NewAuthorizationError(caller, "can only update your own operators")
		}
	}
	return e.operators.Apply(ctx, adds, removes)
}

// IsOperator reports whether operator is delegated for owner and tokenID.
func (e *Engine) IsOperator(ctx context.Context, owner, operator string, tokenID int64) (bool, error) {
	return e.operators.IsAuthorized(ctx, owner, operator, tokenID)
}

// Balance returns the balance of one (owner, token) pair, zero when never
// credited.
func (e *Engine) Balance(ctx context.Context, owner string, tokenID int64) (int64, error) {
	return e.balances.Balance(ctx, owner, tokenID)
}

// BalanceOf resolves a batch of balance requests in input order. Individual
// entries never fail; unknown pairs resolve to zero.
func (e *Engine) BalanceOf(ctx context.Context, requests []token.BalanceRequest) ([]token.BalanceResult, error) {
	balances, err := e.balances.Load(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]token.BalanceResult, 0, len(requests))
	for _, req := range requests {
		results = append(results, token.BalanceResult{
			Request: req,
			Balance: balances.Balance(req.Owner, req.TokenID),
		})
	}
	return results, nil
}

// TotalSupply returns the tracked supply of tokenID.
func (e *Engine) TotalSupply(ctx context.Context, tokenID int64) (int64, error) {
	return e.supply.Supply(ctx, tokenID)
}

// TokenMetadata returns the metadata record for tokenID.
func (e *Engine) TokenMetadata(ctx context.Context, tokenID int64) (token.Metadata, error) {
	return e.metadata.Get(ctx, tokenID)
}

// SetTokenMetadata upserts a metadata record.
func (e *Engine) SetTokenMetadata(ctx context.Context, meta token.Metadata) error {
	return e.metadata.Set(ctx, meta)
}

// Minter returns the current minter address and whether one is set.
func (e *Engine) Minter(ctx context.Context) (string, bool, error) {
	return e.minter.Minter(ctx)
}

// SetMinter reassigns (or bootstraps) the minter slot on behalf of caller.
func (e *Engine) SetMinter(ctx context.Context, caller, requested string) (string, bool, error) {
	if requested == "" {
		return "", false, RequiredError("new_minter")
	}
	return e.minter.SetMinter(ctx, caller, requested)
}
