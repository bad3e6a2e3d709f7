// Package token holds the domain model shared by the ledger components.
package token

// Metadata describes a token id. At most one record exists per token id and
// the last write wins.
type Metadata struct {
	TokenID  int64             `json:"token_id"`
	Symbol   string            `json:"symbol"`
	Name     string            `json:"name"`
	Decimals int               `json:"decimals"`
	Extras   map[string]string `json:"extras,omitempty"`
}

// Scope bounds an operator grant to every token an owner holds or to a single
// token id.
type Scope struct {
	AllTokens bool
	TokenID   int64 // meaningful only when AllTokens is false
}

// AllTokensScope covers every token id.
func AllTokensScope() Scope {
	return Scope{AllTokens: true}
}

// TokenScope covers the single token id.
func TokenScope(id int64) Scope {
	return Scope{TokenID: id}
}

// Grant delegates transfer rights from Owner to Operator within Scope.
type Grant struct {
	Owner    string
	Operator string
	Scope    Scope
}

// TransferLine is a single movement of amount units of TokenID to To.
type TransferLine struct {
	To      string
	TokenID int64
	Amount  int64
}

// TransferGroup is one from address together with its transfer lines. A group
// either commits in full or is rejected in full.
type TransferGroup struct {
	From  string
	Lines []TransferLine
}

// BalanceRequest names one (owner, token) pair to read.
type BalanceRequest struct {
	Owner   string
	TokenID int64
}

// BalanceResult pairs a request with the balance it resolved to.
type BalanceResult struct {
	Request BalanceRequest
	Balance int64
}
