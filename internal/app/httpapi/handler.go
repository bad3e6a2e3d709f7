// Package httpapi exposes the ledger entrypoints over HTTP. It is the entry
// dispatcher: it extracts the caller's asserted identity, routes each
// method+path pair to a transaction engine operation, and serializes the
// result. All financial rules live in the engine, none here.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/jstz-labs/fa2-ledger/internal/app/domain/token"
	"github.com/jstz-labs/fa2-ledger/internal/app/ledger"
	"github.com/jstz-labs/fa2-ledger/internal/metrics"
	"github.com/jstz-labs/fa2-ledger/internal/middleware"
	"github.com/jstz-labs/fa2-ledger/pkg/logger"
)

// handler bundles the HTTP endpoints over a transaction engine.
type handler struct {
	engine  *ledger.Engine
	log     *logger.Logger
	metrics *metrics.Metrics
}

// NewHandler returns a router exposing the ledger entrypoints. The metrics
// bundle is optional.
func NewHandler(engine *ledger.Engine, log *logger.Logger, m *metrics.Metrics) http.Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &handler{engine: engine, log: log, metrics: m}

	r := mux.NewRouter()
	r.Use(middleware.CallerIdentity)
	if m != nil {
		r.Use(middleware.MetricsMiddleware(m))
	}
	r.Use(middleware.LoggingMiddleware(log))

	r.HandleFunc("/transfer", h.transfer).Methods(http.MethodPost)
	r.HandleFunc("/balance", h.balance).Methods(http.MethodGet)
	r.HandleFunc("/balance_of", h.balanceOf).Methods(http.MethodPost)
	r.HandleFunc("/update_operators", h.updateOperators).Methods(http.MethodPost)
	r.HandleFunc("/mint", h.mint).Methods(http.MethodPost)
	r.HandleFunc("/burn", h.burn).Methods(http.MethodPost)
	r.HandleFunc("/token_metadata", h.tokenMetadata).Methods(http.MethodGet)
	r.HandleFunc("/set_token_metadata", h.setTokenMetadata).Methods(http.MethodPost)
	r.HandleFunc("/total_supply", h.totalSupply).Methods(http.MethodGet)
	r.HandleFunc("/set_minter", h.setMinter).Methods(http.MethodPost)
	r.HandleFunc("/minter", h.minter).Methods(http.MethodGet)
	r.HandleFunc("/", h.info).Methods(http.MethodGet)
	r.HandleFunc("/info", h.info).Methods(http.MethodGet)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeErrorMessage(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	// Path folding must wrap the router: mux only runs Use middleware after a
	// route has matched.
	return lowercasePath(r)
}

// lowercasePath matches the original dispatcher, which folded the request
// path before routing.
func lowercasePath(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.URL.Path = strings.ToLower(r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

// --- transfers --------------------------------------------------------------

type transferTx struct {
	To      string `json:"to_"`
	TokenID *int64 `json:"token_id"`
	Amount  *int64 `json:"amount"`
}

type transferGroup struct {
	From string       `json:"from_"`
	Txs  []transferTx `json:"txs"`
}

func (h *handler) transfer(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Transfers []transferGroup `json:"transfers"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		h.reject(w, "transfer", http.StatusBadRequest, "invalid transfer format")
		return
	}
	if payload.Transfers == nil {
		h.reject(w, "transfer", http.StatusBadRequest, "invalid transfer format")
		return
	}

	groups := make([]token.TransferGroup, 0, len(payload.Transfers))
	for _, g := range payload.Transfers {
		if g.From == "" {
			h.reject(w, "transfer", http.StatusBadRequest, "from_: is required")
			return
		}
		group := token.TransferGroup{From: g.From}
		for _, tx := range g.Txs {
			if tx.To == "" || tx.TokenID == nil || tx.Amount == nil {
				h.reject(w, "transfer", http.StatusBadRequest, "txs entries require to_, token_id and amount")
				return
			}
			group.Lines = append(group.Lines, token.TransferLine{
				To:      tx.To,
				TokenID: *tx.TokenID,
				Amount:  *tx.Amount,
			})
		}
		groups = append(groups, group)
	}

	caller := middleware.GetCaller(r.Context())
	if err := h.engine.BatchTransfer(r.Context(), caller, groups); err != nil {
		h.writeEngineError(w, "transfer", err)
		return
	}
	h.record("transfer", false)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Transfer completed",
	})
}

// --- balances ---------------------------------------------------------------

func (h *handler) balance(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	tokenIDStr := r.URL.Query().Get("token_id")
	if owner == "" || tokenIDStr == "" {
		h.reject(w, "balance", http.StatusBadRequest, "missing owner or token_id parameter")
		return
	}
	tokenID, err := strconv.ParseInt(tokenIDStr, 10, 64)
	if err != nil {
		h.reject(w, "balance", http.StatusBadRequest, "invalid token_id")
		return
	}

	amount, err := h.engine.Balance(r.Context(), owner, tokenID)
	if err != nil {
		h.writeEngineError(w, "balance", err)
		return
	}
	h.record("balance", false)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"balance":  amount,
		"owner":    owner,
		"token_id": tokenID,
	})
}

type balanceRequest struct {
	Owner   string `json:"owner"`
	TokenID int64  `json:"token_id"`
}

func (h *handler) balanceOf(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Requests []balanceRequest `json:"requests"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil || payload.Requests == nil {
		h.reject(w, "balance_of", http.StatusBadRequest, "invalid balance request format")
		return
	}

	requests := make([]token.BalanceRequest, 0, len(payload.Requests))
	for _, req := range payload.Requests {
		requests = append(requests, token.BalanceRequest{Owner: req.Owner, TokenID: req.TokenID})
	}
	results, err := h.engine.BalanceOf(r.Context(), requests)
	if err != nil {
		h.writeEngineError(w, "balance_of", err)
		return
	}

	type entry struct {
		Request balanceRequest `json:"request"`
		Balance int64          `json:"balance"`
	}
	entries := make([]entry, 0, len(results))
	for _, res := range results {
		entries = append(entries, entry{
			Request: balanceRequest{Owner: res.Request.Owner, TokenID: res.Request.TokenID},
			Balance: res.Balance,
		})
	}
	h.record("balance_of", false)
	writeJSON(w, http.StatusOK, map[string]interface{}{"balances": entries})
}

// --- operators --------------------------------------------------------------

type operatorParam struct {
	Owner    string `json:"owner"`
	Operator string `json:"operator"`
	TokenID  *int64 `json:"token_id"` // null means all tokens
}

func (p operatorParam) grant() token.Grant {
	scope := token.AllTokensScope()
	if p.TokenID != nil {
		scope = token.TokenScope(*p.TokenID)
	}
	return token.Grant{Owner: p.Owner, Operator: p.Operator, Scope: scope}
}

func (h *handler) updateOperators(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		AddOperators    []operatorParam `json:"add_operators"`
		RemoveOperators []operatorParam `json:"remove_operators"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		h.reject(w, "update_operators", http.StatusBadRequest, "invalid operator update format")
		return
	}

	adds := make([]token.Grant, 0, len(payload.AddOperators))
	for _, p := range payload.AddOperators {
		adds = append(adds, p.grant())
	}
	removes := make([]token.Grant, 0, len(payload.RemoveOperators))
	for _, p := range payload.RemoveOperators {
		removes = append(removes, p.grant())
	}

	caller := middleware.GetCaller(r.Context())
	if err := h.engine.UpdateOperators(r.Context(), caller, adds, removes); err != nil {
		h.writeEngineError(w, "update_operators", err)
		return
	}
	h.record("update_operators", false)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Operators updated",
	})
}

// --- mint and burn ----------------------------------------------------------

func (h *handler) mint(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		To      string `json:"to"`
		TokenID *int64 `json:"token_id"`
		Amount  *int64 `json:"amount"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		h.reject(w, "mint", http.StatusBadRequest, "invalid mint format")
		return
	}
	if payload.To == "" || payload.TokenID == nil || payload.Amount == nil {
		h.reject(w, "mint", http.StatusBadRequest, "missing required fields: to, token_id, amount")
		return
	}

	caller := middleware.GetCaller(r.Context())
	if err := h.engine.Mint(r.Context(), caller, payload.To, *payload.TokenID, *payload.Amount); err != nil {
		h.writeEngineError(w, "mint", err)
		return
	}
	h.record("mint", false)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Minted " + strconv.FormatInt(*payload.Amount, 10) + " tokens of token_id " + strconv.FormatInt(*payload.TokenID, 10) + " to " + payload.To,
	})
}

func (h *handler) burn(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		From    string `json:"from"`
		TokenID *int64 `json:"token_id"`
		Amount  *int64 `json:"amount"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		h.reject(w, "burn", http.StatusBadRequest, "invalid burn format")
		return
	}
	if payload.From == "" || payload.TokenID == nil || payload.Amount == nil {
		h.reject(w, "burn", http.StatusBadRequest, "missing required fields: from, token_id, amount")
		return
	}

	caller := middleware.GetCaller(r.Context())
	if err := h.engine.Burn(r.Context(), caller, payload.From, *payload.TokenID, *payload.Amount); err != nil {
		h.writeEngineError(w, "burn", err)
		return
	}
	h.record("burn", false)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Burned " + strconv.FormatInt(*payload.Amount, 10) + " tokens of token_id " + strconv.FormatInt(*payload.TokenID, 10) + " from " + payload.From,
	})
}

// --- metadata and supply ----------------------------------------------------

func (h *handler) tokenMetadata(w http.ResponseWriter, r *http.Request) {
	tokenIDStr := r.URL.Query().Get("token_id")
	if tokenIDStr == "" {
		h.reject(w, "token_metadata", http.StatusBadRequest, "missing token_id parameter")
		return
	}
	tokenID, err := strconv.ParseInt(tokenIDStr, 10, 64)
	if err != nil {
		h.reject(w, "token_metadata", http.StatusBadRequest, "invalid token_id")
		return
	}

	meta, err := h.engine.TokenMetadata(r.Context(), tokenID)
	if err != nil {
		h.writeEngineError(w, "token_metadata", err)
		return
	}
	h.record("token_metadata", false)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token_id":   tokenID,
		"token_info": meta,
	})
}

func (h *handler) setTokenMetadata(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		TokenID  *int64            `json:"token_id"`
		Symbol   string            `json:"symbol"`
		Name     string            `json:"name"`
		Decimals int               `json:"decimals"`
		Extras   map[string]string `json:"extras"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		h.reject(w, "set_token_metadata", http.StatusBadRequest, "invalid metadata format")
		return
	}
	if payload.TokenID == nil || payload.Symbol == "" || payload.Name == "" {
		h.reject(w, "set_token_metadata", http.StatusBadRequest, "missing required fields: token_id, symbol, name")
		return
	}

	meta := token.Metadata{
		TokenID:  *payload.TokenID,
		Symbol:   payload.Symbol,
		Name:     payload.Name,
		Decimals: payload.Decimals,
		Extras:   payload.Extras,
	}
	if err := h.engine.SetTokenMetadata(r.Context(), meta); err != nil {
		h.writeEngineError(w, "set_token_metadata", err)
		return
	}
	h.record("set_token_metadata", false)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Token metadata updated",
	})
}

func (h *handler) totalSupply(w http.ResponseWriter, r *http.Request) {
	tokenIDStr := r.URL.Query().Get("token_id")
	if tokenIDStr == "" {
		h.reject(w, "total_supply", http.StatusBadRequest, "missing token_id parameter")
		return
	}
	tokenID, err := strconv.ParseInt(tokenIDStr, 10, 64)
	if err != nil {
		h.reject(w, "total_supply", http.StatusBadRequest, "invalid token_id")
		return
	}

	supply, err := h.engine.TotalSupply(r.Context(), tokenID)
	if err != nil {
		h.writeEngineError(w, "total_supply", err)
		return
	}
	h.record("total_supply", false)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token_id":     tokenID,
		"total_supply": supply,
	})
}

// --- minter -----------------------------------------------------------------

func (h *handler) setMinter(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		NewMinter string `json:"new_minter"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		h.reject(w, "set_minter", http.StatusBadRequest, "invalid set_minter format")
		return
	}
	if payload.NewMinter == "" {
		h.reject(w, "set_minter", http.StatusBadRequest, "missing required field: new_minter")
		return
	}

	caller := middleware.GetCaller(r.Context())
	assigned, bootstrapped, err := h.engine.SetMinter(r.Context(), caller, payload.NewMinter)
	if err != nil {
		h.writeEngineError(w, "set_minter", err)
		return
	}
	message := "Minter address changed to " + assigned
	if bootstrapped {
		message = "Minter initialized to " + assigned
	}
	h.record("set_minter", false)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": message,
	})
}

func (h *handler) minter(w http.ResponseWriter, r *http.Request) {
	minter, ok, err := h.engine.Minter(r.Context())
	if err != nil {
		h.writeEngineError(w, "minter", err)
		return
	}
	h.record("minter", false)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]interface{}{"minter": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"minter": minter})
}

// --- info -------------------------------------------------------------------

func (h *handler) info(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":        "FA2 Ledger",
		"description": "Multi-asset fungible token ledger (FA2)",
		"endpoints": map[string]string{
			"POST /transfer":                             "Transfer tokens (supports batch transfers)",
			"GET /balance?owner=<address>&token_id=<id>": "Get balance for owner and token",
			"POST /balance_of":                           "Batch balance query",
			"POST /update_operators":                     "Add or remove operators",
			"POST /mint":                                 "Mint new tokens (minter only)",
			"POST /burn":                                 "Burn tokens (owner only)",
			"GET /token_metadata?token_id=<id>":          "Get token metadata",
			"POST /set_token_metadata":                   "Set token metadata",
			"GET /total_supply?token_id=<id>":            "Get total supply for token",
			"POST /set_minter":                           "Set/change minter address (current minter only)",
			"GET /minter":                                "Get current minter address",
		},
	})
}

// --- helpers ----------------------------------------------------------------

func (h *handler) record(operation string, failed bool) {
	if h.metrics != nil {
		h.metrics.RecordLedgerOperation(operation, failed)
	}
}

func (h *handler) reject(w http.ResponseWriter, operation string, status int, message string) {
	h.record(operation, true)
	writeErrorMessage(w, status, message)
}

// writeEngineError maps the ledger error taxonomy onto HTTP statuses.
// Anything unclassified is an internal fault and surfaces with a generic
// message only.
func (h *handler) writeEngineError(w http.ResponseWriter, operation string, err error) {
	h.record(operation, true)
	switch {
	case ledger.IsValidationError(err), ledger.IsInsufficientBalance(err):
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
	case ledger.IsForbidden(err):
		writeErrorMessage(w, http.StatusForbidden, err.Error())
	case ledger.IsNotFound(err):
		writeErrorMessage(w, http.StatusNotFound, err.Error())
	default:
		h.log.WithError(err).Errorf("%s failed", operation)
		writeErrorMessage(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeErrorMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
