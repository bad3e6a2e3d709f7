// Package middleware provides HTTP middleware for the ledger service.
package middleware

import (
	"context"
	"net/http"
)

type contextKey string

const callerKey contextKey = "caller"

// UnknownCaller is the identity assigned when the request carries no asserted
// identity at all.
const UnknownCaller = "unknown"

// CallerHeader is the trust-asserting header the hosting platform sets to the
// authenticated origin address. The ledger performs no cryptographic
// verification of it; the surrounding platform is trusted to have
// authenticated the caller before the request reaches us.
const CallerHeader = "Referer"

// CallerIdentity extracts the caller's asserted identity into the request
// context.
func CallerIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := r.Header.Get(CallerHeader)
		if caller == "" {
			caller = UnknownCaller
		}
		next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
	})
}

// WithCaller attaches a caller identity to the context.
func WithCaller(ctx context.Context, caller string) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}

// GetCaller returns the caller identity from the context, or UnknownCaller.
func GetCaller(ctx context.Context) string {
	if caller, ok := ctx.Value(callerKey).(string); ok && caller != "" {
		return caller
	}
	return UnknownCaller
}
