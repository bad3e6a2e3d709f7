package ledger

import (
	"errors"
	"fmt"
)

// Sentinel errors for classifying failures across the ledger. Typed errors
// below wrap these so callers can branch with errors.Is without losing the
// detailed message.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrForbidden           = errors.New("forbidden")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNotFound            = errors.New("not found")
)

// ValidationError reports a missing or malformed request field.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// RequiredError reports a field that must be present.
func RequiredError(field string) *ValidationError {
	return &ValidationError{Field: field, Reason: "is required"}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// AuthorizationError reports a caller attempting a privileged action it does
// not hold rights for.
type AuthorizationError struct {
	Caller string
	Reason string
}

func NewAuthorizationError(caller, reason string) *AuthorizationError {
	return &AuthorizationError{Caller: caller, Reason: reason}
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("caller %s unauthorized: %s", e.Caller, e.Reason)
}

func (e *AuthorizationError) Unwrap() error { return ErrForbidden }

// InsufficientBalanceError reports a debit exceeding the available balance.
type InsufficientBalanceError struct {
	Owner     string
	TokenID   int64
	Requested int64
	Available int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: %s holds %d of token %d, need %d",
		e.Owner, e.Available, e.TokenID, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// NotFoundError reports a lookup miss on a read-only entrypoint.
type NotFoundError struct {
	Resource string
	ID       string
}

func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// IsValidationError reports whether err classifies as invalid input.
func IsValidationError(err error) bool { return errors.Is(err, ErrInvalidInput) }

// IsForbidden reports whether err classifies as an authorization failure.
func IsForbidden(err error) bool { return errors.Is(err, ErrForbidden) }

// IsInsufficientBalance reports whether err classifies as an over-debit.
func IsInsufficientBalance(err error) bool { return errors.Is(err, ErrInsufficientBalance) }

// IsNotFound reports whether err classifies as a lookup miss.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
