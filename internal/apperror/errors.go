// Package apperror holds the failure kinds a checkout can end with.
//
// Every error that leaves the sale coordinator is one of the typed errors
// below or one of the sentinels, so transports can map them without looking
// at driver errors.
package apperror

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrDuplicateKey is returned by repositories when an insert hits a
	// unique constraint.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrGuestCustomerMissing means the configured guest customer row does
	// not exist. It is a deployment problem, not a request problem.
	ErrGuestCustomerMissing = errors.New("guest customer is not configured or missing")

	ErrCheckoutInProgress = errors.New("a checkout with this idempotency key is already in progress")
	ErrSaleNotFound       = errors.New("sale not found")
	ErrProductUnknown     = errors.New("product not found")
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func NewValidation(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

type ProductNotFoundError struct {
	Line int
	Name string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %q not found (line %d)", e.Name, e.Line)
}

type InsufficientStockError struct {
	Line      int
	ProductID string
	Product   string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient inventory for %q: requested %d, available %d", e.Product, e.Requested, e.Available)
}

// StoreUnavailableError wraps any persistence failure that is not one of the
// classified kinds. Callers may retry.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("%s: store unavailable: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error { return e.Err }

func (e *StoreUnavailableError) Retryable() bool { return true }

// IsTimeout reports whether the failure came from a caller deadline or
// cancellation rather than from the store itself.
func (e *StoreUnavailableError) IsTimeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded) || errors.Is(e.Err, context.Canceled)
}

// Classify returns err unchanged when it is already a known kind and wraps
// it in a StoreUnavailableError otherwise.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsKnown(err) {
		return err
	}
	return &StoreUnavailableError{Op: op, Err: err}
}

func IsKnown(err error) bool {
	var (
		validation *ValidationError
		notFound   *ProductNotFoundError
		stock      *InsufficientStockError
		store      *StoreUnavailableError
	)
	switch {
	case errors.As(err, &validation),
		errors.As(err, &notFound),
		errors.As(err, &stock),
		errors.As(err, &store):
		return true
	case errors.Is(err, ErrCheckoutInProgress),
		errors.Is(err, ErrSaleNotFound),
		errors.Is(err, ErrProductUnknown),
		errors.Is(err, ErrGuestCustomerMissing):
		return true
	}
	return false
}
