package wordledger

import (
	"errors"
	"fmt"

	"github.com/xraph/wordledger/allocator"
	"github.com/xraph/wordledger/grant"
	"github.com/xraph/wordledger/ledger"
	"github.com/xraph/wordledger/reconcile"
)

// Sentinel errors for common failure scenarios.
var (
	// Input errors
	ErrInvalidGrant   = grant.ErrInvalid
	ErrInvalidAmount  = errors.New("wordledger: invalid word amount")
	ErrInvalidUser    = errors.New("wordledger: invalid user id")
	ErrUnknownProduct = errors.New("wordledger: unknown product")

	// Business outcomes
	ErrInsufficientWords = allocator.ErrInsufficient

	// Engine lifecycle errors
	ErrNotStarted = errors.New("wordledger: engine not started")
	ErrStopped    = errors.New("wordledger: engine stopped")

	// Store errors
	ErrPersistence     = errors.New("wordledger: persistence failed")
	ErrVersionConflict = errors.New("wordledger: ledger version conflict")
	ErrCorruptRecord   = ledger.ErrCorruptRecord

	// Sync errors
	ErrSyncUnavailable = errors.New("wordledger: cloud sync unavailable")
	ErrUserMismatch    = reconcile.ErrUserMismatch

	// Integrity errors
	ErrIntegrity = errors.New("wordledger: ledger integrity violated")
)

// InsufficientWordsError reports a consume request that exceeded the
// available balance. It unwraps to ErrInsufficientWords.
type InsufficientWordsError = allocator.InsufficientError

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("wordledger: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrInvalidAmount for amount fields.
func (e ValidationError) Unwrap() error {
	if e.Field == "words" || e.Field == "valid_days" {
		return ErrInvalidAmount
	}
	return nil
}

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "wordledger: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("wordledger: %d errors occurred", len(e.Errors))
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e MultiError) Unwrap() []error { return e.Errors }

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// First returns the first error or nil.
func (e MultiError) First() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// ErrorOrNil returns nil when nothing was collected.
func (e MultiError) ErrorOrNil() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

// IsInputError reports whether err was caused by a bad argument.
func IsInputError(err error) bool {
	return errors.Is(err, ErrInvalidGrant) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidUser) ||
		errors.Is(err, ErrUnknownProduct)
}

// IsBusinessOutcome reports whether err is an expected outcome the caller
// should present rather than treat as a fault.
func IsBusinessOutcome(err error) bool {
	return errors.Is(err, ErrInsufficientWords)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPersistence) ||
		errors.Is(err, ErrVersionConflict) ||
		errors.Is(err, ErrSyncUnavailable)
}
