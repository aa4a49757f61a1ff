// Package apierrors defines the errors the library raises before any network
// activity takes place.
package apierrors

import (
	"errors"
	"fmt"
)

// ErrNoLedgerVersion is returned when the most recent validated ledger
// version is not known yet (no handshake completed on the current session).
var ErrNoLedgerVersion = errors.New("validated ledger version unknown")

// ValidationError reports malformed caller input or an unrecognized
// pagination collect key. It is never retried.
type ValidationError struct {
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("validation: %s: %v", e.Message, e.Err)
	}
	return "validation: " + e.Message
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// LedgerVersionError reports a ledger version selector beyond the most
// recent validated ledger known to the client.
type LedgerVersionError struct {
	// Requested is the selector as supplied by the caller.
	Requested any

	// Known is the most recent validated ledger version at dispatch time.
	Known int64
}

// Error implements the error interface.
func (e *LedgerVersionError) Error() string {
	return fmt.Sprintf("ledgerVersion %v is greater than server's most recent validated ledger: %d",
		e.Requested, e.Known)
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

// IsLedgerVersion reports whether err is or wraps a LedgerVersionError.
func IsLedgerVersion(err error) bool {
	var lerr *LedgerVersionError
	return errors.As(err, &lerr)
}
