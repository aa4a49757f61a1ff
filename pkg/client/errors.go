package client

import (
	"errors"

	"github.com/Sternrassler/xrpl-client/pkg/apierrors"
	"github.com/Sternrassler/xrpl-client/pkg/ratelimit"
	"github.com/Sternrassler/xrpl-client/pkg/transport"
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassValidation represents malformed caller input.
	ErrorClassValidation ErrorClass = "validation"

	// ErrorClassLedgerVersion represents a rejected ledger version selector.
	ErrorClassLedgerVersion ErrorClass = "ledger_version"

	// ErrorClassRateLimit represents requests refused after slowDown.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassConnection represents socket failures and timeouts.
	ErrorClassConnection ErrorClass = "connection"

	// ErrorClassProtocol represents malformed replies.
	ErrorClassProtocol ErrorClass = "protocol"

	// ErrorClassResponse represents error replies from the server.
	ErrorClassResponse ErrorClass = "response"

	// ErrorClassUnknown represents anything else (e.g. context cancellation).
	ErrorClassUnknown ErrorClass = "unknown"
)

// ClassifyError categorizes an error for observability.
func ClassifyError(err error) ErrorClass {
	var (
		verr *apierrors.ValidationError
		lerr *apierrors.LedgerVersionError
		terr *transport.Error
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr):
		return ErrorClassValidation
	case errors.As(err, &lerr):
		return ErrorClassLedgerVersion
	case errors.Is(err, ratelimit.ErrBlocked):
		return ErrorClassRateLimit
	case errors.As(err, &terr):
		switch terr.Kind {
		case transport.KindConnection:
			return ErrorClassConnection
		case transport.KindProtocol:
			return ErrorClassProtocol
		case transport.KindResponse:
			if terr.Code == "slowDown" {
				return ErrorClassRateLimit
			}
			return ErrorClassResponse
		}
	}
	return ErrorClassUnknown
}
