package transport

import (
	"errors"
	"fmt"
)

// Common errors returned by the channel.
var (
	// ErrNotConnected is returned when a request is made while no
	// connection is established.
	ErrNotConnected = errors.New("not connected")

	// ErrClosed is returned once the channel has been closed.
	ErrClosed = errors.New("channel closed")

	// ErrDialExhausted is returned when all dial attempts failed.
	ErrDialExhausted = errors.New("dial attempts exhausted")
)

// Kind classifies transport failures.
type Kind string

const (
	// KindConnection covers socket failures, disconnects and timeouts.
	KindConnection Kind = "connection"

	// KindProtocol covers malformed or unexpected replies.
	KindProtocol Kind = "protocol"

	// KindResponse covers requests the server answered with an error status.
	KindResponse Kind = "response"
)

// Error is a failure reported by the channel.
type Error struct {
	Kind Kind

	// Code is the server's error token (e.g. "actNotFound") for KindResponse.
	Code string

	// Message is a human-readable description.
	Message string

	// Data holds the raw error reply for KindResponse.
	Data map[string]any

	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Code != "" && e.Err != nil:
		return fmt.Sprintf("%s error %s: %s: %v", e.Kind, e.Code, e.Message, e.Err)
	case e.Code != "":
		return fmt.Sprintf("%s error %s: %s", e.Kind, e.Code, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Message, e.Err)
	default:
		return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
	}
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsResponseCode reports whether err is a KindResponse error with the given code.
func IsResponseCode(err error, code string) bool {
	var terr *Error
	if !errors.As(err, &terr) {
		return false
	}
	return terr.Kind == KindResponse && terr.Code == code
}
