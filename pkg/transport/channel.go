// Package transport provides the duplex command/response channel to a single
// rippled server, along with the lifecycle events it emits.
package transport

import (
	"context"
	"time"
)

// Request is a wire request. It always carries a "command" field; the
// channel assigns the "id" used to correlate the reply.
type Request map[string]any

// Response is the "result" object of a successful wire reply.
type Response map[string]any

// Command returns the request's command discriminator.
func (r Request) Command() string {
	cmd, _ := r["command"].(string)
	return cmd
}

// Clone returns a shallow copy of the request.
func (r Request) Clone() Request {
	out := make(Request, len(r)+1)
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Channel is a stateful duplex channel to one server.
//
// Request performs one round-trip. A positive timeout bounds that single
// round-trip; zero uses the channel default. Events delivers lifecycle
// notifications until the channel is closed.
type Channel interface {
	Request(ctx context.Context, req Request, timeout time.Duration) (Response, error)
	Events() <-chan Event
	Close() error
}

// EventType discriminates lifecycle events.
type EventType int

const (
	// EventConnected is emitted once the handshake on a new connection
	// completed. LedgerVersion carries the handshake's validated ledger.
	EventConnected EventType = iota

	// EventDisconnected is emitted when the underlying connection is lost.
	EventDisconnected

	// EventError carries an asynchronous error reported by the server.
	EventError

	// EventLedgerClosed carries a message from the ledger stream.
	EventLedgerClosed

	// EventLoadWarning is emitted when a reply carried the server's "load"
	// warning, meaning this client is close to being rate limited.
	EventLoadWarning
)

// String implements fmt.Stringer.
func (t EventType) String() string {
	switch t {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventError:
		return "error"
	case EventLedgerClosed:
		return "ledgerClosed"
	case EventLoadWarning:
		return "loadWarning"
	default:
		return "unknown"
	}
}

// Event is a lifecycle notification. Only the fields relevant to Type are set.
type Event struct {
	Type EventType

	// LedgerVersion is set for EventConnected and EventLedgerClosed.
	LedgerVersion int64

	// Ledger is set for EventLedgerClosed.
	Ledger *LedgerClosed

	// Code is the close code for EventDisconnected.
	Code int

	// ErrorCode, Message and Data are set for EventError.
	ErrorCode string
	Message   string
	Data      map[string]any
}

// LedgerClosed is a message from the "ledger" stream.
type LedgerClosed struct {
	FeeBase          int64  `json:"fee_base"`
	FeeRef           int64  `json:"fee_ref"`
	LedgerHash       string `json:"ledger_hash"`
	LedgerIndex      int64  `json:"ledger_index"`
	LedgerTime       int64  `json:"ledger_time"`
	ReserveBase      int64  `json:"reserve_base"`
	ReserveInc       int64  `json:"reserve_inc"`
	TxnCount         int64  `json:"txn_count"`
	ValidatedLedgers string `json:"validated_ledgers"`
}
