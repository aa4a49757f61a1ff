// Package testutil provides testing utilities for the XRPL client.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/Sternrassler/xrpl-client/pkg/transport"
)

// Handler answers one request on a MockChannel.
type Handler func(req transport.Request) (transport.Response, error)

// MockChannel is a scripted transport.Channel that records every request it
// receives.
type MockChannel struct {
	mu       sync.Mutex
	handler  Handler
	requests []transport.Request
	timeouts []time.Duration

	events    chan transport.Event
	closeOnce sync.Once
}

// NewMockChannel creates a mock channel answering with handler.
func NewMockChannel(handler Handler) *MockChannel {
	return &MockChannel{
		handler: handler,
		events:  make(chan transport.Event, 64),
	}
}

// Request implements transport.Channel.
func (m *MockChannel) Request(ctx context.Context, req transport.Request, timeout time.Duration) (transport.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req.Clone())
	m.timeouts = append(m.timeouts, timeout)
	handler := m.handler
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, &transport.Error{Kind: transport.KindConnection, Message: "awaiting reply", Err: err}
	}
	if handler == nil {
		return transport.Response{}, nil
	}
	return handler(req)
}

// Events implements transport.Channel.
func (m *MockChannel) Events() <-chan transport.Event {
	return m.events
}

// Close implements transport.Channel.
func (m *MockChannel) Close() error {
	m.closeOnce.Do(func() {
		close(m.events)
	})
	return nil
}

// Emit delivers a lifecycle event.
func (m *MockChannel) Emit(ev transport.Event) {
	m.events <- ev
}

// SetHandler replaces the request handler.
func (m *MockChannel) SetHandler(handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = handler
}

// RequestCount returns the number of requests received.
func (m *MockChannel) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns copies of the received requests in order.
func (m *MockChannel) Requests() []transport.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]transport.Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Timeouts returns the timeout passed with each request.
func (m *MockChannel) Timeouts() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]time.Duration, len(m.timeouts))
	copy(out, m.timeouts)
	return out
}

// PagedServer simulates a paginated command serving total items under
// collectKey, at most pageSize per reply, continuing with numeric markers.
func PagedServer(collectKey string, total, pageSize int) Handler {
	return func(req transport.Request) (transport.Response, error) {
		offset := 0
		if m, ok := req["marker"].(int); ok {
			offset = m
		}
		n := pageSize
		if limit, ok := toInt(req["limit"]); ok && limit < n {
			n = limit
		}
		if remaining := total - offset; remaining < n {
			n = remaining
		}
		if n < 0 {
			n = 0
		}

		items := make([]any, n)
		for i := range items {
			items[i] = map[string]any{"seq": float64(offset + i + 1)}
		}

		resp := transport.Response{collectKey: items}
		if offset+n < total {
			resp["marker"] = offset + n
		}
		return resp, nil
	}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
