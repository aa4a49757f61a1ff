package testutil

import (
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"

	"golang.org/x/net/websocket"
)

// RippledReply is the answer of a MockRippled handler. A non-empty Error
// produces an error reply.
type RippledReply struct {
	Result       map[string]any
	Error        string
	ErrorCode    int
	ErrorMessage string
	Warning      string
}

// RippledHandler answers one command on a MockRippled server.
type RippledHandler func(req map[string]any) RippledReply

type mockConn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
}

func (c *mockConn) send(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return websocket.JSON.Send(c.ws, v)
}

// MockRippled is a websocket server speaking enough of the rippled API for
// transport tests.
type MockRippled struct {
	server *httptest.Server

	mu           sync.Mutex
	handlers     map[string]RippledHandler
	conns        map[*mockConn]struct{}
	ledgerIndex  int64
	requestCount int
	wg           sync.WaitGroup
}

// NewMockRippled starts a mock server whose validated ledger is ledgerIndex.
func NewMockRippled(ledgerIndex int64) *MockRippled {
	m := &MockRippled{
		handlers:    make(map[string]RippledHandler),
		conns:       make(map[*mockConn]struct{}),
		ledgerIndex: ledgerIndex,
	}
	m.server = httptest.NewServer(websocket.Handler(m.serve))
	return m
}

// URL returns the websocket URL of the server.
func (m *MockRippled) URL() string {
	return "ws://" + strings.TrimPrefix(m.server.URL, "http://")
}

// SetHandler sets the handler for a command.
func (m *MockRippled) SetHandler(command string, h RippledHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[command] = h
}

// RequestCount returns the number of requests received, handshakes included.
func (m *MockRippled) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestCount
}

// CloseLedger advances the validated ledger and publishes it on the ledger
// stream of every connection.
func (m *MockRippled) CloseLedger() int64 {
	m.mu.Lock()
	m.ledgerIndex++
	index := m.ledgerIndex
	conns := m.snapshot()
	m.mu.Unlock()

	msg := map[string]any{
		"type":              "ledgerClosed",
		"fee_base":          10,
		"fee_ref":           10,
		"ledger_hash":       fmt.Sprintf("%064X", index),
		"ledger_index":      index,
		"ledger_time":       index * 4,
		"reserve_base":      10000000,
		"reserve_inc":       2000000,
		"txn_count":         0,
		"validated_ledgers": fmt.Sprintf("1-%d", index),
	}
	for _, c := range conns {
		_ = c.send(msg)
	}
	return index
}

// DropConnections closes every open websocket connection.
func (m *MockRippled) DropConnections() {
	m.mu.Lock()
	conns := m.snapshot()
	m.mu.Unlock()
	for _, c := range conns {
		_ = c.ws.Close()
	}
}

// Close drops all connections and shuts the server down.
func (m *MockRippled) Close() {
	m.DropConnections()
	m.wg.Wait()
	m.server.Close()
}

func (m *MockRippled) snapshot() []*mockConn {
	out := make([]*mockConn, 0, len(m.conns))
	for c := range m.conns {
		out = append(out, c)
	}
	return out
}

func (m *MockRippled) serve(ws *websocket.Conn) {
	m.wg.Add(1)
	defer m.wg.Done()

	conn := &mockConn{ws: ws}
	m.mu.Lock()
	m.conns[conn] = struct{}{}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.conns, conn)
		m.mu.Unlock()
		_ = ws.Close()
	}()

	for {
		var req map[string]any
		if err := websocket.JSON.Receive(ws, &req); err != nil {
			return
		}
		if err := conn.send(m.answer(req)); err != nil {
			return
		}
	}
}

func (m *MockRippled) answer(req map[string]any) map[string]any {
	command, _ := req["command"].(string)

	m.mu.Lock()
	m.requestCount++
	handler, ok := m.handlers[command]
	ledgerIndex := m.ledgerIndex
	m.mu.Unlock()

	var reply RippledReply
	switch {
	case ok:
		reply = handler(req)
	case command == "subscribe":
		reply = RippledReply{Result: map[string]any{
			"fee_base":          10,
			"ledger_index":      ledgerIndex,
			"validated_ledgers": fmt.Sprintf("1-%d", ledgerIndex),
		}}
	default:
		reply = RippledReply{Error: "unknownCmd", ErrorCode: 32, ErrorMessage: "Unknown method."}
	}

	out := map[string]any{"id": req["id"], "type": "response"}
	if reply.Warning != "" {
		out["warning"] = reply.Warning
	}
	if reply.Error != "" {
		out["status"] = "error"
		out["error"] = reply.Error
		out["error_code"] = reply.ErrorCode
		out["error_message"] = reply.ErrorMessage
		out["request"] = req
		return out
	}
	out["status"] = "success"
	if reply.Result == nil {
		reply.Result = map[string]any{}
	}
	out["result"] = reply.Result
	return out
}
