package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sternrassler/xrpl-client/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/net/websocket"
)

// Prometheus metrics for wire round-trips.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xrpl_transport_requests_total",
		Help: "Total wire requests by command and status",
	}, []string{"command", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "xrpl_transport_request_duration_seconds",
		Help:    "Wire round-trip duration in seconds by command",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"command"})
)

// Close codes reported with EventDisconnected.
const (
	CloseNormal   = 1000
	CloseAbnormal = 1006
)

// Config holds the websocket channel configuration.
type Config struct {
	// URL is the server's websocket endpoint, e.g. "wss://s1.ripple.com".
	URL string

	// Origin is sent in the handshake. Defaults to "http://localhost/".
	Origin string

	// RequestTimeout bounds a round-trip when the caller passes no timeout.
	RequestTimeout time.Duration

	// ConnectTimeout bounds a single dial attempt.
	ConnectTimeout time.Duration

	// Backoff controls dial retries.
	Backoff BackoffConfig

	// EventBuffer is the capacity of the events channel.
	EventBuffer int
}

// DefaultConfig returns a default configuration for the given server URL.
func DefaultConfig(url string) Config {
	return Config{
		URL:            url,
		Origin:         "http://localhost/",
		RequestTimeout: 20 * time.Second,
		ConnectTimeout: 10 * time.Second,
		Backoff:        DefaultBackoffConfig(),
		EventBuffer:    64,
	}
}

type reply struct {
	resp Response
	err  error
}

// inbound is the envelope of every message read from the server.
type inbound struct {
	ID           *uint64         `json:"id"`
	Type         string          `json:"type"`
	Status       string          `json:"status"`
	Result       json.RawMessage `json:"result"`
	Error        string          `json:"error"`
	ErrorCode    int             `json:"error_code"`
	ErrorMessage string          `json:"error_message"`
	Warning      string          `json:"warning"`
}

// WSChannel is a Channel over a websocket connection to rippled.
//
// A single reader goroutine correlates replies with pending requests by id
// and converts stream messages into events. Concurrent requests are safe.
type WSChannel struct {
	cfg    Config
	logger zerolog.Logger

	nextID atomic.Uint64

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[uint64]chan reply

	writeMu sync.Mutex

	events    chan Event
	closing   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewWSChannel creates an unconnected channel. Call Connect to dial.
func NewWSChannel(cfg Config) (*WSChannel, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("server url is required")
	}
	if cfg.Origin == "" {
		cfg.Origin = "http://localhost/"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 20 * time.Second
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 64
	}

	return &WSChannel{
		cfg:     cfg,
		logger:  logging.NewLogger(logging.ComponentTransport).With().Str("server", cfg.URL).Logger(),
		pending: make(map[uint64]chan reply),
		events:  make(chan Event, cfg.EventBuffer),
		closing: make(chan struct{}),
	}, nil
}

// Dial creates a channel and connects it.
func Dial(ctx context.Context, cfg Config) (*WSChannel, error) {
	c, err := NewWSChannel(cfg)
	if err != nil {
		return nil, err
	}
	if err := c.Connect(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// Connect dials the server (retrying with backoff) and performs the ledger
// stream subscription handshake. It is a no-op when already connected.
func (c *WSChannel) Connect(ctx context.Context) error {
	select {
	case <-c.closing:
		return &Error{Kind: KindConnection, Message: "connect", Err: ErrClosed}
	default:
	}

	if c.IsConnected() {
		return nil
	}

	wsCfg, err := websocket.NewConfig(c.cfg.URL, c.cfg.Origin)
	if err != nil {
		return &Error{Kind: KindConnection, Message: "invalid server url", Err: err}
	}

	var conn *websocket.Conn
	err = retryWithBackoff(ctx, c.cfg.Backoff, c.logger, func(ctx context.Context) error {
		dialCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
		defer cancel()
		var dialErr error
		conn, dialErr = wsCfg.DialContext(dialCtx)
		return dialErr
	})
	if err != nil {
		return &Error{Kind: KindConnection, Message: "dial " + c.cfg.URL, Err: err}
	}

	// Close may have started while dialing. Checking closing under mu
	// orders this install before Close reads c.conn, or refuses it.
	c.mu.Lock()
	select {
	case <-c.closing:
		c.mu.Unlock()
		_ = conn.Close()
		return &Error{Kind: KindConnection, Message: "connect", Err: ErrClosed}
	default:
	}
	c.conn = conn
	// One for the reader, one for the handshake below, which may still
	// emit after the reader exits.
	c.wg.Add(2)
	c.mu.Unlock()
	defer c.wg.Done()

	go c.readLoop(conn)

	resp, err := c.Request(ctx, Request{"command": "subscribe", "streams": []string{"ledger"}}, 0)
	if err != nil {
		c.logger.Error().Err(err).Msg("Ledger stream subscription failed")
		_ = conn.Close()
		return err
	}

	version := int64Field(resp, "ledger_index")
	c.logger.Info().Int64("ledger_index", version).Msg("Connected")
	c.emit(Event{Type: EventConnected, LedgerVersion: version})

	return nil
}

// IsConnected reports whether a connection is currently established.
func (c *WSChannel) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Events implements Channel.
func (c *WSChannel) Events() <-chan Event {
	return c.events
}

// Request implements Channel.
func (c *WSChannel) Request(ctx context.Context, req Request, timeout time.Duration) (Response, error) {
	command := req.Command()
	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(command).Observe(time.Since(start).Seconds())
	}()

	if timeout <= 0 {
		timeout = c.cfg.RequestTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	id := c.nextID.Add(1)
	ch := make(chan reply, 1)

	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		requestsTotal.WithLabelValues(command, "not_connected").Inc()
		return nil, &Error{Kind: KindConnection, Message: command, Err: ErrNotConnected}
	}
	c.pending[id] = ch
	c.mu.Unlock()

	wire := req.Clone()
	wire["id"] = id

	c.writeMu.Lock()
	err := websocket.JSON.Send(conn, wire)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(id)
		requestsTotal.WithLabelValues(command, "send_error").Inc()
		return nil, &Error{Kind: KindConnection, Message: "send " + command, Err: err}
	}

	select {
	case r := <-ch:
		status := "success"
		if r.err != nil {
			status = "error"
		}
		requestsTotal.WithLabelValues(command, status).Inc()
		return r.resp, r.err
	case <-ctx.Done():
		c.forget(id)
		requestsTotal.WithLabelValues(command, "timeout").Inc()
		return nil, &Error{Kind: KindConnection, Message: "awaiting reply to " + command, Err: ctx.Err()}
	}
}

// Close shuts the channel down. Pending requests fail and the events
// channel is closed once the reader has exited.
func (c *WSChannel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		close(c.closing)
		conn := c.conn
		c.mu.Unlock()
		if conn != nil {
			err = conn.Close()
		}

		c.wg.Wait()
		close(c.events)
	})
	return err
}

func (c *WSChannel) forget(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *WSChannel) readLoop(conn *websocket.Conn) {
	defer c.wg.Done()

	for {
		var data []byte
		if err := websocket.Message.Receive(conn, &data); err != nil {
			c.disconnected(conn, err)
			return
		}
		c.handleMessage(data)
	}
}

func (c *WSChannel) handleMessage(data []byte) {
	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Warn().Err(err).Msg("Discarding malformed message")
		c.emit(Event{Type: EventError, ErrorCode: "badMessage", Message: err.Error()})
		return
	}

	switch msg.Type {
	case "response":
		c.handleResponse(msg, data)
	case "ledgerClosed":
		var ledger LedgerClosed
		if err := json.Unmarshal(data, &ledger); err != nil {
			c.logger.Warn().Err(err).Msg("Discarding malformed ledgerClosed message")
			return
		}
		c.emit(Event{Type: EventLedgerClosed, LedgerVersion: ledger.LedgerIndex, Ledger: &ledger})
	case "error":
		var raw map[string]any
		_ = json.Unmarshal(data, &raw)
		c.emit(Event{Type: EventError, ErrorCode: msg.Error, Message: msg.ErrorMessage, Data: raw})
	default:
		c.logger.Debug().Str("type", msg.Type).Msg("Ignoring stream message")
	}
}

func (c *WSChannel) handleResponse(msg inbound, data []byte) {
	if msg.ID == nil {
		c.emit(Event{Type: EventError, ErrorCode: "badMessage", Message: "response without id"})
		return
	}

	c.mu.Lock()
	ch, ok := c.pending[*msg.ID]
	delete(c.pending, *msg.ID)
	c.mu.Unlock()
	if !ok {
		c.logger.Debug().Uint64("id", *msg.ID).Msg("Reply for unknown or expired request")
		return
	}

	if msg.Warning == "load" {
		c.emit(Event{Type: EventLoadWarning})
	}

	if msg.Status == "error" {
		var raw map[string]any
		_ = json.Unmarshal(data, &raw)
		ch <- reply{err: &Error{Kind: KindResponse, Code: msg.Error, Message: msg.ErrorMessage, Data: raw}}
		return
	}

	if msg.Status != "success" {
		ch <- reply{err: &Error{Kind: KindProtocol, Message: "unexpected status " + strconv.Quote(msg.Status)}}
		return
	}

	var resp Response
	if err := json.Unmarshal(msg.Result, &resp); err != nil {
		ch <- reply{err: &Error{Kind: KindProtocol, Message: "decode result", Err: err}}
		return
	}
	ch <- reply{resp: resp}
}

func (c *WSChannel) disconnected(conn *websocket.Conn, cause error) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	pending := c.pending
	c.pending = make(map[uint64]chan reply)
	c.mu.Unlock()

	code := CloseAbnormal
	select {
	case <-c.closing:
		code = CloseNormal
	default:
	}

	for _, ch := range pending {
		ch <- reply{err: &Error{Kind: KindConnection, Message: "disconnected", Err: errors.Join(ErrNotConnected, cause)}}
	}

	c.logger.Info().Err(cause).Int("code", code).Msg("Disconnected")
	c.emit(Event{Type: EventDisconnected, Code: code})
}

// emit delivers an event unless the channel is closing.
func (c *WSChannel) emit(ev Event) {
	select {
	case <-c.closing:
		return
	default:
	}
	select {
	case c.events <- ev:
	case <-c.closing:
	}
}

// int64Field reads an integral JSON number from a decoded object.
func int64Field(m map[string]any, key string) int64 {
	switch v := m[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}
