// Package client provides the version-guarded dispatcher every ledger query
// goes through, and the aggregation entry point for paginated queries.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sternrassler/xrpl-client/internal/numeric"
	"github.com/Sternrassler/xrpl-client/pkg/apierrors"
	"github.com/Sternrassler/xrpl-client/pkg/cache"
	"github.com/Sternrassler/xrpl-client/pkg/commands"
	"github.com/Sternrassler/xrpl-client/pkg/logging"
	"github.com/Sternrassler/xrpl-client/pkg/pagination"
	"github.com/Sternrassler/xrpl-client/pkg/ratelimit"
	"github.com/Sternrassler/xrpl-client/pkg/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xrpl_requests_total",
		Help: "Total guarded requests by command and status",
	}, []string{"command", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "xrpl_request_duration_seconds",
		Help:    "Guarded request duration in seconds by command",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"command"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xrpl_errors_total",
		Help: "Total request errors by class",
	}, []string{"class"})

	ledgerVersionRejectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "xrpl_ledger_version_rejections_total",
		Help: "Requests rejected locally for selecting a ledger beyond the validated one",
	})

	validatedLedgerVersion = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "xrpl_validated_ledger_version",
		Help: "Most recent validated ledger version known to the client",
	})
)

// LedgerValidated is the ledger selector that always passes the guard.
const LedgerValidated = "validated"

// Client dispatches requests over a transport channel after checking their
// ledger version selector against the most recent validated ledger.
type Client struct {
	channel     transport.Channel
	aggregator  *pagination.Aggregator
	cache       *cache.Manager
	rateLimiter *ratelimit.Tracker
	config      Config
	logger      zerolog.Logger

	ledgerVersion atomic.Int64
	connected     atomic.Bool

	observersMu sync.RWMutex
	observers   map[int]func(transport.Event)
	nextObsID   int

	done chan struct{}
}

// Config holds the client configuration.
type Config struct {
	// Redis enables the pinned-ledger cache and shared load tracking.
	// Optional.
	Redis *redis.Client

	// Scope namespaces shared state in Redis, typically the server URL.
	Scope string

	// CacheTTL is the retention of pinned-ledger responses.
	CacheTTL time.Duration

	// DisableCache turns the pinned-ledger cache off even with Redis set.
	DisableCache bool

	// RateLimit configures load tracking windows.
	RateLimit ratelimit.Config
}

// DefaultConfig returns a default configuration without Redis.
func DefaultConfig() Config {
	return Config{
		Scope:     "default",
		CacheTTL:  cache.DefaultTTL,
		RateLimit: ratelimit.DefaultConfig(),
	}
}

// New creates a client over ch and subscribes its ledger version handler to
// the channel's events. The client owns ch from here on.
func New(ch transport.Channel, cfg Config) (*Client, error) {
	if ch == nil {
		return nil, fmt.Errorf("transport channel is required")
	}
	if cfg.Scope == "" {
		cfg.Scope = "default"
	}

	logger := logging.NewLogger(logging.ComponentClient)

	c := &Client{
		channel:   ch,
		config:    cfg,
		logger:    logger,
		observers: make(map[int]func(transport.Event)),
		done:      make(chan struct{}),
	}
	c.aggregator = pagination.NewAggregator(c, logging.NewLogger(logging.ComponentPagination))

	if cfg.Redis != nil {
		if !cfg.DisableCache {
			c.cache = cache.NewManager(cfg.Redis, cfg.CacheTTL)
		}
		c.rateLimiter = ratelimit.NewTracker(cfg.Redis, cfg.Scope, cfg.RateLimit, logging.NewLogger(logging.ComponentRateLimit))
	}

	go c.handleEvents()

	return c, nil
}

// Request dispatches one command. It fails before any network activity when
// the ledger_index selector is beyond the known validated ledger or not a
// number. A positive timeout bounds this single round-trip.
func (c *Client) Request(ctx context.Context, command commands.Command, params map[string]any, timeout time.Duration) (transport.Response, error) {
	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(string(command)).Observe(time.Since(startTime).Seconds())
	}()

	req := make(transport.Request, len(params)+1)
	for k, v := range params {
		req[k] = v
	}
	req["command"] = string(command)

	// Step 1: ledger version guard (local only)
	if err := c.checkLedgerVersion(req); err != nil {
		ledgerVersionRejectionsTotal.Inc()
		c.fail(command, err)
		c.logger.Warn().
			Str("command", string(command)).
			Interface("ledger_index", req["ledger_index"]).
			Int64("known_ledger", c.ledgerVersion.Load()).
			Msg("Request rejected by ledger version guard")
		return nil, err
	}

	// Step 2: server load gate
	if c.rateLimiter != nil {
		allowed, err := c.rateLimiter.ShouldAllowRequest(ctx)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Rate limit check failed")
		} else if !allowed {
			c.fail(command, ratelimit.ErrBlocked)
			return nil, ratelimit.ErrBlocked
		}
	}

	// Step 3: pinned-ledger cache
	cacheKey, cacheable := c.cacheKey(command, req)
	if cacheable {
		if resp, ok := c.fromCache(ctx, cacheKey); ok {
			requestsTotal.WithLabelValues(string(command), "cached").Inc()
			return resp, nil
		}
	}

	// Step 4: wire
	c.logger.Debug().
		Str("command", string(command)).
		Interface("ledger_index", req["ledger_index"]).
		Msg("Dispatching request")

	resp, err := c.channel.Request(ctx, req, timeout)
	if err != nil {
		if c.rateLimiter != nil && transport.IsResponseCode(err, "slowDown") {
			if rerr := c.rateLimiter.RecordSlowDown(ctx); rerr != nil {
				c.logger.Warn().Err(rerr).Msg("Failed to record slowDown")
			}
		}
		c.fail(command, err)
		return nil, err
	}

	if cacheable {
		c.toCache(ctx, cacheKey, resp)
	}

	requestsTotal.WithLabelValues(string(command), "success").Inc()
	return resp, nil
}

// RequestAll aggregates the pages of a list query. See
// pagination.Aggregator.AggregateAll for the termination rules.
func (c *Client) RequestAll(ctx context.Context, command commands.Command, params map[string]any, opts pagination.Options) ([]transport.Response, error) {
	return c.aggregator.AggregateAll(ctx, command, params, opts)
}

// LedgerVersion returns the most recent validated ledger version known on
// the current session.
func (c *Client) LedgerVersion() (int64, error) {
	v := c.ledgerVersion.Load()
	if v <= 0 {
		return 0, apierrors.ErrNoLedgerVersion
	}
	return v, nil
}

// IsConnected reports whether the channel's last lifecycle event was a
// successful connection.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// Subscribe registers fn for every lifecycle event, delivered after the
// client updated its own state. The returned func unregisters fn.
// fn runs on the event goroutine and must not block.
func (c *Client) Subscribe(fn func(transport.Event)) (unsubscribe func()) {
	c.observersMu.Lock()
	id := c.nextObsID
	c.nextObsID++
	c.observers[id] = fn
	c.observersMu.Unlock()

	return func() {
		c.observersMu.Lock()
		delete(c.observers, id)
		c.observersMu.Unlock()
	}
}

// Close closes the channel and waits for the event handler to exit.
func (c *Client) Close() error {
	err := c.channel.Close()
	<-c.done
	return err
}

// checkLedgerVersion enforces that a numeric ledger_index never exceeds the
// known validated ledger.
func (c *Client) checkLedgerVersion(req transport.Request) error {
	selector, ok := req["ledger_index"]
	if !ok || selector == nil {
		return nil
	}
	if s, ok := selector.(string); ok && s == LedgerValidated {
		return nil
	}

	known := c.ledgerVersion.Load()
	index, ok := numeric.NonNegativeInt(selector)
	if !ok || index > known {
		return &apierrors.LedgerVersionError{Requested: selector, Known: known}
	}
	return nil
}

func (c *Client) fail(command commands.Command, err error) {
	class := ClassifyError(err)
	errorsTotal.WithLabelValues(string(class)).Inc()
	requestsTotal.WithLabelValues(string(command), string(class)).Inc()
}

func (c *Client) cacheKey(command commands.Command, req transport.Request) (cache.CacheKey, bool) {
	if c.cache == nil {
		return cache.CacheKey{}, false
	}
	desc, ok := commands.Lookup(command)
	if !ok || !desc.Cacheable {
		return cache.CacheKey{}, false
	}
	index, ok := numeric.NonNegativeInt(req["ledger_index"])
	if !ok {
		return cache.CacheKey{}, false
	}
	return cache.CacheKey{Command: string(command), LedgerIndex: index, Params: req}, true
}

func (c *Client) fromCache(ctx context.Context, key cache.CacheKey) (transport.Response, bool) {
	entry, err := c.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("command", key.Command).Msg("Cache get error")
		}
		return nil, false
	}
	resp, err := cache.EntryToResponse(entry)
	if err != nil {
		c.logger.Warn().Err(err).Str("command", key.Command).Msg("Discarding corrupt cache entry")
		return nil, false
	}
	c.logger.Debug().
		Str("command", key.Command).
		Int64("ledger_index", key.LedgerIndex).
		Msg("Served from cache")
	return resp, true
}

func (c *Client) toCache(ctx context.Context, key cache.CacheKey, resp transport.Response) {
	entry, err := cache.ResponseToEntry(resp, key.LedgerIndex, c.cache.TTL())
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to create cache entry")
		return
	}
	if err := c.cache.Set(ctx, key, entry); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to cache response")
	}
}

// handleEvents is the only writer of the known ledger version.
func (c *Client) handleEvents() {
	defer close(c.done)

	for ev := range c.channel.Events() {
		switch ev.Type {
		case transport.EventConnected:
			c.connected.Store(true)
			c.raiseLedgerVersion(ev.LedgerVersion)
		case transport.EventLedgerClosed:
			c.raiseLedgerVersion(ev.LedgerVersion)
		case transport.EventDisconnected:
			c.connected.Store(false)
			c.ledgerVersion.Store(0)
			validatedLedgerVersion.Set(0)
		case transport.EventLoadWarning:
			if c.rateLimiter != nil {
				if err := c.rateLimiter.RecordLoadWarning(context.Background()); err != nil {
					c.logger.Warn().Err(err).Msg("Failed to record load warning")
				}
			}
		case transport.EventError:
			c.logger.Warn().
				Str("error_code", ev.ErrorCode).
				Str("message", ev.Message).
				Msg("Server reported error")
		}

		c.notify(ev)
	}
}

// raiseLedgerVersion stores v unless a higher version is already known.
func (c *Client) raiseLedgerVersion(v int64) {
	for {
		current := c.ledgerVersion.Load()
		if v <= current {
			return
		}
		if c.ledgerVersion.CompareAndSwap(current, v) {
			validatedLedgerVersion.Set(float64(v))
			return
		}
	}
}

func (c *Client) notify(ev transport.Event) {
	c.observersMu.RLock()
	defer c.observersMu.RUnlock()
	for _, fn := range c.observers {
		fn(ev)
	}
}
