package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limit tracking.
var (
	loadLevel = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "xrpl_load_level",
		Help: "Last recorded server load level (0 healthy, 1 warning, 2 critical)",
	})

	rateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "xrpl_rate_limit_blocks_total",
		Help: "Total number of requests blocked after a slowDown error",
	})

	rateLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "xrpl_rate_limit_throttles_total",
		Help: "Total number of requests throttled after a load warning",
	})
)

// ErrBlocked is returned by callers that refuse a request because the
// server answered slowDown recently.
var ErrBlocked = errors.New("request blocked: server reported slowDown")

// Config holds the tracker windows.
type Config struct {
	// WarningWindow is how long a load warning throttles requests.
	WarningWindow time.Duration

	// SlowDownWindow is how long a slowDown error blocks requests.
	SlowDownWindow time.Duration

	// ThrottleDelay is the pause applied to each request while throttled.
	ThrottleDelay time.Duration
}

// DefaultConfig returns the default tracker windows.
func DefaultConfig() Config {
	return Config{
		WarningWindow:  30 * time.Second,
		SlowDownWindow: 10 * time.Second,
		ThrottleDelay:  1 * time.Second,
	}
}

// Tracker records server load signals and gates requests.
type Tracker struct {
	redis  *redis.Client
	prefix string
	config Config
	logger zerolog.Logger
}

// NewTracker creates a tracker whose state is namespaced by scope,
// typically the server URL.
func NewTracker(redisClient *redis.Client, scope string, config Config, logger zerolog.Logger) *Tracker {
	if config.WarningWindow <= 0 {
		config.WarningWindow = 30 * time.Second
	}
	if config.SlowDownWindow <= 0 {
		config.SlowDownWindow = 10 * time.Second
	}
	return &Tracker{
		redis:  redisClient,
		prefix: "xrpl:rate_limit:" + scope + ":",
		config: config,
		logger: logger,
	}
}

func (t *Tracker) key(suffix string) string {
	return t.prefix + suffix
}

// GetState retrieves the current state from Redis.
// Returns a healthy state if nothing was recorded.
func (t *Tracker) GetState(ctx context.Context) (*RateLimitState, error) {
	level, err := t.redis.Get(ctx, t.key(RedisKeyLevel)).Int()
	if errors.Is(err, redis.Nil) {
		return &RateLimitState{Level: LevelHealthy, LastUpdate: time.Now()}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get load level: %w", err)
	}

	resetTimestamp, err := t.redis.Get(ctx, t.key(RedisKeyResetTimestamp)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get reset timestamp: %w", err)
	}

	lastUpdate, err := t.redis.Get(ctx, t.key(RedisKeyLastUpdate)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get last update: %w", err)
	}

	return &RateLimitState{
		Level:      Level(level),
		ResetAt:    time.UnixMilli(resetTimestamp),
		LastUpdate: time.UnixMilli(lastUpdate),
	}, nil
}

// RecordLoadWarning records a "load" warning.
func (t *Tracker) RecordLoadWarning(ctx context.Context) error {
	return t.record(ctx, LevelWarning, t.config.WarningWindow)
}

// RecordSlowDown records a slowDown error.
func (t *Tracker) RecordSlowDown(ctx context.Context) error {
	return t.record(ctx, LevelCritical, t.config.SlowDownWindow)
}

func (t *Tracker) record(ctx context.Context, level Level, window time.Duration) error {
	current, err := t.GetState(ctx)
	if err != nil {
		return err
	}
	// A warning never downgrades an active critical signal.
	if current.NeedsCriticalBlock() && level < LevelCritical {
		return nil
	}

	now := time.Now()
	state := &RateLimitState{
		Level:      level,
		ResetAt:    now.Add(window),
		LastUpdate: now,
	}

	pipe := t.redis.Pipeline()
	pipe.Set(ctx, t.key(RedisKeyLevel), int(level), window)
	pipe.Set(ctx, t.key(RedisKeyResetTimestamp), state.ResetAt.UnixMilli(), window)
	pipe.Set(ctx, t.key(RedisKeyLastUpdate), state.LastUpdate.UnixMilli(), window)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store load state in redis: %w", err)
	}

	loadLevel.Set(float64(level))

	if level == LevelCritical {
		t.logger.Error().
			Time("reset_at", state.ResetAt).
			Msg("Server reported slowDown - requests will be blocked")
	} else {
		t.logger.Warn().
			Time("reset_at", state.ResetAt).
			Msg("Server load warning - requests will be throttled")
	}

	return nil
}

// ShouldAllowRequest reports whether a request may be sent now.
// Returns false while a slowDown signal applies. While a load warning
// applies it waits ThrottleDelay (or until ctx is done) and returns true.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get load state: %w", err)
	}

	if state.NeedsCriticalBlock() {
		t.logger.Error().
			Dur("wait_duration", state.TimeUntilReset()).
			Msg("Server slowDown in effect - blocking request")
		rateLimitBlocksTotal.Inc()
		return false, nil
	}

	if state.NeedsThrottling() && t.config.ThrottleDelay > 0 {
		t.logger.Warn().Msg("Server load warning in effect - throttling request")
		rateLimitThrottlesTotal.Inc()

		timer := time.NewTimer(t.config.ThrottleDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timer.C:
		}
	}

	return true, nil
}
