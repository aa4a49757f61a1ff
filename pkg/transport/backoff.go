package transport

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for dial retries.
var (
	dialRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "xrpl_transport_dial_retries_total",
		Help: "Total number of dial retry attempts",
	})

	dialBackoffSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "xrpl_transport_dial_backoff_seconds",
		Help:    "Backoff duration between dial attempts",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})

	dialExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "xrpl_transport_dial_exhausted_total",
		Help: "Total number of times dial attempts were exhausted",
	})
)

// BackoffConfig holds the configuration for dial retries.
type BackoffConfig struct {
	// MaxAttempts is the maximum number of dial attempts (including the first).
	MaxAttempts int

	// InitialBackoff is the initial backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff time.Duration

	// Multiplier is the multiplier for exponential backoff.
	Multiplier float64
}

// DefaultBackoffConfig returns the default dial retry configuration.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		MaxAttempts:    5,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2.0,
	}
}

// nextBackoff returns the next backoff duration, capped at MaxBackoff.
func (c BackoffConfig) nextBackoff(current time.Duration) time.Duration {
	next := time.Duration(float64(current) * c.Multiplier)
	if next > c.MaxBackoff {
		return c.MaxBackoff
	}
	return next
}

// retryWithBackoff runs fn until it succeeds, the attempts are exhausted or
// ctx is done. Waits carry ±20% jitter.
func retryWithBackoff(ctx context.Context, cfg BackoffConfig, logger zerolog.Logger, fn func(context.Context) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	backoff := cfg.InitialBackoff

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info().Int("attempt", attempt).Msg("Dial succeeded after retry")
			}
			return nil
		}
		lastErr = err

		if attempt >= cfg.MaxAttempts {
			break
		}

		dialRetriesTotal.Inc()

		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		dialBackoffSeconds.Observe(jitter.Seconds())

		logger.Debug().
			Err(err).
			Int("attempt", attempt).
			Dur("backoff", jitter).
			Msg("Retrying dial after backoff")

		timer := time.NewTimer(jitter)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("dial cancelled after %d attempts: %w", attempt, ctx.Err())
		case <-timer.C:
		}

		backoff = cfg.nextBackoff(backoff)
	}

	dialExhaustedTotal.Inc()
	logger.Warn().Int("max_attempts", cfg.MaxAttempts).Msg("Dial attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %v", ErrDialExhausted, cfg.MaxAttempts, lastErr)
}
