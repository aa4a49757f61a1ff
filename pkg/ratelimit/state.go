// Package ratelimit tracks the load signals a rippled server sends to a
// client it is about to rate limit, and gates requests accordingly.
//
// rippled attaches `"warning": "load"` to replies when a client's resource
// usage nears its limit, and answers with the `slowDown` error once the limit
// is hit. Both are recorded in Redis so every client process talking to the
// same server through the same egress shares one view.
package ratelimit

import (
	"time"
)

// Redis key suffixes for rate limit state storage. Keys are prefixed with
// "xrpl:rate_limit:<scope>:".
const (
	RedisKeyLevel          = "level"
	RedisKeyResetTimestamp = "reset_timestamp"
	RedisKeyLastUpdate     = "last_update"
)

// Level is the load level last reported by the server.
type Level int

const (
	// LevelHealthy means no load signal is in effect.
	LevelHealthy Level = iota

	// LevelWarning follows a "load" warning: requests are throttled.
	LevelWarning

	// LevelCritical follows a slowDown error: requests are blocked.
	LevelCritical
)

// String implements fmt.Stringer.
func (l Level) String() string {
	switch l {
	case LevelHealthy:
		return "healthy"
	case LevelWarning:
		return "warning"
	case LevelCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// RateLimitState is the shared load state for one server.
type RateLimitState struct {
	// Level is the most severe signal still in effect.
	Level Level `json:"level"`

	// ResetAt is when the signal stops applying.
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when the state was last written.
	LastUpdate time.Time `json:"last_update"`
}

// IsStale returns true if the state data is older than the given duration.
func (s *RateLimitState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// active reports whether the recorded signal still applies.
func (s *RateLimitState) active() bool {
	return time.Now().Before(s.ResetAt)
}

// NeedsCriticalBlock returns true while a slowDown signal applies.
func (s *RateLimitState) NeedsCriticalBlock() bool {
	return s.Level == LevelCritical && s.active()
}

// NeedsThrottling returns true while a load warning applies.
func (s *RateLimitState) NeedsThrottling() bool {
	return s.Level == LevelWarning && s.active()
}

// IsHealthy returns true when no signal applies.
func (s *RateLimitState) IsHealthy() bool {
	return !s.NeedsCriticalBlock() && !s.NeedsThrottling()
}

// TimeUntilReset returns the duration until the signal expires.
// Returns 0 if the reset time has already passed.
func (s *RateLimitState) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}
