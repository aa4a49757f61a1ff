package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss means no usable entry is stored for the key.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry means a stored entry could not be decoded.
	ErrInvalidEntry = errors.New("invalid cache entry")

	// ErrLedgerMismatch means an entry was offered for a key pinned to a
	// different ledger.
	ErrLedgerMismatch = errors.New("cache entry ledger does not match key")
)

// Manager stores responses pinned to a validated ledger in Redis.
//
// A response pinned to a validated ledger never changes, so the first
// stored entry for a key is kept and later writes for the same key are
// no-ops. Retention is left to the Redis key TTL.
type Manager struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewManager creates a manager whose entries are kept for ttl (DefaultTTL
// when ttl <= 0).
func NewManager(redisClient *redis.Client, ttl time.Duration) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{redis: redisClient, ttl: ttl}
}

// TTL returns the retention applied to new entries.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Get returns the entry stored for key. An entry recorded for another
// ledger than key.LedgerIndex is dropped and reported as ErrCacheMiss.
func (m *Manager) Get(ctx context.Context, key CacheKey) (*CacheEntry, error) {
	data, err := m.redis.Get(ctx, key.String()).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	case err != nil:
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get %s: %w", key.Command, err)
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if entry.LedgerIndex != key.LedgerIndex {
		CacheErrors.WithLabelValues("ledger_mismatch").Inc()
		CacheMisses.Inc()
		_ = m.Delete(ctx, key)
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues("redis").Inc()
	return &entry, nil
}

// Set stores entry under key unless an entry is already present. Entries
// that are already expired are not stored.
func (m *Manager) Set(ctx context.Context, key CacheKey, entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}
	if entry.LedgerIndex != key.LedgerIndex {
		return fmt.Errorf("%w: entry %d, key %d", ErrLedgerMismatch, entry.LedgerIndex, key.LedgerIndex)
	}

	ttl := min(entry.TTL(), m.ttl)
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	stored, err := m.redis.SetNX(ctx, key.String(), data, ttl).Result()
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis setnx %s: %w", key.Command, err)
	}
	if stored {
		CacheSize.WithLabelValues("redis").Add(float64(len(data)))
	}
	return nil
}

// Delete removes the entry stored for key.
func (m *Manager) Delete(ctx context.Context, key CacheKey) error {
	if err := m.redis.Del(ctx, key.String()).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del %s: %w", key.Command, err)
	}
	return nil
}
