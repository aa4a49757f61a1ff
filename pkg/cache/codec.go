package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Sternrassler/xrpl-client/pkg/transport"
)

// DefaultTTL is how long pinned responses are kept when no TTL is configured.
const DefaultTTL = 10 * time.Minute

// ResponseToEntry converts a response into a cache entry expiring after ttl.
func ResponseToEntry(resp transport.Response, ledgerIndex int64, ttl time.Duration) (*CacheEntry, error) {
	if resp == nil {
		return nil, fmt.Errorf("response cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("marshal response: %w", err)
	}

	now := time.Now()
	return &CacheEntry{
		Data:        data,
		LedgerIndex: ledgerIndex,
		Expires:     now.Add(ttl),
		CachedAt:    now,
	}, nil
}

// EntryToResponse decodes a cache entry back into a response.
func EntryToResponse(entry *CacheEntry) (transport.Response, error) {
	if entry == nil {
		return nil, fmt.Errorf("cache entry cannot be nil")
	}
	var resp transport.Response
	if err := json.Unmarshal(entry.Data, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return resp, nil
}
