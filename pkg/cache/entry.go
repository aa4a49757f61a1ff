package cache

import (
	"encoding/json"
	"time"
)

// CacheEntry represents a cached response.
type CacheEntry struct {
	// Data is the JSON encoding of the response object.
	Data json.RawMessage `json:"data"`

	// LedgerIndex is the validated ledger the response belongs to.
	LedgerIndex int64 `json:"ledger_index"`

	// Expires bounds how long the entry is kept. Set uses it to cap the
	// Redis key TTL.
	Expires time.Time `json:"expires"`

	// CachedAt is when we cached this response.
	CachedAt time.Time `json:"cached_at"`
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *CacheEntry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
