// Package cache stores rippled responses that are pinned to a concrete,
// already validated ledger index, using Redis as the backend.
//
// A validated ledger never changes, so the answer to a query such as
// account_info at ledger 80000000 is immutable. Queries against "validated"
// or "current" move with the chain and are never cached; the client only
// consults this package for requests carrying an integer ledger_index that
// passed the version guard.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	manager := cache.NewManager(redisClient, 10*time.Minute)
//
//	key := cache.CacheKey{
//		Command:     "account_info",
//		LedgerIndex: 80000000,
//		Params:      map[string]any{"account": "rN7n7otQDd6FczFgLdSqtcsAUxDkw6fzRH"},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the server, then:
//		entry, _ = cache.ResponseToEntry(resp, key.LedgerIndex, manager.TTL())
//		_ = manager.Set(ctx, key, entry)
//	}
//
// # Metrics
//
//   - xrpl_cache_hits_total{layer="redis"}
//   - xrpl_cache_misses_total
//   - xrpl_cache_size_bytes{layer="redis"}
//   - xrpl_cache_errors_total{operation}
package cache
