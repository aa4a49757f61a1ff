package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// setupTestRedis connects to a local Redis on DB 15 and skips the test when
// none is running. The integration build uses a container instead.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestNewManager(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	manager := NewManager(client, 0)
	if manager.redis != client {
		t.Error("Manager redis client not set correctly")
	}
	if manager.TTL() != DefaultTTL {
		t.Errorf("TTL() = %v, want %v", manager.TTL(), DefaultTTL)
	}
}

func TestNewManager_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewManager should panic with nil redis client")
		}
	}()
	NewManager(nil, time.Minute)
}

func TestManager_SetAndGet(t *testing.T) {
	manager := NewManager(setupTestRedis(t), time.Minute)
	ctx := context.Background()

	key := CacheKey{
		Command:     "account_info",
		LedgerIndex: 80000000,
		Params:      map[string]any{"account": "rN7n7otQDd6FczFgLdSqtcsAUxDkw6fzRH"},
	}
	entry := &CacheEntry{
		Data:        json.RawMessage(`{"ledger_index":80000000}`),
		LedgerIndex: 80000000,
		Expires:     time.Now().Add(5 * time.Minute),
		CachedAt:    time.Now(),
	}

	if err := manager.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := manager.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got.Data) != string(entry.Data) {
		t.Errorf("Data mismatch: got %s, want %s", got.Data, entry.Data)
	}
	if got.LedgerIndex != entry.LedgerIndex {
		t.Errorf("LedgerIndex mismatch: got %d, want %d", got.LedgerIndex, entry.LedgerIndex)
	}
}

func TestManager_Get_CacheMiss(t *testing.T) {
	manager := NewManager(setupTestRedis(t), time.Minute)

	_, err := manager.Get(context.Background(), CacheKey{Command: "ledger", LedgerIndex: 1})
	if err != ErrCacheMiss {
		t.Errorf("Expected ErrCacheMiss, got %v", err)
	}
}

func TestManager_Set_ExpiredEntrySkipped(t *testing.T) {
	manager := NewManager(setupTestRedis(t), time.Minute)
	ctx := context.Background()
	key := CacheKey{Command: "ledger", LedgerIndex: 2}

	entry := &CacheEntry{
		Data:        json.RawMessage(`{}`),
		LedgerIndex: 2,
		Expires:     time.Now().Add(-time.Hour),
	}
	if err := manager.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if _, err := manager.Get(ctx, key); err != ErrCacheMiss {
		t.Errorf("Expected ErrCacheMiss for expired entry, got %v", err)
	}
}

func TestManager_Delete(t *testing.T) {
	manager := NewManager(setupTestRedis(t), time.Minute)
	ctx := context.Background()
	key := CacheKey{Command: "ledger", LedgerIndex: 3}

	entry := &CacheEntry{
		Data:        json.RawMessage(`{}`),
		LedgerIndex: 3,
		Expires:     time.Now().Add(5 * time.Minute),
	}
	if err := manager.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := manager.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := manager.Get(ctx, key); err != ErrCacheMiss {
		t.Errorf("Expected ErrCacheMiss after Delete, got %v", err)
	}
}

func TestManager_Set_Nil(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	if err := NewManager(client, time.Minute).Set(context.Background(), CacheKey{}, nil); err == nil {
		t.Error("Set(nil) should fail")
	}
}

func TestManager_Get_LedgerMismatchIsMiss(t *testing.T) {
	client := setupTestRedis(t)
	manager := NewManager(client, time.Minute)
	ctx := context.Background()
	key := CacheKey{Command: "account_info", LedgerIndex: 90000000}

	// An entry recorded for another ledger under this key.
	stale, err := json.Marshal(&CacheEntry{
		Data:        json.RawMessage(`{"ledger_index":89999999}`),
		LedgerIndex: 89999999,
		Expires:     time.Now().Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := client.Set(ctx, key.String(), stale, time.Minute).Err(); err != nil {
		t.Fatalf("redis set: %v", err)
	}

	if _, err := manager.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Expected ErrCacheMiss for mismatched ledger, got %v", err)
	}

	n, err := client.Exists(ctx, key.String()).Result()
	if err != nil {
		t.Fatalf("redis exists: %v", err)
	}
	if n != 0 {
		t.Error("mismatched entry should be removed")
	}
}

func TestManager_Set_LedgerMismatch(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	entry := &CacheEntry{
		Data:        json.RawMessage(`{}`),
		LedgerIndex: 10,
		Expires:     time.Now().Add(time.Minute),
	}
	err := NewManager(client, time.Minute).Set(context.Background(), CacheKey{Command: "ledger", LedgerIndex: 11}, entry)
	if !errors.Is(err, ErrLedgerMismatch) {
		t.Errorf("Expected ErrLedgerMismatch, got %v", err)
	}
}

func TestManager_Set_FirstWriteWins(t *testing.T) {
	manager := NewManager(setupTestRedis(t), time.Minute)
	ctx := context.Background()
	key := CacheKey{Command: "ledger", LedgerIndex: 4}

	for _, data := range []string{`{"n":1}`, `{"n":2}`} {
		entry := &CacheEntry{
			Data:        json.RawMessage(data),
			LedgerIndex: 4,
			Expires:     time.Now().Add(time.Minute),
		}
		if err := manager.Set(ctx, key, entry); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	got, err := manager.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got.Data) != `{"n":1}` {
		t.Errorf("Data = %s, want the first stored entry", got.Data)
	}
}
