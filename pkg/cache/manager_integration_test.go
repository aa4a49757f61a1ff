//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/Sternrassler/xrpl-client/pkg/transport"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedisContainer(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	t.Cleanup(func() {
		client.Close()
		container.Terminate(context.Background())
	})

	return client
}

func TestManager_Integration_PinnedResponse(t *testing.T) {
	client := setupRedisContainer(t)
	manager := NewManager(client, time.Minute)
	ctx := context.Background()

	key := CacheKey{
		Command:     "account_info",
		LedgerIndex: 80000000,
		Params:      map[string]any{"account": "rN7n7otQDd6FczFgLdSqtcsAUxDkw6fzRH"},
	}
	resp := transport.Response{"ledger_index": float64(80000000), "validated": true}

	entry, err := ResponseToEntry(resp, key.LedgerIndex, manager.TTL())
	if err != nil {
		t.Fatalf("ResponseToEntry failed: %v", err)
	}
	if err := manager.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	ttl, err := client.TTL(ctx, key.String()).Result()
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("redis TTL = %v, want (0, 1m]", ttl)
	}

	got, err := manager.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	decoded, err := EntryToResponse(got)
	if err != nil {
		t.Fatalf("EntryToResponse failed: %v", err)
	}
	if decoded["validated"] != true {
		t.Errorf("decoded response = %v", decoded)
	}
}
