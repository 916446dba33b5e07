package payments

import (
	"context"
	"testing"
	"time"
)

type memoryStore struct {
	keys map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{keys: map[string]string{}}
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	return m.keys[key], nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = "1"
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "samaki:idempotency:" + scope + ":" + id
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.keys, key)
	}
	return nil
}

func TestIdempotencyGuardFirstDeliveryWins(t *testing.T) {
	t.Parallel()

	guard, err := NewIdempotencyGuard(newMemoryStore(), time.Hour, "mpesa_callback")
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}
	ctx := context.Background()

	seen, err := guard.CheckAndMark(ctx, "ws_CO_1")
	if err != nil {
		t.Fatalf("first check: %v", err)
	}
	if seen {
		t.Fatal("first delivery reported as duplicate")
	}

	seen, err = guard.CheckAndMark(ctx, "ws_CO_1")
	if err != nil {
		t.Fatalf("second check: %v", err)
	}
	if !seen {
		t.Fatal("replay not detected")
	}
}

func TestIdempotencyGuardDeleteAllowsRetry(t *testing.T) {
	t.Parallel()

	guard, err := NewIdempotencyGuard(newMemoryStore(), time.Hour, "mpesa_callback")
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}
	ctx := context.Background()

	if _, err := guard.CheckAndMark(ctx, "ws_CO_2"); err != nil {
		t.Fatalf("check: %v", err)
	}
	if err := guard.Delete(ctx, "ws_CO_2"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	seen, err := guard.CheckAndMark(ctx, "ws_CO_2")
	if err != nil {
		t.Fatalf("retry check: %v", err)
	}
	if seen {
		t.Fatal("deleted claim still reported as duplicate")
	}
}
