package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/greengrocer/storefront/pkg/redis"
)

type mockStore struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
	err  error
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (m *mockStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = fmt.Sprint(value)
	m.ttls[key] = ttl
	return nil
}

func (m *mockStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	val, ok := m.data[key]
	if !ok {
		return "", redisclient.Nil
	}
	return val, nil
}

func (m *mockStore) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *mockStore) AccessSessionKey(accessID string) string {
	return fmt.Sprintf("sess:%s", accessID)
}

func TestManagerOpenAndRevoke(t *testing.T) {
	store := newMockStore()
	manager := &Manager{store: store, keyer: store, ttl: time.Hour}
	ctx := context.Background()
	accountID := uuid.New()

	if err := manager.Open(ctx, "access-1", accountID); err != nil {
		t.Fatalf("open: %v", err)
	}
	if store.data["sess:access-1"] != accountID.String() {
		t.Fatalf("expected account id stored, got %q", store.data["sess:access-1"])
	}
	if store.ttls["sess:access-1"] != time.Hour {
		t.Fatalf("expected ttl to match token lifetime")
	}

	ok, err := manager.HasSession(ctx, "access-1")
	if err != nil || !ok {
		t.Fatalf("expected live session, ok=%v err=%v", ok, err)
	}

	if err := manager.Revoke(ctx, "access-1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	ok, err = manager.HasSession(ctx, "access-1")
	if err != nil || ok {
		t.Fatalf("expected revoked session, ok=%v err=%v", ok, err)
	}
}

func TestManagerValidatesInput(t *testing.T) {
	store := newMockStore()
	manager := &Manager{store: store, keyer: store, ttl: time.Hour}
	ctx := context.Background()

	if err := manager.Open(ctx, " ", uuid.New()); err == nil {
		t.Fatalf("expected error for blank access id")
	}
	if err := manager.Open(ctx, "access", uuid.Nil); err == nil {
		t.Fatalf("expected error for nil account")
	}
	if _, err := manager.HasSession(ctx, ""); err == nil {
		t.Fatalf("expected error for blank access id")
	}
}

func TestManagerHasSessionPropagatesStoreErrors(t *testing.T) {
	store := newMockStore()
	store.err = errors.New("redis down")
	manager := &Manager{store: store, keyer: store, ttl: time.Hour}

	if _, err := manager.HasSession(context.Background(), "access"); err == nil {
		t.Fatalf("expected store error")
	}
}
