package budget

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/quotedex/internal/db"
)

// mockKVStore implements the consumer interface for tests.
type mockKVStore struct {
	getFn    func(ctx context.Context, key string) ([]byte, error)
	incrByFn func(ctx context.Context, key string, val int64) error
	expireFn func(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

func (m *mockKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockKVStore) IncrBy(ctx context.Context, key string, val int64) error {
	if m.incrByFn != nil {
		return m.incrByFn(ctx, key, val)
	}
	return nil
}

func (m *mockKVStore) Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error {
	if m.expireFn != nil {
		return m.expireFn(ctx, key, ttl, nx)
	}
	return nil
}

func newTestStore(t *testing.T) (*Store, *mockKVStore) {
	t.Helper()
	ms := &mockKVStore{}
	return New(ms, 48*time.Hour, 62*24*time.Hour), ms
}

func TestIncrBy_DailyKeyTTL(t *testing.T) {
	s, ms := newTestStore(t)
	ctx := context.Background()

	var incrKey string
	var incrVal int64
	ms.incrByFn = func(_ context.Context, key string, val int64) error {
		incrKey = key
		incrVal = val
		return nil
	}

	var gotTTL time.Duration
	var gotNX bool
	ms.expireFn = func(_ context.Context, _ string, ttl time.Duration, nx bool) error {
		gotTTL = ttl
		gotNX = nx
		return nil
	}

	key := "quotedex:budget:openai:daily:2026-08-21"
	if err := s.IncrBy(ctx, key, 120); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if incrKey != key || incrVal != 120 {
		t.Errorf("unexpected INCRBY args: %s %d", incrKey, incrVal)
	}
	if gotTTL != 48*time.Hour {
		t.Errorf("expected daily TTL 48h, got %v", gotTTL)
	}
	if !gotNX {
		t.Error("expected EXPIRE NX so a living key keeps its deadline")
	}
}

func TestIncrBy_MonthlyKeyTTL(t *testing.T) {
	s, ms := newTestStore(t)
	ctx := context.Background()

	var gotTTL time.Duration
	ms.expireFn = func(_ context.Context, _ string, ttl time.Duration, _ bool) error {
		gotTTL = ttl
		return nil
	}

	if err := s.IncrBy(ctx, "quotedex:budget:openai:monthly:2026-08", 50); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotTTL != 62*24*time.Hour {
		t.Errorf("expected monthly TTL 62d, got %v", gotTTL)
	}
}

func TestIncrBy_IncrError(t *testing.T) {
	s, ms := newTestStore(t)
	ctx := context.Background()

	ms.incrByFn = func(_ context.Context, _ string, _ int64) error {
		return errors.New("write failed")
	}
	ms.expireFn = func(_ context.Context, _ string, _ time.Duration, _ bool) error {
		t.Error("expected no EXPIRE after INCRBY failure")
		return nil
	}

	if err := s.IncrBy(ctx, "quotedex:budget:openai:daily:2026-08-21", 1); err == nil {
		t.Fatal("expected error on INCRBY failure")
	}
}

func TestIncrBy_ExpireError(t *testing.T) {
	s, ms := newTestStore(t)
	ctx := context.Background()

	ms.expireFn = func(_ context.Context, _ string, _ time.Duration, _ bool) error {
		return errors.New("expire failed")
	}

	if err := s.IncrBy(ctx, "quotedex:budget:openai:daily:2026-08-21", 1); err == nil {
		t.Fatal("expected error on EXPIRE failure")
	}
}

func TestGet_Value(t *testing.T) {
	s, ms := newTestStore(t)
	ctx := context.Background()

	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return []byte("4321"), nil
	}

	val, err := s.Get(ctx, "quotedex:budget:openai:daily:2026-08-21")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != 4321 {
		t.Fatalf("expected 4321, got %d", val)
	}
}

func TestGet_MissingKeyIsZero(t *testing.T) {
	s, ms := newTestStore(t)
	ctx := context.Background()

	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return nil, db.ErrKeyNotFound
	}

	val, err := s.Get(ctx, "quotedex:budget:openai:daily:2026-08-21")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != 0 {
		t.Fatalf("expected 0 for missing key, got %d", val)
	}
}

func TestGet_ParseError(t *testing.T) {
	s, ms := newTestStore(t)
	ctx := context.Background()

	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return []byte("not a number"), nil
	}

	if _, err := s.Get(ctx, "quotedex:budget:openai:daily:2026-08-21"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestGet_StoreError(t *testing.T) {
	s, ms := newTestStore(t)
	ctx := context.Background()

	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return nil, errors.New("timeout")
	}

	if _, err := s.Get(ctx, "quotedex:budget:openai:daily:2026-08-21"); err == nil {
		t.Fatal("expected error on GET failure")
	}
}
