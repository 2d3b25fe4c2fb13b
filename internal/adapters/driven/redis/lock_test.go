package redis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestNewLock(t *testing.T) {
	_, client := setupTestRedis(t)

	a := NewLock(client, "")
	b := NewLock(client, "")

	if a.prefix != DefaultLockPrefix {
		t.Errorf("expected default prefix, got %q", a.prefix)
	}
	if a.Owner() == "" {
		t.Error("expected non-empty owner")
	}
	if a.Owner() == b.Owner() {
		t.Errorf("expected distinct owners, both %q", a.Owner())
	}
}

func TestLock_AcquireIsExclusive(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	holder := NewLock(client, "")
	other := NewLock(client, "")

	acquired, err := holder.Acquire(ctx, "ingest:src-1", 10*time.Second)
	if err != nil || !acquired {
		t.Fatalf("first acquire = %v, %v", acquired, err)
	}

	if acquired, _ := other.Acquire(ctx, "ingest:src-1", 10*time.Second); acquired {
		t.Error("expected second owner to be refused")
	}
	if acquired, _ := holder.Acquire(ctx, "ingest:src-1", 10*time.Second); acquired {
		t.Error("expected re-acquire by the holder to be refused")
	}
	if acquired, _ := other.Acquire(ctx, "ingest:src-2", 10*time.Second); !acquired {
		t.Error("expected a different name to be free")
	}

	got, err := mr.Get(DefaultLockPrefix + "ingest:src-1")
	if err != nil {
		t.Fatalf("lock key missing: %v", err)
	}
	if got != holder.Owner() {
		t.Errorf("lock value = %q, want owner %q", got, holder.Owner())
	}
}

func TestLock_Release(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()

	holder := NewLock(client, "")
	other := NewLock(client, "")

	if _, err := holder.Acquire(ctx, "k", 10*time.Second); err != nil {
		t.Fatal(err)
	}

	// Releasing someone else's lock is a silent no-op
	if err := other.Release(ctx, "k"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acquired, _ := other.Acquire(ctx, "k", 10*time.Second); acquired {
		t.Fatal("lock was released by a non-owner")
	}

	if err := holder.Release(ctx, "k"); err != nil {
		t.Fatalf("unexpected error on release: %v", err)
	}
	if acquired, _ := other.Acquire(ctx, "k", 10*time.Second); !acquired {
		t.Error("expected lock to be free after release")
	}

	if err := holder.Release(ctx, "never-held"); err != nil {
		t.Errorf("unexpected error releasing unheld lock: %v", err)
	}
}

func TestLock_TTLExpiry(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	holder := NewLock(client, "")
	other := NewLock(client, "")

	if _, err := holder.Acquire(ctx, "k", time.Second); err != nil {
		t.Fatal(err)
	}
	mr.FastForward(2 * time.Second)

	if acquired, _ := other.Acquire(ctx, "k", time.Second); !acquired {
		t.Error("expected expired lock to be acquirable")
	}
	if err := holder.Extend(ctx, "k", time.Second); !errors.Is(err, ErrLockNotHeld) {
		t.Errorf("expected ErrLockNotHeld after expiry, got %v", err)
	}
}

func TestLock_Extend(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	holder := NewLock(client, "")
	other := NewLock(client, "")

	if _, err := holder.Acquire(ctx, "k", time.Second); err != nil {
		t.Fatal(err)
	}
	if err := holder.Extend(ctx, "k", time.Minute); err != nil {
		t.Fatalf("unexpected error on extend: %v", err)
	}
	if ttl := mr.TTL(DefaultLockPrefix + "k"); ttl <= time.Second {
		t.Errorf("expected extended TTL, got %v", ttl)
	}

	if err := other.Extend(ctx, "k", time.Minute); !errors.Is(err, ErrLockNotHeld) {
		t.Errorf("expected ErrLockNotHeld for non-owner, got %v", err)
	}
	if err := holder.Extend(ctx, "missing", time.Minute); err == nil {
		t.Error("expected error when extending unheld lock")
	}
}

func TestLock_CustomPrefix(t *testing.T) {
	mr, client := setupTestRedis(t)

	lock := NewLock(client, "tenant-a:lock:")
	if _, err := lock.Acquire(context.Background(), "k", time.Second); err != nil {
		t.Fatal(err)
	}
	for _, key := range mr.Keys() {
		if !strings.HasPrefix(key, "tenant-a:lock:") {
			t.Errorf("unexpected key %q", key)
		}
	}
}

func TestLock_Ping(t *testing.T) {
	mr, client := setupTestRedis(t)
	lock := NewLock(client, "")

	if err := lock.Ping(context.Background()); err != nil {
		t.Errorf("unexpected ping error: %v", err)
	}
	mr.Close()
	if err := lock.Ping(context.Background()); err == nil {
		t.Error("expected ping error after server close")
	}
}
