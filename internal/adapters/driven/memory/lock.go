package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Rikshjoeriks/sales-assistant/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DistributedLock = (*Lock)(nil)

// Lock implements DistributedLock for a single process. Locks expire after
// their TTL like the Redis implementation.
type Lock struct {
	mu    sync.Mutex
	locks map[string]time.Time
	now   func() time.Time
}

// NewLock creates an in-process lock
func NewLock() *Lock {
	return &Lock{locks: make(map[string]time.Time), now: time.Now}
}

// Acquire takes the named lock unless an unexpired holder exists
func (l *Lock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if expires, held := l.locks[name]; held && now.Before(expires) {
		return false, nil
	}
	l.locks[name] = now.Add(ttl)
	return true, nil
}

// Release drops the named lock. Safe to call when the lock is not held.
func (l *Lock) Release(ctx context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.locks, name)
	return nil
}

// Extend pushes out the expiry of a held lock
func (l *Lock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if expires, held := l.locks[name]; !held || !now.Before(expires) {
		return fmt.Errorf("lock %s not held", name)
	}
	l.locks[name] = now.Add(ttl)
	return nil
}

// Ping always succeeds
func (l *Lock) Ping(ctx context.Context) error {
	return nil
}
