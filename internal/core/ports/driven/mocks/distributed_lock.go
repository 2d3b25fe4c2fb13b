package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Rikshjoeriks/sales-assistant/internal/core/ports/driven"
)

var _ driven.DistributedLock = (*MockDistributedLock)(nil)

// lease is one named lock as the mock sees it
type lease struct {
	until    time.Time
	acquires int
}

func (l *lease) live(now time.Time) bool {
	return now.Before(l.until)
}

// MockDistributedLock keeps leases in memory and counts Acquire calls per
// name. AcquireFn, ReleaseFn and PingFn replace the default behaviour.
type MockDistributedLock struct {
	mu     sync.Mutex
	leases map[string]*lease

	AcquireFn func(name string, ttl time.Duration) (bool, error)
	ReleaseFn func(name string) error
	PingFn    func() error
}

func NewMockDistributedLock() *MockDistributedLock {
	return &MockDistributedLock{leases: make(map[string]*lease)}
}

// get returns the lease for name, creating an expired one. Callers hold mu.
func (m *MockDistributedLock) get(name string) *lease {
	l, ok := m.leases[name]
	if !ok {
		l = &lease{}
		m.leases[name] = l
	}
	return l
}

func (m *MockDistributedLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	l := m.get(name)
	l.acquires++
	hook := m.AcquireFn
	if hook == nil {
		defer m.mu.Unlock()
		now := time.Now()
		if l.live(now) {
			return false, nil
		}
		l.until = now.Add(ttl)
		return true, nil
	}
	m.mu.Unlock()
	return hook(name, ttl)
}

func (m *MockDistributedLock) Release(ctx context.Context, name string) error {
	if m.ReleaseFn != nil {
		return m.ReleaseFn(name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.leases[name]; ok {
		l.until = time.Time{}
	}
	return nil
}

func (m *MockDistributedLock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	l, ok := m.leases[name]
	if !ok || !l.live(now) {
		return fmt.Errorf("lease %s not held", name)
	}
	l.until = now.Add(ttl)
	return nil
}

func (m *MockDistributedLock) Ping(ctx context.Context) error {
	if m.PingFn != nil {
		return m.PingFn()
	}
	return nil
}

// IsHeld reports whether name has a live lease
func (m *MockDistributedLock) IsHeld(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leases[name]
	return ok && l.live(time.Now())
}

// Hold simulates another process holding name for ttl
func (m *MockDistributedLock) Hold(name string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.get(name).until = time.Now().Add(ttl)
}

// Attempts counts Acquire calls for name, including refused ones
func (m *MockDistributedLock) Attempts(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.leases[name]; ok {
		return l.acquires
	}
	return 0
}
