// Package lock serializes activity log appends across goroutines and
// processes.
package lock

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrNotHeld is returned when releasing a lock owned by someone else or
	// already expired.
	ErrNotHeld = errors.New("lock not held")

	// ErrAcquireFailed is returned when a lock could not be taken before the
	// retry budget ran out.
	ErrAcquireFailed = errors.New("failed to acquire lock")
)

// Locker runs fn while holding the lock named key.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// Mutex is an in-process Locker. One mutex per key.
type Mutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewMutex creates an in-process locker.
func NewMutex() *Mutex {
	return &Mutex{locks: make(map[string]*sync.Mutex)}
}

func (m *Mutex) get(key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	return l
}

// WithLock implements Locker.
func (m *Mutex) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l := m.get(key)
	l.Lock()
	defer l.Unlock()
	return fn(ctx)
}

// Nop is a Locker that takes no lock. Used when the store serializes appends
// by itself.
type Nop struct{}

// WithLock implements Locker.
func (Nop) WithLock(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
