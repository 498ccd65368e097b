// Package ctxsync contains locks whose acquisition can be abandoned when a
// [context.Context] is done.
package ctxsync

import (
	"context"
)

// Mutex is a mutual exclusion lock. Waiters acquire it in the order they
// started waiting. The zero value is not usable, see [NewMutex].
type Mutex struct {
	held chan struct{}
}

// NewMutex creates an unlocked [Mutex].
func NewMutex() *Mutex {
	return &Mutex{held: make(chan struct{}, 1)}
}

// Lock locks m, waiting as long as needed.
func (m *Mutex) Lock() {
	_ = m.LockWithContext(context.Background())
}

// LockWithContext locks m or returns the context error if ctx is done first.
// An already done context never acquires the lock.
func (m *Mutex) LockWithContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case m.held <- struct{}{}:
		return nil
	}
}

// TryLock locks m if it is free and reports whether it did.
func (m *Mutex) TryLock() bool {
	select {
	case m.held <- struct{}{}:
		return true
	default:
		return false
	}
}

// Unlock unlocks m. It panics if m is not locked.
func (m *Mutex) Unlock() {
	select {
	case <-m.held:
	default:
		panic("ctxsync: unlock of unlocked mutex")
	}
}
