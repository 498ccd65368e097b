package ctxsync

import (
	"context"
	"sync/atomic"
)

// RWMutex is a reader/writer lock. Readers share it, a writer holds it alone.
// A waiting writer blocks new readers, so writers are not starved. The zero
// value is not usable, see [NewRWMutex].
type RWMutex struct {
	w       *Mutex
	readers atomic.Int64
	drained chan struct{}
}

// NewRWMutex creates an unlocked [RWMutex].
func NewRWMutex() *RWMutex {
	return &RWMutex{
		w:       NewMutex(),
		drained: make(chan struct{}, 1),
	}
}

// RLockWithContext locks m for reading.
func (m *RWMutex) RLockWithContext(ctx context.Context) error {
	if err := m.w.LockWithContext(ctx); err != nil {
		return err
	}
	m.readers.Add(1)
	m.w.Unlock()
	return nil
}

// RUnlock undoes a single RLockWithContext call. It panics if m is not locked
// for reading.
func (m *RWMutex) RUnlock() {
	switch n := m.readers.Add(-1); {
	case n < 0:
		panic("ctxsync: runlock of unlocked rwmutex")
	case n == 0:
		select {
		case m.drained <- struct{}{}:
		default:
		}
	}
}

// LockWithContext locks m for writing, waiting for current readers to leave.
func (m *RWMutex) LockWithContext(ctx context.Context) error {
	if err := m.w.LockWithContext(ctx); err != nil {
		return err
	}
	for m.readers.Load() > 0 {
		select {
		case <-ctx.Done():
			m.w.Unlock()
			return ctx.Err()
		case <-m.drained:
		}
	}
	return nil
}

// Unlock unlocks m for writing.
func (m *RWMutex) Unlock() {
	m.w.Unlock()
}
