package ctxsync_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/vinicius-lino-figueiredo/docengine/pkg/ctxsync"
)

type MutexTestSuite struct {
	suite.Suite
	mu *ctxsync.Mutex
}

func (s *MutexTestSuite) SetupTest() {
	s.mu = ctxsync.NewMutex()
}

// Multiple goroutines should not be able to acquire the same lock.
func (s *MutexTestSuite) TestExclusive() {
	const workers = 500
	n := 0
	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			s.mu.Lock()
			defer s.mu.Unlock()
			n++
		}()
	}
	wg.Wait()
	s.Equal(workers, n)
}

// Should return the context error when it is done before the lock is free.
func (s *MutexTestSuite) TestCanceling() {
	s.mu.Lock()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	s.ErrorIs(s.mu.LockWithContext(ctx), context.DeadlineExceeded)

	// the abandoned attempt does not hold the lock
	s.mu.Unlock()
	s.True(s.mu.TryLock())
	s.mu.Unlock()
}

// Should not acquire a free lock with a context that is already done.
func (s *MutexTestSuite) TestCanceledContext() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.ErrorIs(s.mu.LockWithContext(ctx), context.Canceled)
	s.True(s.mu.TryLock())
}

func (s *MutexTestSuite) TestTryLock() {
	s.True(s.mu.TryLock())
	s.False(s.mu.TryLock())
	s.mu.Unlock()
	s.True(s.mu.TryLock())
}

func (s *MutexTestSuite) TestUnlockUnlocked() {
	s.Panics(func() { s.mu.Unlock() })
	s.mu.Lock()
	s.mu.Unlock()
	s.Panics(func() { s.mu.Unlock() })
}

func TestMutexTestSuite(t *testing.T) {
	suite.Run(t, new(MutexTestSuite))
}

type RWMutexTestSuite struct {
	suite.Suite
	mu  *ctxsync.RWMutex
	ctx context.Context
}

func (s *RWMutexTestSuite) SetupTest() {
	s.mu = ctxsync.NewRWMutex()
	s.ctx = context.Background()
}

// Readers do not block each other.
func (s *RWMutexTestSuite) TestSharedReaders() {
	s.Require().NoError(s.mu.RLockWithContext(s.ctx))
	s.Require().NoError(s.mu.RLockWithContext(s.ctx))
	s.mu.RUnlock()
	s.mu.RUnlock()
}

// A writer waits until every reader leaves.
func (s *RWMutexTestSuite) TestWriterWaitsForReaders() {
	s.Require().NoError(s.mu.RLockWithContext(s.ctx))

	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Millisecond)
	defer cancel()
	s.ErrorIs(s.mu.LockWithContext(ctx), context.DeadlineExceeded)

	locked := make(chan struct{})
	go func() {
		_ = s.mu.LockWithContext(s.ctx)
		close(locked)
	}()

	select {
	case <-locked:
		s.Fail("writer acquired lock held by reader")
	case <-time.After(5 * time.Millisecond):
	}

	s.mu.RUnlock()
	<-locked
	s.mu.Unlock()
}

// A reader waits for the writer and can give up.
func (s *RWMutexTestSuite) TestReaderWaitsForWriter() {
	s.Require().NoError(s.mu.LockWithContext(s.ctx))

	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Millisecond)
	defer cancel()
	s.ErrorIs(s.mu.RLockWithContext(ctx), context.DeadlineExceeded)

	s.mu.Unlock()
	s.NoError(s.mu.RLockWithContext(s.ctx))
	s.mu.RUnlock()
}

// Readers and writers interleave without losing writes.
func (s *RWMutexTestSuite) TestConcurrent() {
	const workers = 200
	n := 0
	var wg sync.WaitGroup
	wg.Add(workers * 2)
	for range workers {
		go func() {
			defer wg.Done()
			s.NoError(s.mu.LockWithContext(s.ctx))
			n++
			s.mu.Unlock()
		}()
		go func() {
			defer wg.Done()
			s.NoError(s.mu.RLockWithContext(s.ctx))
			_ = n
			s.mu.RUnlock()
		}()
	}
	wg.Wait()
	s.Equal(workers, n)
}

func (s *RWMutexTestSuite) TestRUnlockUnlocked() {
	s.Panics(func() { s.mu.RUnlock() })
}

func TestRWMutexTestSuite(t *testing.T) {
	suite.Run(t, new(RWMutexTestSuite))
}
