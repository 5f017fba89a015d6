// Package lock provides per-user locking so one player's settlements run
// one at a time.
package lock

import (
	"context"
	"fmt"
	"sync"
)

// userMutex is a one-slot semaphore shared by everyone waiting on a user.
type userMutex struct {
	ch   chan struct{}
	refs int
}

// UserLock hands out per-user locks. Entries are dropped once nobody holds
// or waits on them.
type UserLock struct {
	mu    sync.Mutex
	locks map[int64]*userMutex
}

// NewUserLock creates a new UserLock instance.
func NewUserLock() *UserLock {
	return &UserLock{locks: make(map[int64]*userMutex)}
}

func (ul *UserLock) acquire(userID int64) *userMutex {
	ul.mu.Lock()
	defer ul.mu.Unlock()

	m, ok := ul.locks[userID]
	if !ok {
		m = &userMutex{ch: make(chan struct{}, 1)}
		ul.locks[userID] = m
	}
	m.refs++
	return m
}

func (ul *UserLock) release(userID int64, m *userMutex) {
	ul.mu.Lock()
	defer ul.mu.Unlock()

	m.refs--
	if m.refs == 0 {
		delete(ul.locks, userID)
	}
}

// Lock blocks until the user's lock is held or ctx is done.
func (ul *UserLock) Lock(ctx context.Context, userID int64) error {
	m := ul.acquire(userID)
	select {
	case m.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		ul.release(userID, m)
		return fmt.Errorf("%w: %w", ErrLockTimeout, ctx.Err())
	}
}

// TryLock acquires the lock without blocking. It reports false while
// another holder has it.
func (ul *UserLock) TryLock(userID int64) bool {
	m := ul.acquire(userID)
	select {
	case m.ch <- struct{}{}:
		return true
	default:
		ul.release(userID, m)
		return false
	}
}

// Unlock releases the user's lock. Unlocking a lock that is not held is a no-op.
func (ul *UserLock) Unlock(userID int64) {
	ul.mu.Lock()
	m, ok := ul.locks[userID]
	ul.mu.Unlock()
	if !ok {
		return
	}

	select {
	case <-m.ch:
		ul.release(userID, m)
	default:
	}
}

// WithLock runs fn while holding the user's lock.
func (ul *UserLock) WithLock(ctx context.Context, userID int64, fn func() error) error {
	if err := ul.Lock(ctx, userID); err != nil {
		return err
	}
	defer ul.Unlock(userID)
	return fn()
}
