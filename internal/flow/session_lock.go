package flow

import (
	"context"
	"sync"
)

// lockEntry holds a one-slot semaphore and the reference count.
type lockEntry struct {
	sem  chan struct{}
	refs int
}

// userLocks serializes turns per user. Entries are dropped once no turn holds
// or waits on them.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*lockEntry)}
}

func (l *userLocks) acquire(userID string) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, exists := l.locks[userID]
	if !exists {
		entry = &lockEntry{sem: make(chan struct{}, 1)}
		l.locks[userID] = entry
	}
	entry.refs++
	return entry
}

func (l *userLocks) release(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, exists := l.locks[userID]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(l.locks, userID)
	}
}

// WithLock runs fn while holding the user's lock. It returns ctx.Err() without
// running fn if ctx ends while waiting for the lock.
func (l *userLocks) WithLock(ctx context.Context, userID string, fn func(context.Context) error) error {
	entry := l.acquire(userID)
	defer l.release(userID)

	select {
	case entry.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-entry.sem }()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}

func (l *userLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
