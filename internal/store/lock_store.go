// internal/store/lock_store.go
package store

import (
	"context"
	"time"
)

// LockStore is the external mutex store. Implementations must make
// TryAcquire atomic across concurrent requesters of the same key and must
// expire an unreleased lock no later than its ttl.
type LockStore interface {
	// TryAcquire makes a single, non-blocking attempt to take key for token.
	// It returns false, nil when the key is held by someone else.
	TryAcquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error)

	// Release deletes key only if it is still held by token. A lock that is
	// missing or owned by another token yields ErrLockNotHeld.
	Release(ctx context.Context, key, token string) error

	// Close releases resources held by the store
	Close()

	// GetConfig returns the current store configuration
	GetConfig() StoreConfig
}

// FairQueue is implemented by stores able to serve waiters of a key in
// arrival order.
type FairQueue interface {
	// TryAcquireFair enqueues token behind earlier waiters (or refreshes its
	// place) and grants the lock only when token is at the head of the queue.
	// waiterTTL bounds how long a waiter stays queued without calling again.
	TryAcquireFair(ctx context.Context, key, token string, ttl, waiterTTL time.Duration) (bool, error)

	// Abandon removes token from the wait queue of key.
	Abandon(ctx context.Context, key, token string) error
}

// ReleaseNotifier is implemented by stores that can signal a release of key,
// letting waiters retry before their backoff interval elapses.
type ReleaseNotifier interface {
	// WatchRelease returns a channel that receives after a release of key and
	// a function to stop watching.
	WatchRelease(ctx context.Context, key string) (<-chan struct{}, func())
}

// Unwrapper is implemented by stores that decorate another store.
type Unwrapper interface {
	Unwrap() LockStore
}

// SupportsFairness reports whether st, and every store it decorates,
// implements FairQueue.
func SupportsFairness(st LockStore) bool {
	for st != nil {
		if _, ok := st.(FairQueue); !ok {
			return false
		}
		u, ok := st.(Unwrapper)
		if !ok {
			return true
		}
		st = u.Unwrap()
	}
	return false
}

// SupportsReleaseNotification reports whether st, and every store it
// decorates, implements ReleaseNotifier.
func SupportsReleaseNotification(st LockStore) bool {
	for st != nil {
		if _, ok := st.(ReleaseNotifier); !ok {
			return false
		}
		u, ok := st.(Unwrapper)
		if !ok {
			return true
		}
		st = u.Unwrap()
	}
	return false
}
