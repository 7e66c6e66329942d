// internal/lockservice/handle.go
package lockservice

import (
	"sync/atomic"
	"time"
)

// Handle is the proof of a successful acquisition. It belongs to the
// invocation that acquired it and must not be shared.
type Handle struct {
	key        string
	token      string
	ttl        time.Duration
	fair       bool
	acquiredAt time.Time
	released   atomic.Bool
}

func newHandle(key, token string, ttl time.Duration, fair bool) *Handle {
	return &Handle{
		key:        key,
		token:      token,
		ttl:        ttl,
		fair:       fair,
		acquiredAt: time.Now(),
	}
}

// Key returns the resolved lock key.
func (h *Handle) Key() string { return h.key }

// Token returns the owner token written to the store.
func (h *Handle) Token() string { return h.token }

// TTL returns the hold duration the lock was taken with.
func (h *Handle) TTL() time.Duration { return h.ttl }

// Fair reports whether the lock was granted through the store's wait queue.
func (h *Handle) Fair() bool { return h.fair }

// AcquiredAt returns when the lock was granted.
func (h *Handle) AcquiredAt() time.Time { return h.acquiredAt }

// Released reports whether Release has been called for this handle.
func (h *Handle) Released() bool { return h.released.Load() }
