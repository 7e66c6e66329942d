// internal/lockservice/client.go
package lockservice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/avivl/lockguard/internal/observability"
	"github.com/avivl/lockguard/internal/store"
)

const (
	// DefaultRetryInterval is the first pause between acquisition attempts.
	DefaultRetryInterval = 25 * time.Millisecond
	// DefaultMaxRetryInterval caps the pause between acquisition attempts.
	DefaultMaxRetryInterval = time.Second

	// waiterTTLFactor scales the maximum retry interval into the time a fair
	// waiter keeps its place in the queue without polling.
	waiterTTLFactor = 4
)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithRetryInterval sets the initial pause between attempts.
func WithRetryInterval(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.retryInterval = d
		}
	}
}

// WithMaxRetryInterval sets the upper bound of the pause between attempts.
func WithMaxRetryInterval(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.maxRetryInterval = d
		}
	}
}

// WithMetrics records store round trips on m.
func WithMetrics(m observability.MetricsClient) ClientOption {
	return func(c *Client) {
		if m != nil {
			c.metrics = m
		}
	}
}

// Client acquires and releases locks on a store. It is safe for concurrent
// use; every acquisition uses a fresh owner token.
type Client struct {
	store    store.LockStore
	fairness store.FairQueue
	notifier store.ReleaseNotifier

	retryInterval    time.Duration
	maxRetryInterval time.Duration

	l          *observability.SLogger
	metrics    observability.MetricsClient
	unfairOnce sync.Once
	newToken   func() string
}

// NewClient returns a client for st.
func NewClient(st store.LockStore, logger *observability.SLogger, opts ...ClientOption) (*Client, error) {
	if st == nil {
		return nil, errors.New("lock client requires a store")
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}

	c := &Client{
		store:            st,
		retryInterval:    DefaultRetryInterval,
		maxRetryInterval: DefaultMaxRetryInterval,
		l:                logger,
		metrics:          observability.NopMetrics{},
		newToken:         uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxRetryInterval < c.retryInterval {
		c.maxRetryInterval = c.retryInterval
	}

	if store.SupportsFairness(st) {
		c.fairness = st.(store.FairQueue)
	}
	if store.SupportsReleaseNotification(st) {
		c.notifier = st.(store.ReleaseNotifier)
	}
	return c, nil
}

// TryAcquire attempts to take key, retrying until waitTimeout has elapsed.
// It returns a nil handle and a nil error when the key stayed held for the
// whole window. A non-positive holdDuration uses the store's default TTL.
func (c *Client) TryAcquire(ctx context.Context, key string, waitTimeout, holdDuration time.Duration, fair bool) (*Handle, error) {
	return c.acquire(ctx, key, holdDuration, fair, time.Now().Add(waitTimeout), true)
}

// Acquire waits for key until it is granted or ctx ends.
func (c *Client) Acquire(ctx context.Context, key string, holdDuration time.Duration, fair bool) (*Handle, error) {
	return c.acquire(ctx, key, holdDuration, fair, time.Time{}, false)
}

// Release gives the lock of h back to the store. Releasing a nil handle or a
// handle that was already released is a no-op.
func (c *Client) Release(ctx context.Context, h *Handle) error {
	if h == nil || !h.released.CompareAndSwap(false, true) {
		return nil
	}

	if err := c.store.Release(ctx, h.key, h.token); err != nil {
		return &ReleaseError{Key: h.key, Err: err}
	}
	c.l.DebugCtx(ctx, "Lock released", "key", h.key, "held", time.Since(h.acquiredAt))
	return nil
}

func (c *Client) acquire(ctx context.Context, key string, holdDuration time.Duration, fair bool, deadline time.Time, bounded bool) (*Handle, error) {
	if key == "" {
		return nil, store.ErrInvalidKey
	}

	fair = c.fairAvailable(ctx, key, fair)
	token := c.newToken()
	ttl := store.ResolveTTL(holdDuration, c.store.GetConfig())
	bo := c.newBackOff()

	// Store round trips in try mode are bounded by the wait window, plus one
	// retry interval so the attempt made at the deadline can still complete.
	opCtx := ctx
	if bounded {
		var cancel context.CancelFunc
		opCtx, cancel = context.WithDeadline(ctx, deadline.Add(c.retryInterval))
		defer cancel()
	}

	var (
		notify <-chan struct{}
		stop   = func() {}
	)
	defer func() { stop() }()

	for attempt := 1; ; attempt++ {
		ok, err := c.attempt(opCtx, key, token, ttl, fair)
		if err != nil {
			c.abandon(ctx, key, token, fair)
			if bounded && opCtx.Err() != nil && ctx.Err() == nil {
				c.l.DebugCtx(ctx, "Lock wait window elapsed during store call", "key", key, "attempts", attempt, "error", err)
				return nil, nil
			}
			return nil, fmt.Errorf("acquire lock %q: %w", key, err)
		}
		if ok {
			c.l.DebugCtx(ctx, "Lock acquired", "key", key, "attempts", attempt, "fair", fair)
			return newHandle(key, token, ttl, fair), nil
		}

		delay := bo.NextBackOff()
		if bounded {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				c.abandon(ctx, key, token, fair)
				c.l.DebugCtx(ctx, "Lock wait window elapsed", "key", key, "attempts", attempt)
				return nil, nil
			}
			if delay > remaining {
				delay = remaining
			}
		}

		if notify == nil && c.notifier != nil {
			notify, stop = c.notifier.WatchRelease(opCtx, key)
		}
		if err := sleep(ctx, delay, notify); err != nil {
			c.abandon(ctx, key, token, fair)
			return nil, fmt.Errorf("acquire lock %q: %w", key, err)
		}
	}
}

func (c *Client) attempt(ctx context.Context, key, token string, ttl time.Duration, fair bool) (bool, error) {
	var (
		ok  bool
		err error
	)
	if fair {
		ok, err = c.fairness.TryAcquireFair(ctx, key, token, ttl, waiterTTLFactor*c.maxRetryInterval)
	} else {
		ok, err = c.store.TryAcquire(ctx, key, token, ttl)
	}

	outcome := "busy"
	switch {
	case err != nil:
		outcome = "error"
	case ok:
		outcome = "granted"
	}
	c.metrics.Increment(ctx, "lockguard.store.attempts", 1, "outcome", outcome)
	return ok, err
}

// abandon leaves the wait queue of key. It runs when the caller gives up, so
// it must not depend on the caller's context still being alive.
func (c *Client) abandon(ctx context.Context, key, token string, fair bool) {
	if !fair {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.maxRetryInterval)
	defer cancel()
	if err := c.fairness.Abandon(ctx, key, token); err != nil {
		c.l.WarnCtx(ctx, "Failed to leave lock wait queue", "key", key, "error", err)
	}
}

func (c *Client) fairAvailable(ctx context.Context, key string, fair bool) bool {
	if !fair || c.fairness != nil {
		return fair
	}
	c.unfairOnce.Do(func() {
		c.l.WarnCtx(ctx, "Store has no wait queue, fair locks are served unfairly",
			"key", key, "table", c.store.GetConfig().GetTableName())
	})
	return false
}

func (c *Client) newBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryInterval
	bo.MaxInterval = c.maxRetryInterval
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

func sleep(ctx context.Context, d time.Duration, notify <-chan struct{}) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-notify:
		return nil
	case <-timer.C:
		return nil
	}
}
