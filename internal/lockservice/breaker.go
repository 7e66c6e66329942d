// internal/lockservice/breaker.go
package lockservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/avivl/lockguard/internal/observability"
	"github.com/avivl/lockguard/internal/store"
)

// BreakerSettings tunes the circuit breaker placed in front of a store.
type BreakerSettings struct {
	Enabled bool `yaml:"enabled"`
	// MaxFailures is the number of consecutive store failures that opens the breaker.
	MaxFailures uint32 `yaml:"maxFailures"`
	// OpenTimeout is how long the breaker stays open before probing the store again.
	OpenTimeout time.Duration `yaml:"openTimeout"`
	// HalfOpenRequests is the number of probes allowed while half open.
	HalfOpenRequests uint32 `yaml:"halfOpenRequests"`
}

// DefaultBreakerSettings returns the settings used for unset fields.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Enabled:          true,
		MaxFailures:      5,
		OpenTimeout:      30 * time.Second,
		HalfOpenRequests: 1,
	}
}

// BreakerStore stops calling a store that keeps failing. Lock contention and
// ErrLockNotHeld are answers from a healthy store and never trip it.
type BreakerStore struct {
	inner store.LockStore
	cb    *gobreaker.CircuitBreaker[bool]
	l     *observability.SLogger
}

// NewBreakerStore decorates inner with a circuit breaker.
func NewBreakerStore(inner store.LockStore, settings BreakerSettings, logger *observability.SLogger) *BreakerStore {
	defaults := DefaultBreakerSettings()
	if settings.MaxFailures == 0 {
		settings.MaxFailures = defaults.MaxFailures
	}
	if settings.OpenTimeout <= 0 {
		settings.OpenTimeout = defaults.OpenTimeout
	}
	if settings.HalfOpenRequests == 0 {
		settings.HalfOpenRequests = defaults.HalfOpenRequests
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}

	b := &BreakerStore{inner: inner, l: logger}
	b.cb = gobreaker.NewCircuitBreaker[bool](gobreaker.Settings{
		Name:        inner.GetConfig().GetTableName(),
		MaxRequests: settings.HalfOpenRequests,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, store.ErrLockNotHeld) ||
				errors.Is(err, context.Canceled) ||
				errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.l.Warnw("Lock store circuit breaker changed state", "store", name, "from", from.String(), "to", to.String())
		},
	})
	return b
}

// State returns the breaker state: closed, half-open or open.
func (b *BreakerStore) State() string {
	return b.cb.State().String()
}

func (b *BreakerStore) execute(fn func() (bool, error)) (bool, error) {
	ok, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return ok, err
}

// TryAcquire implements store.LockStore.
func (b *BreakerStore) TryAcquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	return b.execute(func() (bool, error) {
		return b.inner.TryAcquire(ctx, key, token, ttl)
	})
}

// Release implements store.LockStore.
func (b *BreakerStore) Release(ctx context.Context, key, token string) error {
	_, err := b.execute(func() (bool, error) {
		return true, b.inner.Release(ctx, key, token)
	})
	return err
}

// TryAcquireFair implements store.FairQueue. Without a queue in the wrapped
// store it degrades to TryAcquire.
func (b *BreakerStore) TryAcquireFair(ctx context.Context, key, token string, ttl, waiterTTL time.Duration) (bool, error) {
	fq, ok := b.inner.(store.FairQueue)
	if !ok {
		return b.TryAcquire(ctx, key, token, ttl)
	}
	return b.execute(func() (bool, error) {
		return fq.TryAcquireFair(ctx, key, token, ttl, waiterTTL)
	})
}

// Abandon implements store.FairQueue.
func (b *BreakerStore) Abandon(ctx context.Context, key, token string) error {
	fq, ok := b.inner.(store.FairQueue)
	if !ok {
		return nil
	}
	_, err := b.execute(func() (bool, error) {
		return true, fq.Abandon(ctx, key, token)
	})
	return err
}

// WatchRelease implements store.ReleaseNotifier. Watching does not go
// through the breaker; a store without notifications yields a channel that
// never fires.
func (b *BreakerStore) WatchRelease(ctx context.Context, key string) (<-chan struct{}, func()) {
	rn, ok := b.inner.(store.ReleaseNotifier)
	if !ok {
		return nil, func() {}
	}
	return rn.WatchRelease(ctx, key)
}

// Unwrap implements store.Unwrapper.
func (b *BreakerStore) Unwrap() store.LockStore {
	return b.inner
}

// Close closes the wrapped store.
func (b *BreakerStore) Close() {
	b.inner.Close()
}

// GetConfig returns the configuration of the wrapped store.
func (b *BreakerStore) GetConfig() store.StoreConfig {
	return b.inner.GetConfig()
}
