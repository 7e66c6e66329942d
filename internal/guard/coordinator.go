// internal/guard/coordinator.go

// Package guard runs operations while holding a distributed lock whose key is
// derived from the operation's arguments.
package guard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/avivl/lockguard/internal/keys"
	"github.com/avivl/lockguard/internal/lockservice"
	"github.com/avivl/lockguard/internal/observability"
)

// DefaultReleaseTimeout bounds the release round trip made after the
// operation returns.
const DefaultReleaseTimeout = 5 * time.Second

// Locker acquires and releases locks. *lockservice.Client implements it.
type Locker interface {
	TryAcquire(ctx context.Context, key string, waitTimeout, holdDuration time.Duration, fair bool) (*lockservice.Handle, error)
	Acquire(ctx context.Context, key string, holdDuration time.Duration, fair bool) (*lockservice.Handle, error)
	Release(ctx context.Context, h *lockservice.Handle) error
}

// KeyResolver turns a key template into a lock key. *keys.Resolver implements it.
type KeyResolver interface {
	Resolve(template string, bindings keys.Bindings) (string, error)
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithReleaseTimeout bounds each release call.
func WithReleaseTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.releaseTimeout = d
		}
	}
}

// WithMetrics records acquisition outcomes, latencies and release failures on m.
func WithMetrics(m observability.MetricsClient) CoordinatorOption {
	return func(c *Coordinator) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithTracer replaces the tracer taken from the global provider.
func WithTracer(t trace.Tracer) CoordinatorOption {
	return func(c *Coordinator) {
		if t != nil {
			c.tracer = t
		}
	}
}

// Coordinator wraps operations with lock acquisition and release.
type Coordinator struct {
	client         Locker
	resolver       KeyResolver
	l              *observability.SLogger
	metrics        observability.MetricsClient
	tracer         trace.Tracer
	releaseTimeout time.Duration
}

// New returns a coordinator. A nil resolver uses keys.NewResolver(nil).
func New(client Locker, resolver KeyResolver, logger *observability.SLogger, opts ...CoordinatorOption) *Coordinator {
	if resolver == nil {
		resolver = keys.NewResolver(nil)
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}

	c := &Coordinator{
		client:         client,
		resolver:       resolver,
		l:              logger,
		metrics:        observability.NopMetrics{},
		tracer:         observability.Tracer(),
		releaseTimeout: DefaultReleaseTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Guard runs fn while holding the lock described by cfg, with the key
// resolved against bindings. fn runs at most once and only while the lock is
// held. The lock is released on every exit path of fn, including a panic,
// which is re-raised after the release. A failed release is logged and never
// replaces the result of fn.
func (c *Coordinator) Guard(ctx context.Context, cfg LockConfiguration, bindings keys.Bindings, fn func(ctx context.Context) error) error {
	ctx, span := c.tracer.Start(ctx, "lockguard.guard", trace.WithAttributes(
		attribute.String("lock.mode", cfg.mode()),
		attribute.Bool("lock.fair", cfg.Fair()),
	))
	defer span.End()

	if cfg.UseTryAcquire() && cfg.WaitTimeout() <= 0 {
		span.SetStatus(codes.Error, ErrInvalidLockConfiguration.Error())
		return ErrInvalidLockConfiguration
	}

	key, err := c.resolveKey(cfg, bindings)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetAttributes(attribute.String("lock.key", key))

	h, err := c.acquire(ctx, cfg, key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	defer c.release(ctx, h)

	if err := fn(ctx); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// Do is Guard for operations that return a value.
func Do[T any](ctx context.Context, c *Coordinator, cfg LockConfiguration, bindings keys.Bindings, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := c.Guard(ctx, cfg, bindings, func(ctx context.Context) error {
		var err error
		result, err = fn(ctx)
		return err
	})
	return result, err
}

// ResolveKey returns the lock key cfg would use for bindings.
func (c *Coordinator) ResolveKey(cfg LockConfiguration, bindings keys.Bindings) (string, error) {
	return c.resolveKey(cfg, bindings)
}

func (c *Coordinator) resolveKey(cfg LockConfiguration, bindings keys.Bindings) (string, error) {
	key, err := c.resolver.Resolve(cfg.KeyTemplate(), bindings)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(cfg.KeyPrefix()) != "" {
		key = cfg.KeyPrefix() + key
	}
	return key, nil
}

func (c *Coordinator) acquire(ctx context.Context, cfg LockConfiguration, key string) (*lockservice.Handle, error) {
	start := time.Now()

	var (
		h   *lockservice.Handle
		err error
	)
	if cfg.UseTryAcquire() {
		h, err = c.client.TryAcquire(ctx, key, cfg.WaitTimeout(), cfg.HoldDuration(), cfg.Fair())
	} else {
		h, err = c.client.Acquire(ctx, key, cfg.HoldDuration(), cfg.Fair())
	}

	outcome := "acquired"
	switch {
	case err != nil:
		outcome = "error"
		err = fmt.Errorf("%w: %w", ErrLockAcquisition, err)
	case h == nil:
		outcome = "timeout"
		err = fmt.Errorf("%w: %s", ErrLockAcquisitionTimeout, key)
	}

	c.metrics.Increment(ctx, "lockguard.acquire.total", 1, "mode", cfg.mode(), "outcome", outcome)
	if latencyErr := c.metrics.RecordLatency(ctx, "lockguard.acquire.latency", time.Since(start), "mode", cfg.mode()); latencyErr != nil {
		c.l.DebugCtx(ctx, "Failed to record acquire latency", "error", latencyErr)
	}

	if err != nil {
		c.l.DebugCtx(ctx, "Lock not acquired", "key", key, "mode", cfg.mode(), "outcome", outcome)
		return nil, err
	}
	c.l.DebugCtx(ctx, "Lock held", "key", key, "mode", cfg.mode(), "fair", h.Fair())
	return h, nil
}

// release runs after fn, so it detaches from the caller's context: a
// cancelled caller must still give the lock back.
func (c *Coordinator) release(ctx context.Context, h *lockservice.Handle) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.releaseTimeout)
	defer cancel()

	held := time.Since(h.AcquiredAt())
	if err := c.metrics.RecordLatency(ctx, "lockguard.hold.latency", held); err != nil {
		c.l.DebugCtx(ctx, "Failed to record hold latency", "error", err)
	}

	if err := c.client.Release(ctx, h); err != nil {
		c.metrics.Increment(ctx, "lockguard.release.failures", 1)
		c.l.ErrorCtx(ctx, err, "key", h.Key(), "held", held)
	}
}
