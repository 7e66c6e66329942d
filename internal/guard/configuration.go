// internal/guard/configuration.go
package guard

import (
	"fmt"
	"time"

	"github.com/avivl/lockguard/internal/keys"
)

var defaultResolver = keys.NewResolver(nil)

// LockConfiguration describes how one call site is protected. It is built
// once and reused for every invocation.
type LockConfiguration struct {
	keyTemplate   string
	keyPrefix     string
	useTryAcquire bool
	waitTimeout   time.Duration
	holdDuration  time.Duration
	fair          bool
}

// Option sets an optional field of a LockConfiguration.
type Option func(*LockConfiguration)

// WithKeyPrefix prepends prefix to every resolved key. A blank prefix is ignored.
func WithKeyPrefix(prefix string) Option {
	return func(c *LockConfiguration) { c.keyPrefix = prefix }
}

// WithTryAcquire makes the lock give up after wait instead of blocking.
func WithTryAcquire(wait time.Duration) Option {
	return func(c *LockConfiguration) {
		c.useTryAcquire = true
		c.waitTimeout = wait
	}
}

// WithHoldDuration bounds how long the lock is held if it is never released.
// Zero or less uses the store default.
func WithHoldDuration(d time.Duration) Option {
	return func(c *LockConfiguration) { c.holdDuration = d }
}

// WithFair serves waiters on the key in arrival order where the store can.
func WithFair() Option {
	return func(c *LockConfiguration) { c.fair = true }
}

// NewLockConfiguration builds a configuration for keyTemplate and checks the
// template syntax. The wait timeout of a try-mode lock is checked on use.
func NewLockConfiguration(keyTemplate string, opts ...Option) (LockConfiguration, error) {
	cfg := LockConfiguration{keyTemplate: keyTemplate}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := defaultResolver.Validate(keyTemplate); err != nil {
		return LockConfiguration{}, err
	}
	return cfg, nil
}

// MustLockConfiguration is like NewLockConfiguration but panics on error.
// It is meant for package level declarations.
func MustLockConfiguration(keyTemplate string, opts ...Option) LockConfiguration {
	cfg, err := NewLockConfiguration(keyTemplate, opts...)
	if err != nil {
		panic(fmt.Sprintf("guard: lock configuration %q: %v", keyTemplate, err))
	}
	return cfg
}

func (c LockConfiguration) KeyTemplate() string         { return c.keyTemplate }
func (c LockConfiguration) KeyPrefix() string           { return c.keyPrefix }
func (c LockConfiguration) UseTryAcquire() bool         { return c.useTryAcquire }
func (c LockConfiguration) WaitTimeout() time.Duration  { return c.waitTimeout }
func (c LockConfiguration) HoldDuration() time.Duration { return c.holdDuration }
func (c LockConfiguration) Fair() bool                  { return c.fair }

func (c LockConfiguration) mode() string {
	if c.useTryAcquire {
		return "try"
	}
	return "block"
}

// LockSpec is the declarative form of a LockConfiguration, as found in
// configuration files.
type LockSpec struct {
	Key       string   `yaml:"key" mapstructure:"key"`
	KeyPrefix string   `yaml:"keyPrefix" mapstructure:"keyPrefix"`
	TryLock   bool     `yaml:"tryLock" mapstructure:"tryLock"`
	TryTime   int64    `yaml:"tryTime" mapstructure:"tryTime"`
	LockTime  int64    `yaml:"lockTime" mapstructure:"lockTime"`
	Unit      TimeUnit `yaml:"unit" mapstructure:"unit"`
	Fair      bool     `yaml:"fair" mapstructure:"fair"`
}

// Configuration builds the LockConfiguration s declares, applying Unit to
// TryTime and LockTime.
func (s LockSpec) Configuration() (LockConfiguration, error) {
	unit, err := ParseTimeUnit(string(s.Unit))
	if err != nil {
		return LockConfiguration{}, err
	}

	opts := []Option{
		WithKeyPrefix(s.KeyPrefix),
		WithHoldDuration(unit.Duration(s.LockTime)),
	}
	if s.TryLock {
		opts = append(opts, WithTryAcquire(unit.Duration(s.TryTime)))
	}
	if s.Fair {
		opts = append(opts, WithFair())
	}
	return NewLockConfiguration(s.Key, opts...)
}
