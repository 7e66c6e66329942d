// internal/store/memory/memory_store.go

// Package memory implements the lock store inside the current process. It is
// the reference implementation of the store contract and the double used by
// higher level tests; it does not coordinate separate processes.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/avivl/lockguard/internal/lockservice"
	"github.com/avivl/lockguard/internal/observability"
	"github.com/avivl/lockguard/internal/store"
)

// StoreName is the registered name of the in-process store
const StoreName = "memory"

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("memory store is closed")

func init() {
	lockservice.Register(StoreName, newStore)
}

func newStore(_ context.Context, options lockservice.Config, logger *observability.SLogger) (store.LockStore, error) {
	cfg, ok := options.(*MemoryConfig)
	if !ok && options != nil {
		return nil, &store.InvalidConfigurationError{Store: StoreName, Config: options}
	}
	return New(cfg, logger)
}

type lockEntry struct {
	token     string
	expiresAt time.Time
}

type waiter struct {
	token    string
	deadline time.Time
}

// Store keeps locks, fair wait queues and release watchers in memory.
type Store struct {
	mu       sync.Mutex
	locks    map[string]lockEntry
	queues   map[string][]waiter
	watchers map[string]map[chan struct{}]struct{}
	closed   bool

	config *MemoryConfig
	l      *observability.SLogger
	now    func() time.Time
}

// New creates an in-process store. A nil config uses the defaults.
func New(config *MemoryConfig, logger *observability.SLogger) (*Store, error) {
	if config == nil {
		config = NewMemoryConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}

	return &Store{
		locks:    make(map[string]lockEntry),
		queues:   make(map[string][]waiter),
		watchers: make(map[string]map[chan struct{}]struct{}),
		config:   config,
		l:        logger,
		now:      time.Now,
	}, nil
}

// GetConfig returns the current store configuration
func (s *Store) GetConfig() store.StoreConfig {
	return s.config
}

// TryAcquire takes key for token when it is free or its holder has expired.
func (s *Store) TryAcquire(_ context.Context, key, token string, ttl time.Duration) (bool, error) {
	if key == "" {
		return false, store.ErrInvalidKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, ErrClosed
	}

	now := s.now()
	if s.heldLocked(key, now) {
		return false, nil
	}
	s.locks[key] = lockEntry{token: token, expiresAt: now.Add(store.ResolveTTL(ttl, s.config))}
	return true, nil
}

// TryAcquireFair grants key to token only when token heads the wait queue.
func (s *Store) TryAcquireFair(_ context.Context, key, token string, ttl, waiterTTL time.Duration) (bool, error) {
	if key == "" {
		return false, store.ErrInvalidKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, ErrClosed
	}

	now := s.now()
	queue := s.queues[key][:0]
	found := false
	for _, w := range s.queues[key] {
		if w.token == token {
			w.deadline = now.Add(waiterTTL)
			found = true
		}
		if w.deadline.After(now) {
			queue = append(queue, w)
		}
	}
	if !found {
		queue = append(queue, waiter{token: token, deadline: now.Add(waiterTTL)})
	}

	if !s.heldLocked(key, now) && queue[0].token == token {
		s.locks[key] = lockEntry{token: token, expiresAt: now.Add(store.ResolveTTL(ttl, s.config))}
		queue = queue[1:]
	}

	if len(queue) == 0 {
		delete(s.queues, key)
	} else {
		s.queues[key] = queue
	}

	entry, ok := s.locks[key]
	return ok && entry.token == token, nil
}

// Abandon drops token from the wait queue of key.
func (s *Store) Abandon(_ context.Context, key, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	queue := s.queues[key][:0]
	for _, w := range s.queues[key] {
		if w.token != token {
			queue = append(queue, w)
		}
	}
	if len(queue) == 0 {
		delete(s.queues, key)
	} else {
		s.queues[key] = queue
	}
	return nil
}

// Release deletes key when token still holds it.
func (s *Store) Release(_ context.Context, key, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	if !s.heldLocked(key, s.now()) || s.locks[key].token != token {
		return store.ErrLockNotHeld
	}
	delete(s.locks, key)

	for ch := range s.watchers[key] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

// WatchRelease signals on the returned channel after each release of key.
func (s *Store) WatchRelease(_ context.Context, key string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.mu.Lock()
	if s.watchers[key] == nil {
		s.watchers[key] = make(map[chan struct{}]struct{})
	}
	s.watchers[key][ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers[key], ch)
			if len(s.watchers[key]) == 0 {
				delete(s.watchers, key)
			}
			s.mu.Unlock()
		})
	}
}

// Holder returns the token currently holding key, if any.
func (s *Store) Holder(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.heldLocked(key, s.now()) {
		return "", false
	}
	return s.locks[key].token, true
}

// Waiters returns the number of tokens queued for key.
func (s *Store) Waiters(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues[key])
}

// Close marks the store closed
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// heldLocked reports whether key has an unexpired holder, dropping an expired
// one. s.mu must be held.
func (s *Store) heldLocked(key string, now time.Time) bool {
	entry, ok := s.locks[key]
	if !ok {
		return false
	}
	if !now.Before(entry.expiresAt) {
		delete(s.locks, key)
		return false
	}
	return true
}
