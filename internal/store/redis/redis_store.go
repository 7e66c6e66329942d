// internal/store/redis/redis_store.go
package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/avivl/lockguard/internal/lockservice"
	"github.com/avivl/lockguard/internal/observability"
	"github.com/avivl/lockguard/internal/store"
)

// Error definitions
var (
	ErrConfigOptionMissing = errors.New("Redis requires a config option")
)

// StoreName is the registered name of the Redis store
const StoreName = "redis"

// redisClient is the part of the go-redis client the store uses.
// It allows for easier mocking in tests.
type redisClient interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// Factory function for creating Redis clients
// Can be replaced during tests for mocking
var newRedisClientFn = func(addr string, password string, db int) redisClient {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// Register the Redis store with the lockservice package
func init() {
	lockservice.Register(StoreName, newStore)
}

// newStore creates a new Redis store instance from configuration
func newStore(ctx context.Context, options lockservice.Config, logger *observability.SLogger) (store.LockStore, error) {
	cfg, ok := options.(*RedisConfig)
	if !ok && options != nil {
		return nil, &store.InvalidConfigurationError{Store: StoreName, Config: options}
	}
	return New(ctx, cfg, logger)
}

// Store keeps locks in Redis. A lock is a string key holding the owner
// token; fair waiters queue in a list next to it.
type Store struct {
	client redisClient
	l      *observability.SLogger
	config *RedisConfig
	now    func() time.Time
}

// GetConfig returns the current store configuration
func (s *Store) GetConfig() store.StoreConfig {
	return s.config
}

// New creates a new Redis store with the provided configuration
func New(ctx context.Context, config *RedisConfig, logger *observability.SLogger) (*Store, error) {
	if config == nil {
		return nil, ErrConfigOptionMissing
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}

	client := newRedisClientFn(config.Addr(), config.Password, config.DB)

	// Test connection
	if _, err := client.Ping(ctx).Result(); err != nil {
		logger.Errorf("Error connecting to Redis: %v", err)
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{
		client: client,
		l:      logger,
		config: config,
		now:    time.Now,
	}, nil
}

// lockKey hash-tags the user key so that the lock and its queue live in the
// same cluster slot.
func (s *Store) lockKey(key string) string {
	return fmt.Sprintf("%s:{%s}", s.config.KeyPrefix, key)
}

func (s *Store) queueKeys(key string) []string {
	lock := s.lockKey(key)
	return []string{lock + ":queue", lock + ":queue:deadlines"}
}

func (s *Store) releaseChannel(key string) string {
	return s.lockKey(key) + ":released"
}

// TryAcquire takes key with SET NX PX.
func (s *Store) TryAcquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	if key == "" {
		return false, store.ErrInvalidKey
	}

	ok, err := s.client.SetNX(ctx, s.lockKey(key), token, store.ResolveTTL(ttl, s.config)).Result()
	if err != nil {
		s.l.Errorf("Error acquiring lock: %v", err)
		return false, fmt.Errorf("redis acquire %q: %w", key, err)
	}
	return ok, nil
}

// TryAcquireFair takes key only when token heads the wait queue of key.
func (s *Store) TryAcquireFair(ctx context.Context, key, token string, ttl, waiterTTL time.Duration) (bool, error) {
	if key == "" {
		return false, store.ErrInvalidKey
	}

	keys := append([]string{s.lockKey(key)}, s.queueKeys(key)...)
	granted, err := fairAcquireScript.Run(ctx, s.client, keys,
		token,
		store.ResolveTTL(ttl, s.config).Milliseconds(),
		waiterTTL.Milliseconds(),
		s.now().UnixMilli(),
	).Int()
	if err != nil {
		s.l.Errorf("Error acquiring fair lock: %v", err)
		return false, fmt.Errorf("redis fair acquire %q: %w", key, err)
	}
	return granted == 1, nil
}

// Abandon removes token from the wait queue of key.
func (s *Store) Abandon(ctx context.Context, key, token string) error {
	if err := abandonScript.Run(ctx, s.client, s.queueKeys(key), token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis abandon %q: %w", key, err)
	}
	return nil
}

// Release deletes key when token still holds it, then notifies watchers.
func (s *Store) Release(ctx context.Context, key, token string) error {
	deleted, err := releaseScript.Run(ctx, s.client, []string{s.lockKey(key)}, token).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		s.l.Errorf("Error releasing lock: %v", err)
		return fmt.Errorf("redis release %q: %w", key, err)
	}
	if deleted == 0 {
		return store.ErrLockNotHeld
	}

	if err := s.client.Publish(ctx, s.releaseChannel(key), token).Err(); err != nil {
		s.l.Warnf("Error publishing release of %s: %v", key, err)
	}
	return nil
}

// WatchRelease subscribes to the release channel of key.
func (s *Store) WatchRelease(ctx context.Context, key string) (<-chan struct{}, func()) {
	out := make(chan struct{}, 1)
	pubsub := s.client.Subscribe(ctx, s.releaseChannel(key))

	// Wait for the subscription to be confirmed so that no release published
	// after this call is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		s.l.Debugf("Release subscription for %s not confirmed: %v", key, err)
	}

	done := make(chan struct{})
	go func() {
		msgs := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()

	var once sync.Once
	return out, func() {
		once.Do(func() {
			close(done)
			_ = pubsub.Close()
		})
	}
}

// Close closes the Redis client
func (s *Store) Close() {
	if err := s.client.Close(); err != nil {
		s.l.Errorf("Error closing Redis client: %v", err)
	}
}
