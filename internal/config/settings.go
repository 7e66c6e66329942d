// internal/config/settings.go
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/avivl/lockguard/internal/guard"
	"github.com/avivl/lockguard/internal/observability"
	"github.com/avivl/lockguard/internal/store"
	"github.com/avivl/lockguard/internal/store/dynamodb"
	"github.com/avivl/lockguard/internal/store/etcd"
	"github.com/avivl/lockguard/internal/store/memory"
	"github.com/avivl/lockguard/internal/store/redis"
	"github.com/avivl/lockguard/internal/store/scylladb"
)

// Settings is a loaded configuration with the store section left as an
// interface, for callers that pick the backend at run time.
type Settings struct {
	Backend       string
	Store         store.StoreConfig
	Observability observability.Config
	Logger        observability.LoggerConfig
	Client        ClientConfig
	Locks         map[string]guard.LockSpec
}

// Lock returns the lock declared under name. Lookup ignores case.
func (s *Settings) Lock(name string) (guard.LockSpec, bool) {
	spec, ok := s.Locks[strings.ToLower(name)]
	return spec, ok
}

func settingsOf[T store.StoreConfig](backend string, cfg *GlobalConfig[T]) *Settings {
	return &Settings{
		Backend:       backend,
		Store:         cfg.Store,
		Observability: cfg.Observability,
		Logger:        cfg.Logger,
		Client:        cfg.Client,
		Locks:         cfg.Locks,
	}
}

func loadAs[T store.StoreConfig](backend, configPath string, loadFn ConfigLoadFn[T], opts []LoaderOption) (*ConfigLoader, *Settings, error) {
	cl, cfg, err := LoadConfig[T](configPath, loadFn, opts...)
	if err != nil {
		return nil, nil, err
	}
	return cl, settingsOf(backend, cfg), nil
}

// Load detects the backend of configPath and loads the configuration for it.
// Without a configuration file or a backend override the in-process store
// is used.
func Load(configPath string, opts ...LoaderOption) (*ConfigLoader, *Settings, error) {
	backend, err := DetectBackendType(configPath)
	if err != nil {
		if !errors.Is(err, ErrConfigNotFound) {
			return nil, nil, err
		}
		backend = memory.StoreName
	}

	switch backend {
	case memory.StoreName:
		return loadAs[*memory.MemoryConfig](backend, configPath, MemoryConfigLoader, opts)
	case redis.StoreName:
		return loadAs[*redis.RedisConfig](backend, configPath, RedisConfigLoader, opts)
	case dynamodb.StoreName:
		return loadAs[*dynamodb.DynamoDBConfig](backend, configPath, DynamoConfigLoader, opts)
	case scylladb.StoreName:
		return loadAs[*scylladb.ScyllaDBConfig](backend, configPath, ScyllaConfigLoader, opts)
	case etcd.StoreName:
		return loadAs[*etcd.EtcdConfig](backend, configPath, EtcdConfigLoader, opts)
	default:
		return nil, nil, fmt.Errorf("unsupported backend type: %s", backend)
	}
}
