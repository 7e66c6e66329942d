// internal/config/config.go

// Package config loads lockguard configuration from YAML files and
// LOCKGUARD_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/avivl/lockguard/internal/guard"
	"github.com/avivl/lockguard/internal/lockservice"
	"github.com/avivl/lockguard/internal/observability"
	"github.com/avivl/lockguard/internal/store"
)

// EnvPrefix prefixes every environment override, e.g.
// LOCKGUARD_REDISCONFIG_HOST.
const EnvPrefix = "LOCKGUARD"

// ConfigLoader handles loading of configurations
type ConfigLoader struct {
	v             *viper.Viper
	l             *observability.SLogger
	mu            sync.RWMutex
	watchers      []func(interface{})
	currentConfig interface{}
}

// ConfigLoadFn defines a function type for loading specific configurations
type ConfigLoadFn[T store.StoreConfig] func(*viper.Viper) (T, error)

// GlobalConfig represents the complete application configuration
type GlobalConfig[T store.StoreConfig] struct {
	Store         T                          `yaml:"-"`
	Backend       BackendConfig              `yaml:"backend"`
	Observability observability.Config       `yaml:"observability"`
	Logger        observability.LoggerConfig `yaml:"logger"`
	Client        ClientConfig               `yaml:"client"`
	// Locks holds named lock declarations. Names are lower-cased on load.
	Locks map[string]guard.LockSpec `yaml:"locks"`
}

// BackendConfig selects the lock store
type BackendConfig struct {
	Type string `yaml:"type"`
}

// ClientConfig tunes the lock client and the guard built on it
type ClientConfig struct {
	RetryInterval    time.Duration               `yaml:"retryInterval"`
	MaxRetryInterval time.Duration               `yaml:"maxRetryInterval"`
	ReleaseTimeout   time.Duration               `yaml:"releaseTimeout"`
	Breaker          lockservice.BreakerSettings `yaml:"breaker"`
}

// Options converts the retry settings into lock client options.
func (c ClientConfig) Options() []lockservice.ClientOption {
	return []lockservice.ClientOption{
		lockservice.WithRetryInterval(c.RetryInterval),
		lockservice.WithMaxRetryInterval(c.MaxRetryInterval),
	}
}

// LoaderOption configures a ConfigLoader.
type LoaderOption func(*ConfigLoader)

// WithLogger reports reloads and reload failures on l.
func WithLogger(l *observability.SLogger) LoaderOption {
	return func(cl *ConfigLoader) {
		if l != nil {
			cl.l = l
		}
	}
}

// NewConfigLoader creates a loader reading configPath, which may be a YAML
// file or a directory holding one.
func NewConfigLoader(configPath string, opts ...LoaderOption) *ConfigLoader {
	v := viper.New()
	v.SetConfigType("yaml")
	if file, err := resolveConfigFilePath(configPath); err == nil {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		if configPath != "" {
			v.AddConfigPath(configPath)
		}
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cl := &ConfigLoader{
		v:        v,
		l:        observability.NewNopLogger(),
		watchers: make([]func(interface{}), 0),
	}
	for _, opt := range opts {
		opt(cl)
	}
	return cl
}

// AddWatcher adds a callback function that will be called when configuration changes
func (cl *ConfigLoader) AddWatcher(callback func(interface{})) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	cl.watchers = append(cl.watchers, callback)
}

// GetCurrentConfig returns the current configuration
func (cl *ConfigLoader) GetCurrentConfig() interface{} {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return cl.currentConfig
}

// ConfigFile returns the file the configuration was read from, if any.
func (cl *ConfigLoader) ConfigFile() string {
	return cl.v.ConfigFileUsed()
}

func (cl *ConfigLoader) notifyWatchers(newConfig interface{}) {
	cl.mu.RLock()
	watchers := append([]func(interface{}){}, cl.watchers...)
	cl.mu.RUnlock()
	for _, watcher := range watchers {
		watcher(newConfig)
	}
}

// LoadConfig loads the complete application configuration including store
// config. A missing configuration file is not an error: defaults and
// environment variables apply.
func LoadConfig[T store.StoreConfig](configPath string, loadFn ConfigLoadFn[T], opts ...LoaderOption) (*ConfigLoader, *GlobalConfig[T], error) {
	cl := NewConfigLoader(configPath, opts...)

	setDefaults(cl.v)

	fileRead := true
	if err := cl.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("error reading config file: %w", err)
		}
		fileRead = false
		cl.l.Infow("No config file found, using defaults and environment variables", "path", configPath)
	}

	config, err := loadConfiguration(cl.v, loadFn)
	if err != nil {
		return nil, nil, err
	}

	cl.mu.Lock()
	cl.currentConfig = config
	cl.mu.Unlock()

	if fileRead {
		cl.v.OnConfigChange(func(e fsnotify.Event) {
			cl.l.Infow("Config file changed", "file", e.Name)

			newConfig, err := loadConfiguration(cl.v, loadFn)
			if err != nil {
				cl.l.Errorw("Error reloading configuration", "file", e.Name, "error", err)
				return
			}

			cl.mu.Lock()
			cl.currentConfig = newConfig
			cl.mu.Unlock()

			cl.notifyWatchers(newConfig)
		})
		cl.v.WatchConfig()
	}

	return cl, config, nil
}

func loadConfiguration[T store.StoreConfig](v *viper.Viper, loadFn ConfigLoadFn[T]) (*GlobalConfig[T], error) {
	storeConfig, err := loadFn(v)
	if err != nil {
		return nil, fmt.Errorf("failed to load store config: %w", err)
	}

	config := &GlobalConfig[T]{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode global config: %w", err)
	}
	config.Store = storeConfig

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// validateConfig validates all configuration sections
func validateConfig[T store.StoreConfig](cfg *GlobalConfig[T]) error {
	if err := cfg.Store.Validate(); err != nil {
		return fmt.Errorf("store configuration error: %w", err)
	}

	if cfg.Observability.ServiceName == "" {
		return errors.New("service name is required")
	}
	if cfg.Observability.ServiceVersion == "" {
		return errors.New("service version is required")
	}
	if cfg.Observability.Environment == "" {
		return errors.New("environment is required")
	}
	if cfg.Observability.Enabled && cfg.Observability.OTelEndpoint == "" {
		return errors.New("OpenTelemetry endpoint is required when observability is enabled")
	}

	if cfg.Client.RetryInterval < 0 || cfg.Client.MaxRetryInterval < 0 || cfg.Client.ReleaseTimeout < 0 {
		return errors.New("client intervals must not be negative")
	}

	for name, spec := range cfg.Locks {
		if _, err := spec.Configuration(); err != nil {
			return fmt.Errorf("lock %q: %w", name, err)
		}
	}
	return nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	v.SetDefault("observability.enabled", false)
	v.SetDefault("observability.serviceName", "lockguard")
	v.SetDefault("observability.serviceVersion", "0.1.0")
	v.SetDefault("observability.environment", "development")
	v.SetDefault("observability.otelEndpoint", "localhost:4317")

	v.SetDefault("logger.level", string(observability.LogLevelInfo))

	v.SetDefault("client.retryInterval", lockservice.DefaultRetryInterval)
	v.SetDefault("client.maxRetryInterval", lockservice.DefaultMaxRetryInterval)
	v.SetDefault("client.releaseTimeout", guard.DefaultReleaseTimeout)

	breaker := lockservice.DefaultBreakerSettings()
	v.SetDefault("client.breaker.enabled", breaker.Enabled)
	v.SetDefault("client.breaker.maxFailures", breaker.MaxFailures)
	v.SetDefault("client.breaker.openTimeout", breaker.OpenTimeout)
	v.SetDefault("client.breaker.halfOpenRequests", breaker.HalfOpenRequests)
}
