// internal/store/storeconfig.go
package store

import "time"

// StoreConfig is implemented by every backend configuration.
type StoreConfig interface {
	GetTableName() string
	// GetTTL returns the default hold duration, in seconds, applied when a
	// caller does not ask for one.
	GetTTL() int32
	GetEndpoints() []string

	Validate() error
}

// DefaultTTL converts the configured TTL of cfg to a duration, falling back
// to 15 seconds when cfg is nil or the value is not positive.
func DefaultTTL(cfg StoreConfig) time.Duration {
	if cfg == nil || cfg.GetTTL() <= 0 {
		return 15 * time.Second
	}
	return time.Duration(cfg.GetTTL()) * time.Second
}

// ResolveTTL returns ttl when positive and the store default otherwise.
func ResolveTTL(ttl time.Duration, cfg StoreConfig) time.Duration {
	if ttl > 0 {
		return ttl
	}
	return DefaultTTL(cfg)
}
