// internal/store/etcd/etcdconfig.go
package etcd

import (
	"errors"
	"strings"
	"time"
)

// EtcdConfig holds etcd-specific configuration
type EtcdConfig struct {
	Endpoints   []string      `yaml:"endpoints"`
	DialTimeout time.Duration `yaml:"dialTimeout"`
	Username    string        `yaml:"username,omitempty"`
	Password    string        `yaml:"password,omitempty"`
	KeyPrefix   string        `yaml:"keyPrefix"`
	TTL         int32         `yaml:"ttl"`
}

// NewEtcdConfig creates a new etcd configuration with default values
func NewEtcdConfig() *EtcdConfig {
	return &EtcdConfig{
		Endpoints:   []string{"localhost:2379"},
		DialTimeout: 5 * time.Second,
		KeyPrefix:   "/lockguard",
		TTL:         15,
	}
}

// GetTableName returns the key prefix under which locks live
func (c *EtcdConfig) GetTableName() string {
	return c.KeyPrefix
}

func (c *EtcdConfig) GetTTL() int32 {
	return c.TTL
}

func (c *EtcdConfig) GetEndpoints() []string {
	return c.Endpoints
}

// GetType returns the registered store name
func (c *EtcdConfig) GetType() string {
	return StoreName
}

// Validate fills unset fields with defaults and ensures the configuration is valid
func (c *EtcdConfig) Validate() error {
	defaults := NewEtcdConfig()
	if c.DialTimeout == 0 {
		c.DialTimeout = defaults.DialTimeout
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = defaults.KeyPrefix
	}
	if c.TTL == 0 {
		c.TTL = defaults.TTL
	}

	var errs []string
	if len(c.Endpoints) == 0 {
		errs = append(errs, "at least one endpoint is required")
	}
	for _, endpoint := range c.Endpoints {
		if endpoint == "" {
			errs = append(errs, "endpoint cannot be empty")
			break
		}
	}
	if c.DialTimeout < 0 {
		errs = append(errs, "dial timeout must be positive")
	}
	if c.TTL < 0 {
		errs = append(errs, "TTL must be positive")
	}
	if (c.Username == "") != (c.Password == "") {
		errs = append(errs, "both username and password must be provided together")
	}

	if len(errs) > 0 {
		return errors.New("store validation failed: " + strings.Join(errs, "; "))
	}
	return nil
}
