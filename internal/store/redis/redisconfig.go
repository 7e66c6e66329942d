// internal/store/redis/redisconfig.go

package redis

import (
	"errors"
	"fmt"
	"strings"
)

// RedisConfig holds Redis-specific configuration
type RedisConfig struct {
	Host      string   `yaml:"host"`
	Port      int      `yaml:"port"`
	Password  string   `yaml:"password"`
	DB        int      `yaml:"db"`
	TTL       int32    `yaml:"ttl"`
	KeyPrefix string   `yaml:"keyPrefix"`
	TableName string   `yaml:"tableName"`
	Endpoints []string `yaml:"endpoints"`
}

// NewRedisConfig creates a new Redis configuration with default values
func NewRedisConfig() *RedisConfig {
	return &RedisConfig{
		Host:      "localhost",
		Port:      6379,
		Password:  "",
		DB:        0,
		TTL:       15,
		KeyPrefix: "lock",
		TableName: "locks",
		Endpoints: []string{},
	}
}

// Validate fills unset fields with defaults and ensures the configuration is valid
func (c *RedisConfig) Validate() error {
	defaults := NewRedisConfig()
	if c.Host == "" {
		c.Host = defaults.Host
	}
	if c.Port == 0 {
		c.Port = defaults.Port
	}
	if c.TTL == 0 {
		c.TTL = defaults.TTL
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = defaults.KeyPrefix
	}
	if c.TableName == "" {
		c.TableName = defaults.TableName
	}

	var errs []string
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, "port must be between 1 and 65535")
	}
	if c.TTL < 0 {
		errs = append(errs, "TTL must be positive")
	}
	if c.DB < 0 {
		errs = append(errs, "DB number must be non-negative")
	}
	for i, endpoint := range c.Endpoints {
		if endpoint == "" {
			errs = append(errs, fmt.Sprintf("endpoint %d: address cannot be empty", i))
		}
	}

	if len(errs) > 0 {
		return errors.New("store validation failed: " + strings.Join(errs, "; "))
	}
	return nil
}

// Addr returns the address the client connects to
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// String returns a string representation of the Redis configuration
func (c *RedisConfig) String() string {
	return fmt.Sprintf(
		"RedisConfig{Host: %s, Port: %d, DB: %d, TTL: %d, KeyPrefix: %s, Endpoints: %v}",
		c.Host,
		c.Port,
		c.DB,
		c.TTL,
		c.KeyPrefix,
		c.Endpoints,
	)
}

// Clone creates a deep copy of the Redis configuration
func (c *RedisConfig) Clone() *RedisConfig {
	clone := *c
	clone.Endpoints = append([]string(nil), c.Endpoints...)
	return &clone
}

// GetType returns the registered store name
func (c *RedisConfig) GetType() string {
	return StoreName
}

// GetTableName returns the logical name of the lock namespace
func (c *RedisConfig) GetTableName() string {
	if c.TableName == "" {
		return "locks"
	}
	return c.TableName
}

// GetTTL returns the configured TTL
func (c *RedisConfig) GetTTL() int32 {
	if c.TTL == 0 {
		return 15
	}
	return c.TTL
}

// GetEndpoints returns the explicit endpoints, or the host when none are set
func (c *RedisConfig) GetEndpoints() []string {
	if len(c.Endpoints) > 0 {
		return c.Endpoints
	}
	if c.Host == "" {
		return []string{}
	}
	return []string{c.Host}
}
