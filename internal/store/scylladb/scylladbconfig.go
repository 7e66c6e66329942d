// internal/store/scylladb/scylladbconfig.go
package scylladb

import (
	"errors"
	"fmt"
	"strings"
)

// ScyllaDBConfig holds ScyllaDB-specific configuration
type ScyllaDBConfig struct {
	Host              string   `yaml:"host"`
	Port              int32    `yaml:"port"`
	Keyspace          string   `yaml:"keyspace"`
	Table             string   `yaml:"table"`
	TTL               int32    `yaml:"ttl"`
	Consistency       string   `yaml:"consistency"`
	ReplicationFactor int      `yaml:"replicationFactor"`
	Endpoints         []string `yaml:"endpoints"`
}

// NewScyllaDBConfig creates a new ScyllaDB configuration with default values
func NewScyllaDBConfig() *ScyllaDBConfig {
	return &ScyllaDBConfig{
		Host:              "127.0.0.1",
		Port:              9042,
		Keyspace:          "lockguard",
		Table:             "locks",
		TTL:               15,
		Consistency:       "CONSISTENCY_QUORUM",
		ReplicationFactor: 1,
		Endpoints:         []string{"localhost:9042"},
	}
}

func (c *ScyllaDBConfig) GetTableName() string {
	return c.Table
}

func (c *ScyllaDBConfig) GetTTL() int32 {
	return c.TTL
}

func (c *ScyllaDBConfig) GetEndpoints() []string {
	return c.Endpoints
}

// GetType returns the registered store name
func (c *ScyllaDBConfig) GetType() string {
	return StoreName
}

func (c *ScyllaDBConfig) Validate() error {
	var errs []string
	if c.Host == "" {
		errs = append(errs, "host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, "port must be between 1 and 65535")
	}
	if c.Keyspace == "" {
		errs = append(errs, "keyspace is required")
	}
	if c.Table == "" {
		errs = append(errs, "table is required")
	}
	if c.TTL <= 0 {
		errs = append(errs, "TTL must be positive")
	}
	if _, ok := consistencies[c.Consistency]; !ok {
		errs = append(errs, fmt.Sprintf("unknown consistency %q", c.Consistency))
	}
	if c.ReplicationFactor < 0 {
		errs = append(errs, "replication factor must be non-negative")
	}
	if len(c.Endpoints) == 0 {
		errs = append(errs, "at least one endpoint is required")
	}

	if len(errs) > 0 {
		return errors.New("store validation failed: " + strings.Join(errs, "; "))
	}
	return nil
}

// Hosts returns the contact points of the cluster
func (c *ScyllaDBConfig) Hosts() []string {
	if len(c.Endpoints) > 0 {
		return c.Endpoints
	}
	return []string{fmt.Sprintf("%s:%d", c.Host, c.Port)}
}
