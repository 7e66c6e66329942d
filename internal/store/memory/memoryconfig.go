// internal/store/memory/memoryconfig.go
package memory

import "errors"

// MemoryConfig holds configuration for the in-process store
type MemoryConfig struct {
	TTL int32 `yaml:"ttl"`
}

// NewMemoryConfig creates a new in-process store configuration with default values
func NewMemoryConfig() *MemoryConfig {
	return &MemoryConfig{TTL: 15}
}

// GetTableName returns a placeholder since the in-process store has no tables
func (c *MemoryConfig) GetTableName() string {
	return "memory-store"
}

// GetTTL returns the configured TTL
func (c *MemoryConfig) GetTTL() int32 {
	return c.TTL
}

// GetEndpoints returns no endpoints; the store lives in the current process
func (c *MemoryConfig) GetEndpoints() []string {
	return nil
}

// Validate ensures the configuration is valid
func (c *MemoryConfig) Validate() error {
	if c.TTL <= 0 {
		return errors.New("TTL must be positive")
	}
	return nil
}
