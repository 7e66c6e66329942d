// internal/store/dynamodb/dynamodbconfig.go
package dynamodb

import (
	"errors"
)

// DynamoDBConfig holds DynamoDB-specific configuration
type DynamoDBConfig struct {
	Region          string   `yaml:"region"`
	Table           string   `yaml:"table"`
	TTL             int32    `yaml:"ttl"`
	Endpoints       []string `yaml:"endpoints"`
	Profile         string   `yaml:"profile,omitempty"`
	AccessKeyID     string   `yaml:"accessKeyId,omitempty"`
	SecretAccessKey string   `yaml:"secretAccessKey,omitempty"`
}

func (c *DynamoDBConfig) GetTableName() string {
	return c.Table
}

func (c *DynamoDBConfig) GetTTL() int32 {
	return c.TTL
}

// GetEndpoints returns endpoint overrides. Without one the AWS default
// resolution for Region applies.
func (c *DynamoDBConfig) GetEndpoints() []string {
	return c.Endpoints
}

// GetType returns the registered store name
func (c *DynamoDBConfig) GetType() string {
	return StoreName
}

func (c *DynamoDBConfig) Validate() error {
	if c.Region == "" {
		return errors.New("region is required")
	}
	if c.Table == "" {
		return errors.New("table is required")
	}
	if c.TTL <= 0 {
		return errors.New("invalid TTL")
	}
	for _, endpoint := range c.Endpoints {
		if endpoint == "" {
			return errors.New("endpoint cannot be empty")
		}
	}
	// Check if credentials are provided consistently
	if (c.AccessKeyID != "" && c.SecretAccessKey == "") ||
		(c.AccessKeyID == "" && c.SecretAccessKey != "") {
		return errors.New("both access key and secret key must be provided together")
	}
	return nil
}

// NewDynamoDBConfig creates a new DynamoDB configuration with default values
func NewDynamoDBConfig() *DynamoDBConfig {
	return &DynamoDBConfig{
		Region:    "us-west-2",
		Table:     "lockguard",
		TTL:       15,
		Endpoints: []string{},
	}
}
