// internal/config/loaders.go
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/avivl/lockguard/internal/store/dynamodb"
	"github.com/avivl/lockguard/internal/store/etcd"
	"github.com/avivl/lockguard/internal/store/memory"
	"github.com/avivl/lockguard/internal/store/redis"
	"github.com/avivl/lockguard/internal/store/scylladb"
)

// MemoryConfigLoader loads the in-process store configuration
func MemoryConfigLoader(v *viper.Viper) (*memory.MemoryConfig, error) {
	defaults := memory.NewMemoryConfig()
	v.SetDefault("memoryConfig.ttl", defaults.TTL)

	config := &memory.MemoryConfig{}
	if err := v.UnmarshalKey("memoryConfig", config); err != nil {
		return nil, fmt.Errorf("unable to decode memory store config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid memory store configuration: %w", err)
	}
	return config, nil
}

// RedisConfigLoader loads Redis configuration
func RedisConfigLoader(v *viper.Viper) (*redis.RedisConfig, error) {
	defaults := redis.NewRedisConfig()
	v.SetDefault("redisConfig.host", defaults.Host)
	v.SetDefault("redisConfig.port", defaults.Port)
	v.SetDefault("redisConfig.password", defaults.Password)
	v.SetDefault("redisConfig.db", defaults.DB)
	v.SetDefault("redisConfig.ttl", defaults.TTL)
	v.SetDefault("redisConfig.keyPrefix", defaults.KeyPrefix)
	v.SetDefault("redisConfig.tableName", defaults.TableName)
	v.SetDefault("redisConfig.endpoints", defaults.Endpoints)

	config := &redis.RedisConfig{}
	if err := v.UnmarshalKey("redisConfig", config); err != nil {
		return nil, fmt.Errorf("unable to decode Redis config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid Redis configuration: %w", err)
	}
	return config, nil
}

// ScyllaConfigLoader loads ScyllaDB configuration
func ScyllaConfigLoader(v *viper.Viper) (*scylladb.ScyllaDBConfig, error) {
	defaults := scylladb.NewScyllaDBConfig()
	v.SetDefault("scyllaDbConfig.host", defaults.Host)
	v.SetDefault("scyllaDbConfig.port", defaults.Port)
	v.SetDefault("scyllaDbConfig.keyspace", defaults.Keyspace)
	v.SetDefault("scyllaDbConfig.table", defaults.Table)
	v.SetDefault("scyllaDbConfig.ttl", defaults.TTL)
	v.SetDefault("scyllaDbConfig.consistency", defaults.Consistency)
	v.SetDefault("scyllaDbConfig.replicationFactor", defaults.ReplicationFactor)
	v.SetDefault("scyllaDbConfig.endpoints", defaults.Endpoints)

	config := &scylladb.ScyllaDBConfig{}
	if err := v.UnmarshalKey("scyllaDbConfig", config); err != nil {
		return nil, fmt.Errorf("unable to decode ScyllaDB config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ScyllaDB configuration: %w", err)
	}
	return config, nil
}

// DynamoConfigLoader loads DynamoDB configuration
func DynamoConfigLoader(v *viper.Viper) (*dynamodb.DynamoDBConfig, error) {
	defaults := dynamodb.NewDynamoDBConfig()
	v.SetDefault("dynamoDbConfig.region", defaults.Region)
	v.SetDefault("dynamoDbConfig.table", defaults.Table)
	v.SetDefault("dynamoDbConfig.ttl", defaults.TTL)
	v.SetDefault("dynamoDbConfig.endpoints", defaults.Endpoints)
	v.SetDefault("dynamoDbConfig.profile", "")
	v.SetDefault("dynamoDbConfig.accessKeyId", "")
	v.SetDefault("dynamoDbConfig.secretAccessKey", "")

	config := &dynamodb.DynamoDBConfig{}
	if err := v.UnmarshalKey("dynamoDbConfig", config); err != nil {
		return nil, fmt.Errorf("unable to decode DynamoDB config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid DynamoDB configuration: %w", err)
	}
	return config, nil
}

// EtcdConfigLoader loads etcd configuration
func EtcdConfigLoader(v *viper.Viper) (*etcd.EtcdConfig, error) {
	defaults := etcd.NewEtcdConfig()
	v.SetDefault("etcdConfig.endpoints", defaults.Endpoints)
	v.SetDefault("etcdConfig.dialTimeout", defaults.DialTimeout)
	v.SetDefault("etcdConfig.username", "")
	v.SetDefault("etcdConfig.password", "")
	v.SetDefault("etcdConfig.keyPrefix", defaults.KeyPrefix)
	v.SetDefault("etcdConfig.ttl", defaults.TTL)

	config := &etcd.EtcdConfig{}
	if err := v.UnmarshalKey("etcdConfig", config); err != nil {
		return nil, fmt.Errorf("unable to decode etcd config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid etcd configuration: %w", err)
	}
	return config, nil
}
