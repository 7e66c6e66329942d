// internal/store/redis/mock_redis_test.go
package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
)

// MockRedisClient is a mock for the Redis client
type MockRedisClient struct {
	mock.Mock
}

// SetNX mocks the SetNX method
func (m *MockRedisClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	args := m.Called(ctx, key, value, expiration)
	return args.Get(0).(*redis.BoolCmd)
}

// Publish mocks the Publish method
func (m *MockRedisClient) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	args := m.Called(ctx, channel, message)
	return args.Get(0).(*redis.IntCmd)
}

// Subscribe mocks the Subscribe method
func (m *MockRedisClient) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	args := m.Called(ctx, channels)
	return args.Get(0).(*redis.PubSub)
}

// Eval mocks the Eval method
func (m *MockRedisClient) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	called := m.Called(ctx, script, keys, args)
	return called.Get(0).(*redis.Cmd)
}

// EvalSha mocks the EvalSha method
func (m *MockRedisClient) EvalSha(ctx context.Context, sha1 string, keys []string, args ...interface{}) *redis.Cmd {
	called := m.Called(ctx, sha1, keys, args)
	return called.Get(0).(*redis.Cmd)
}

// EvalRO mocks the EvalRO method
func (m *MockRedisClient) EvalRO(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	called := m.Called(ctx, script, keys, args)
	return called.Get(0).(*redis.Cmd)
}

// EvalShaRO mocks the EvalShaRO method
func (m *MockRedisClient) EvalShaRO(ctx context.Context, sha1 string, keys []string, args ...interface{}) *redis.Cmd {
	called := m.Called(ctx, sha1, keys, args)
	return called.Get(0).(*redis.Cmd)
}

// ScriptExists mocks the ScriptExists method
func (m *MockRedisClient) ScriptExists(ctx context.Context, hashes ...string) *redis.BoolSliceCmd {
	args := m.Called(ctx, hashes)
	return args.Get(0).(*redis.BoolSliceCmd)
}

// ScriptLoad mocks the ScriptLoad method
func (m *MockRedisClient) ScriptLoad(ctx context.Context, script string) *redis.StringCmd {
	args := m.Called(ctx, script)
	return args.Get(0).(*redis.StringCmd)
}

// Ping mocks the Ping method
func (m *MockRedisClient) Ping(ctx context.Context) *redis.StatusCmd {
	args := m.Called(ctx)
	return args.Get(0).(*redis.StatusCmd)
}

// Close mocks the Close method
func (m *MockRedisClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

func mockBoolCmd(val bool, err error) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(context.Background())
	cmd.SetVal(val)
	cmd.SetErr(err)
	return cmd
}

func mockStatusCmd(val string, err error) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(context.Background())
	cmd.SetVal(val)
	cmd.SetErr(err)
	return cmd
}

func mockCmd(val interface{}, err error) *redis.Cmd {
	cmd := redis.NewCmd(context.Background())
	cmd.SetVal(val)
	cmd.SetErr(err)
	return cmd
}

// SetupMockStore returns a store wired to a mock client whose Ping succeeds.
func SetupMockStore() (*Store, *MockRedisClient) {
	mockClient := new(MockRedisClient)
	mockClient.On("Ping", mock.Anything).Return(mockStatusCmd("PONG", nil))

	original := newRedisClientFn
	newRedisClientFn = func(addr string, password string, db int) redisClient {
		return mockClient
	}
	defer func() { newRedisClientFn = original }()

	s, err := New(context.Background(), NewRedisConfig(), nil)
	if err != nil {
		panic(err)
	}
	return s, mockClient
}
