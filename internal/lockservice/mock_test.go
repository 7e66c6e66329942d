// internal/lockservice/mock_test.go
package lockservice

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/avivl/lockguard/internal/observability"
	"github.com/avivl/lockguard/internal/store"
)

const testStoreName = "mock"

// MockConfig implements store.StoreConfig
type MockConfig struct {
	TTL       int32
	Endpoints []string
	Table     string
}

// Validate validates the configuration
func (c MockConfig) Validate() error {
	return nil
}

// GetEndpoints returns the endpoints
func (c MockConfig) GetEndpoints() []string {
	return c.Endpoints
}

// GetTTL returns the TTL value
func (c MockConfig) GetTTL() int32 {
	return c.TTL
}

// GetTableName returns the table name
func (c MockConfig) GetTableName() string {
	return c.Table
}

// newStore is the constructor registered under testStoreName.
func newStore(_ context.Context, options Config, _ *observability.SLogger) (store.LockStore, error) {
	cfg, ok := options.(*MockConfig)
	if !ok && options != nil {
		return nil, &store.InvalidConfigurationError{Store: testStoreName, Config: options}
	}
	if cfg == nil {
		cfg = &MockConfig{TTL: 15, Table: testStoreName}
	}
	return &MockStore{cfg: cfg}, nil
}

// MockStore is a testify mock of a store without a wait queue or
// notifications.
type MockStore struct {
	mock.Mock
	cfg *MockConfig
}

// TryAcquire mocks store.LockStore.TryAcquire
func (m *MockStore) TryAcquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, token, ttl)
	return args.Bool(0), args.Error(1)
}

// Release mocks store.LockStore.Release
func (m *MockStore) Release(ctx context.Context, key, token string) error {
	args := m.Called(ctx, key, token)
	return args.Error(0)
}

// Close closes the Mock store
func (m *MockStore) Close() {
	m.Called()
}

// GetConfig returns the current store configuration
func (m *MockStore) GetConfig() store.StoreConfig {
	return m.cfg
}

// MockFairStore adds a mocked wait queue to MockStore.
type MockFairStore struct {
	MockStore
}

// TryAcquireFair mocks store.FairQueue.TryAcquireFair
func (m *MockFairStore) TryAcquireFair(ctx context.Context, key, token string, ttl, waiterTTL time.Duration) (bool, error) {
	args := m.Called(ctx, key, token, ttl, waiterTTL)
	return args.Bool(0), args.Error(1)
}

// Abandon mocks store.FairQueue.Abandon
func (m *MockFairStore) Abandon(ctx context.Context, key, token string) error {
	args := m.Called(ctx, key, token)
	return args.Error(0)
}

func newMockStore() *MockStore {
	return &MockStore{cfg: &MockConfig{TTL: 15, Table: testStoreName}}
}

func newMockFairStore() *MockFairStore {
	return &MockFairStore{MockStore: MockStore{cfg: &MockConfig{TTL: 15, Table: testStoreName}}}
}
