// internal/store/scylladb/mock_scylladb_test.go
package scylladb

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/avivl/lockguard/internal/observability"
)

// MockSession is a mock implementation of session
type MockSession struct {
	mock.Mock
}

// Close implements the Session.Close method
func (m *MockSession) Close() {
	m.Called()
}

// Query implements the Session.Query method
func (m *MockSession) Query(stmt string, values ...interface{}) query {
	args := m.Called(stmt, values)
	return args.Get(0).(query)
}

// MockQuery is a mock implementation of query
type MockQuery struct {
	mock.Mock
}

// Exec implements the Query.Exec method
func (m *MockQuery) Exec() error {
	args := m.Called()
	return args.Error(0)
}

// ScanCAS implements the Query.ScanCAS method. A string third argument is
// written to the last destination, as the previous token of a failed
// transaction.
func (m *MockQuery) ScanCAS(dest ...interface{}) (bool, error) {
	args := m.Called(dest)
	if len(args) > 2 {
		if previous, ok := args.Get(2).(string); ok && len(dest) > 0 {
			*dest[len(dest)-1].(*string) = previous
		}
	}
	return args.Bool(0), args.Error(1)
}

// WithContext implements the Query.WithContext method
func (m *MockQuery) WithContext(ctx context.Context) query {
	m.Called(ctx)
	return m
}

// SetupStoreWithMocks creates a Store backed by a mocked session
func SetupStoreWithMocks() (*Store, *MockSession) {
	mockSession := new(MockSession)
	logger, _, _ := observability.NewTestLogger()

	s := &Store{
		session:       mockSession,
		fullTableName: `"test_keyspace"."test_table"`,
		l:             logger,
		config:        &ScyllaDBConfig{TTL: 15},
		acquireQuery:  `INSERT INTO "test_keyspace"."test_table" (lock_key, token) VALUES (?, ?) IF NOT EXISTS USING TTL ?`,
		releaseQuery:  `DELETE FROM "test_keyspace"."test_table" WHERE lock_key = ? IF token = ?`,
	}
	return s, mockSession
}
