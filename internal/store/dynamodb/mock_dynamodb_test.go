// internal/store/dynamodb/mock_dynamodb_test.go
package dynamodb

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/stretchr/testify/mock"

	"github.com/avivl/lockguard/internal/observability"
)

// MockDynamoDBClient is a mock implementation of dynamoDBClient
type MockDynamoDBClient struct {
	mock.Mock
}

// PutItem mocks the PutItem method
func (m *MockDynamoDBClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dynamodb.PutItemOutput), args.Error(1)
}

// DeleteItem mocks the DeleteItem method
func (m *MockDynamoDBClient) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dynamodb.DeleteItemOutput), args.Error(1)
}

// CreateTable mocks the CreateTable method
func (m *MockDynamoDBClient) CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dynamodb.CreateTableOutput), args.Error(1)
}

// DescribeTable mocks the DescribeTable method
func (m *MockDynamoDBClient) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dynamodb.DescribeTableOutput), args.Error(1)
}

// UpdateTimeToLive mocks the UpdateTimeToLive method
func (m *MockDynamoDBClient) UpdateTimeToLive(ctx context.Context, params *dynamodb.UpdateTimeToLiveInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateTimeToLiveOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dynamodb.UpdateTimeToLiveOutput), args.Error(1)
}

// MockTableExistsWaiter is a mock implementation of tableWaiter
type MockTableExistsWaiter struct {
	mock.Mock
}

// Wait mocks the Wait method of the TableExistsWaiter
func (m *MockTableExistsWaiter) Wait(ctx context.Context, params *dynamodb.DescribeTableInput, maxWaitDur time.Duration, optFns ...func(*dynamodb.TableExistsWaiterOptions)) error {
	args := m.Called(ctx, params, maxWaitDur)
	return args.Error(0)
}

// testNow is the fixed clock of stores built by SetupMockStore.
var testNow = time.UnixMilli(1_700_000_000_000)

// SetupMockStore creates a Store backed by a mocked DynamoDB client
func SetupMockStore() (*Store, *MockDynamoDBClient, *MockTableExistsWaiter) {
	mockClient := new(MockDynamoDBClient)
	mockWaiter := new(MockTableExistsWaiter)
	logger, _, _ := observability.NewTestLogger()

	config := &DynamoDBConfig{
		Region:          "us-east-1",
		Table:           "test_table",
		TTL:             15,
		Endpoints:       []string{"http://localhost:8000"},
		AccessKeyID:     "dummy",
		SecretAccessKey: "dummy",
	}

	s := &Store{
		client:    mockClient,
		waiter:    mockWaiter,
		tableName: config.Table,
		logger:    logger,
		config:    config,
		now:       func() time.Time { return testNow },
	}
	return s, mockClient, mockWaiter
}
