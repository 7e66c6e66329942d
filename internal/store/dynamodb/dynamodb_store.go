// internal/store/dynamodb/dynamodb_store.go
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/avivl/lockguard/internal/lockservice"
	"github.com/avivl/lockguard/internal/observability"
	"github.com/avivl/lockguard/internal/store"
)

// StoreName is the registered name of the DynamoDB store
const StoreName = "dynamodb"

// Item attributes. ExpiresAt is in unix milliseconds and decides ownership;
// TTL is in unix seconds and only lets DynamoDB purge stale items.
const (
	attrKey       = "PK"
	attrToken     = "Token"
	attrExpiresAt = "ExpiresAt"
	attrTTL       = "TTL"
)

// tableCreationTimeout bounds the wait for a newly created table to become active.
const tableCreationTimeout = 5 * time.Minute

// dynamoDBClient is the part of the AWS DynamoDB client the store uses
type dynamoDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	UpdateTimeToLive(ctx context.Context, params *dynamodb.UpdateTimeToLiveInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateTimeToLiveOutput, error)
}

// tableWaiter waits for a table to become active
type tableWaiter interface {
	Wait(ctx context.Context, params *dynamodb.DescribeTableInput, maxWaitDur time.Duration, optFns ...func(*dynamodb.TableExistsWaiterOptions)) error
}

// Factory function for creating DynamoDB clients
// Can be replaced during tests for mocking
var newDynamoDBClientFn = func(ctx context.Context, config *DynamoDBConfig) (dynamoDBClient, tableWaiter, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	loadOpts = append(loadOpts, awsconfig.WithRegion(config.Region))

	// Use static credentials if provided
	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.SecretAccessKey, ""),
		))
	}
	if config.Profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(config.Profile))
	}

	awsConfig, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, nil, err
	}

	client := dynamodb.NewFromConfig(awsConfig, func(o *dynamodb.Options) {
		if len(config.Endpoints) > 0 {
			o.BaseEndpoint = aws.String(endpointURL(config.Endpoints[0]))
		}
	})
	return client, dynamodb.NewTableExistsWaiter(client), nil
}

func endpointURL(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	return "https://" + endpoint
}

// Register the DynamoDB store with the lockservice package
func init() {
	lockservice.Register(StoreName, newStore)
}

func newStore(ctx context.Context, options lockservice.Config, logger *observability.SLogger) (store.LockStore, error) {
	cfg, ok := options.(*DynamoDBConfig)
	if !ok && options != nil {
		return nil, &store.InvalidConfigurationError{Store: StoreName, Config: options}
	}
	return NewStore(ctx, cfg, logger)
}

// Store keeps one item per lock key, conditionally written and deleted
type Store struct {
	client    dynamoDBClient
	waiter    tableWaiter
	tableName string
	logger    *observability.SLogger
	config    *DynamoDBConfig
	now       func() time.Time
}

// GetConfig returns the current store configuration
func (s *Store) GetConfig() store.StoreConfig {
	return s.config
}

// NewStore creates a new DynamoDB store, creating the table when missing
func NewStore(ctx context.Context, config *DynamoDBConfig, logger *observability.SLogger) (*Store, error) {
	if config == nil {
		return nil, errors.New("config cannot be nil")
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, waiter, err := newDynamoDBClientFn(ctx, config)
	if err != nil {
		logger.Errorf("Failed to load AWS config: %v", err)
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s := &Store{
		client:    client,
		waiter:    waiter,
		tableName: config.Table,
		logger:    logger,
		config:    config,
		now:       time.Now,
	}

	if err := s.ensureTableExists(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// ensureTableExists checks if the DynamoDB table exists and creates it if it doesn't
func (s *Store) ensureTableExists(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.tableName),
	})
	if err == nil {
		return nil
	}

	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		s.logger.Errorf("Failed to describe table: %v", err)
		return fmt.Errorf("failed to describe table: %w", err)
	}

	_, err = s.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(s.tableName),
		AttributeDefinitions: []types.AttributeDefinition{
			{
				AttributeName: aws.String(attrKey),
				AttributeType: types.ScalarAttributeTypeS,
			},
		},
		KeySchema: []types.KeySchemaElement{
			{
				AttributeName: aws.String(attrKey),
				KeyType:       types.KeyTypeHash,
			},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		s.logger.Errorf("Failed to create table: %v", err)
		return fmt.Errorf("failed to create table: %w", err)
	}

	err = s.waiter.Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.tableName),
	}, tableCreationTimeout)
	if err != nil {
		s.logger.Errorf("Failed to wait for table creation: %v", err)
		return fmt.Errorf("failed to wait for table creation: %w", err)
	}

	_, err = s.client.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
		TableName: aws.String(s.tableName),
		TimeToLiveSpecification: &types.TimeToLiveSpecification{
			AttributeName: aws.String(attrTTL),
			Enabled:       aws.Bool(true),
		},
	})
	if err != nil {
		s.logger.Warnf("Failed to enable TTL on table %s: %v", s.tableName, err)
	}
	return nil
}

// TryAcquire writes the lock item when it is absent or expired.
func (s *Store) TryAcquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	if key == "" {
		return false, store.ErrInvalidKey
	}

	now := s.now()
	expiresAt := now.Add(store.ResolveTTL(ttl, s.config))

	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			attrKey:       &types.AttributeValueMemberS{Value: key},
			attrToken:     &types.AttributeValueMemberS{Value: token},
			attrExpiresAt: millis(expiresAt),
			attrTTL:       &types.AttributeValueMemberN{Value: strconv.FormatInt(expiresAt.Unix()+1, 10)},
		},
		ConditionExpression: aws.String("attribute_not_exists(#pk) OR #expiresAt < :now"),
		ExpressionAttributeNames: map[string]string{
			"#pk":        attrKey,
			"#expiresAt": attrExpiresAt,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": millis(now),
		},
	})
	if err == nil {
		return true, nil
	}

	var conditionFailed *types.ConditionalCheckFailedException
	if errors.As(err, &conditionFailed) {
		return false, nil
	}
	s.logger.Errorf("Error acquiring lock: %v", err)
	return false, fmt.Errorf("dynamodb acquire %q: %w", key, err)
}

// Release deletes the lock item when token owns it and it has not expired.
func (s *Store) Release(ctx context.Context, key, token string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			attrKey: &types.AttributeValueMemberS{Value: key},
		},
		ConditionExpression: aws.String("#token = :token AND #expiresAt >= :now"),
		ExpressionAttributeNames: map[string]string{
			"#token":     attrToken,
			"#expiresAt": attrExpiresAt,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":token": &types.AttributeValueMemberS{Value: token},
			":now":   millis(s.now()),
		},
	})
	if err == nil {
		return nil
	}

	var conditionFailed *types.ConditionalCheckFailedException
	if errors.As(err, &conditionFailed) {
		return store.ErrLockNotHeld
	}
	s.logger.Errorf("Error releasing lock: %v", err)
	return fmt.Errorf("dynamodb release %q: %w", key, err)
}

// Close closes the DynamoDB client
func (s *Store) Close() {
	// DynamoDB client doesn't need explicit closing
}

func millis(t time.Time) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(t.UnixMilli(), 10)}
}
