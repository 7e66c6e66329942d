// internal/store/scylladb/scylladb_store.go
package scylladb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocql/gocql"

	"github.com/avivl/lockguard/internal/lockservice"
	"github.com/avivl/lockguard/internal/observability"
	"github.com/avivl/lockguard/internal/store"
)

var (
	ErrConfigOptionMissing = errors.New("ScyllaDB requires a config option")
)

// StoreName the name of the store.
const StoreName string = "scylladb"

var consistencies = map[string]gocql.Consistency{
	"CONSISTENCY_QUORUM":       gocql.Quorum,
	"CONSISTENCY_LOCAL_QUORUM": gocql.LocalQuorum,
	"CONSISTENCY_ONE":          gocql.One,
	"CONSISTENCY_ALL":          gocql.All,
}

// session is the part of gocql.Session the store uses
type session interface {
	Query(stmt string, values ...interface{}) query
	Close()
}

// query is the part of gocql.Query the store uses
type query interface {
	WithContext(ctx context.Context) query
	Exec() error
	ScanCAS(dest ...interface{}) (bool, error)
}

type gocqlSession struct {
	s *gocql.Session
}

func (g gocqlSession) Query(stmt string, values ...interface{}) query {
	return gocqlQuery{q: g.s.Query(stmt, values...)}
}

func (g gocqlSession) Close() {
	g.s.Close()
}

type gocqlQuery struct {
	q *gocql.Query
}

func (g gocqlQuery) WithContext(ctx context.Context) query {
	return gocqlQuery{q: g.q.WithContext(ctx)}
}

func (g gocqlQuery) Exec() error {
	return g.q.Exec()
}

func (g gocqlQuery) ScanCAS(dest ...interface{}) (bool, error) {
	return g.q.ScanCAS(dest...)
}

// Factory function for creating sessions
// Can be replaced during tests for mocking
var newSessionFn = func(config *ScyllaDBConfig) (session, error) {
	cluster := gocql.NewCluster(config.Hosts()...)
	cluster.ProtoVersion = 4
	cluster.Consistency = consistencies[config.Consistency]
	cluster.SerialConsistency = gocql.Serial

	s, err := cluster.CreateSession()
	if err != nil {
		return nil, err
	}
	return gocqlSession{s: s}, nil
}

// init registers the ScyllaDB store with the lockservice package.
func init() {
	lockservice.Register(StoreName, newStore)
}

func newStore(ctx context.Context, options lockservice.Config, logger *observability.SLogger) (store.LockStore, error) {
	cfg, ok := options.(*ScyllaDBConfig)
	if !ok && options != nil {
		return nil, &store.InvalidConfigurationError{Store: StoreName, Config: options}
	}
	return New(ctx, cfg, logger)
}

// Store keeps one row per lock key, written and deleted with lightweight
// transactions. Row TTLs are whole seconds, so holds round up.
type Store struct {
	session       session
	fullTableName string
	l             *observability.SLogger
	config        *ScyllaDBConfig

	acquireQuery string
	releaseQuery string
}

// GetConfig returns the current store configuration
func (sdb *Store) GetConfig() store.StoreConfig {
	return sdb.config
}

// New creates a new ScyllaDB store, creating the keyspace and table when missing.
func New(ctx context.Context, config *ScyllaDBConfig, logger *observability.SLogger) (*Store, error) {
	if config == nil {
		return nil, ErrConfigOptionMissing
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}

	s, err := newSessionFn(config)
	if err != nil {
		logger.Errorf("Error creating session: %v", err)
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	sdb := &Store{
		session:       s,
		fullTableName: fmt.Sprintf(`"%s"."%s"`, config.Keyspace, config.Table),
		l:             logger,
		config:        config,
	}
	if err := sdb.initSession(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return sdb, nil
}

func (sdb *Store) initSession(ctx context.Context) error {
	if err := sdb.validateKeyspace(ctx); err != nil {
		return err
	}
	if err := sdb.validateTable(ctx); err != nil {
		return err
	}
	sdb.acquireQuery = fmt.Sprintf("INSERT INTO %s (lock_key, token) VALUES (?, ?) IF NOT EXISTS USING TTL ?", sdb.fullTableName)
	sdb.releaseQuery = fmt.Sprintf("DELETE FROM %s WHERE lock_key = ? IF token = ?", sdb.fullTableName)
	return nil
}

func (sdb *Store) validateKeyspace(ctx context.Context) error {
	replication := sdb.config.ReplicationFactor
	if replication == 0 {
		replication = 1
	}
	err := sdb.session.Query(fmt.Sprintf(`CREATE KEYSPACE IF NOT EXISTS "%s"
	WITH replication = {
		'class' : 'SimpleStrategy',
		'replication_factor' : %d
	}`, sdb.config.Keyspace, replication)).WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("failed to create keyspace: %w", err)
	}
	return nil
}

func (sdb *Store) validateTable(ctx context.Context) error {
	err := sdb.session.Query(fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
        lock_key text PRIMARY KEY,
        token text
    )`, sdb.fullTableName)).WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// ttlSeconds rounds ttl up to whole seconds.
func ttlSeconds(ttl time.Duration) int {
	seconds := int((ttl + time.Second - 1) / time.Second)
	if seconds < 1 {
		return 1
	}
	return seconds
}

// TryAcquire inserts the lock row unless one exists.
func (sdb *Store) TryAcquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	if key == "" {
		return false, store.ErrInvalidKey
	}

	var existingKey, existingToken string
	applied, err := sdb.session.Query(sdb.acquireQuery,
		key, token, ttlSeconds(store.ResolveTTL(ttl, sdb.config))).
		WithContext(ctx).
		ScanCAS(&existingKey, &existingToken)
	if err != nil {
		sdb.l.Errorf("Error acquiring lock: %v", err)
		return false, fmt.Errorf("scylladb acquire %q: %w", key, err)
	}
	return applied, nil
}

// Release deletes the lock row if token still owns it.
func (sdb *Store) Release(ctx context.Context, key, token string) error {
	var currentToken string
	applied, err := sdb.session.Query(sdb.releaseQuery, key, token).
		WithContext(ctx).
		ScanCAS(&currentToken)
	if err != nil {
		sdb.l.Errorf("Error releasing lock: %v", err)
		return fmt.Errorf("scylladb release %q: %w", key, err)
	}
	if !applied {
		return store.ErrLockNotHeld
	}
	return nil
}

// Close the store connection.
func (sdb *Store) Close() {
	sdb.session.Close()
}
