// internal/store/etcd/etcd_store.go
package etcd

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync"
	"time"

	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/avivl/lockguard/internal/lockservice"
	"github.com/avivl/lockguard/internal/observability"
	"github.com/avivl/lockguard/internal/store"
)

var (
	ErrConfigOptionMissing = errors.New("etcd requires a config option")
)

// StoreName is the registered name of the etcd store
const StoreName = "etcd"

// Factory function for creating etcd clients
// Can be replaced during tests for mocking
var newEtcdClientFn = func(config *EtcdConfig) (*clientv3.Client, error) {
	return clientv3.New(clientv3.Config{
		Endpoints:   config.Endpoints,
		DialTimeout: config.DialTimeout,
		Username:    config.Username,
		Password:    config.Password,
	})
}

// kvClient is the part of clientv3.KV the store uses
type kvClient interface {
	Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error)
	Delete(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.DeleteResponse, error)
	Txn(ctx context.Context) clientv3.Txn
}

// leaseClient is the part of clientv3.Lease the store uses
type leaseClient interface {
	Grant(ctx context.Context, ttl int64) (*clientv3.LeaseGrantResponse, error)
	Revoke(ctx context.Context, id clientv3.LeaseID) (*clientv3.LeaseRevokeResponse, error)
	KeepAliveOnce(ctx context.Context, id clientv3.LeaseID) (*clientv3.LeaseKeepAliveResponse, error)
}

// watchClient is the part of clientv3.Watcher the store uses
type watchClient interface {
	Watch(ctx context.Context, key string, opts ...clientv3.OpOption) clientv3.WatchChan
}

// Register the etcd store with the lockservice package
func init() {
	lockservice.Register(StoreName, newStore)
}

func newStore(ctx context.Context, options lockservice.Config, logger *observability.SLogger) (store.LockStore, error) {
	cfg, ok := options.(*EtcdConfig)
	if !ok && options != nil {
		return nil, &store.InvalidConfigurationError{Store: StoreName, Config: options}
	}
	return New(ctx, cfg, logger)
}

// Store keeps a lock as a key bound to a lease of the hold duration. Fair
// waiters are leased keys under the lock's queue prefix, served in create
// revision order.
type Store struct {
	kv      kvClient
	lease   leaseClient
	watcher watchClient
	closeFn func() error
	l       *observability.SLogger
	config  *EtcdConfig
}

// GetConfig returns the current store configuration
func (s *Store) GetConfig() store.StoreConfig {
	return s.config
}

// New connects to etcd and checks the connection with a status call on the
// first endpoint.
func New(ctx context.Context, config *EtcdConfig, logger *observability.SLogger) (*Store, error) {
	if config == nil {
		return nil, ErrConfigOptionMissing
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}

	client, err := newEtcdClientFn(config)
	if err != nil {
		logger.Errorf("Error creating etcd client: %v", err)
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}

	statusCtx, cancel := context.WithTimeout(ctx, config.DialTimeout)
	defer cancel()
	if _, err := client.Status(statusCtx, config.Endpoints[0]); err != nil {
		logger.Errorf("Error connecting to etcd: %v", err)
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}

	return &Store{
		kv:      client.KV,
		lease:   client.Lease,
		watcher: client.Watcher,
		closeFn: client.Close,
		l:       logger,
		config:  config,
	}, nil
}

func (s *Store) lockKey(key string) string {
	return path.Join(s.config.KeyPrefix, "locks", key)
}

func (s *Store) queuePrefix(key string) string {
	return path.Join(s.config.KeyPrefix, "queues", key) + "/"
}

func (s *Store) waiterKey(key, token string) string {
	return s.queuePrefix(key) + token
}

// leaseSeconds rounds ttl up to whole seconds.
func leaseSeconds(ttl time.Duration) int64 {
	seconds := int64((ttl + time.Second - 1) / time.Second)
	if seconds < 1 {
		return 1
	}
	return seconds
}

// grantAndPut writes key under a fresh lease of ttl when cmps hold. The lease
// is revoked when the transaction does not apply.
func (s *Store) grantAndPut(ctx context.Context, key, value string, ttl time.Duration, cmps []clientv3.Cmp, extra ...clientv3.Op) (bool, error) {
	grant, err := s.lease.Grant(ctx, leaseSeconds(ttl))
	if err != nil {
		return false, err
	}

	ops := append([]clientv3.Op{clientv3.OpPut(key, value, clientv3.WithLease(grant.ID))}, extra...)
	resp, err := s.kv.Txn(ctx).If(cmps...).Then(ops...).Commit()
	if err != nil || !resp.Succeeded {
		s.revoke(ctx, grant.ID)
		return false, err
	}
	return true, nil
}

func (s *Store) revoke(ctx context.Context, id clientv3.LeaseID) {
	if id == clientv3.NoLease {
		return
	}
	if _, err := s.lease.Revoke(context.WithoutCancel(ctx), id); err != nil {
		s.l.Debugf("Error revoking lease %x: %v", int64(id), err)
	}
}

// TryAcquire creates the lock key if it does not exist.
func (s *Store) TryAcquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	if key == "" {
		return false, store.ErrInvalidKey
	}

	lockKey := s.lockKey(key)
	ok, err := s.grantAndPut(ctx, lockKey, token, store.ResolveTTL(ttl, s.config),
		[]clientv3.Cmp{clientv3.Compare(clientv3.CreateRevision(lockKey), "=", 0)})
	if err != nil {
		s.l.Errorf("Error acquiring lock: %v", err)
		return false, fmt.Errorf("etcd acquire %q: %w", key, err)
	}
	return ok, nil
}

// TryAcquireFair queues token under key and takes the lock when token is the
// oldest live waiter.
func (s *Store) TryAcquireFair(ctx context.Context, key, token string, ttl, waiterTTL time.Duration) (bool, error) {
	if key == "" {
		return false, store.ErrInvalidKey
	}

	waiter, err := s.enqueue(ctx, key, token, waiterTTL)
	if err != nil {
		s.l.Errorf("Error queueing for lock: %v", err)
		return false, fmt.Errorf("etcd enqueue %q: %w", key, err)
	}

	head, err := s.kv.Get(ctx, s.queuePrefix(key),
		clientv3.WithPrefix(),
		clientv3.WithSort(clientv3.SortByCreateRevision, clientv3.SortAscend),
		clientv3.WithLimit(1),
	)
	if err != nil {
		return false, fmt.Errorf("etcd queue head %q: %w", key, err)
	}
	if len(head.Kvs) == 0 || string(head.Kvs[0].Key) != string(waiter.Key) {
		return false, nil
	}

	lockKey := s.lockKey(key)
	ok, err := s.grantAndPut(ctx, lockKey, token, store.ResolveTTL(ttl, s.config),
		[]clientv3.Cmp{
			clientv3.Compare(clientv3.CreateRevision(lockKey), "=", 0),
			clientv3.Compare(clientv3.CreateRevision(string(waiter.Key)), "=", waiter.CreateRevision),
		},
		clientv3.OpDelete(string(waiter.Key)),
	)
	if err != nil {
		s.l.Errorf("Error acquiring fair lock: %v", err)
		return false, fmt.Errorf("etcd fair acquire %q: %w", key, err)
	}
	if ok {
		s.revoke(ctx, clientv3.LeaseID(waiter.Lease))
	}
	return ok, nil
}

// enqueue creates the waiter key of token, or refreshes its lease when it
// already exists, and returns it.
func (s *Store) enqueue(ctx context.Context, key, token string, waiterTTL time.Duration) (*mvccpb.KeyValue, error) {
	waiterKey := s.waiterKey(key, token)

	existing, err := s.kv.Get(ctx, waiterKey)
	if err != nil {
		return nil, err
	}
	if len(existing.Kvs) > 0 {
		kv := existing.Kvs[0]
		if _, err := s.lease.KeepAliveOnce(ctx, clientv3.LeaseID(kv.Lease)); err == nil {
			return kv, nil
		}
		// The lease lapsed between the read and the refresh; queue again.
	}

	if _, err := s.grantAndPut(ctx, waiterKey, token, waiterTTL, nil); err != nil {
		return nil, err
	}
	created, err := s.kv.Get(ctx, waiterKey)
	if err != nil {
		return nil, err
	}
	if len(created.Kvs) == 0 {
		return nil, fmt.Errorf("waiter %s expired on creation", waiterKey)
	}
	return created.Kvs[0], nil
}

// Abandon removes token from the wait queue of key.
func (s *Store) Abandon(ctx context.Context, key, token string) error {
	resp, err := s.kv.Delete(ctx, s.waiterKey(key, token), clientv3.WithPrevKV())
	if err != nil {
		return fmt.Errorf("etcd abandon %q: %w", key, err)
	}
	if len(resp.PrevKvs) > 0 {
		s.revoke(ctx, clientv3.LeaseID(resp.PrevKvs[0].Lease))
	}
	return nil
}

// Release deletes the lock key if token still owns it and revokes its lease.
func (s *Store) Release(ctx context.Context, key, token string) error {
	lockKey := s.lockKey(key)
	resp, err := s.kv.Txn(ctx).
		If(clientv3.Compare(clientv3.Value(lockKey), "=", token)).
		Then(clientv3.OpDelete(lockKey, clientv3.WithPrevKV())).
		Commit()
	if err != nil {
		s.l.Errorf("Error releasing lock: %v", err)
		return fmt.Errorf("etcd release %q: %w", key, err)
	}
	if !resp.Succeeded {
		return store.ErrLockNotHeld
	}

	if len(resp.Responses) > 0 {
		if del := resp.Responses[0].GetResponseDeleteRange(); del != nil && len(del.PrevKvs) > 0 {
			s.revoke(ctx, clientv3.LeaseID(del.PrevKvs[0].Lease))
		}
	}
	return nil
}

// WatchRelease watches the lock key for deletion, by release or lease expiry.
func (s *Store) WatchRelease(ctx context.Context, key string) (<-chan struct{}, func()) {
	watchCtx, cancel := context.WithCancel(ctx)
	events := s.watcher.Watch(watchCtx, s.lockKey(key), clientv3.WithFilterPut())

	out := make(chan struct{}, 1)
	go func() {
		for resp := range events {
			if len(resp.Events) == 0 {
				continue
			}
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}()

	var once sync.Once
	return out, func() { once.Do(cancel) }
}

// Close closes the etcd client
func (s *Store) Close() {
	if s.closeFn == nil {
		return
	}
	if err := s.closeFn(); err != nil {
		s.l.Errorf("Error closing etcd client: %v", err)
	}
}
