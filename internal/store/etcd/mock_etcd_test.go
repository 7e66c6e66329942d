// internal/store/etcd/mock_etcd_test.go
package etcd

import (
	"context"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/stretchr/testify/mock"

	"github.com/avivl/lockguard/internal/observability"
)

// MockKV is a mock implementation of kvClient
type MockKV struct {
	mock.Mock
	txns []*MockTxn
}

func (m *MockKV) Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clientv3.GetResponse), args.Error(1)
}

func (m *MockKV) Delete(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.DeleteResponse, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clientv3.DeleteResponse), args.Error(1)
}

// Txn hands out the transactions queued with queueTxn, in order.
func (m *MockKV) Txn(ctx context.Context) clientv3.Txn {
	m.Called(ctx)
	txn := m.txns[0]
	m.txns = m.txns[1:]
	return txn
}

func (m *MockKV) queueTxn(resp *clientv3.TxnResponse, err error) *MockTxn {
	txn := &MockTxn{resp: resp, err: err}
	m.txns = append(m.txns, txn)
	return txn
}

// MockTxn records the comparisons and operations of a transaction
type MockTxn struct {
	cmps []clientv3.Cmp
	ops  []clientv3.Op
	resp *clientv3.TxnResponse
	err  error
}

func (t *MockTxn) If(cs ...clientv3.Cmp) clientv3.Txn {
	t.cmps = append(t.cmps, cs...)
	return t
}

func (t *MockTxn) Then(ops ...clientv3.Op) clientv3.Txn {
	t.ops = append(t.ops, ops...)
	return t
}

func (t *MockTxn) Else(ops ...clientv3.Op) clientv3.Txn {
	return t
}

func (t *MockTxn) Commit() (*clientv3.TxnResponse, error) {
	return t.resp, t.err
}

// MockLease is a mock implementation of leaseClient
type MockLease struct {
	mock.Mock
}

func (m *MockLease) Grant(ctx context.Context, ttl int64) (*clientv3.LeaseGrantResponse, error) {
	args := m.Called(ctx, ttl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clientv3.LeaseGrantResponse), args.Error(1)
}

func (m *MockLease) Revoke(ctx context.Context, id clientv3.LeaseID) (*clientv3.LeaseRevokeResponse, error) {
	args := m.Called(ctx, id)
	return &clientv3.LeaseRevokeResponse{}, args.Error(0)
}

func (m *MockLease) KeepAliveOnce(ctx context.Context, id clientv3.LeaseID) (*clientv3.LeaseKeepAliveResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clientv3.LeaseKeepAliveResponse), args.Error(1)
}

// MockWatcher is a mock implementation of watchClient
type MockWatcher struct {
	mock.Mock
}

func (m *MockWatcher) Watch(ctx context.Context, key string, opts ...clientv3.OpOption) clientv3.WatchChan {
	args := m.Called(ctx, key)
	return args.Get(0).(clientv3.WatchChan)
}

// SetupMockStore creates a Store backed by mocked etcd clients
func SetupMockStore() (*Store, *MockKV, *MockLease, *MockWatcher) {
	kv := new(MockKV)
	lease := new(MockLease)
	watcher := new(MockWatcher)
	logger, _, _ := observability.NewTestLogger()

	config := NewEtcdConfig()
	s := &Store{
		kv:      kv,
		lease:   lease,
		watcher: watcher,
		l:       logger,
		config:  config,
	}
	return s, kv, lease, watcher
}
