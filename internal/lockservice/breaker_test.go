// internal/lockservice/breaker_test.go
package lockservice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/avivl/lockguard/internal/store"
)

var errDown = errors.New("store down")

func TestBreakerTripsOnStoreFailures(t *testing.T) {
	st := newMockStore()
	st.On("TryAcquire", mock.Anything, "k", "t", time.Second).Return(false, errDown)

	b := NewBreakerStore(st, BreakerSettings{MaxFailures: 2, OpenTimeout: time.Minute}, nil)
	for i := 0; i < 2; i++ {
		_, err := b.TryAcquire(context.Background(), "k", "t", time.Second)
		assert.ErrorIs(t, err, errDown)
	}
	assert.Equal(t, "open", b.State())

	_, err := b.TryAcquire(context.Background(), "k", "t", time.Second)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	st.AssertNumberOfCalls(t, "TryAcquire", 2)
}

func TestBreakerIgnoresContention(t *testing.T) {
	st := newMockStore()
	st.On("TryAcquire", mock.Anything, "k", "t", time.Second).Return(false, nil)
	st.On("Release", mock.Anything, "k", "t").Return(store.ErrLockNotHeld)

	b := NewBreakerStore(st, BreakerSettings{MaxFailures: 2}, nil)
	for i := 0; i < 5; i++ {
		ok, err := b.TryAcquire(context.Background(), "k", "t", time.Second)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.ErrorIs(t, b.Release(context.Background(), "k", "t"), store.ErrLockNotHeld)
	}
	assert.Equal(t, "closed", b.State())
}

func TestBreakerRecovers(t *testing.T) {
	st := newMockStore()
	st.On("TryAcquire", mock.Anything, "k", "t", time.Second).Return(false, errDown).Once()
	st.On("TryAcquire", mock.Anything, "k", "t", time.Second).Return(true, nil)

	b := NewBreakerStore(st, BreakerSettings{MaxFailures: 1, OpenTimeout: 20 * time.Millisecond}, nil)
	_, err := b.TryAcquire(context.Background(), "k", "t", time.Second)
	require.ErrorIs(t, err, errDown)
	require.Equal(t, "open", b.State())

	time.Sleep(40 * time.Millisecond)

	ok, err := b.TryAcquire(context.Background(), "k", "t", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "closed", b.State())
}

func TestBreakerCapabilities(t *testing.T) {
	plain := NewBreakerStore(newMockStore(), BreakerSettings{}, nil)
	assert.False(t, store.SupportsFairness(plain), "the wrapped store decides")
	assert.False(t, store.SupportsReleaseNotification(plain))

	fair := NewBreakerStore(newMockFairStore(), BreakerSettings{}, nil)
	assert.True(t, store.SupportsFairness(fair))
}

func TestBreakerFairFallsBack(t *testing.T) {
	st := newMockStore()
	st.On("TryAcquire", mock.Anything, "k", "t", time.Second).Return(true, nil).Once()

	b := NewBreakerStore(st, BreakerSettings{}, nil)
	ok, err := b.TryAcquireFair(context.Background(), "k", "t", time.Second, time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, b.Abandon(context.Background(), "k", "t"))
	st.AssertExpectations(t)
}

func TestBreakerClose(t *testing.T) {
	st := newMockStore()
	st.On("Close").Return().Once()

	b := NewBreakerStore(st, BreakerSettings{}, nil)
	assert.Same(t, st, b.Unwrap())
	assert.Equal(t, st.GetConfig(), b.GetConfig())
	b.Close()
	st.AssertExpectations(t)
}
