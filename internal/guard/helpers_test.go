// internal/guard/helpers_test.go
package guard_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/avivl/lockguard/internal/lockservice"
	"github.com/avivl/lockguard/internal/store/memory"
)

// recordingMetrics keeps what the coordinator reports.
type recordingMetrics struct {
	mu        sync.Mutex
	counters  map[string]int64
	outcomes  []string
	latencies map[string]int
}

func (m *recordingMetrics) Increment(_ context.Context, name string, value int64, attributes ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters == nil {
		m.counters = make(map[string]int64)
	}
	m.counters[name] += value
	for i := 0; i+1 < len(attributes); i += 2 {
		if attributes[i] == "outcome" {
			m.outcomes = append(m.outcomes, attributes[i+1])
		}
	}
}

func (m *recordingMetrics) RecordLatency(_ context.Context, name string, _ time.Duration, _ ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.latencies == nil {
		m.latencies = make(map[string]int)
	}
	m.latencies[name]++
	return nil
}

func (m *recordingMetrics) count(name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

// acquireRealHandle returns a handle for "inventory" from a throwaway store.
func acquireRealHandle(t *testing.T) *lockservice.Handle {
	t.Helper()
	st, err := memory.New(nil, nil)
	require.NoError(t, err)
	client, err := lockservice.NewClient(st, nil)
	require.NoError(t, err)
	h, err := client.Acquire(context.Background(), "inventory", time.Minute, false)
	require.NoError(t, err)
	return h
}
