// cmd/lockguard/app_test.go
package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avivl/lockguard/internal/config"
	"github.com/avivl/lockguard/internal/guard"
	"github.com/avivl/lockguard/internal/keys"
	"github.com/avivl/lockguard/internal/lockservice"
	"github.com/avivl/lockguard/internal/observability"
	"github.com/avivl/lockguard/internal/store/memory"
)

func memorySettings() *config.Settings {
	return &config.Settings{
		Backend: memory.StoreName,
		Store:   memory.NewMemoryConfig(),
		Client: config.ClientConfig{
			RetryInterval:    5 * time.Millisecond,
			MaxRetryInterval: 20 * time.Millisecond,
			ReleaseTimeout:   time.Second,
			Breaker:          lockservice.DefaultBreakerSettings(),
		},
		Locks: map[string]guard.LockSpec{
			"chargeorder": {Key: "order-#{orderId}", KeyPrefix: "billing:", TryLock: true, TryTime: 50, Unit: guard.Milliseconds},
		},
	}
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	app, err := newApp(context.Background(), memorySettings(), observability.NewNopLogger(), observability.NopMetrics{})
	require.NoError(t, err)
	t.Cleanup(app.Close)
	return app
}

func TestParseArgs(t *testing.T) {
	var stderr bytes.Buffer

	opts, err := parseArgs([]string{
		"-config", "/tmp/lg", "-key", "order-#{orderId}", "-bind", "orderId=42", "-bind", "region=eu",
		"-try", "-wait", "3", "--", "echo", "hi",
	}, &stderr)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/lg", opts.configPath)
	assert.Equal(t, keys.Bindings{"orderId": "42", "region": "eu"}, opts.bindings)
	assert.True(t, opts.try)
	assert.Equal(t, int64(3), opts.wait)
	assert.Equal(t, []string{"echo", "hi"}, opts.command)

	_, err = parseArgs([]string{"-key", "k"}, &stderr)
	assert.ErrorIs(t, err, errUsage, "a command is required")

	_, err = parseArgs([]string{"-key", "k", "-lock", "l", "--", "true"}, &stderr)
	assert.ErrorIs(t, err, errUsage)

	_, err = parseArgs([]string{"--", "true"}, &stderr)
	assert.ErrorIs(t, err, errUsage)

	_, err = parseArgs([]string{"-key", "k", "-bind", "novalue", "--", "true"}, &stderr)
	assert.ErrorIs(t, err, errUsage)
}

func TestLockConfiguration(t *testing.T) {
	settings := memorySettings()

	cfg, err := (&options{lockName: "ChargeOrder"}).lockConfiguration(settings)
	require.NoError(t, err)
	assert.Equal(t, "order-#{orderId}", cfg.KeyTemplate())
	assert.Equal(t, 50*time.Millisecond, cfg.WaitTimeout())

	_, err = (&options{lockName: "refund"}).lockConfiguration(settings)
	assert.ErrorContains(t, err, `lock "refund" is not declared`)

	cfg, err = (&options{key: "report", try: true, wait: 2, hold: 1, unit: "minutes", fair: true}).lockConfiguration(settings)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, cfg.WaitTimeout())
	assert.Equal(t, time.Minute, cfg.HoldDuration())
	assert.True(t, cfg.Fair())

	_, err = (&options{key: "report", unit: "fortnights"}).lockConfiguration(settings)
	assert.Error(t, err)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "success", err: nil, expected: 0},
		{name: "timeout", err: fmt.Errorf("%w: lock:order-42", guard.ErrLockAcquisitionTimeout), expected: exitTempFail},
		{name: "invalid template", err: guard.ErrInvalidKeyTemplate, expected: exitConfig},
		{name: "empty template", err: guard.ErrEmptyKeyTemplate, expected: exitConfig},
		{name: "invalid lock configuration", err: guard.ErrInvalidLockConfiguration, expected: exitConfig},
		{name: "config", err: &configError{errors.New("bad yaml")}, expected: exitConfig},
		{name: "store", err: fmt.Errorf("%w: %w", guard.ErrLockAcquisition, lockservice.ErrStoreUnavailable), expected: exitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, exitCode(tt.err))
		})
	}
}

func TestAppRunPassesCommandStatus(t *testing.T) {
	app := newTestApp(t)
	cfg := guard.MustLockConfiguration("job-#{id}")

	var stdout, stderr bytes.Buffer
	err := app.Run(context.Background(), cfg, keys.Bindings{"id": "7"}, []string{"sh", "-c", "echo running; exit 3"}, nil, &stdout, &stderr)
	assert.Equal(t, 3, exitCode(err))
	assert.Equal(t, "running\n", stdout.String())

	err = app.Run(context.Background(), cfg, keys.Bindings{"id": "7"}, []string{"true"}, nil, &stdout, &stderr)
	assert.NoError(t, err)
}

func TestAppRunTimesOutWhileHeld(t *testing.T) {
	app := newTestApp(t)
	holder := guard.MustLockConfiguration("order-#{orderId}", guard.WithKeyPrefix("billing:"))
	tryCfg, err := app.settings.Locks["chargeorder"].Configuration()
	require.NoError(t, err)

	bindings := keys.Bindings{"orderId": "42"}
	var code int
	err = app.coordinator.Guard(context.Background(), holder, bindings, func(ctx context.Context) error {
		code = exitCode(app.Run(ctx, tryCfg, bindings, []string{"true"}, nil, nil, nil))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, exitTempFail, code)
}

func TestAppRunCancelledCommand(t *testing.T) {
	app := newTestApp(t)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := app.Run(ctx, guard.MustLockConfiguration("sleeper"), nil, []string{"sleep", "10"}, nil, nil, nil)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, exitFailure, exitCode(err))

	// The lock was given back despite the cancellation.
	require.NoError(t, app.Run(context.Background(), guard.MustLockConfiguration("sleeper"), nil, []string{"true"}, nil, nil, nil))
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(`
backend:
  type: memory
locks:
  nightly:
    key: "nightly-#{day}"
    tryLock: true
    tryTime: 1
`), 0644))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-config", dir, "-lock", "nightly", "-bind", "day=mon", "--", "sh", "-c", "echo ok"}, nil, &stdout, &stderr)
	assert.Equal(t, 0, code, stderr.String())
	assert.Equal(t, "ok\n", stdout.String())

	stderr.Reset()
	code = run(context.Background(), []string{"-config", dir, "-lock", "nightly", "--", "true"}, nil, &stdout, &stderr)
	assert.Equal(t, exitConfig, code, "the day binding is missing")
	assert.True(t, strings.HasPrefix(stderr.String(), "lockguard: "))

	code = run(context.Background(), []string{"-config", dir, "-key", "x", "--", "sh", "-c", "exit 4"}, nil, &stdout, &stderr)
	assert.Equal(t, 4, code)

	code = run(context.Background(), []string{"-config", dir, "-lock", "weekly", "--", "true"}, nil, &stdout, &stderr)
	assert.Equal(t, exitConfig, code)

	code = run(context.Background(), []string{"-config", dir, "--", "true"}, nil, &stdout, &stderr)
	assert.Equal(t, exitUsage, code)
}

func TestRunUnknownBackend(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("backend:\n  type: zookeeper\n"), 0644))

	var stderr bytes.Buffer
	code := run(context.Background(), []string{"-config", dir, "-key", "x", "--", "true"}, nil, nil, &stderr)
	assert.Equal(t, exitConfig, code)
	assert.Contains(t, stderr.String(), "unsupported backend type")
}
