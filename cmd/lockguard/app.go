// cmd/lockguard/app.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/avivl/lockguard/internal/config"
	"github.com/avivl/lockguard/internal/guard"
	"github.com/avivl/lockguard/internal/keys"
	"github.com/avivl/lockguard/internal/lockservice"
	"github.com/avivl/lockguard/internal/observability"
	"github.com/avivl/lockguard/internal/store"

	_ "github.com/avivl/lockguard/internal/store/dynamodb"
	_ "github.com/avivl/lockguard/internal/store/etcd"
	_ "github.com/avivl/lockguard/internal/store/memory"
	_ "github.com/avivl/lockguard/internal/store/redis"
	_ "github.com/avivl/lockguard/internal/store/scylladb"
)

// Exit statuses from sysexits.h.
const (
	exitFailure  = 1
	exitUsage    = 64
	exitTempFail = 75
	exitConfig   = 78
)

var errUsage = errors.New("usage")

// bindingsFlag collects repeated -bind name=value flags.
type bindingsFlag keys.Bindings

func (b bindingsFlag) String() string {
	pairs := make([]string, 0, len(b))
	for k, v := range b {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, v))
	}
	return strings.Join(pairs, ",")
}

func (b bindingsFlag) Set(value string) error {
	name, val, ok := strings.Cut(value, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return fmt.Errorf("binding %q is not name=value", value)
	}
	b[name] = val
	return nil
}

type options struct {
	configPath string
	lockName   string
	key        string
	prefix     string
	try        bool
	wait       int64
	hold       int64
	unit       string
	fair       bool
	bindings   keys.Bindings
	command    []string
}

func parseArgs(args []string, stderr io.Writer) (*options, error) {
	opts := &options{bindings: keys.Bindings{}}

	fs := flag.NewFlagSet("lockguard", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "/etc/lockguard", "Path to configuration file or directory")
	fs.StringVar(&opts.lockName, "lock", "", "Name of a lock declared under locks: in the configuration")
	fs.StringVar(&opts.key, "key", "", "Key template, used instead of -lock")
	fs.StringVar(&opts.prefix, "prefix", "", "Prefix prepended to the resolved key")
	fs.BoolVar(&opts.try, "try", false, "Give up after -wait instead of blocking")
	fs.Int64Var(&opts.wait, "wait", 0, "How long to wait for the lock in try mode, in -unit")
	fs.Int64Var(&opts.hold, "hold", 0, "Maximum hold duration in -unit; 0 uses the store default")
	fs.StringVar(&opts.unit, "unit", string(guard.Seconds), "Time unit of -wait and -hold")
	fs.BoolVar(&opts.fair, "fair", false, "Serve waiters in arrival order where the store can")
	fs.Var(bindingsFlag(opts.bindings), "bind", "Key binding name=value, repeatable")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: lockguard [flags] -- command [args...]")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, errUsage
	}
	opts.command = fs.Args()
	if len(opts.command) == 0 {
		fs.Usage()
		return nil, errUsage
	}
	if (opts.lockName == "") == (opts.key == "") {
		fmt.Fprintln(stderr, "exactly one of -lock and -key is required")
		return nil, errUsage
	}
	return opts, nil
}

// lockConfiguration returns the named lock from settings, or the one
// described by the flags.
func (o *options) lockConfiguration(settings *config.Settings) (guard.LockConfiguration, error) {
	if o.lockName != "" {
		spec, ok := settings.Lock(o.lockName)
		if !ok {
			return guard.LockConfiguration{}, fmt.Errorf("lock %q is not declared in the configuration", o.lockName)
		}
		return spec.Configuration()
	}

	return guard.LockSpec{
		Key:       o.key,
		KeyPrefix: o.prefix,
		TryLock:   o.try,
		TryTime:   o.wait,
		LockTime:  o.hold,
		Unit:      guard.TimeUnit(o.unit),
		Fair:      o.fair,
	}.Configuration()
}

// App holds what one lockguard run needs.
type App struct {
	logger       *observability.SLogger
	settings     *config.Settings
	store        store.LockStore
	coordinator  *guard.Coordinator
	otelShutdown func()
}

// NewApp loads configuration and connects to the configured store.
func NewApp(ctx context.Context, configPath string) (*App, error) {
	_, settings, err := config.Load(configPath)
	if err != nil {
		return nil, &configError{fmt.Errorf("failed to load config: %w", err)}
	}

	logger, err := observability.NewLogger(settings.Logger.Level.GetZapLevel())
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger = logger.Named("lockguard")

	otelShutdown, err := observability.InitProvider(ctx, settings.Observability)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	var metrics observability.MetricsClient = observability.NopMetrics{}
	if settings.Observability.Enabled {
		m, err := observability.NewMetricsClient(settings.Observability, logger)
		if err != nil {
			otelShutdown()
			return nil, fmt.Errorf("failed to create metrics client: %w", err)
		}
		metrics = m
	}

	app, err := newApp(ctx, settings, logger, metrics)
	if err != nil {
		otelShutdown()
		return nil, err
	}
	app.otelShutdown = otelShutdown
	return app, nil
}

func newApp(ctx context.Context, settings *config.Settings, logger *observability.SLogger, metrics observability.MetricsClient) (*App, error) {
	st, err := lockservice.NewStore(ctx, settings.Backend, settings.Store, logger.Named(settings.Backend))
	if err != nil {
		var unknown *store.UnknownConstructorError
		var invalid *store.InvalidConfigurationError
		if errors.As(err, &unknown) || errors.As(err, &invalid) {
			return nil, &configError{err}
		}
		return nil, fmt.Errorf("failed to create %s store: %w", settings.Backend, err)
	}
	if settings.Client.Breaker.Enabled {
		st = lockservice.NewBreakerStore(st, settings.Client.Breaker, logger)
	}

	clientOpts := append(settings.Client.Options(), lockservice.WithMetrics(metrics))
	client, err := lockservice.NewClient(st, logger, clientOpts...)
	if err != nil {
		st.Close()
		return nil, err
	}

	return &App{
		logger:   logger,
		settings: settings,
		store:    st,
		coordinator: guard.New(client, keys.NewResolver(nil), logger,
			guard.WithReleaseTimeout(settings.Client.ReleaseTimeout),
			guard.WithMetrics(metrics),
		),
		otelShutdown: func() {},
	}, nil
}

// Run executes command under cfg. The command inherits stdin, stdout and
// stderr, and is killed when ctx is cancelled.
func (a *App) Run(ctx context.Context, cfg guard.LockConfiguration, bindings keys.Bindings, command []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if key, err := a.coordinator.ResolveKey(cfg, bindings); err == nil {
		a.logger.Debugw("Running command under lock", "key", key, "command", command[0])
	}

	return a.coordinator.Guard(ctx, cfg, bindings, func(ctx context.Context) error {
		cmd := exec.CommandContext(ctx, command[0], command[1:]...)
		cmd.Stdin = stdin
		cmd.Stdout = stdout
		cmd.Stderr = stderr
		cmd.WaitDelay = 5 * time.Second
		return cmd.Run()
	})
}

// Close releases the store connection and flushes telemetry.
func (a *App) Close() {
	a.store.Close()
	a.otelShutdown()
	_ = a.logger.Sync()
}

type configError struct{ err error }

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		return exitUsage
	}

	app, err := NewApp(ctx, opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "lockguard: %v\n", err)
		return exitCode(err)
	}
	defer app.Close()

	cfg, err := opts.lockConfiguration(app.settings)
	if err != nil {
		fmt.Fprintf(stderr, "lockguard: %v\n", err)
		return exitConfig
	}

	err = app.Run(ctx, cfg, opts.bindings, opts.command, stdin, stdout, stderr)
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintf(stderr, "lockguard: %v\n", err)
		}
	}
	return exitCode(err)
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}

	var (
		exitErr *exec.ExitError
		cfgErr  *configError
	)
	switch {
	case errors.As(err, &exitErr):
		if code := exitErr.ExitCode(); code > 0 {
			return code
		}
		return exitFailure
	case errors.Is(err, guard.ErrLockAcquisitionTimeout):
		return exitTempFail
	case errors.As(err, &cfgErr),
		errors.Is(err, guard.ErrEmptyKeyTemplate),
		errors.Is(err, guard.ErrInvalidKeyTemplate),
		errors.Is(err, guard.ErrInvalidLockConfiguration):
		return exitConfig
	default:
		return exitFailure
	}
}
