package peek

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/jpalmerr/peek/dashboard"
	"github.com/jpalmerr/peek/internal/certwatch"
	"github.com/jpalmerr/peek/internal/events"
	"github.com/jpalmerr/peek/internal/notify"
	"github.com/jpalmerr/peek/internal/probe"
	"github.com/jpalmerr/peek/internal/reconcile"
	"github.com/jpalmerr/peek/internal/scheduler"
	"github.com/jpalmerr/peek/internal/server"
	"github.com/jpalmerr/peek/internal/store"
	"github.com/jpalmerr/peek/internal/store/sqlite"
)

const (
	defaultReportInterval = scheduler.DefaultReportInterval
	defaultTimeout        = probe.DefaultTimeout
	defaultMaxConcurrency = 1
	defaultStaleAfter     = reconcile.DefaultStaleAfter
	defaultCertThreshold  = certwatch.DefaultThreshold
)

// Monitor probes configured checks and reports state transitions.
//
// Monitor is created with [New] and started with [Monitor.Run]. The
// typical lifecycle is:
//
//	m, err := peek.New(peek.WithCheck(c))
//	if err != nil {
//	    slog.Error("failed to create monitor", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	if err := m.Run(ctx); err != nil { ... } // blocks until ctx is cancelled
type Monitor struct {
	checks         []Check
	databasePath   string
	notifier       notify.Notifier
	runOnce        bool
	reportInterval time.Duration
	timeout        time.Duration
	maxConcurrency int
	staleAfter     time.Duration
	certThreshold  time.Duration
	rootCAs        *x509.CertPool
	statusPort     int
	logger         *slog.Logger
	console        io.Writer
	callbacks      []func(Evaluation)
}

// New creates a [Monitor] with the given options.
//
// At least one check must be configured via [WithCheck] or [WithChecks], and
// no two checks may share a URL. Other options have defaults:
//   - Report interval: 4 hours
//   - Probe timeout: 30 seconds
//   - Max concurrency: 1
//   - Stale after: 15 minutes
//   - Storage: in memory
//   - Notifications and status API: disabled
func New(opts ...Option) (*Monitor, error) {
	cfg := &monitorConfig{
		reportInterval: defaultReportInterval,
		timeout:        defaultTimeout,
		maxConcurrency: defaultMaxConcurrency,
		staleAfter:     defaultStaleAfter,
		certThreshold:  defaultCertThreshold,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if len(cfg.checks) == 0 {
		return nil, errors.New("at least one check is required")
	}

	// the store keys records by URL
	seen := make(map[string]bool, len(cfg.checks))
	for _, c := range cfg.checks {
		if c.url == "" {
			return nil, errors.New("check must be created with NewCheck")
		}
		if seen[c.url] {
			return nil, fmt.Errorf("duplicate check url: %q", c.url)
		}
		seen[c.url] = true
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	console := cfg.console
	if console == nil {
		console = os.Stdout
	}

	var notifier notify.Notifier
	switch len(cfg.notifiers) {
	case 0:
	case 1:
		notifier = cfg.notifiers[0]
	default:
		notifier = notify.Fanout(cfg.notifiers)
	}

	return &Monitor{
		checks:         cfg.checks,
		databasePath:   cfg.databasePath,
		notifier:       notifier,
		runOnce:        cfg.runOnce,
		reportInterval: cfg.reportInterval,
		timeout:        cfg.timeout,
		maxConcurrency: cfg.maxConcurrency,
		staleAfter:     cfg.staleAfter,
		certThreshold:  cfg.certThreshold,
		rootCAs:        cfg.rootCAs,
		statusPort:     cfg.statusPort,
		logger:         logger,
		console:        console,
		callbacks:      cfg.callbacks,
	}, nil
}

// Run reconciles the configured checks into the store and probes them until
// ctx is cancelled, or for a single pass with [WithRunOnce].
//
// A pass that has started always completes; cancellation is observed
// between passes. Returns nil on graceful shutdown and an error when the
// store cannot be opened, reconciled or loaded, or the status API cannot
// bind its port.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("peek starting",
		"check_count", len(m.checks),
		"run_once", m.runOnce,
		"notifications", m.notifier != nil,
	)

	// check if context already cancelled
	if ctx.Err() != nil {
		return nil
	}

	st, err := m.openStore(ctx)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			m.logger.Error("failed to close store", "error", err)
		}
	}()

	entries := make([]reconcile.Entry, len(m.checks))
	for i, c := range m.checks {
		entries[i] = c.entry()
	}
	if _, err := reconcile.New(st, m.staleAfter, m.logger).Run(ctx, entries); err != nil {
		return fmt.Errorf("failed to reconcile checks: %w", err)
	}

	broker := events.NewBroker()

	if m.statusPort != 0 {
		srvCtx, stopServer := context.WithCancel(ctx)
		defer stopServer()
		srv := server.NewServer(st, broker, m.statusPort, dashboard.Assets, m.logger)
		if err := srv.Start(srvCtx); err != nil {
			return fmt.Errorf("failed to start status API: %w", err)
		}
	}

	client := probe.NewClient(m.timeout, certwatch.NewInspector(m.certThreshold, m.rootCAs))
	defer client.Close()

	sched := scheduler.New(st, client, scheduler.Config{
		RunOnce:        m.runOnce,
		MaxConcurrency: m.maxConcurrency,
		ReportInterval: m.reportInterval,
		Notifier:       m.notifier,
		Console:        m.console,
		Logger:         m.logger,
		OnEvaluation: func(ev scheduler.Evaluation) {
			result := toEvaluation(ev)
			broker.Publish(toEvent(result))
			for _, cb := range m.callbacks {
				invokeCallbackSafe(cb, result, m.logger)
			}
		},
	})

	if err := sched.Run(ctx); err != nil {
		return fmt.Errorf("failed to run scheduler: %w", err)
	}

	m.logger.Info("peek stopped")
	return nil
}

func (m *Monitor) openStore(ctx context.Context) (store.Store, error) {
	if m.databasePath == "" {
		return store.NewMemoryStore(), nil
	}
	return sqlite.Open(ctx, m.databasePath)
}

// Checks returns a copy of the configured checks.
func (m *Monitor) Checks() []Check {
	cp := make([]Check, len(m.checks))
	copy(cp, m.checks)
	return cp
}

// RunOnce reports whether [Monitor.Run] performs a single pass.
func (m *Monitor) RunOnce() bool {
	return m.runOnce
}

// StatusPort returns the status API port, or 0 when the API is disabled.
func (m *Monitor) StatusPort() int {
	return m.statusPort
}

// invokeCallbackSafe calls an evaluation callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(Evaluation), result Evaluation, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("evaluation callback panicked",
				"panic", r,
				"url", result.URL,
			)
		}
	}()
	cb(result)
}
