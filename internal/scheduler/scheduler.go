package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/peek/internal/notify"
	"github.com/jpalmerr/peek/internal/probe"
	"github.com/jpalmerr/peek/internal/status"
	"github.com/jpalmerr/peek/internal/store"
)

const (
	// DefaultReportInterval spaces informational notifications for one endpoint.
	DefaultReportInterval = 4 * time.Hour

	defaultMaxConcurrency = 1
	notifyTimeout         = 30 * time.Second
	minWait               = 10 * time.Millisecond
	idleWait              = time.Minute
	consoleLayout         = "2006-01-02 15:04:05"
)

// Prober performs one probe attempt. [probe.Client] implements it.
type Prober interface {
	Probe(ctx context.Context, url, pattern string) probe.Result
}

// Evaluation describes one probed and committed record.
type Evaluation struct {
	// Record is the record as stored after the commit.
	Record store.CheckRecord

	// Previous is the stored state before this probe.
	Previous status.Code

	// Decision is the notification kind decided for the transition.
	Decision notify.Kind

	// Latency is the duration of the probe.
	Latency time.Duration

	// CheckedAt is when the probe completed.
	CheckedAt time.Time
}

// Config configures a [Scheduler].
type Config struct {
	// RunOnce makes Run perform a single pass and return.
	RunOnce bool

	// MaxConcurrency bounds simultaneous probes. Defaults to 1.
	MaxConcurrency int

	// ReportInterval is the informational notification spacing.
	// Defaults to [DefaultReportInterval].
	ReportInterval time.Duration

	// Notifier receives decided notifications. Nil disables notifications;
	// decisions are still logged.
	Notifier notify.Notifier

	// Console receives one line per evaluation. Defaults to os.Stdout.
	Console io.Writer

	// OnEvaluation is called after each commit from a worker goroutine.
	OnEvaluation func(Evaluation)

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Scheduler probes due records and commits their results.
type Scheduler struct {
	store  store.Store
	prober Prober
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex // guards queue
	queue dueQueue

	consoleMu sync.Mutex
}

// New creates a [Scheduler] over s that probes with p.
func New(s store.Store, p Prober, cfg Config) *Scheduler {
	if cfg.MaxConcurrency < 1 {
		cfg.MaxConcurrency = defaultMaxConcurrency
	}
	if cfg.ReportInterval <= 0 {
		cfg.ReportInterval = DefaultReportInterval
	}
	if cfg.Console == nil {
		cfg.Console = os.Stdout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:  s,
		prober: p,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Advance returns next+interval when next is before now, else next.
//
// A record is due only once its time has passed, so a restart shortly
// after a pass does not push the schedule further out.
func Advance(next time.Time, interval time.Duration, now time.Time) time.Time {
	if next.Before(now) {
		return next.Add(interval)
	}
	return next
}

// Load replaces the queue with every record in the store.
func (s *Scheduler) Load(ctx context.Context) error {
	records, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("load checks: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue.reset()
	for _, rec := range records {
		s.queue.push(rec)
	}
	s.logger.Debug("checks loaded", "count", len(records))
	return nil
}

// Len returns the number of queued records.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.len()
}

// NextDue returns the earliest queued NextCheckAt.
func (s *Scheduler) NextDue() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.peek()
}

// RunPass probes every due record once and returns how many were probed.
//
// Records are taken in due order and fed to a pool of MaxConcurrency
// workers. Surviving records go back into the queue only after every probe
// of the pass has finished. Cancelling ctx does not interrupt a pass.
func (s *Scheduler) RunPass(ctx context.Context) int {
	s.mu.Lock()
	due := s.queue.popDue(s.now())
	s.mu.Unlock()

	if len(due) == 0 {
		return 0
	}

	passCtx := context.WithoutCancel(ctx)
	survivors := make([]*store.CheckRecord, len(due))
	jobs := make(chan int, len(due))

	workers := min(s.cfg.MaxConcurrency, len(due))
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if rec, ok := s.evaluate(passCtx, due[idx]); ok {
					survivors[idx] = &rec
				}
			}
		}()
	}

	for idx := range due {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	s.mu.Lock()
	for _, rec := range survivors {
		if rec != nil {
			s.queue.push(*rec)
		}
	}
	s.mu.Unlock()

	return len(due)
}

// Run loads the queue and runs passes until ctx is cancelled, sleeping until
// the earliest due time in between. With RunOnce it runs exactly one pass.
//
// Run returns an error only if the initial load fails.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Load(ctx); err != nil {
		return err
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		n := s.RunPass(ctx)
		if n > 0 {
			s.logger.Debug("pass completed", "probed", n)
		}
		if s.cfg.RunOnce {
			return nil
		}

		timer := time.NewTimer(s.wait())
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// wait returns how long to sleep before the next record becomes due.
func (s *Scheduler) wait() time.Duration {
	next, ok := s.NextDue()
	if !ok {
		return idleWait
	}
	// due means strictly before now
	d := next.Sub(s.now()) + time.Millisecond
	if d < minWait {
		return minWait
	}
	return d
}

// evaluate probes one record, commits the outcome and reports it. It
// returns the committed record and whether it should stay scheduled.
func (s *Scheduler) evaluate(ctx context.Context, rec store.CheckRecord) (store.CheckRecord, bool) {
	res := s.safeProbe(ctx, rec)
	curr := res.Code()
	checkedAt := s.now()

	var (
		prev status.Code
		kind notify.Kind
	)
	committed, err := s.store.UpdateState(ctx, rec.ID, func(stored *store.CheckRecord) error {
		prev = stored.LastState
		kind = notify.Decide(prev, curr, res.Message, stored.NextNotificationAt, checkedAt)

		stored.LastState = curr
		stored.Message = res.Message
		stored.NextCheckAt = Advance(stored.NextCheckAt, stored.Interval(), checkedAt)
		if s.cfg.Notifier != nil && kind != notify.None {
			stored.NextNotificationAt = notify.NextDeadline(kind, stored.NextNotificationAt, checkedAt, s.cfg.ReportInterval)
		}
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		s.logger.Info("check removed during probe, dropping", "id", rec.ID, "url", rec.URL)
		return store.CheckRecord{}, false
	}
	if err != nil {
		s.logger.Error("failed to commit check result",
			"id", rec.ID,
			"url", rec.URL,
			"state", int(curr),
			"error", err,
		)
		// keep the schedule moving so a broken store does not cause a hot loop
		rec.NextCheckAt = Advance(rec.NextCheckAt, rec.Interval(), checkedAt)
		return rec, true
	}

	s.printConsole(checkedAt, committed)
	s.logEvaluation(committed, prev, kind, res)

	if kind != notify.None && s.cfg.Notifier != nil {
		s.dispatch(ctx, notify.Notification{
			Kind:     kind,
			URL:      committed.URL,
			Previous: prev,
			Current:  curr,
			Message:  res.Message,
		})
	}

	if s.cfg.OnEvaluation != nil {
		s.cfg.OnEvaluation(Evaluation{
			Record:    committed,
			Previous:  prev,
			Decision:  kind,
			Latency:   res.Latency,
			CheckedAt: checkedAt,
		})
	}

	return committed, true
}

// safeProbe calls the prober with panic recovery. A panic is logged with a
// correlation ID and reported as a transport failure.
func (s *Scheduler) safeProbe(ctx context.Context, rec store.CheckRecord) (res probe.Result) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			s.logger.Error("probe panic",
				"correlation_id", correlationID,
				"url", rec.URL,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			err := fmt.Errorf("probe panic (correlation_id: %s)", correlationID)
			res = probe.Result{
				Outcome: status.Outcome{TransportFailed: true},
				Message: err.Error(),
				Err:     err,
			}
		}
	}()
	return s.prober.Probe(ctx, rec.URL, rec.SearchPattern)
}

func (s *Scheduler) printConsole(at time.Time, rec store.CheckRecord) {
	s.consoleMu.Lock()
	defer s.consoleMu.Unlock()
	_, _ = fmt.Fprintf(s.cfg.Console, "%s, %s, %d, %s %s\n",
		at.Format(consoleLayout), rec.URL, rec.LastState.Magnitude(), rec.LastState.Label(), rec.Message)
}

func (s *Scheduler) logEvaluation(rec store.CheckRecord, prev status.Code, kind notify.Kind, res probe.Result) {
	attrs := []any{
		"url", rec.URL,
		"state", int(rec.LastState),
		"previous", int(prev),
		"decision", kind.String(),
		"latency_ms", res.Latency.Milliseconds(),
		"next_check_at", rec.NextCheckAt,
	}
	if rec.Message != "" {
		attrs = append(attrs, "message", rec.Message)
	}

	switch {
	case !rec.LastState.Healthy() || rec.LastState.ContentMissing():
		s.logger.Warn("check failing", attrs...)
	case kind != notify.None && s.cfg.Notifier != nil:
		// without a notifier the throttle never advances, so a repeated
		// information decision stays at debug
		s.logger.Info("check evaluated", attrs...)
	default:
		s.logger.Debug("check evaluated", attrs...)
	}
}

// dispatch delivers n. Failures are logged and never retried.
func (s *Scheduler) dispatch(ctx context.Context, n notify.Notification) {
	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	if err := s.cfg.Notifier.Notify(ctx, n); err != nil {
		s.logger.Warn("notification failed", "url", n.URL, "kind", n.Kind.String(), "error", err)
		return
	}
	s.logger.Info("notification sent", "url", n.URL, "kind", n.Kind.String())
}
