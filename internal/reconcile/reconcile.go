// Package reconcile makes the record store match the configured checks.
//
// Reconciliation runs once at startup. Configured URLs are inserted or have
// their configuration refreshed; records that no configuration has touched
// for longer than the stale cutoff are deleted.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/jpalmerr/peek/internal/status"
	"github.com/jpalmerr/peek/internal/store"
)

// DefaultStaleAfter is how long a record may go unconfigured before deletion.
const DefaultStaleAfter = 15 * time.Minute

// initialState is recorded for new endpoints so the first failure reads as Down.
const initialState status.Code = 200

// Entry is one configured check.
type Entry struct {
	URL             string
	IntervalSeconds int
	SearchPattern   string
}

// Summary reports what a reconciliation did.
type Summary struct {
	Inserted int
	Updated  int
	Skipped  int
	Deleted  int
}

// Sanitize normalizes a configured URL: surrounding whitespace, leading
// commas and trailing slashes are removed.
func Sanitize(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimLeft(s, ",")
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, "/")
	return strings.TrimSpace(s)
}

// Validate reports why an entry cannot be monitored, or nil.
// The entry's URL is expected to be sanitized already.
func Validate(e Entry) error {
	if e.URL == "" {
		return errors.New("url is required")
	}
	u, err := url.Parse(e.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("url must have a host")
	}
	if e.IntervalSeconds < 1 {
		return fmt.Errorf("interval must be at least 1 second, got %d", e.IntervalSeconds)
	}
	return nil
}

// Normalize sanitizes the URL and defaults an empty search pattern.
func Normalize(e Entry) Entry {
	e.URL = Sanitize(e.URL)
	if strings.TrimSpace(e.SearchPattern) == "" {
		e.SearchPattern = status.AnyContent
	}
	return e
}

// Reconciler applies configured entries to a store.
type Reconciler struct {
	store      store.Store
	staleAfter time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a [Reconciler]. A zero staleAfter uses [DefaultStaleAfter];
// a nil logger uses slog.Default.
func New(s store.Store, staleAfter time.Duration, logger *slog.Logger) *Reconciler {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		store:      s,
		staleAfter: staleAfter,
		logger:     logger,
		now:        time.Now,
	}
}

// Run reconciles entries against the store.
//
// Invalid entries are logged and skipped. Store errors abort reconciliation
// and are returned.
func (r *Reconciler) Run(ctx context.Context, entries []Entry) (Summary, error) {
	var sum Summary
	now := r.now()

	for i, raw := range entries {
		e := Normalize(raw)
		if err := Validate(e); err != nil {
			sum.Skipped++
			r.logger.Warn("skipping invalid check", "index", i, "url", raw.URL, "error", err)
			continue
		}

		existing, err := r.store.GetByURL(ctx, e.URL)
		switch {
		case err == nil:
			if err := r.store.UpdateConfig(ctx, existing.ID, e.IntervalSeconds, e.SearchPattern, now); err != nil {
				return sum, fmt.Errorf("update %s: %w", e.URL, err)
			}
			sum.Updated++
			r.logger.Debug("check updated", "url", e.URL, "interval_seconds", e.IntervalSeconds)
		case errors.Is(err, store.ErrNotFound):
			rec, err := r.store.Insert(ctx, store.CheckRecord{
				URL:                e.URL,
				IntervalSeconds:    e.IntervalSeconds,
				SearchPattern:      e.SearchPattern,
				LastState:          initialState,
				NextCheckAt:        now,
				ConfigUpdatedAt:    now,
				NextNotificationAt: now,
			})
			if errors.Is(err, store.ErrDuplicateURL) {
				// inserted concurrently since the lookup; treat as an update
				dup, getErr := r.store.GetByURL(ctx, e.URL)
				if getErr != nil {
					return sum, fmt.Errorf("lookup %s: %w", e.URL, getErr)
				}
				if err := r.store.UpdateConfig(ctx, dup.ID, e.IntervalSeconds, e.SearchPattern, now); err != nil {
					return sum, fmt.Errorf("update %s: %w", e.URL, err)
				}
				sum.Updated++
				continue
			}
			if err != nil {
				return sum, fmt.Errorf("insert %s: %w", e.URL, err)
			}
			sum.Inserted++
			r.logger.Info("check added", "id", rec.ID, "url", e.URL, "interval_seconds", e.IntervalSeconds)
		default:
			return sum, fmt.Errorf("lookup %s: %w", e.URL, err)
		}
	}

	deleted, err := r.store.DeleteStale(ctx, now.Add(-r.staleAfter))
	if err != nil {
		return sum, fmt.Errorf("delete stale checks: %w", err)
	}
	sum.Deleted = len(deleted)
	for _, rec := range deleted {
		r.logger.Info("stale check removed", "id", rec.ID, "url", rec.URL, "config_updated_at", rec.ConfigUpdatedAt)
	}

	if err := r.store.EnsureURLIndex(ctx); err != nil {
		return sum, fmt.Errorf("ensure url index: %w", err)
	}

	r.logger.Info("checks reconciled",
		"inserted", sum.Inserted,
		"updated", sum.Updated,
		"skipped", sum.Skipped,
		"deleted", sum.Deleted,
	)
	return sum, nil
}
