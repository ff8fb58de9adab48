package peek

import (
	"errors"
	"time"

	"github.com/jpalmerr/peek/internal/reconcile"
	"github.com/jpalmerr/peek/internal/status"
)

const defaultCheckInterval = time.Minute

// AnyContent is the search pattern that disables the content check.
const AnyContent = status.AnyContent

// Check is one monitored URL.
//
// Check is immutable after creation via [NewCheck]. The URL is stored in its
// sanitized form: surrounding whitespace, leading commas and trailing
// slashes are removed, so "https://example.com/" and "https://example.com"
// name the same check.
type Check struct {
	url      string
	interval time.Duration
	search   string
}

// URL returns the sanitized target URL.
func (c Check) URL() string {
	return c.url
}

// Interval returns the minimum spacing between probes of this check.
// Defaults to one minute.
func (c Check) Interval() time.Duration {
	return c.interval
}

// SearchPattern returns the substring the response body must contain.
// [AnyContent] means the body is not inspected.
func (c Check) SearchPattern() string {
	return c.search
}

// NewCheck creates a [Check] for rawURL.
//
// The URL must use http or https and name a host. Options are applied in
// order; see [WithInterval] and [WithSearch].
//
// Example:
//
//	c, err := peek.NewCheck("https://example.com/health",
//	    peek.WithInterval(30*time.Second),
//	    peek.WithSearch("Welcome"),
//	)
func NewCheck(rawURL string, opts ...CheckOption) (Check, error) {
	cfg := &checkConfig{
		interval: defaultCheckInterval,
		search:   AnyContent,
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return Check{}, err
		}
	}

	entry := reconcile.Normalize(reconcile.Entry{
		URL:             rawURL,
		IntervalSeconds: int(cfg.interval / time.Second),
		SearchPattern:   cfg.search,
	})
	if err := reconcile.Validate(entry); err != nil {
		return Check{}, err
	}

	return Check{
		url:      entry.URL,
		interval: time.Duration(entry.IntervalSeconds) * time.Second,
		search:   entry.SearchPattern,
	}, nil
}

func (c Check) entry() reconcile.Entry {
	return reconcile.Entry{
		URL:             c.url,
		IntervalSeconds: int(c.interval / time.Second),
		SearchPattern:   c.search,
	}
}

// checkConfig holds mutable state during check construction.
type checkConfig struct {
	interval time.Duration
	search   string
}

// CheckOption configures a [Check] during construction.
type CheckOption func(*checkConfig) error

// WithInterval sets the minimum spacing between probes of this check.
//
// The interval is stored in whole seconds and must be at least one second.
// A check is probed at most once per interval; a slow probe or a long pass
// can delay it further.
func WithInterval(d time.Duration) CheckOption {
	return func(cfg *checkConfig) error {
		if d < time.Second {
			return errors.New("interval must be at least 1 second")
		}
		cfg.interval = d.Truncate(time.Second)
		return nil
	}
}

// WithSearch sets the substring the response body must contain.
//
// When the body does not contain it the check reports the HTTP status with
// "Incorrect content". An empty pattern is the same as [AnyContent].
func WithSearch(pattern string) CheckOption {
	return func(cfg *checkConfig) error {
		cfg.search = pattern
		return nil
	}
}
