package peek

import (
	"crypto/x509"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/jpalmerr/peek/internal/notify"
)

// monitorConfig holds mutable state during Monitor construction.
type monitorConfig struct {
	checks         []Check
	databasePath   string
	notifiers      []notify.Notifier
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

// Option is a function that configures a [Monitor] during construction.
//
// Options return an error if validation fails; [New] stops at the first one.
type Option func(*monitorConfig) error

// WithCheck adds a single [Check]. Can be called multiple times.
func WithCheck(c Check) Option {
	return func(cfg *monitorConfig) error {
		cfg.checks = append(cfg.checks, c)
		return nil
	}
}

// WithChecks adds several checks at once.
//
// Example:
//
//	m, err := peek.New(
//	    peek.WithChecks(api, web, docs),
//	)
func WithChecks(checks ...Check) Option {
	return func(cfg *monitorConfig) error {
		cfg.checks = append(cfg.checks, checks...)
		return nil
	}
}

// WithDatabase persists check records in the SQLite database at path.
//
// The file is created and migrated on [Monitor.Run]. Without this option
// records live in memory and every run starts from a clean slate.
func WithDatabase(path string) Option {
	return func(cfg *monitorConfig) error {
		if path == "" {
			return errors.New("database path cannot be empty")
		}
		cfg.databasePath = path
		return nil
	}
}

// WithWebhook sends notifications to a Slack-compatible incoming webhook.
//
// Empty channel and username default to "#notifications" and "Peek".
//
// Example:
//
//	m, err := peek.New(
//	    peek.WithCheck(c),
//	    peek.WithWebhook(os.Getenv("SLACK_WEBHOOK_URL"), "#ops", ""),
//	)
func WithWebhook(url, channel, username string) Option {
	return func(cfg *monitorConfig) error {
		if url == "" {
			return errors.New("webhook url cannot be empty")
		}
		cfg.notifiers = append(cfg.notifiers, notify.NewWebhook(url, channel, username))
		return nil
	}
}

// MailConfig configures email notifications. See [WithMail].
type MailConfig struct {
	// Host and Port address the SMTP server. Port defaults to 587.
	Host string
	Port int

	// Username and Password authenticate when Username is set.
	Username string
	Password string

	// From is the sender address.
	From string

	// To lists the recipients; at least one is required.
	To []string

	// TLS selects implicit TLS (usually port 465). Otherwise STARTTLS is
	// used when the server offers it.
	TLS bool
}

// WithMail sends notifications by email.
//
// Returns an error if the host, sender or recipients are missing.
func WithMail(mc MailConfig) Option {
	return func(cfg *monitorConfig) error {
		m, err := notify.NewMail(notify.MailConfig{
			Host:     mc.Host,
			Port:     mc.Port,
			Username: mc.Username,
			Password: mc.Password,
			From:     mc.From,
			To:       append([]string(nil), mc.To...),
			TLS:      mc.TLS,
		})
		if err != nil {
			return err
		}
		cfg.notifiers = append(cfg.notifiers, m)
		return nil
	}
}

// WithRunOnce makes [Monitor.Run] perform one pass over the due checks and
// return, for use from cron or CI.
func WithRunOnce(once bool) Option {
	return func(cfg *monitorConfig) error {
		cfg.runOnce = once
		return nil
	}
}

// WithReportInterval sets how long a healthy check with diagnostics waits
// between informational notifications. Defaults to 4 hours.
//
// Returns an error if the duration is zero or negative.
func WithReportInterval(d time.Duration) Option {
	return func(cfg *monitorConfig) error {
		if d <= 0 {
			return errors.New("report interval must be positive")
		}
		cfg.reportInterval = d
		return nil
	}
}

// WithTimeout sets the per-probe timeout. A probe that does not complete in
// time counts as unreachable. Defaults to 30 seconds.
//
// Returns an error if the duration is zero or negative.
func WithTimeout(d time.Duration) Option {
	return func(cfg *monitorConfig) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		cfg.timeout = d
		return nil
	}
}

// WithMaxConcurrency sets how many checks are probed at the same time.
//
// Defaults to 1, which probes due checks one after another in due order.
// Returns an error if the value is zero or negative.
func WithMaxConcurrency(n int) Option {
	return func(cfg *monitorConfig) error {
		if n <= 0 {
			return errors.New("max concurrency must be positive")
		}
		cfg.maxConcurrency = n
		return nil
	}
}

// WithStaleAfter sets how long a stored check may go without appearing in
// the configuration before it is deleted. Defaults to 15 minutes.
//
// Only matters with [WithDatabase], where records outlive the process.
func WithStaleAfter(d time.Duration) Option {
	return func(cfg *monitorConfig) error {
		if d <= 0 {
			return errors.New("stale after must be positive")
		}
		cfg.staleAfter = d
		return nil
	}
}

// WithCertThreshold sets how close to expiry a certificate must be before
// probes report it. Defaults to 30 days.
func WithCertThreshold(d time.Duration) Option {
	return func(cfg *monitorConfig) error {
		if d <= 0 {
			return errors.New("certificate threshold must be positive")
		}
		cfg.certThreshold = d
		return nil
	}
}

// WithRootCAs verifies certificates against pool instead of the system roots.
func WithRootCAs(pool *x509.CertPool) Option {
	return func(cfg *monitorConfig) error {
		if pool == nil {
			return errors.New("root CA pool cannot be nil")
		}
		cfg.rootCAs = pool
		return nil
	}
}

// WithStatusPort serves the read-only status API on port.
//
// The API is disabled unless this option is given.
// Returns an error if the port is outside the valid range (1-65535).
func WithStatusPort(port int) Option {
	return func(cfg *monitorConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.statusPort = port
		return nil
	}
}

// WithLogger sets a custom [slog.Logger]. If not specified, [slog.Default]
// is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *monitorConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithConsole sets where the one-line-per-evaluation report is written.
// Defaults to os.Stdout. Pass io.Discard to silence it.
func WithConsole(w io.Writer) Option {
	return func(cfg *monitorConfig) error {
		if w == nil {
			return errors.New("console writer cannot be nil")
		}
		cfg.console = w
		return nil
	}
}

// WithEvaluationCallback registers a function called after every committed
// evaluation. Callbacks run in registration order.
//
// Callbacks are invoked from the probing goroutine and must not block; with
// [WithMaxConcurrency] above 1 they may run concurrently. Panics are
// recovered and logged.
//
// Example:
//
//	m, err := peek.New(
//	    peek.WithCheck(c),
//	    peek.WithEvaluationCallback(func(e peek.Evaluation) {
//	        if e.Decision == peek.DecisionDown {
//	            log.Printf("ALERT: %s is down", e.URL)
//	        }
//	    }),
//	)
//
// Nil callbacks are silently ignored.
func WithEvaluationCallback(cb func(Evaluation)) Option {
	return func(cfg *monitorConfig) error {
		if cb == nil {
			return nil
		}
		cfg.callbacks = append(cfg.callbacks, cb)
		return nil
	}
}
