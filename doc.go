// Package peek monitors HTTP(S) endpoints and reports meaningful changes in
// their health.
//
// Each check is probed at most once per interval. A probe records the HTTP
// status, whether the response body contains a required string, and any
// certificate about to expire. The result is folded into a single signed
// state (the HTTP status, negated when content is missing, 410 when nothing
// answered), persisted, and compared with the previous state to decide
// whether anyone should be told.
//
// # Quick Start
//
//	c, _ := peek.NewCheck("https://example.com", peek.WithSearch("Welcome"))
//	m, _ := peek.New(
//	    peek.WithCheck(c),
//	    peek.WithWebhook(os.Getenv("SLACK_WEBHOOK_URL"), "", ""),
//	)
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	m.Run(ctx) // blocks until ctx is cancelled
//
// # Notifications
//
// Every evaluation is classified as one of:
//
//   - [DecisionDown]: healthy to failing (status above 400), or content lost
//   - [DecisionRecovered]: failing to healthy, or content restored
//   - [DecisionInformation]: still healthy but with a diagnostic; sent at
//     most once per report interval ([WithReportInterval])
//   - [DecisionStatusChange]: any other change of state
//   - [DecisionNone]: nothing changed
//
// Notifications go to a Slack-compatible webhook ([WithWebhook]) and/or
// email ([WithMail]). Delivery failures are logged and never stop probing.
//
// # Storage
//
// By default records live in memory. [WithDatabase] keeps them in SQLite so
// schedules and throttles survive restarts; checks removed from the
// configuration are deleted once they have been absent for
// [WithStaleAfter].
//
// # Architecture
//
// Peek consists of several internal packages (under internal/):
//
//   - internal/status: the signed state codec
//   - internal/certwatch: certificate expiry inspection in the TLS handshake
//   - internal/probe: a single HTTP probe with per-attempt diagnostics
//   - internal/notify: the notification decision engine and transports
//   - internal/reconcile: configuration to store reconciliation
//   - internal/scheduler: the due-time queue and worker pool
//   - internal/store: record storage, in memory or SQLite
//   - internal/server: the read-only status API with Server-Sent Events
//
// The internal packages are not part of the public API and may change
// without notice.
package peek
