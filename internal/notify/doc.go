// Package notify decides when a state transition is worth reporting and
// delivers the resulting notifications.
//
// [Decide] is a pure function over the previous and current status codes,
// the diagnostic message and the informational deadline. Delivery goes
// through the [Notifier] interface; [Webhook] posts Slack-compatible JSON,
// [Mail] sends over SMTP and [Fanout] combines several transports.
package notify
