// Package probe performs the single HTTP request behind every health check.
//
// A probe issues one GET with a bounded timeout, streams the whole body
// looking for the required content and returns a [Result] carrying the
// tagged [status.Outcome] plus the diagnostics collected during the attempt.
// TLS certificates are inspected during the handshake by a
// [certwatch.Inspector]; its warnings land in the same diagnostics.
//
// Probe never returns an error: failures are part of the outcome.
package probe
