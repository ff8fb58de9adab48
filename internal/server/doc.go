// Package server provides Peek's read-only status API.
//
//   - GET /healthz: liveness
//   - GET /api/checks and /api/checks/{id}: current check records as JSON
//   - GET /api/events: Server-Sent Events stream of evaluations
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
package server
