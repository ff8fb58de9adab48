package probe

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/jpalmerr/peek/internal/certwatch"
	"github.com/jpalmerr/peek/internal/status"
)

// DefaultTimeout bounds a probe when no timeout is configured.
const DefaultTimeout = 30 * time.Second

const userAgent = "Peek/1.0"

// Result is the outcome of one probe attempt.
type Result struct {
	// Outcome is the tagged probe result.
	Outcome status.Outcome

	// Message is the comma separated diagnostics of this attempt, possibly empty.
	Message string

	// Latency is the total time taken by the attempt.
	Latency time.Duration

	// Err is the transport or body error, if any. It is already part of Message.
	Err error
}

// Code returns the signed status code for the result.
func (r Result) Code() status.Code {
	return status.Encode(r.Outcome)
}

// Client probes endpoints.
//
// Each probe runs over its own transport cloned from a shared base, so every
// probe performs a fresh TLS handshake and with it the certificate
// inspection. Within one probe, redirects to the same host reuse the
// connection and the certificate is inspected once.
type Client struct {
	base      *http.Transport
	inspector *certwatch.Inspector
	timeout   time.Duration
}

// NewClient creates a probing [Client].
//
// A zero timeout uses [DefaultTimeout]. A nil inspector gets one with the
// default threshold and the system roots.
func NewClient(timeout time.Duration, inspector *certwatch.Inspector) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if inspector == nil {
		inspector = certwatch.NewInspector(0, nil)
	}
	base := http.DefaultTransport.(*http.Transport).Clone()
	return &Client{
		base:      base,
		inspector: inspector,
		timeout:   timeout,
	}
}

// Timeout returns the per-probe timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Probe issues a GET to rawURL and evaluates the response against pattern.
//
// A pattern of [status.AnyContent] or "" disables the content check. If the
// body cannot be read the status is kept and the content counts as missing.
func (c *Client) Probe(ctx context.Context, rawURL, pattern string) Result {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	diag := &Diagnostics{}
	anyContent := pattern == "" || pattern == status.AnyContent
	start := time.Now()

	fail := func(err error) Result {
		diag.Add(err.Error())
		return Result{
			Outcome: status.Outcome{TransportFailed: true},
			Message: diag.String(),
			Latency: time.Since(start),
			Err:     err,
		}
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fail(fmt.Errorf("invalid url: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fail(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)

	client := &http.Client{Transport: c.transport(u.Hostname(), diag)}
	defer client.CloseIdleConnections()

	resp, err := client.Do(req)
	if err != nil {
		return fail(fmt.Errorf("request failed: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	matched, err := bodyContains(resp.Body, pattern, anyContent)
	if err != nil {
		err = fmt.Errorf("failed to read response body: %w", err)
		diag.Add(err.Error())
		matched = anyContent
	}

	return Result{
		Outcome: status.Outcome{
			StatusCode:     resp.StatusCode,
			ContentMatched: matched,
		},
		Message: diag.String(),
		Latency: time.Since(start),
		Err:     err,
	}
}

// transport returns a single-use transport whose handshake reports to diag.
func (c *Client) transport(serverName string, diag *Diagnostics) *http.Transport {
	t := c.base.Clone()
	t.TLSClientConfig = &tls.Config{
		MinVersion: tls.VersionTLS12,
		// Chain and hostname checks run in VerifyConnection so expiring
		// certificates are seen even when the handshake is rejected.
		InsecureSkipVerify: true, //nolint:gosec
		VerifyConnection:   c.inspector.VerifyConnection(serverName, diag),
	}
	return t
}

// Close releases idle connections held by the base transport.
// Safe to call on a nil client and more than once.
func (c *Client) Close() {
	if c == nil || c.base == nil {
		return
	}
	c.base.CloseIdleConnections()
}
