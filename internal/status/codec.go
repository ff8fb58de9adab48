// Package status converts probe outcomes to and from the signed status code
// that Peek persists and reports.
//
// Internally a probe result is an [Outcome]: an HTTP status, whether the
// transport failed before a response arrived, and whether the required
// content was found. At the store, console and notification boundaries the
// outcome is folded into a single [Code]:
//
//   - no response: +410 (Gone)
//   - content required but missing: the HTTP status, negated (e.g. -200)
//   - otherwise: the HTTP status (e.g. 200, 503)
//
// The magnitude of a Code is always a non-zero HTTP status.
package status

import (
	"net/http"
	"strconv"
)

// AnyContent is the search pattern that disables the content check.
const AnyContent = "*"

// GoneCode is the magnitude recorded when no response was received.
const GoneCode = http.StatusGone

// Outcome is the tagged form of a single probe result.
type Outcome struct {
	// StatusCode is the HTTP status of the response. Zero when TransportFailed.
	StatusCode int
	// TransportFailed reports that no response was received (DNS, connect,
	// TLS, timeout).
	TransportFailed bool
	// ContentMatched reports that the required content was present, or that
	// no content check was requested.
	ContentMatched bool
}

// Code is the signed encoding of an [Outcome].
type Code int

// Encode folds an outcome into its signed code.
func Encode(o Outcome) Code {
	if o.TransportFailed || o.StatusCode <= 0 {
		return Code(GoneCode)
	}
	if !o.ContentMatched {
		return Code(-o.StatusCode)
	}
	return Code(o.StatusCode)
}

// Decode expands a code into its tagged form.
//
// A transport failure and a genuine 410 response encode identically, so
// Decode never reports TransportFailed.
func (c Code) Decode() Outcome {
	return Outcome{
		StatusCode:     c.Magnitude(),
		ContentMatched: c > 0,
	}
}

// Magnitude returns the HTTP status carried by the code.
func (c Code) Magnitude() int {
	if c < 0 {
		return int(-c)
	}
	return int(c)
}

// ContentMissing reports whether required content was absent.
func (c Code) ContentMissing() bool {
	return c < 0
}

// Healthy reports whether the magnitude is a success-class status (< 300).
func (c Code) Healthy() bool {
	return c.Magnitude() < 300
}

// HardFailure reports whether the magnitude is above 400.
func (c Code) HardFailure() bool {
	return c.Magnitude() > 400
}

// Valid reports whether the code carries a usable status.
func (c Code) Valid() bool {
	return c != 0
}

// Label renders the code for humans, e.g. "OK", "Service Unavailable" or
// "OK - Incorrect content".
//
// Missing content is only called out on success-class magnitudes; on error
// statuses the failure itself is the interesting part.
func (c Code) Label() string {
	text := Reason(c.Magnitude())
	if c.ContentMissing() && c.Healthy() {
		return text + " - Incorrect content"
	}
	return text
}

// String implements fmt.Stringer.
func (c Code) String() string {
	return strconv.Itoa(int(c))
}

// Reason returns the standard reason phrase for an HTTP status.
func Reason(statusCode int) string {
	if text := http.StatusText(statusCode); text != "" {
		return text
	}
	return "Unknown"
}
