package probe

import (
	"slices"
	"strings"
	"sync"
)

// Diagnostics collects the messages produced during one probe attempt.
//
// The TLS handshake may add to it from a transport goroutine while the probe
// itself adds transport and body errors, so it is safe for concurrent use.
type Diagnostics struct {
	mu    sync.Mutex
	parts []string
}

// Add appends a message. Empty messages and messages already collected are
// ignored, so a certificate seen again on a redirect is reported once.
func (d *Diagnostics) Add(msg string) {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if slices.Contains(d.parts, msg) {
		return
	}
	d.parts = append(d.parts, msg)
}

// String joins the collected messages with ", ".
func (d *Diagnostics) String() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return strings.Join(d.parts, ", ")
}

// Len returns the number of collected messages.
func (d *Diagnostics) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.parts)
}
