package notify

import (
	"strings"
	"time"

	"github.com/jpalmerr/peek/internal/status"
)

// Kind is the notification decision for one evaluation.
type Kind int

const (
	// None means nothing worth reporting happened.
	None Kind = iota
	// Down means the endpoint went from healthy to failing.
	Down
	// Recovered means the endpoint went from failing to healthy.
	Recovered
	// Information means the endpoint is healthy but produced a diagnostic.
	Information
	// StatusChange means the state changed without crossing the health line.
	StatusChange
)

// String returns the lower case name of the kind.
func (k Kind) String() string {
	switch k {
	case Down:
		return "down"
	case Recovered:
		return "recovered"
	case Information:
		return "information"
	case StatusChange:
		return "status change"
	default:
		return "none"
	}
}

// Headline returns the upper case name used as a message title.
func (k Kind) Headline() string {
	return strings.ToUpper(k.String())
}

// Color returns the attachment colour tag for chat webhooks.
func (k Kind) Color() string {
	switch k {
	case Down:
		return "danger"
	case Recovered:
		return "good"
	default:
		return "warning"
	}
}

// Decide classifies the transition from prev to curr.
//
// Rules are evaluated in order and the first match wins:
//
//  1. Down: a healthy state turned into a hard failure, or a success with
//     content turned into a success without it.
//  2. Recovered: the reverse of Down.
//  3. Information: healthy before and after, a diagnostic is present, and
//     the informational deadline has passed.
//  4. StatusChange: the code changed in any other way.
//
// Decide is pure; the caller owns the deadline.
func Decide(prev, curr status.Code, message string, deadline, now time.Time) Kind {
	switch {
	case prev.Healthy() && curr.HardFailure(),
		prev > 0 && curr < 0 && curr.Healthy():
		return Down
	case prev.HardFailure() && curr.Healthy(),
		prev < 0 && curr > 0 && curr < 300:
		return Recovered
	case prev.Healthy() && curr.Healthy() && message != "" && now.After(deadline):
		return Information
	case prev != curr:
		return StatusChange
	default:
		return None
	}
}

// NextDeadline returns the informational deadline after a decision.
//
// Only an informational notification pushes the deadline out to now plus
// interval; every other kind leaves it unchanged so the next diagnostic on a
// healthy endpoint is reported promptly.
func NextDeadline(kind Kind, deadline, now time.Time, interval time.Duration) time.Time {
	if kind == Information {
		return now.Add(interval)
	}
	return deadline
}
