package peek

import (
	"time"

	"github.com/jpalmerr/peek/internal/events"
	"github.com/jpalmerr/peek/internal/notify"
	"github.com/jpalmerr/peek/internal/scheduler"
	"github.com/jpalmerr/peek/internal/status"
)

// Decision is the notification classification of one evaluation.
type Decision string

const (
	// DecisionNone means nothing worth reporting happened.
	DecisionNone Decision = "none"

	// DecisionDown means the check went from healthy to failing, or lost its
	// required content.
	DecisionDown Decision = "down"

	// DecisionRecovered means the check went from failing to healthy.
	DecisionRecovered Decision = "recovered"

	// DecisionInformation means the check is healthy but reported a
	// diagnostic, such as an expiring certificate.
	DecisionInformation Decision = "information"

	// DecisionStatusChange means the state changed without crossing the
	// health line, e.g. 200 to 204 or 503 to 502.
	DecisionStatusChange Decision = "status change"
)

// String returns the string representation of the decision.
func (d Decision) String() string {
	return string(d)
}

// Evaluation is the committed outcome of probing one check.
//
// Evaluation is a value; it shares no state with the monitor.
type Evaluation struct {
	// ID is the stored record key.
	ID string

	// URL is the sanitized URL that was probed.
	URL string

	// State is the signed status: the HTTP status, negated when required
	// content was missing, or 410 when no response was received.
	State int

	// Previous is the State recorded before this probe.
	Previous int

	// StatusCode is the HTTP status carried by State.
	StatusCode int

	// Label is the human readable form of State, e.g. "OK" or
	// "OK - Incorrect content".
	Label string

	// Message holds the comma separated diagnostics of the probe, possibly empty.
	Message string

	// Decision is the notification classification of the transition.
	Decision Decision

	// Latency is the time taken by the probe.
	Latency time.Duration

	// CheckedAt is when the probe completed.
	CheckedAt time.Time

	// NextCheckAt is when the check next becomes eligible.
	NextCheckAt time.Time
}

// Healthy reports whether the endpoint answered with a success-class status
// and the required content.
func (e Evaluation) Healthy() bool {
	return e.State > 0 && e.State < 300
}

func toEvaluation(ev scheduler.Evaluation) Evaluation {
	state := ev.Record.LastState
	return Evaluation{
		ID:          ev.Record.ID,
		URL:         ev.Record.URL,
		State:       int(state),
		Previous:    int(ev.Previous),
		StatusCode:  state.Magnitude(),
		Label:       state.Label(),
		Message:     ev.Record.Message,
		Decision:    toDecision(ev.Decision),
		Latency:     ev.Latency,
		CheckedAt:   ev.CheckedAt,
		NextCheckAt: ev.Record.NextCheckAt,
	}
}

func toDecision(k notify.Kind) Decision {
	return Decision(k.String())
}

func toEvent(e Evaluation) events.Event {
	return events.Event{
		ID:          e.ID,
		URL:         e.URL,
		State:       e.State,
		Status:      status.Code(e.State).Magnitude(),
		Label:       e.Label,
		Message:     e.Message,
		Previous:    e.Previous,
		Decision:    e.Decision.String(),
		LatencyMs:   e.Latency.Milliseconds(),
		CheckedAt:   e.CheckedAt,
		NextCheckAt: e.NextCheckAt,
	}
}
