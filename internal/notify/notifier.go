package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/jpalmerr/peek/internal/status"
)

// Notification is a single decided message about one endpoint.
type Notification struct {
	Kind     Kind
	URL      string
	Previous status.Code
	Current  status.Code
	Message  string
}

// Body renders the human readable body shared by every transport.
func (n Notification) Body() string {
	body := fmt.Sprintf("Last known state: HTTP %d, %s\nCurrent state: HTTP %d, %s",
		n.Previous.Magnitude(), n.Previous.Label(),
		n.Current.Magnitude(), n.Current.Label())
	if n.Message != "" {
		body += "\n" + n.Message
	}
	return body
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Fanout delivers to every notifier in order.
type Fanout []Notifier

// Notify delivers n to all notifiers and joins their errors.
func (f Fanout) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, notifier := range f {
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
