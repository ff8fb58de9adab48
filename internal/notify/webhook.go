package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Webhook defaults.
const (
	DefaultChannel  = "#notifications"
	DefaultUsername = "Peek"
)

const webhookTimeout = 10 * time.Second

// Webhook posts Slack-compatible messages to an incoming webhook URL.
type Webhook struct {
	URL      string
	Channel  string
	Username string

	client *http.Client
}

// NewWebhook creates a [Webhook]. Empty channel and username use the defaults.
func NewWebhook(url, channel, username string) *Webhook {
	if channel == "" {
		channel = DefaultChannel
	}
	if username == "" {
		username = DefaultUsername
	}
	return &Webhook{
		URL:      url,
		Channel:  channel,
		Username: username,
		client:   &http.Client{Timeout: webhookTimeout},
	}
}

type webhookPayload struct {
	Channel     string              `json:"channel"`
	Username    string              `json:"username"`
	Text        string              `json:"text"`
	Attachments []webhookAttachment `json:"attachments"`
}

type webhookAttachment struct {
	Color  string         `json:"color"`
	Fields []webhookField `json:"fields"`
}

type webhookField struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

func (w *Webhook) payload(n Notification) webhookPayload {
	return webhookPayload{
		Channel:  w.Channel,
		Username: w.Username,
		Text:     "*" + n.Kind.Headline() + "*",
		Attachments: []webhookAttachment{{
			Color:  n.Kind.Color(),
			Fields: []webhookField{{Title: n.URL, Value: n.Body()}},
		}},
	}
}

// Notify implements [Notifier].
func (w *Webhook) Notify(ctx context.Context, n Notification) error {
	data, err := json.Marshal(w.payload(n))
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
