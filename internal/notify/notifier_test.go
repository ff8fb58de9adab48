package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gopkg.in/mail.v2"
)

func TestNotification_Body(t *testing.T) {
	n := Notification{Kind: Down, URL: "https://example.com", Previous: 200, Current: -200}
	want := "Last known state: HTTP 200, OK\nCurrent state: HTTP 200, OK - Incorrect content"
	if got := n.Body(); got != want {
		t.Errorf("Body() = %q, want %q", got, want)
	}

	n = Notification{Kind: Information, URL: "https://example.com", Previous: 200, Current: 200,
		Message: "Certificate is expiring in 5 days at 2026-05-06 10:00:00 UTC"}
	want = "Last known state: HTTP 200, OK\nCurrent state: HTTP 200, OK\nCertificate is expiring in 5 days at 2026-05-06 10:00:00 UTC"
	if got := n.Body(); got != want {
		t.Errorf("Body() = %q, want %q", got, want)
	}
}

func TestWebhook_Notify(t *testing.T) {
	var got webhookPayload
	var contentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	hook := NewWebhook(server.URL, "", "")
	n := Notification{Kind: Down, URL: "https://example.com", Previous: 200, Current: 503}
	if err := hook.Notify(context.Background(), n); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	if contentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", contentType)
	}
	if got.Channel != DefaultChannel || got.Username != DefaultUsername {
		t.Errorf("channel/username = %q/%q, want defaults", got.Channel, got.Username)
	}
	if got.Text != "*DOWN*" {
		t.Errorf("text = %q, want *DOWN*", got.Text)
	}
	if len(got.Attachments) != 1 || len(got.Attachments[0].Fields) != 1 {
		t.Fatalf("attachments = %+v, want one attachment with one field", got.Attachments)
	}
	if got.Attachments[0].Color != "danger" {
		t.Errorf("color = %q, want danger", got.Attachments[0].Color)
	}
	field := got.Attachments[0].Fields[0]
	if field.Title != "https://example.com" || field.Value != n.Body() {
		t.Errorf("field = %+v", field)
	}
}

func TestWebhook_Notify_RawShape(t *testing.T) {
	var raw map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &raw)
	}))
	defer server.Close()

	hook := NewWebhook(server.URL, "#ops", "bot")
	if err := hook.Notify(context.Background(), Notification{Kind: Recovered, URL: "u", Previous: 503, Current: 200}); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	for _, key := range []string{"channel", "username", "text", "attachments"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("payload missing %q: %v", key, raw)
		}
	}
	if raw["channel"] != "#ops" || raw["username"] != "bot" {
		t.Errorf("payload = %v, want custom channel and username", raw)
	}
}

func TestWebhook_Notify_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	err := NewWebhook(server.URL, "", "").Notify(context.Background(), Notification{Kind: Down})
	if err == nil || !strings.Contains(err.Error(), "500") {
		t.Errorf("Notify() error = %v, want status 500 error", err)
	}
}

func TestWebhook_Notify_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := server.URL
	server.Close()

	if err := NewWebhook(target, "", "").Notify(context.Background(), Notification{Kind: Down}); err == nil {
		t.Error("Notify() error = nil, want transport error")
	}
}

func TestNewMail_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  MailConfig
	}{
		{"missing host", MailConfig{From: "a@example.com", To: []string{"b@example.com"}}},
		{"missing from", MailConfig{Host: "smtp.example.com", To: []string{"b@example.com"}}},
		{"missing recipients", MailConfig{Host: "smtp.example.com", From: "a@example.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewMail(tt.cfg); err == nil {
				t.Error("NewMail() error = nil, want error")
			}
		})
	}
}

func TestMail_Notify(t *testing.T) {
	m, err := NewMail(MailConfig{
		Host: "smtp.example.com",
		From: "peek@example.com",
		To:   []string{"ops@example.com", "oncall@example.com"},
	})
	if err != nil {
		t.Fatalf("NewMail() error = %v", err)
	}
	if m.cfg.Port != 587 {
		t.Errorf("default port = %d, want 587", m.cfg.Port)
	}

	var sent bytes.Buffer
	m.send = func(msg *mail.Message) error {
		_, err := msg.WriteTo(&sent)
		return err
	}

	n := Notification{Kind: Down, URL: "https://example.com", Previous: 200, Current: 503}
	if err := m.Notify(context.Background(), n); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	out := sent.String()
	for _, want := range []string{
		"From: peek@example.com",
		"ops@example.com",
		"oncall@example.com",
		"Subject: [Peek] DOWN: https://example.com",
		"Service Unavailable",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("message missing %q:\n%s", want, out)
		}
	}
}

func TestMail_Notify_SendError(t *testing.T) {
	m, err := NewMail(MailConfig{Host: "smtp.example.com", From: "a@example.com", To: []string{"b@example.com"}})
	if err != nil {
		t.Fatalf("NewMail() error = %v", err)
	}
	m.send = func(*mail.Message) error { return errors.New("connection refused") }

	if err := m.Notify(context.Background(), Notification{Kind: Down}); err == nil {
		t.Error("Notify() error = nil, want send error")
	}
}

func TestMail_Notify_ContextCancelled(t *testing.T) {
	m, err := NewMail(MailConfig{Host: "smtp.example.com", From: "a@example.com", To: []string{"b@example.com"}})
	if err != nil {
		t.Fatalf("NewMail() error = %v", err)
	}
	release := make(chan struct{})
	defer close(release)
	m.send = func(*mail.Message) error {
		<-release
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := m.Notify(ctx, Notification{Kind: Down}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Notify() error = %v, want deadline exceeded", err)
	}
}

type recordingNotifier struct {
	got []Notification
	err error
}

func (r *recordingNotifier) Notify(_ context.Context, n Notification) error {
	r.got = append(r.got, n)
	return r.err
}

func TestFanout_Notify(t *testing.T) {
	first := &recordingNotifier{err: errors.New("first failed")}
	second := &recordingNotifier{}
	third := &recordingNotifier{err: errors.New("third failed")}

	err := Fanout{first, second, third}.Notify(context.Background(), Notification{Kind: Recovered})
	if err == nil {
		t.Fatal("Notify() error = nil, want joined errors")
	}
	if !strings.Contains(err.Error(), "first failed") || !strings.Contains(err.Error(), "third failed") {
		t.Errorf("Notify() error = %v, want both failures", err)
	}
	for i, r := range []*recordingNotifier{first, second, third} {
		if len(r.got) != 1 {
			t.Errorf("notifier %d got %d notifications, want 1", i, len(r.got))
		}
	}

	if err := (Fanout{second}).Notify(context.Background(), Notification{}); err != nil {
		t.Errorf("Notify() error = %v, want nil", err)
	}
}
