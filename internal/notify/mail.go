package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/mail.v2"
)

const mailTimeout = 15 * time.Second

// MailConfig configures the SMTP transport.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
	// TLS selects implicit TLS; otherwise STARTTLS is used when offered.
	TLS bool
}

// Mail sends notifications as plain text email.
type Mail struct {
	cfg  MailConfig
	send func(*mail.Message) error
}

// NewMail creates a [Mail] transport.
func NewMail(cfg MailConfig) (*Mail, error) {
	if cfg.Host == "" {
		return nil, errors.New("mail: host is required")
	}
	if cfg.From == "" {
		return nil, errors.New("mail: from is required")
	}
	if len(cfg.To) == 0 {
		return nil, errors.New("mail: at least one recipient is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}

	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.TLSConfig = &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}
	d.Timeout = mailTimeout
	if cfg.TLS {
		d.SSL = true
	} else {
		d.SSL = false
		d.StartTLSPolicy = mail.OpportunisticStartTLS
	}

	return &Mail{cfg: cfg, send: func(m *mail.Message) error { return d.DialAndSend(m) }}, nil
}

func (m *Mail) message(n Notification) *mail.Message {
	msg := mail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", m.cfg.To...)
	msg.SetHeader("Subject", fmt.Sprintf("[Peek] %s: %s", n.Kind.Headline(), n.URL))
	msg.SetBody("text/plain", n.URL+"\n"+n.Body())
	return msg
}

// Notify implements [Notifier]. Delivery is abandoned when ctx is done.
func (m *Mail) Notify(ctx context.Context, n Notification) error {
	msg := m.message(n)

	done := make(chan error, 1)
	go func() {
		done <- m.send(msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send mail to %s: %w", strings.Join(m.cfg.To, ","), err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send mail: %w", ctx.Err())
	}
}
