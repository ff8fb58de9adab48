// Package config provides YAML configuration parsing for Peek.
//
// This package enables running Peek as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	database: /var/lib/peek/peek.db
//	report_interval: 4h
//
//	notifications:
//	  enabled: true
//	  webhook:
//	    url: ${SLACK_WEBHOOK_URL}
//
//	checks:
//	  - url: https://example.com
//	    interval: 60
//	    search_string: Welcome
//
//	grids:
//	  - url_template: "https://{{.env}}.example.com/health"
//	    interval: 300
//	    dimensions:
//	      env: [prod, staging]
//
// Global settings are validated strictly and fail [Parse]. A bad check entry
// does not: it is reported by [Config.Problems] and skipped, so one typo
// never stops the rest from being monitored.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jpalmerr/peek/internal/reconcile"
)

// Config is the root configuration structure for Peek.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Database is the SQLite file that keeps check state between runs.
	// Empty keeps state in memory.
	Database string `yaml:"database"`

	// RunOnce performs a single pass over the due checks and exits.
	RunOnce bool `yaml:"run_once"`

	// Timeout bounds each probe. Defaults to 30s.
	Timeout Duration `yaml:"timeout"`

	// MaxConcurrency bounds simultaneous probes. Defaults to 1.
	MaxConcurrency int `yaml:"max_concurrency"`

	// ReportInterval spaces informational notifications for one check.
	// Defaults to 4h.
	ReportInterval Duration `yaml:"report_interval"`

	// StaleAfter is how long a stored check may be missing from the
	// configuration before it is deleted. Defaults to 15m.
	StaleAfter Duration `yaml:"stale_after"`

	// CertThreshold is how close to expiry a certificate must be before it
	// is reported. Defaults to 720h (30 days).
	CertThreshold Duration `yaml:"cert_threshold"`

	// Status configures the read-only status API.
	Status StatusConfig `yaml:"status"`

	// Notifications configures where transitions are reported.
	Notifications NotificationsConfig `yaml:"notifications"`

	// Checks lists the monitored URLs in order.
	Checks []CheckConfig `yaml:"checks"`

	// Grids define checks that expand via cartesian product.
	Grids []GridConfig `yaml:"grids"`
}

// StatusConfig configures the status API.
type StatusConfig struct {
	// Port enables the API on this port. Zero disables it.
	Port int `yaml:"port"`
}

// NotificationsConfig configures notification transports.
type NotificationsConfig struct {
	// Enabled turns notifications on. Decisions are still logged when off.
	Enabled bool `yaml:"enabled"`

	Webhook WebhookConfig `yaml:"webhook"`
	Mail    MailConfig    `yaml:"mail"`
}

// WebhookConfig configures a Slack-compatible incoming webhook.
type WebhookConfig struct {
	// URL supports environment variable substitution.
	URL      string `yaml:"url"`
	Channel  string `yaml:"channel"`
	Username string `yaml:"username"`
}

// MailConfig configures SMTP delivery.
type MailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	// Password supports environment variable substitution.
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
	TLS      bool     `yaml:"tls"`
}

// CheckConfig defines a single monitored URL.
type CheckConfig struct {
	// URL is the target. Supports ${VAR} and ${VAR:-default}.
	URL string `yaml:"url"`

	// Interval is the minimum spacing between probes, in seconds.
	Interval int `yaml:"interval"`

	// SearchString must appear in the response body. Empty or "*" skips
	// the content check.
	SearchString string `yaml:"search_string"`

	problem error
}

// GridConfig defines checks generated from a URL template.
//
// With dimensions {env: [prod, staging], svc: [api, web]} the grid expands
// to four checks.
type GridConfig struct {
	// URLTemplate is a text/template over the dimension names.
	// Supports environment variable substitution.
	URLTemplate string `yaml:"url_template"`

	// Dimensions maps dimension names to their values.
	Dimensions map[string][]string `yaml:"dimensions"`

	// Interval and SearchString apply to every generated check.
	Interval     int    `yaml:"interval"`
	SearchString string `yaml:"search_string"`
}

// Problem describes a check entry that will be skipped.
type Problem struct {
	// Index is the position in the checks list.
	Index int
	// URL is the entry's URL as written.
	URL string
	Err error
}

func (p Problem) String() string {
	return fmt.Sprintf("checks[%d] (%s): %v", p.Index, p.URL, p.Err)
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		varName := submatches[1]
		hasDefault := submatches[2] != ""

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return submatches[3]
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in check URLs, grid templates, the
// webhook URL and the SMTP password. Global settings are validated and
// defaulted; check entries are examined but never fail the parse, see
// [Config.Problems].
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cfg.examineChecks()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Timeout == 0 {
		c.Timeout = Duration(30 * time.Second)
	}
	if c.MaxConcurrency == 0 {
		c.MaxConcurrency = 1
	}
	if c.ReportInterval == 0 {
		c.ReportInterval = Duration(4 * time.Hour)
	}
	if c.StaleAfter == 0 {
		c.StaleAfter = Duration(reconcile.DefaultStaleAfter)
	}
	if c.CertThreshold == 0 {
		c.CertThreshold = Duration(30 * 24 * time.Hour)
	}
}

// validate checks the global settings, grids and notification transports.
func (c *Config) validate() error {
	if c.Timeout.Duration() < time.Second {
		return fmt.Errorf("timeout must be at least 1s, got %s", c.Timeout.Duration())
	}
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("max_concurrency must be positive, got %d", c.MaxConcurrency)
	}
	if c.ReportInterval.Duration() <= 0 {
		return fmt.Errorf("report_interval must be positive, got %s", c.ReportInterval.Duration())
	}
	if c.StaleAfter.Duration() <= 0 {
		return fmt.Errorf("stale_after must be positive, got %s", c.StaleAfter.Duration())
	}
	if c.CertThreshold.Duration() <= 0 {
		return fmt.Errorf("cert_threshold must be positive, got %s", c.CertThreshold.Duration())
	}
	if c.Status.Port < 0 || c.Status.Port > 65535 {
		return fmt.Errorf("status.port must be between 0 and 65535, got %d", c.Status.Port)
	}

	if err := c.Notifications.expandAndValidate(); err != nil {
		return fmt.Errorf("notifications: %w", err)
	}

	for i := range c.Grids {
		if err := c.Grids[i].expandAndValidate(); err != nil {
			return fmt.Errorf("grids[%d]: %w", i, err)
		}
	}

	if len(c.Checks) == 0 && len(c.Grids) == 0 {
		return errors.New("at least one check or grid must be defined")
	}
	return nil
}

func (n *NotificationsConfig) expandAndValidate() error {
	if n.Webhook.URL != "" {
		expanded, err := expandEnvVars(n.Webhook.URL)
		if err != nil {
			return fmt.Errorf("webhook.url: %w", err)
		}
		n.Webhook.URL = expanded
	}
	if n.Mail.Password != "" {
		expanded, err := expandEnvVars(n.Mail.Password)
		if err != nil {
			return fmt.Errorf("mail.password: %w", err)
		}
		n.Mail.Password = expanded
	}

	if n.Mail.Host != "" {
		if n.Mail.From == "" {
			return errors.New("mail.from is required when mail.host is set")
		}
		if len(n.Mail.To) == 0 {
			return errors.New("mail.to needs at least one recipient when mail.host is set")
		}
		if n.Mail.Port < 0 || n.Mail.Port > 65535 {
			return fmt.Errorf("mail.port must be between 0 and 65535, got %d", n.Mail.Port)
		}
	}

	if n.Enabled && n.Webhook.URL == "" && n.Mail.Host == "" {
		return errors.New("enabled but neither webhook.url nor mail.host is set")
	}
	return nil
}

func (g *GridConfig) expandAndValidate() error {
	if g.URLTemplate == "" {
		return errors.New("url_template is required")
	}
	expanded, err := expandEnvVars(g.URLTemplate)
	if err != nil {
		return fmt.Errorf("url_template: %w", err)
	}
	g.URLTemplate = expanded

	// fail fast before the SDK tries to use an invalid template
	if _, err := template.New("").Parse(g.URLTemplate); err != nil {
		return fmt.Errorf("invalid url_template: %w", err)
	}
	if len(g.Dimensions) == 0 {
		return errors.New("at least one dimension is required")
	}
	if g.Interval < 1 {
		return fmt.Errorf("interval must be at least 1 second, got %d", g.Interval)
	}
	return nil
}

// examineChecks expands and validates each check entry, recording problems
// instead of failing. A URL seen earlier in the list is a problem too.
func (c *Config) examineChecks() {
	seen := make(map[string]int, len(c.Checks))
	for i := range c.Checks {
		cc := &c.Checks[i]

		expanded, err := expandEnvVars(cc.URL)
		if err != nil {
			cc.problem = fmt.Errorf("url: %w", err)
			continue
		}
		cc.URL = expanded

		entry := reconcile.Normalize(reconcile.Entry{
			URL:             cc.URL,
			IntervalSeconds: cc.Interval,
			SearchPattern:   cc.SearchString,
		})
		if err := reconcile.Validate(entry); err != nil {
			cc.problem = err
			continue
		}

		if first, dup := seen[entry.URL]; dup {
			cc.problem = fmt.Errorf("duplicate of checks[%d]", first)
			continue
		}
		seen[entry.URL] = i
	}
}

// Problems lists the check entries that will be skipped, in order.
func (c *Config) Problems() []Problem {
	var problems []Problem
	for i, cc := range c.Checks {
		if cc.problem != nil {
			problems = append(problems, Problem{Index: i, URL: cc.URL, Err: cc.problem})
		}
	}
	return problems
}
