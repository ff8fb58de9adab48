package config

import (
	"strings"
	"testing"
	"time"

	"github.com/jpalmerr/peek"
)

func TestBuildChecks_SingleCheck(t *testing.T) {
	cfg, err := Parse([]byte(`
checks:
  - url: https://example.com/
    interval: 90
    search_string: Welcome
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	checks, err := BuildChecks(cfg)
	if err != nil {
		t.Fatalf("BuildChecks() error = %v", err)
	}
	if len(checks) != 1 {
		t.Fatalf("len(checks) = %d, want 1", len(checks))
	}

	c := checks[0]
	if c.URL() != "https://example.com" {
		t.Errorf("URL() = %q, want sanitized URL", c.URL())
	}
	if c.Interval() != 90*time.Second {
		t.Errorf("Interval() = %v, want 90s", c.Interval())
	}
	if c.SearchPattern() != "Welcome" {
		t.Errorf("SearchPattern() = %q, want Welcome", c.SearchPattern())
	}
}

func TestBuildChecks_EmptySearchMeansAnyContent(t *testing.T) {
	cfg, err := Parse([]byte("checks:\n  - url: https://example.com\n    interval: 60\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	checks, err := BuildChecks(cfg)
	if err != nil {
		t.Fatalf("BuildChecks() error = %v", err)
	}
	if checks[0].SearchPattern() != peek.AnyContent {
		t.Errorf("SearchPattern() = %q, want %q", checks[0].SearchPattern(), peek.AnyContent)
	}
}

func TestBuildChecks_SkipsProblems(t *testing.T) {
	cfg, err := Parse([]byte(`
checks:
  - url: https://a.example.com
    interval: 60
  - url: gopher://b.example.com
    interval: 60
  - url: https://c.example.com
    interval: 0
  - url: https://a.example.com/
    interval: 60
  - url: https://d.example.com
    interval: 60
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	checks, err := BuildChecks(cfg)
	if err != nil {
		t.Fatalf("BuildChecks() error = %v", err)
	}

	var urls []string
	for _, c := range checks {
		urls = append(urls, c.URL())
	}
	if strings.Join(urls, " ") != "https://a.example.com https://d.example.com" {
		t.Errorf("checks = %v, want a and d only", urls)
	}
}

func TestBuildChecks_Grid(t *testing.T) {
	cfg, err := Parse([]byte(`
checks:
  - url: https://example.com
    interval: 60
grids:
  - url_template: "https://{{.env}}.example.com/{{.svc}}"
    interval: 30
    search_string: ok
    dimensions:
      svc: [api, web]
      env: [prod, staging]
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	checks, err := BuildChecks(cfg)
	if err != nil {
		t.Fatalf("BuildChecks() error = %v", err)
	}

	want := []string{
		"https://example.com",
		"https://prod.example.com/api",
		"https://prod.example.com/web",
		"https://staging.example.com/api",
		"https://staging.example.com/web",
	}
	if len(checks) != len(want) {
		t.Fatalf("len(checks) = %d, want %d", len(checks), len(want))
	}
	for i, c := range checks {
		if c.URL() != want[i] {
			t.Errorf("checks[%d].URL() = %q, want %q", i, c.URL(), want[i])
		}
	}
	if checks[1].Interval() != 30*time.Second || checks[1].SearchPattern() != "ok" {
		t.Errorf("grid options not applied: %v %q", checks[1].Interval(), checks[1].SearchPattern())
	}
}

func TestBuildChecks_GridDuplicatesCheck(t *testing.T) {
	cfg, err := Parse([]byte(`
checks:
  - url: https://prod.example.com
    interval: 60
grids:
  - url_template: "https://{{.env}}.example.com"
    interval: 60
    dimensions:
      env: [prod, staging]
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	_, err = BuildChecks(cfg)
	if err == nil || !strings.Contains(err.Error(), "already configured") {
		t.Errorf("BuildChecks() error = %v, want duplicate error", err)
	}
}

func TestBuildChecks_GridMissingKey(t *testing.T) {
	cfg, err := Parse([]byte(`
grids:
  - url_template: "https://{{.region}}.example.com"
    interval: 60
    dimensions:
      env: [prod]
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	_, err = BuildChecks(cfg)
	if err == nil || !strings.Contains(err.Error(), "grids[0]") {
		t.Errorf("BuildChecks() error = %v, want grids[0] error", err)
	}
}

func TestBuildOptions_CreatesMonitor(t *testing.T) {
	cfg, err := Parse([]byte(`
database: peek.db
run_once: true
max_concurrency: 3
status:
  port: 9191
notifications:
  enabled: true
  webhook:
    url: https://hooks.example.com/T000
  mail:
    host: smtp.example.com
    from: peek@example.com
    to: [ops@example.com]
checks:
  - url: https://example.com
    interval: 60
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	opts, err := BuildOptions(cfg)
	if err != nil {
		t.Fatalf("BuildOptions() error = %v", err)
	}

	m, err := peek.New(opts...)
	if err != nil {
		t.Fatalf("peek.New() error = %v", err)
	}
	if len(m.Checks()) != 1 {
		t.Errorf("len(Checks()) = %d, want 1", len(m.Checks()))
	}
	if !m.RunOnce() {
		t.Error("RunOnce() = false, want true")
	}
	if m.StatusPort() != 9191 {
		t.Errorf("StatusPort() = %d, want 9191", m.StatusPort())
	}
}

func TestBuildOptions_NotificationsDisabled(t *testing.T) {
	cfg, err := Parse([]byte(`
notifications:
  enabled: false
  webhook:
    url: https://hooks.example.com/T000
checks:
  - url: https://example.com
    interval: 60
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	opts, err := BuildOptions(cfg)
	if err != nil {
		t.Fatalf("BuildOptions() error = %v", err)
	}

	// checks, run once, timeout, concurrency, report interval, stale after, cert threshold
	if len(opts) != 7 {
		t.Errorf("len(opts) = %d, want 7 (no notifier, database or status options)", len(opts))
	}
	if _, err := peek.New(opts...); err != nil {
		t.Errorf("peek.New() error = %v", err)
	}
}

func TestBuildOptions_AllChecksInvalid(t *testing.T) {
	cfg, err := Parse([]byte("checks:\n  - url: ftp://example.com\n    interval: 60\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	opts, err := BuildOptions(cfg)
	if err != nil {
		t.Fatalf("BuildOptions() error = %v", err)
	}
	if _, err := peek.New(opts...); err == nil {
		t.Error("peek.New() expected error with no usable checks, got nil")
	}
}
