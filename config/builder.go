package config

import (
	"fmt"
	"time"

	"github.com/jpalmerr/peek"
)

// BuildChecks converts parsed configuration into SDK checks.
//
// Check entries listed by [Config.Problems] are skipped. Grids are expanded
// via cartesian product after the checks; a grid URL that repeats an
// earlier check is an error.
func BuildChecks(cfg *Config) ([]peek.Check, error) {
	var checks []peek.Check
	seen := make(map[string]bool)

	for _, cc := range cfg.Checks {
		if cc.problem != nil {
			continue
		}
		c, err := peek.NewCheck(cc.URL, checkOptions(cc.Interval, cc.SearchString)...)
		if err != nil {
			// examineChecks accepted it, so this is a bug rather than bad input
			return nil, fmt.Errorf("check %q: %w", cc.URL, err)
		}
		seen[c.URL()] = true
		checks = append(checks, c)
	}

	for i, gc := range cfg.Grids {
		generated, err := peek.NewCheckGrid(gc.URLTemplate, gc.Dimensions, checkOptions(gc.Interval, gc.SearchString)...)
		if err != nil {
			return nil, fmt.Errorf("grids[%d]: %w", i, err)
		}
		for _, c := range generated {
			if seen[c.URL()] {
				return nil, fmt.Errorf("grids[%d]: %q is already configured", i, c.URL())
			}
			seen[c.URL()] = true
			checks = append(checks, c)
		}
	}

	return checks, nil
}

func checkOptions(intervalSeconds int, search string) []peek.CheckOption {
	return []peek.CheckOption{
		peek.WithInterval(time.Duration(intervalSeconds) * time.Second),
		peek.WithSearch(search),
	}
}

// BuildOptions converts parsed configuration into [peek.New] options,
// including the checks from [BuildChecks].
func BuildOptions(cfg *Config) ([]peek.Option, error) {
	checks, err := BuildChecks(cfg)
	if err != nil {
		return nil, err
	}

	opts := []peek.Option{
		peek.WithChecks(checks...),
		peek.WithRunOnce(cfg.RunOnce),
		peek.WithTimeout(cfg.Timeout.Duration()),
		peek.WithMaxConcurrency(cfg.MaxConcurrency),
		peek.WithReportInterval(cfg.ReportInterval.Duration()),
		peek.WithStaleAfter(cfg.StaleAfter.Duration()),
		peek.WithCertThreshold(cfg.CertThreshold.Duration()),
	}

	if cfg.Database != "" {
		opts = append(opts, peek.WithDatabase(cfg.Database))
	}
	if cfg.Status.Port != 0 {
		opts = append(opts, peek.WithStatusPort(cfg.Status.Port))
	}

	n := cfg.Notifications
	if n.Enabled {
		if n.Webhook.URL != "" {
			opts = append(opts, peek.WithWebhook(n.Webhook.URL, n.Webhook.Channel, n.Webhook.Username))
		}
		if n.Mail.Host != "" {
			opts = append(opts, peek.WithMail(peek.MailConfig{
				Host:     n.Mail.Host,
				Port:     n.Mail.Port,
				Username: n.Mail.Username,
				Password: n.Mail.Password,
				From:     n.Mail.From,
				To:       n.Mail.To,
				TLS:      n.Mail.TLS,
			}))
		}
	}

	return opts, nil
}
