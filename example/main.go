package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/peek"
)

func main() {
	// start mock server (see mock_server.go)
	go StartMockServer(":9999")
	time.Sleep(100 * time.Millisecond)

	// grid API: 2 services × 2 envs = 4 checks from one declaration
	checks, err := peek.NewCheckGrid("http://localhost:9999/{{.svc}}?env={{.env}}",
		map[string][]string{
			"svc": {"users", "orders"},
			"env": {"prod", "staging"},
		},
		peek.WithInterval(5*time.Second),
		peek.WithSearch("Welcome"),
	)
	if err != nil {
		slog.Error("failed to create check grid", "error", err)
		os.Exit(1)
	}

	// an external check with its own interval
	github, err := peek.NewCheck("https://api.github.com", peek.WithInterval(30*time.Second))
	if err != nil {
		slog.Error("failed to create check", "error", err)
		os.Exit(1)
	}
	checks = append(checks, github)

	m, err := peek.New(
		peek.WithChecks(checks...),
		peek.WithStatusPort(8080),
		peek.WithEvaluationCallback(func(e peek.Evaluation) {
			if e.Decision != peek.DecisionNone {
				fmt.Printf("  >> %s: %s (%s)\n", e.URL, e.Decision, e.Label)
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create monitor", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  Peek Demo")
	fmt.Println()
	fmt.Println("  Checks:")
	fmt.Println("  • 4 mock (2 services × 2 envs via grid, 5s interval)")
	fmt.Println("  • 1 external (GitHub, 30s interval)")
	fmt.Println()
	fmt.Println("  Status API: http://localhost:8080/api/checks")
	fmt.Println("  Live events: curl -N http://localhost:8080/api/events")
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := m.Run(ctx); err != nil {
		slog.Error("peek error", "error", err)
		os.Exit(1)
	}
}
