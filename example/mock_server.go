package main

import (
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

// mockState tracks whether a single service is up and when that flips.
type mockState struct {
	down         bool
	nextChangeAt time.Time
}

// StartMockServer runs a mock service that flips each /{svc} path between
// healthy and failing every 20-60 seconds. A healthy response contains
// "Welcome"; a failing one alternates between a 503 and a 200 page
// missing that word.
// Call this in a goroutine before creating checks.
func StartMockServer(addr string) {
	var (
		states = make(map[string]*mockState)
		mu     sync.Mutex
	)

	http.HandleFunc("/{svc}", func(w http.ResponseWriter, r *http.Request) {
		key := r.PathValue("svc") + "-" + r.URL.Query().Get("env")

		// simulate small latency variance
		time.Sleep(time.Duration(50+rand.Intn(150)) * time.Millisecond)

		mu.Lock()
		state, exists := states[key]
		if !exists {
			state = &mockState{nextChangeAt: nextChange()}
			states[key] = state
		}
		if time.Now().After(state.nextChangeAt) {
			state.down = !state.down
			state.nextChangeAt = nextChange()
			slog.Info("state change", "service", key, "down", state.down)
		}
		down := state.down
		mu.Unlock()

		switch {
		case !down:
			fmt.Fprintf(w, "<html><body>Welcome to %s</body></html>", key)
		case rand.Intn(2) == 0:
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		default:
			fmt.Fprint(w, "<html><body>maintenance</body></html>")
		}
	})

	if err := http.ListenAndServe(addr, nil); err != nil {
		slog.Error("mock server error", "error", err)
	}
}

func nextChange() time.Time {
	return time.Now().Add(time.Duration(20+rand.Intn(41)) * time.Second)
}
