// Standalone mock server for testing the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockserver
//
// Then in another terminal:
//
//	go run ./cmd/peek run -c example/peek.yaml
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
)

func main() {
	fmt.Println("Mock server starting on :9999")
	fmt.Println("  /healthy          always 200 with \"Welcome\"")
	fmt.Println("  /flaky            alternates 200 and 503")
	fmt.Println("  /content-missing  200 without \"Welcome\"")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	var hits atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthy", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>Welcome</body></html>")
	})
	mux.HandleFunc("GET /flaky", func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1)%2 == 0 {
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "<html><body>Welcome</body></html>")
	})
	mux.HandleFunc("GET /content-missing", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>under maintenance</body></html>")
	})

	if err := http.ListenAndServe(":9999", mux); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
