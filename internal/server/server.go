package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/jpalmerr/peek/internal/events"
	"github.com/jpalmerr/peek/internal/store"
)

const (
	// sseWriteTimeout is the maximum time allowed for a single SSE write operation.
	// Must be <= shutdown timeout to ensure clean shutdown.
	sseWriteTimeout = 5 * time.Second

	shutdownTimeout = 5 * time.Second
)

// CheckResponse is the JSON form of a check record.
type CheckResponse struct {
	ID                 string    `json:"id"`
	URL                string    `json:"url"`
	IntervalSeconds    int       `json:"interval_seconds"`
	SearchPattern      string    `json:"search_pattern"`
	State              int       `json:"state"`
	Status             int       `json:"status"`
	Label              string    `json:"label"`
	Healthy            bool      `json:"healthy"`
	Message            string    `json:"message"`
	NextCheckAt        time.Time `json:"next_check_at"`
	ConfigUpdatedAt    time.Time `json:"config_updated_at"`
	NextNotificationAt time.Time `json:"next_notification_at"`
}

func toCheckResponse(rec store.CheckRecord) CheckResponse {
	return CheckResponse{
		ID:                 rec.ID,
		URL:                rec.URL,
		IntervalSeconds:    rec.IntervalSeconds,
		SearchPattern:      rec.SearchPattern,
		State:              int(rec.LastState),
		Status:             rec.LastState.Magnitude(),
		Label:              rec.LastState.Label(),
		Healthy:            rec.LastState.Healthy() && !rec.LastState.ContentMissing(),
		Message:            rec.Message,
		NextCheckAt:        rec.NextCheckAt,
		ConfigUpdatedAt:    rec.ConfigUpdatedAt,
		NextNotificationAt: rec.NextNotificationAt,
	}
}

// snapshotEvent renders a stored record as an event for new SSE clients.
func snapshotEvent(rec store.CheckRecord) events.Event {
	return events.Event{
		ID:          rec.ID,
		URL:         rec.URL,
		State:       int(rec.LastState),
		Status:      rec.LastState.Magnitude(),
		Label:       rec.LastState.Label(),
		Message:     rec.Message,
		Previous:    int(rec.LastState),
		Decision:    "snapshot",
		NextCheckAt: rec.NextCheckAt,
	}
}

// Server serves the read-only status API.
//
// Routes:
//   - GET /: status page, when assets were supplied
//   - GET /healthz: liveness probe
//   - GET /api/checks: all check records as JSON
//   - GET /api/checks/{id}: a single check record
//   - GET /api/events: Server-Sent Events stream of evaluations
//
// The server shuts down gracefully when the context passed to
// [Server.Start] is cancelled.
type Server struct {
	store      store.Store
	broker     *events.Broker
	port       int
	assets     fs.FS
	logger     *slog.Logger
	httpServer *http.Server

	mu   sync.Mutex
	addr net.Addr
}

// NewServer creates a new HTTP [Server]. Port 0 binds an ephemeral port;
// see [Server.Addr].
func NewServer(st store.Store, broker *events.Broker, port int, assets fs.FS, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:  st,
		broker: broker,
		port:   port,
		assets: assets,
		logger: logger,
	}
}

// Handler returns the router. Exposed for tests and embedding.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	if s.assets != nil {
		r.Get("/", s.handleDashboard)
	}
	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/checks", s.handleListChecks)
		r.Get("/checks/{id}", s.handleGetCheck)
		r.Get("/events", s.handleSSE)
	})
	return r
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start returns once the listener is bound, so a port conflict is reported
// synchronously. Cancelling ctx triggers a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	if s.port < 0 || s.port > 65535 {
		return fmt.Errorf("invalid port %d", s.port)
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}

	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// request contexts derive from ctx so SSE handlers end on shutdown
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	s.logger.Info("status api listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// handleDashboard serves the status page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	content, err := fs.ReadFile(s.assets, "assets/index.html")
	if err != nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err = w.Write(content); err != nil {
		s.logger.Error("failed to write dashboard response", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

func (s *Server) handleListChecks(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.List(r.Context())
	if err != nil {
		s.logger.Error("failed to list checks", "error", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": "failed to list checks"})
		return
	}

	resp := make([]CheckResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, toCheckResponse(rec))
	}
	w.Header().Set("Cache-Control", "no-cache")
	render.JSON(w, r, resp)
}

func (s *Server) handleGetCheck(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.store.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, map[string]string{"error": "check not found"})
		return
	}
	if err != nil {
		s.logger.Error("failed to get check", "id", id, "error", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": "failed to get check"})
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	render.JSON(w, r, toCheckResponse(rec))
}

// handleSSE streams evaluation events via Server-Sent Events.
//
// New clients first receive one snapshot event per stored record. Writes use
// deadlines so a slow or vanished client cannot pin the handler goroutine.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)
	deadlinesSupported := true

	writeAndFlush := func(data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				s.logger.Warn("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	// subscribe before the snapshot so nothing is missed in between
	ch := s.broker.Subscribe()
	defer s.broker.Unsubscribe(ch)

	records, err := s.store.List(r.Context())
	if err != nil {
		s.logger.Warn("sse snapshot failed", "error", err)
	}
	for _, rec := range records {
		data, err := json.Marshal(snapshotEvent(rec))
		if err != nil {
			continue
		}
		if err := writeAndFlush(data); err != nil {
			return
		}
	}

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if err := writeAndFlush(data); err != nil {
				return
			}
		case <-r.Context().Done():
			// fires on client disconnect and on server shutdown
			return
		}
	}
}
