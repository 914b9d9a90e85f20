// Package server exposes a read-only status surface over HTTP: a health
// probe, JSON views of tracked sessions and the notification journal, and
// an MCP endpoint carrying the same data.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mark3labs/mcp-go/server"

	phasemcp "github.com/btouchard/phasechime/internal/mcp"
	"github.com/btouchard/phasechime/internal/mcp/handlers"
	"github.com/btouchard/phasechime/internal/mcp/middleware"
	"github.com/btouchard/phasechime/internal/store"
)

const defaultListLimit = 50

// Config holds the listener settings.
type Config struct {
	Host  string
	Port  int
	Token string
}

// Server is the status HTTP server.
type Server struct {
	cfg      Config
	sessions handlers.SessionLister
	journal  handlers.NotificationLister
	mcp      *server.MCPServer
	router   chi.Router
}

// New builds the router. sessions and journal may be nil.
func New(cfg Config, sessions handlers.SessionLister, journal handlers.NotificationLister, version string) *Server {
	s := &Server{
		cfg:      cfg,
		sessions: sessions,
		journal:  journal,
		mcp: phasemcp.NewServer(&phasemcp.Deps{
			Sessions: sessions,
			Journal:  journal,
			Version:  version,
		}),
	}
	s.router = s.routes()
	return s
}

// MCP returns the MCP server, for broadcasting delivered events.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.SecurityHeaders)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerToken(s.cfg.Token))
		r.Get("/api/sessions", s.handleSessions)
		r.Get("/api/notifications", s.handleNotifications)
		r.Handle("/mcp", server.NewStreamableHTTPServer(s.mcp))
	})

	return r
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		writeError(w, http.StatusServiceUnavailable, "session tracking is not available")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": s.sessions.Sessions()})
}

type notificationView struct {
	NotificationID string    `json:"notification_id"`
	Kind           string    `json:"kind"`
	Delivered      bool      `json:"delivered"`
	Reason         string    `json:"reason"`
	Cwd            string    `json:"cwd,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusServiceUnavailable, "notification journal is disabled")
		return
	}

	q := r.URL.Query()
	filter := store.NotificationFilter{
		NotificationID: q.Get("notification_id"),
		DeliveredOnly:  q.Get("delivered") == "true",
		Limit:          defaultListLimit,
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be an RFC 3339 time")
			return
		}
		filter.Since = t
	}

	records, err := s.journal.ListNotifications(filter)
	if err != nil {
		slog.Error("listing notifications", "error", err)
		writeError(w, http.StatusInternalServerError, "listing notifications failed")
		return
	}

	out := make([]notificationView, 0, len(records))
	for _, rec := range records {
		out = append(out, notificationView{
			NotificationID: rec.NotificationID,
			Kind:           rec.Kind,
			Delivered:      rec.Delivered,
			Reason:         rec.Reason,
			Cwd:            rec.Cwd,
			CreatedAt:      rec.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": out})
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("status server is ready", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("status server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("writing response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
