// Package api is the HTTP surface of the sing-along server.
//
// Routes:
//
//	POST   /v1/lyrics/parse          parse a subtitle sheet, report truncation
//	GET    /v1/sessions              open sessions, oldest first
//	POST   /v1/sessions              open a session from a subtitle sheet
//	GET    /v1/sessions/{id}         session metadata
//	DELETE /v1/sessions/{id}         close a session
//	GET    /v1/sessions/{id}/follow  websocket: position in, lyric line out
//	POST   /v1/sessions/{id}/mix     multipart backing+vocal in, WAV out
//	GET    /v1/sessions/{id}/takes   takes recorded in a session
//	GET    /v1/takes/{id}            stored WAV
//	DELETE /v1/takes/{id}            delete a stored take
//
// plus /healthz, /readyz and, when configured, /metrics.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/MrWong99/singalong/internal/health"
	"github.com/MrWong99/singalong/internal/observe"
	"github.com/MrWong99/singalong/internal/session"
	"github.com/MrWong99/singalong/internal/takestore"
)

// DefaultMaxUploadBytes bounds request bodies when Config.MaxUploadBytes is
// unset.
const DefaultMaxUploadBytes = 64 << 20

// Config holds the dependencies of a [Server].
type Config struct {
	Sessions *session.Manager

	// Takes defaults to the session manager's store.
	Takes takestore.Store

	// MaxUploadBytes bounds every request body. Default: [DefaultMaxUploadBytes].
	MaxUploadBytes int64

	// Health serves /healthz and /readyz. Default: a handler with no checks.
	Health *health.Handler

	// MetricsHandler serves /metrics when non-nil.
	MetricsHandler http.Handler

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// Server routes API requests.
type Server struct {
	sessions  *session.Manager
	takes     takestore.Store
	maxUpload int64
	metrics   *observe.Metrics
	handler   http.Handler
}

// New builds a [Server] and its routes. cfg.Sessions is required.
func New(cfg Config) *Server {
	if cfg.Takes == nil {
		cfg.Takes = cfg.Sessions.Store()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.Health == nil {
		cfg.Health = health.New()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}

	s := &Server{
		sessions:  cfg.Sessions,
		takes:     cfg.Takes,
		maxUpload: cfg.MaxUploadBytes,
		metrics:   cfg.Metrics,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/lyrics/parse", s.handleParse)
	mux.HandleFunc("GET /v1/sessions", s.handleListSessions)
	mux.HandleFunc("POST /v1/sessions", s.handleOpenSession)
	mux.HandleFunc("GET /v1/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /v1/sessions/{id}", s.handleCloseSession)
	mux.HandleFunc("GET /v1/sessions/{id}/follow", s.handleFollow)
	mux.HandleFunc("POST /v1/sessions/{id}/mix", s.handleMix)
	mux.HandleFunc("GET /v1/sessions/{id}/takes", s.handleListTakes)
	mux.HandleFunc("GET /v1/takes/{id}", s.handleGetTake)
	mux.HandleFunc("DELETE /v1/takes/{id}", s.handleDeleteTake)
	cfg.Health.Register(mux)
	if cfg.MetricsHandler != nil {
		mux.Handle("GET /metrics", cfg.MetricsHandler)
	}

	s.handler = observe.Middleware(cfg.Metrics)(mux)
	return s
}

// Handler returns the root handler, wrapped in the observability middleware.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
