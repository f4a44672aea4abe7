// Package server provides the HTTP server for the Solfa note player.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ayusman/solfa/internal/app"
	"github.com/ayusman/solfa/internal/server/api"
	"github.com/ayusman/solfa/internal/store"
)

// Pipeline is the running note pipeline as seen by the HTTP layer.
// *app.App satisfies it.
type Pipeline interface {
	LatestJPEG() []byte
	Subscribe(fn func(app.Result)) func()
	Epsilon() float64
	SetEpsilon(epsilon float64) error
	IsEnabled() bool
	SetEnabled(enabled bool)
}

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	Pipeline  Pipeline
	// Plugins validates bindings against discovered plugins. Optional.
	Plugins api.PluginLookup
	// StreamInterval is the delay between MJPEG parts. Defaults to DefaultStreamInterval.
	StreamInterval time.Duration
}

// Server represents the HTTP server for the Solfa application.
type Server struct {
	config      Config
	mux         *http.ServeMux
	start       time.Time
	notes       *NotesHandler
	unsubscribe func()
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.StreamInterval <= 0 {
		config.StreamInterval = DefaultStreamInterval
	}

	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Store != nil {
		sessions := api.NewSessionHandler(s.config.Store)
		s.mux.Handle("/api/sessions", sessions)
		s.mux.Handle("/api/sessions/", sessions)

		bindings := api.NewBindingHandler(s.config.Store, s.config.Plugins)
		s.mux.Handle("/api/bindings", bindings)
		s.mux.Handle("/api/bindings/", bindings)

		var live api.EpsilonController
		if s.config.Pipeline != nil {
			live = s.config.Pipeline
		}
		s.mux.Handle("/api/settings", api.NewSettingsHandler(s.config.Store, live))
	}

	if s.config.Pipeline != nil {
		s.mux.HandleFunc("/api/status", s.handleStatus)
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Pipeline, s.config.StreamInterval))

		s.notes = NewNotesHandler()
		s.unsubscribe = s.config.Pipeline.Subscribe(s.notes.Publish)
		s.mux.Handle("/api/notes", s.notes)
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Close detaches the server from the pipeline and disconnects note listeners.
func (s *Server) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	if s.notes != nil {
		s.notes.CloseAll()
	}
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.start)

	response := map[string]interface{}{
		"status": "ok",
		"uptime": uptime.String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

type statusResponse struct {
	Enabled bool    `json:"enabled"`
	Epsilon float64 `json:"epsilon"`
	Clients int     `json:"clients"`
}

type statusRequest struct {
	Enabled *bool `json:"enabled"`
}

// handleStatus reports the pipeline state on GET and toggles detection on PUT.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPut:
		var req statusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		s.config.Pipeline.SetEnabled(*req.Enabled)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := statusResponse{
		Enabled: s.config.Pipeline.IsEnabled(),
		Epsilon: s.config.Pipeline.Epsilon(),
		Clients: s.notes.ClientCount(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}
