// Package agenthttp exposes tool call event streams over HTTP using
// Server-Sent Events.
package agenthttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/KamdynS/toolstream/observability"
	"github.com/KamdynS/toolstream/state"
)

// Server serves persisted tool call events from a state.Store.
type Server struct {
	store  state.Store
	config Config
	http   *http.Server
}

// Config for the HTTP server.
type Config struct {
	Port              int
	ReadTimeout       time.Duration
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
	Hooks             *observability.Hooks
}

// New constructs the server.
func New(store state.Store, cfg Config) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = defaultHeartbeatInterval
	}

	s := &Server{store: store, config: cfg}
	s.http = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     s.Handler(),
		ReadTimeout: cfg.ReadTimeout,
		// no WriteTimeout: event streams stay open until the call ends
	}
	return s, nil
}

// Handler returns the routes served by s.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.health)
	mux.HandleFunc("GET /toolcalls/{id}", s.records)
	mux.HandleFunc("DELETE /toolcalls/{id}", s.delete)
	mux.HandleFunc("GET /toolcalls/{id}/events", s.events)
	return mux
}

// Start the HTTP server.
func (s *Server) Start() error {
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop the HTTP server.
func (s *Server) Stop(ctx context.Context) error { return s.http.Shutdown(ctx) }

// RecordsResponse is the JSON body of GET /toolcalls/{id}.
type RecordsResponse struct {
	ToolCallID string          `json:"tool_call_id"`
	Records    []*state.Record `json:"records"`
	Complete   bool            `json:"complete"`
	Error      string          `json:"error,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok", "time": time.Now().Format(time.RFC3339)})
}

func (s *Server) records(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	recs, err := s.store.Events(r.Context(), id)
	if err != nil {
		s.config.Hooks.SafeLog(r.Context(), "error", "load records failed", map[string]interface{}{"tool_call_id": id, "error": err.Error()})
		s.writeErr(w, http.StatusInternalServerError, "internal error")
		return
	}
	if len(recs) == 0 {
		s.writeErr(w, http.StatusNotFound, "tool call not found")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(RecordsResponse{
		ToolCallID: id,
		Records:    recs,
		Complete:   recs[len(recs)-1].IsTerminal(),
	})
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.Delete(r.Context(), id); err != nil {
		s.config.Hooks.SafeLog(r.Context(), "error", "delete records failed", map[string]interface{}{"tool_call_id": id, "error": err.Error()})
		s.writeErr(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	last := r.Header.Get("Last-Event-ID")
	if last == "" {
		last = r.URL.Query().Get("last_event_id")
	}
	err := ReplayToolCall(r.Context(), w, last, s.store.EventsSince, id, s.config.PollInterval, s.config.HeartbeatInterval)
	if err != nil {
		s.config.Hooks.SafeLog(r.Context(), "error", "event stream failed", map[string]interface{}{"tool_call_id": id, "error": err.Error()})
	}
}

func (s *Server) writeErr(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(RecordsResponse{Error: msg})
}
