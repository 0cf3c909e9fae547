// Package server exposes routing sessions over HTTP
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/bububa/wowagent/components/logger"
	"github.com/bububa/wowagent/router"
)

const (
	defaultReadHeaderTimeout = 10 * time.Second
	maxBodyBytes             = 1 << 20
	// defaultSessionTTL idle sessions are evicted after this long
	defaultSessionTTL = 1 * time.Hour
	evictionInterval  = 1 * time.Minute
)

// MessageRequest body of POST /sessions/{id}/messages
type MessageRequest struct {
	Text string `json:"text"`
}

// MessageResponse reply of a turn and the context active after it
type MessageResponse struct {
	Reply  string `json:"reply"`
	Active string `json:"active"`
}

// SessionResponse describes a session
type SessionResponse struct {
	ID       string         `json:"id"`
	Active   string         `json:"active"`
	Pending  string         `json:"pending,omitempty"`
	Contexts map[string]int `json:"contexts,omitempty"`
}

// ErrorResponse body of every non 2xx response
type ErrorResponse struct {
	Error string `json:"error"`
}

// Server serves router.Sessions
type Server struct {
	sessions *router.Sessions
	logger   *slog.Logger
	httpSrv  *http.Server
	mu       sync.Mutex
	// 0 disables eviction
	sessionTTL time.Duration
	stopCh     chan struct{}
	stopOnce   sync.Once
}

type Option func(*Server)

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithSessionTTL sets how long an idle session is kept. Default: 1 hour.
// Set to 0 to keep sessions until they are deleted.
func WithSessionTTL(d time.Duration) Option {
	return func(s *Server) {
		s.sessionTTL = d
	}
}

func New(sessions *router.Sessions, opts ...Option) *Server {
	s := &Server{
		sessions:   sessions,
		sessionTTL: defaultSessionTTL,
		stopCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Default()
	}
	if s.sessionTTL > 0 {
		go s.evictionLoop()
	}
	return s
}

func (s *Server) evictionLoop() {
	ticker := time.NewTicker(evictionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case now := <-ticker.C:
			s.evictOnce(now)
		}
	}
}

// evictOnce drops sessions idle for longer than the session TTL at now
func (s *Server) evictOnce(now time.Time) {
	if s.sessionTTL <= 0 {
		return
	}
	for _, id := range s.sessions.EvictIdle(now.Add(-s.sessionTTL)) {
		s.logger.Info("idle session evicted", "session", id)
	}
}

// Handler returns the HTTP routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sessions", s.handleCreate)
	mux.HandleFunc("GET /sessions/{id}", s.handleGet)
	mux.HandleFunc("DELETE /sessions/{id}", s.handleDelete)
	mux.HandleFunc("POST /sessions/{id}/messages", s.handleMessage)
	mux.HandleFunc("POST /sessions/{id}/retry", s.handleRetry)
	mux.HandleFunc("GET /stats", s.handleStats)
	return mux
}

// ListenAndServe serves on addr until Shutdown
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: defaultReadHeaderTimeout,
	}
	s.mu.Lock()
	s.httpSrv = srv
	s.mu.Unlock()
	s.logger.Info("http server listening", "addr", ln.Addr().String())
	return srv.Serve(ln)
}

// Shutdown stops eviction and gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.mu.Lock()
	srv := s.httpSrv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	id, engine, err := s.sessions.Create()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.InfoContext(r.Context(), "session created", "session", id)
	writeJSON(w, http.StatusCreated, SessionResponse{ID: id, Active: engine.Active()})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	engine, err := s.sessions.Get(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	store := engine.Store()
	resp := SessionResponse{
		ID:       id,
		Active:   engine.Active(),
		Contexts: make(map[string]int, len(store.Names())),
	}
	if text, ok := engine.Pending(); ok {
		resp.Pending = text
	}
	for _, name := range store.Names() {
		resp.Contexts[name] = store.Len(name)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if req.Text == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "text is required"})
		return
	}
	id := r.PathValue("id")
	reply, err := s.sessions.Submit(r.Context(), id, req.Text)
	s.writeTurn(w, r, id, reply, err)
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	reply, err := s.sessions.Retry(r.Context(), id)
	s.writeTurn(w, r, id, reply, err)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sessions.Stats())
}

func (s *Server) writeTurn(w http.ResponseWriter, r *http.Request, id string, reply string, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	engine, err := s.sessions.Get(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Reply: reply, Active: engine.Active()})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

// StatusOf maps router errors to HTTP status codes
func StatusOf(err error) int {
	switch {
	case errors.Is(err, router.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, router.ErrNothingToRetry):
		return http.StatusConflict
	case errors.Is(err, router.ErrCompletionUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, router.ErrRoutingLoop):
		return http.StatusLoopDetected
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
