package router

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"

	"github.com/bububa/wowagent/completion"
)

// SessionStats counters shared by every session
type SessionStats struct {
	Created int64 `json:"created"`
	Active  int64 `json:"active"`
	Turns   int64 `json:"turns"`
	Failed  int64 `json:"failed"`
}

// session is an engine and the time it was last used
type session struct {
	engine  *Engine
	lastUse *atomic.Time
}

func (s *session) touch() {
	s.lastUse.Store(time.Now())
}

// Sessions owns one engine per conversation. Engines never share a store.
// Sessions live until Delete or EvictIdle removes them.
type Sessions struct {
	completer completion.Completer
	config    *Config
	opts      []Option
	engines   map[string]*session
	created   *atomic.Int64
	turns     *atomic.Int64
	failed    *atomic.Int64
	mu        sync.RWMutex
}

// NewSessions validates cfg once; every session is built from it with opts
func NewSessions(completer completion.Completer, cfg *Config, opts ...Option) (*Sessions, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Sessions{
		completer: completer,
		config:    cfg,
		opts:      opts,
		engines:   make(map[string]*session),
		created:   atomic.NewInt64(0),
		turns:     atomic.NewInt64(0),
		failed:    atomic.NewInt64(0),
	}, nil
}

// Create starts a new session and returns its id
func (s *Sessions) Create() (string, *Engine, error) {
	engine, err := NewEngine(s.completer, s.config, s.opts...)
	if err != nil {
		return "", nil, err
	}
	id := uuid.NewString()
	s.mu.Lock()
	s.engines[id] = &session{engine: engine, lastUse: atomic.NewTime(time.Now())}
	s.mu.Unlock()
	s.created.Inc()
	return id, engine, nil
}

// Get returns the engine of session id and marks the session as used
func (s *Sessions) Get(id string) (*Engine, error) {
	v, err := s.session(id)
	if err != nil {
		return nil, err
	}
	return v.engine, nil
}

func (s *Sessions) session(id string) (*session, error) {
	s.mu.RLock()
	v, found := s.engines[id]
	s.mu.RUnlock()
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	v.touch()
	return v, nil
}

// Delete discards session id and every context it owns
func (s *Sessions) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, found := s.engines[id]; !found {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(s.engines, id)
	return nil
}

// Submit forwards userText to the engine of session id
func (s *Sessions) Submit(ctx context.Context, id string, userText string) (string, error) {
	v, err := s.session(id)
	if err != nil {
		return "", err
	}
	defer v.touch()
	s.turns.Inc()
	reply, err := v.engine.Submit(ctx, userText)
	if err != nil {
		s.failed.Inc()
		return "", err
	}
	return reply, nil
}

// Retry resends the failed turn of session id
func (s *Sessions) Retry(ctx context.Context, id string) (string, error) {
	v, err := s.session(id)
	if err != nil {
		return "", err
	}
	defer v.touch()
	reply, err := v.engine.Retry(ctx)
	if errors.Is(err, ErrNothingToRetry) {
		return "", err
	}
	s.turns.Inc()
	if err != nil {
		s.failed.Inc()
		return "", err
	}
	return reply, nil
}

// EvictIdle deletes the sessions last used before cutoff and returns their ids
func (s *Sessions) EvictIdle(cutoff time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var evicted []string
	for id, v := range s.engines {
		if v.lastUse.Load().Before(cutoff) {
			delete(s.engines, id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}

// Len returns the number of live sessions
func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.engines)
}

func (s *Sessions) Stats() SessionStats {
	return SessionStats{
		Created: s.created.Load(),
		Active:  int64(s.Len()),
		Turns:   s.turns.Load(),
		Failed:  s.failed.Load(),
	}
}
