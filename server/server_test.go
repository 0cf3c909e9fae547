package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bububa/wowagent/completion"
	"github.com/bububa/wowagent/components"
	"github.com/bububa/wowagent/components/logger"
	"github.com/bububa/wowagent/router"
)

// keyword replies according to the last user message
type keyword struct {
	mu   sync.Mutex
	down bool
}

func (k *keyword) Complete(_ context.Context, msgs []components.Message, _ completion.Options) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.down {
		return "", errors.New("service unavailable")
	}
	var last string
	for _, m := range msgs {
		if m.Role() == components.UserRole {
			last = m.Content()
		}
	}
	preamble := msgs[0].Content()
	switch {
	case strings.Contains(preamble, "customer") && strings.Contains(last, "register"):
		return "registered workers", nil
	case strings.Contains(preamble, "register") && strings.Contains(last, "done"):
		return "customer service", nil
	default:
		return "echo: " + last, nil
	}
}

func (k *keyword) StreamComplete(ctx context.Context, msgs []components.Message, opts completion.Options) (completion.Stream, error) {
	text, err := k.Complete(ctx, msgs, opts)
	if err != nil {
		return nil, err
	}
	return completion.NewSliceStream(text), nil
}

func testConfig() *router.Config {
	return &router.Config{
		Default: "default",
		Contexts: []router.ContextConfig{
			{Name: "default", Preamble: "You are a customer service agent."},
			{Name: "register", Preamble: "You register workers."},
		},
		Routes:     []router.Route{{Token: "registered workers", Context: "register"}},
		MergeToken: "customer service",
	}
}

func newTestServer(t *testing.T, opts ...Option) (*httptest.Server, *Server, *keyword) {
	t.Helper()
	c := new(keyword)
	sessions, err := router.NewSessions(c, testConfig(), router.WithLogger(logger.Discard()))
	if err != nil {
		t.Fatalf("NewSessions: %v", err)
	}
	s := New(sessions, append([]Option{WithLogger(logger.Discard())}, opts...)...)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		srv.Close()
		s.Shutdown(context.Background())
	})
	return srv, s, c
}

func do(t *testing.T, method string, url string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, url, err)
		}
	}
	return resp.StatusCode
}

func TestSessionLifecycle(t *testing.T) {
	srv, _, _ := newTestServer(t)
	var created SessionResponse
	if code := do(t, http.MethodPost, srv.URL+"/sessions", nil, &created); code != http.StatusCreated {
		t.Fatalf("create status = %d", code)
	}
	if created.ID == "" || created.Active != "default" {
		t.Fatalf("created = %+v", created)
	}
	base := srv.URL + "/sessions/" + created.ID

	var msg MessageResponse
	if code := do(t, http.MethodPost, base+"/messages", MessageRequest{Text: "hello"}, &msg); code != http.StatusOK {
		t.Fatalf("message status = %d", code)
	}
	if msg.Reply != "echo: hello" || msg.Active != "default" {
		t.Errorf("msg = %+v", msg)
	}

	if code := do(t, http.MethodPost, base+"/messages", MessageRequest{Text: "I want to register"}, &msg); code != http.StatusOK {
		t.Fatalf("message status = %d", code)
	}
	if msg.Active != "register" || msg.Reply != "echo: I want to register" {
		t.Errorf("after switch = %+v", msg)
	}

	var info SessionResponse
	if code := do(t, http.MethodGet, base, nil, &info); code != http.StatusOK {
		t.Fatalf("get status = %d", code)
	}
	if info.Active != "register" || info.Contexts["register"] != 3 {
		t.Errorf("info = %+v", info)
	}

	if code := do(t, http.MethodPost, base+"/messages", MessageRequest{Text: "done"}, &msg); code != http.StatusOK {
		t.Fatalf("message status = %d", code)
	}
	if msg.Active != "default" || msg.Reply != "customer service" {
		t.Errorf("after merge = %+v", msg)
	}

	if code := do(t, http.MethodDelete, base, nil, nil); code != http.StatusNoContent {
		t.Errorf("delete status = %d", code)
	}
	var e ErrorResponse
	if code := do(t, http.MethodGet, base, nil, &e); code != http.StatusNotFound {
		t.Errorf("get deleted status = %d", code)
	}
}

func TestCompletionFailure(t *testing.T) {
	srv, _, c := newTestServer(t)
	var created SessionResponse
	do(t, http.MethodPost, srv.URL+"/sessions", nil, &created)
	base := srv.URL + "/sessions/" + created.ID

	c.mu.Lock()
	c.down = true
	c.mu.Unlock()
	var e ErrorResponse
	if code := do(t, http.MethodPost, base+"/messages", MessageRequest{Text: "hello"}, &e); code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", code)
	}
	if e.Error == "" {
		t.Error("empty error message")
	}

	var info SessionResponse
	do(t, http.MethodGet, base, nil, &info)
	if info.Pending != "hello" {
		t.Errorf("pending = %q", info.Pending)
	}

	c.mu.Lock()
	c.down = false
	c.mu.Unlock()
	var msg MessageResponse
	if code := do(t, http.MethodPost, base+"/retry", nil, &msg); code != http.StatusOK {
		t.Fatalf("retry status = %d", code)
	}
	if msg.Reply != "echo: hello" {
		t.Errorf("retry = %+v", msg)
	}
	if code := do(t, http.MethodPost, base+"/retry", nil, &e); code != http.StatusConflict {
		t.Errorf("second retry status = %d, want 409", code)
	}

	var stats router.SessionStats
	do(t, http.MethodGet, srv.URL+"/stats", nil, &stats)
	if stats.Created != 1 || stats.Turns != 2 || stats.Failed != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestBadRequests(t *testing.T) {
	srv, _, _ := newTestServer(t)
	var e ErrorResponse
	if code := do(t, http.MethodPost, srv.URL+"/sessions/missing/messages", MessageRequest{Text: "hi"}, &e); code != http.StatusNotFound {
		t.Errorf("unknown session status = %d", code)
	}
	var created SessionResponse
	do(t, http.MethodPost, srv.URL+"/sessions", nil, &created)
	if code := do(t, http.MethodPost, srv.URL+"/sessions/"+created.ID+"/messages", MessageRequest{}, &e); code != http.StatusBadRequest {
		t.Errorf("empty text status = %d", code)
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{router.ErrSessionNotFound, http.StatusNotFound},
		{router.ErrCompletionUnavailable, http.StatusBadGateway},
		{router.ErrRoutingLoop, http.StatusLoopDetected},
		{router.ErrNothingToRetry, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusOf(tt.err); got != tt.want {
			t.Errorf("StatusOf(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestEvictIdleSessions(t *testing.T) {
	srv, s, _ := newTestServer(t)
	var created SessionResponse
	if code := do(t, http.MethodPost, srv.URL+"/sessions", nil, &created); code != http.StatusCreated {
		t.Fatalf("create status = %d", code)
	}
	base := srv.URL + "/sessions/" + created.ID

	s.evictOnce(time.Now())
	if code := do(t, http.MethodGet, base, nil, &SessionResponse{}); code != http.StatusOK {
		t.Fatalf("recent session evicted, status = %d", code)
	}
	s.evictOnce(time.Now().Add(2 * defaultSessionTTL))
	if code := do(t, http.MethodGet, base, nil, &ErrorResponse{}); code != http.StatusNotFound {
		t.Errorf("idle session kept, status = %d", code)
	}
	var stats router.SessionStats
	do(t, http.MethodGet, srv.URL+"/stats", nil, &stats)
	if stats.Created != 1 || stats.Active != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestSessionTTLDisabled(t *testing.T) {
	srv, s, _ := newTestServer(t, WithSessionTTL(0))
	var created SessionResponse
	if code := do(t, http.MethodPost, srv.URL+"/sessions", nil, &created); code != http.StatusCreated {
		t.Fatalf("create status = %d", code)
	}
	s.evictOnce(time.Now().Add(24 * time.Hour))
	if code := do(t, http.MethodGet, srv.URL+"/sessions/"+created.ID, nil, &SessionResponse{}); code != http.StatusOK {
		t.Errorf("session evicted with eviction disabled, status = %d", code)
	}
	if err := s.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}
