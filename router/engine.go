package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/bububa/wowagent/completion"
	"github.com/bububa/wowagent/components"
	"github.com/bububa/wowagent/components/logger"
)

type pendingTurn struct {
	context string
	text    string
}

// Engine drives the conversation turn by turn. Exactly one context is active at any time;
// a transition is committed only after the completion service answered successfully.
type Engine struct {
	store          *Store
	completer      completion.Completer
	scanner        Scanner
	active         string
	pending        *pendingTurn
	streaming      bool
	maxHops        int
	logger         *slog.Logger
	transitionHook func(context.Context, Transition)
	errorHook      func(context.Context, string, error)
	mu             sync.Mutex
}

// NewEngine validates cfg and returns an engine whose active context is the default one
func NewEngine(completer completion.Completer, cfg *Config, opts ...Option) (*Engine, error) {
	store, err := NewStore(cfg)
	if err != nil {
		return nil, err
	}
	ret := &Engine{
		store:     store,
		completer: completer,
		active:    store.Default(),
		streaming: cfg.Streaming,
		maxHops:   cfg.Hops(),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.logger == nil {
		ret.logger = logger.Default()
	}
	if ret.scanner == nil {
		ret.scanner = NewScanner(cfg, ret.logger)
	}
	return ret, nil
}

// Active returns the name of the active context
func (e *Engine) Active() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Store returns the context store
func (e *Engine) Store() *Store {
	return e.store
}

// History returns a copy of the history of name
func (e *Engine) History(name string) ([]components.Message, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.History(name)
}

// Pending returns the text of the last failed turn
func (e *Engine) Pending() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == nil {
		return "", false
	}
	return e.pending.text, true
}

// Reset clears every context back to its preamble and activates the default context
func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, name := range e.store.Names() {
		if err := e.store.Reset(name); err != nil {
			return err
		}
	}
	e.active = e.store.Default()
	e.pending = nil
	return nil
}

// ContextStats size of one context history
type ContextStats struct {
	Messages int `json:"messages"`
	Tokens   int `json:"tokens,omitempty"`
}

// Stats returns per context history sizes, tokens are counted when counter is not nil
func (e *Engine) Stats(counter components.TokenCounter) map[string]ContextStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	ret := make(map[string]ContextStats, len(e.store.names))
	for _, name := range e.store.names {
		history, _ := e.store.History(name)
		stats := ContextStats{Messages: len(history)}
		if counter != nil {
			stats.Tokens = components.CountMessages(counter, history)
		}
		ret[name] = stats
	}
	return ret
}

// Submit drives one user turn and returns the reply to show.
// The user text is appended to the active context unless it repeats the turn that just failed.
func (e *Engine) Submit(ctx context.Context, userText string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.submit(ctx, userText)
}

// Retry resends the last failed turn without appending the user text again
func (e *Engine) Retry(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == nil {
		return "", ErrNothingToRetry
	}
	return e.submit(ctx, e.pending.text)
}

func (e *Engine) submit(ctx context.Context, userText string) (string, error) {
	origin := e.active
	userMsg := components.UserMessage(userText).WithTurnID(components.NewTurnID())
	if p := e.pending; p == nil || p.context != origin || p.text != userText {
		if err := e.store.Append(origin, userMsg); err != nil {
			return "", err
		}
	}
	e.pending = &pendingTurn{context: origin, text: userText}
	reply, err := e.turn(ctx, origin, userMsg)
	if err != nil {
		e.logger.ErrorContext(ctx, "turn failed", "context", origin, "error", err)
		if fn := e.errorHook; fn != nil {
			fn(ctx, origin, err)
		}
		return "", err
	}
	e.pending = nil
	return reply, nil
}

// turn runs the transition function until a reply can be surfaced.
// Appends produced by switches are staged and only committed together with the final reply.
func (e *Engine) turn(ctx context.Context, origin string, userMsg components.Message) (string, error) {
	var (
		tx          = newStagedTurn(e.store)
		current     = origin
		transitions []Transition
	)
	for {
		history, err := tx.history(current)
		if err != nil {
			return "", err
		}
		opts, err := e.store.Options(current)
		if err != nil {
			return "", err
		}
		raw, err := e.complete(ctx, history, opts)
		if err != nil {
			return "", fmt.Errorf("%w: context %s: %w", ErrCompletionUnavailable, current, err)
		}
		decision := e.scanner.Scan(raw)
		if decision.Kind == Switch && decision.Context == current {
			decision.Kind = Stay
		}
		if decision.Kind == Merge && current == e.store.Default() {
			decision.Kind = Stay
		}
		e.logger.DebugContext(ctx, "routing decision", "context", current, "decision", decision.Kind.String(), "token", decision.Token)
		switch decision.Kind {
		case Switch:
			if len(transitions) >= e.maxHops {
				return "", fmt.Errorf("%w: more than %d switches in one turn", ErrRoutingLoop, e.maxHops)
			}
			if err := tx.seed(decision.Context); err != nil {
				return "", err
			}
			tx.append(decision.Context, userMsg)
			transitions = append(transitions, Transition{
				Kind:  Switch,
				From:  current,
				To:    decision.Context,
				Token: decision.Token,
				Reply: decision.Raw,
			})
			current = decision.Context
		case Merge:
			if err := tx.commit(); err != nil {
				return "", err
			}
			dst := e.store.Default()
			if err := e.store.Fold(current, dst); err != nil {
				return "", err
			}
			transitions = append(transitions, Transition{
				Kind:  Merge,
				From:  current,
				To:    dst,
				Token: decision.Token,
				Reply: decision.Raw,
			})
			e.active = dst
			e.notify(ctx, transitions)
			return decision.Reply, nil
		default:
			tx.append(current, components.AssistantMessage(decision.Raw).WithTurnID(userMsg.TurnID()))
			if err := tx.commit(); err != nil {
				return "", err
			}
			e.active = current
			e.notify(ctx, transitions)
			return decision.Reply, nil
		}
	}
}

func (e *Engine) notify(ctx context.Context, transitions []Transition) {
	for _, t := range transitions {
		e.logger.InfoContext(ctx, "context transition", "kind", t.Kind.String(), "from", t.From, "to", t.To, "token", t.Token)
		if fn := e.transitionHook; fn != nil {
			fn(ctx, t)
		}
	}
}

func (e *Engine) complete(ctx context.Context, history []components.Message, opts completion.Options) (string, error) {
	var (
		reply string
		err   error
	)
	if e.streaming {
		var stream completion.Stream
		if stream, err = e.completer.StreamComplete(ctx, history, opts); err != nil {
			return "", err
		}
		// tokens may be split across fragments, scan only the complete reply
		reply, err = completion.Collect(stream)
	} else {
		reply, err = e.completer.Complete(ctx, history, opts)
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(reply) == "" {
		return "", completion.ErrEmptyResponse
	}
	return reply, nil
}

// stagedTurn buffers appends of one turn until the turn succeeds
type stagedTurn struct {
	store  *Store
	order  []string
	staged map[string][]components.Message
}

func newStagedTurn(store *Store) *stagedTurn {
	return &stagedTurn{
		store:  store,
		staged: make(map[string][]components.Message),
	}
}

func (t *stagedTurn) history(name string) ([]components.Message, error) {
	history, err := t.store.History(name)
	if err != nil {
		return nil, err
	}
	return append(history, t.staged[name]...), nil
}

func (t *stagedTurn) append(name string, msgs ...components.Message) {
	if _, found := t.staged[name]; !found {
		t.order = append(t.order, name)
	}
	t.staged[name] = append(t.staged[name], msgs...)
}

func (t *stagedTurn) seed(name string) error {
	preamble, err := t.store.Preamble(name)
	if err != nil {
		return err
	}
	if preamble == "" || t.store.Len(name) > 0 || len(t.staged[name]) > 0 {
		return nil
	}
	t.append(name, components.SystemMessage(preamble))
	return nil
}

func (t *stagedTurn) commit() error {
	for _, name := range t.order {
		if err := t.store.Append(name, t.staged[name]...); err != nil {
			return err
		}
	}
	t.order = nil
	t.staged = make(map[string][]components.Message)
	return nil
}
