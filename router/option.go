package router

import (
	"context"
	"log/slog"
)

// Transition describes a committed context change
type Transition struct {
	Kind  DecisionKind
	From  string
	To    string
	Token string
	Reply string
}

type Option func(e *Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithScanner overrides the scanner built from the config
func WithScanner(s Scanner) Option {
	return func(e *Engine) {
		e.scanner = s
	}
}

// WithStreaming forces streaming mode on or off
func WithStreaming(streaming bool) Option {
	return func(e *Engine) {
		e.streaming = streaming
	}
}

// WithMaxHops overrides the number of context switches allowed per turn
func WithMaxHops(hops int) Option {
	return func(e *Engine) {
		e.maxHops = hops
	}
}

// WithTransitionHook registers fn, called for every committed switch or merge.
// Hooks run inside the turn and must not call back into the engine.
func WithTransitionHook(fn func(context.Context, Transition)) Option {
	return func(e *Engine) {
		e.transitionHook = fn
	}
}

// WithErrorHook registers fn, called when a turn fails
func WithErrorHook(fn func(context.Context, string, error)) Option {
	return func(e *Engine) {
		e.errorHook = fn
	}
}
