// Package extractor pulls structured values out of free form completion replies
package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kaptinlin/jsonrepair"

	"github.com/bububa/wowagent/completion"
	"github.com/bububa/wowagent/components"
	"github.com/bububa/wowagent/components/logger"
)

// ErrInvalidJSON the reply could not be turned into the requested value
var ErrInvalidJSON = errors.New("invalid json output")

// DefaultMaxRetries completion attempts before giving up
const DefaultMaxRetries = 3

const fence = "```"

// ExtractJSON returns the JSON part of text: the first ```json fenced block,
// else the first balanced object or array, else the trimmed text.
func ExtractJSON(text string) string {
	if start := strings.Index(text, fence+"json"); start >= 0 {
		body := text[start+len(fence)+4:]
		if end := strings.Index(body, fence); end >= 0 {
			return strings.TrimSpace(body[:end])
		}
	}
	if span, ok := balanced(text); ok {
		return span
	}
	return strings.TrimSpace(text)
}

// balanced finds the first {...} or [...] span, honouring strings and escapes
func balanced(text string) (string, bool) {
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return "", false
	}
	var (
		stack    []byte
		inString bool
		escaped  bool
	)
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return "", false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Parse extracts, repairs and decodes text into a T, then validates struct tags
func Parse[T any](text string) (*T, error) {
	raw := ExtractJSON(text)
	ret := new(T)
	if err := json.Unmarshal([]byte(raw), ret); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(raw)
		if repairErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
		}
		ret = new(T)
		if err := json.Unmarshal([]byte(repaired), ret); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
		}
	}
	if err := validateValue(ret); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}
	return ret, nil
}

func validateValue(v any) error {
	err := validate.Struct(v)
	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		// not a struct, nothing to validate
		return nil
	}
	return err
}

// Retry asks the completion service again until the reply parses into a T
type Retry[T any] struct {
	completer  completion.Completer
	options    completion.Options
	maxRetries int
	logger     *slog.Logger
}

type RetryOption func(*retryConfig)

type retryConfig struct {
	options    completion.Options
	maxRetries int
	logger     *slog.Logger
}

func WithOptions(opts completion.Options) RetryOption {
	return func(c *retryConfig) {
		c.options = opts
	}
}

func WithMaxRetries(n int) RetryOption {
	return func(c *retryConfig) {
		c.maxRetries = n
	}
}

func WithLogger(l *slog.Logger) RetryOption {
	return func(c *retryConfig) {
		c.logger = l
	}
}

func NewRetry[T any](completer completion.Completer, opts ...RetryOption) *Retry[T] {
	cfg := retryConfig{maxRetries: DefaultMaxRetries}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxRetries <= 0 {
		cfg.maxRetries = DefaultMaxRetries
	}
	if cfg.logger == nil {
		cfg.logger = logger.Default()
	}
	return &Retry[T]{
		completer:  completer,
		options:    cfg.options,
		maxRetries: cfg.maxRetries,
		logger:     cfg.logger,
	}
}

// Extract sends messages and parses the reply, retrying on unusable output.
// Completion errors are returned immediately.
func (r *Retry[T]) Extract(ctx context.Context, messages []components.Message) (*T, error) {
	var lastErr error
	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		reply, err := r.completer.Complete(ctx, messages, r.options)
		if err != nil {
			return nil, err
		}
		ret, err := Parse[T](reply)
		if err == nil {
			return ret, nil
		}
		lastErr = err
		r.logger.WarnContext(ctx, "unusable structured reply", "attempt", attempt, "error", err)
	}
	return nil, lastErr
}

// ExtractPrompt is Extract with a single user message
func (r *Retry[T]) ExtractPrompt(ctx context.Context, prompt string) (*T, error) {
	return r.Extract(ctx, []components.Message{components.UserMessage(prompt)})
}
