// Package anthropic implements completion.Completer with the Anthropic messages API.
package anthropic

import (
	"context"
	"log/slog"
	"strings"

	anthropic "github.com/liushuangls/go-anthropic/v2"

	"github.com/bububa/wowagent/completion"
	"github.com/bububa/wowagent/components"
	"github.com/bububa/wowagent/components/logger"
)

// DefaultMaxTokens is used when Options.MaxTokens is zero, the API requires a bound
const DefaultMaxTokens = 1024

type Completer struct {
	client *anthropic.Client
	model  string
	logger *slog.Logger
}

var _ completion.Completer = (*Completer)(nil)

type Option func(*Completer)

func WithModel(model string) Option {
	return func(c *Completer) {
		c.model = model
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Completer) {
		c.logger = l
	}
}

func New(client *anthropic.Client, opts ...Option) *Completer {
	ret := &Completer{
		client: client,
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.logger == nil {
		ret.logger = logger.Default()
	}
	return ret
}

// NewWithToken returns a Completer, baseURL may be empty
func NewWithToken(authToken string, baseURL string, opts ...Option) *Completer {
	clientOpts := make([]anthropic.ClientOption, 0, 1)
	if baseURL != "" {
		clientOpts = append(clientOpts, anthropic.WithBaseURL(baseURL))
	}
	return New(anthropic.NewClient(authToken, clientOpts...), opts...)
}

// Request converts messages and options into a messages request
func (c *Completer) Request(messages []components.Message, opts completion.Options) anthropic.MessagesRequest {
	model := opts.Model
	if model == "" {
		model = c.model
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	system, list := prepareMessages(messages)
	req := anthropic.MessagesRequest{
		Model:     anthropic.Model(model),
		System:    system,
		Messages:  list,
		MaxTokens: maxTokens,
	}
	if opts.Temperature > 0 {
		temperature := opts.Temperature
		req.Temperature = &temperature
	}
	return req
}

func (c *Completer) Complete(ctx context.Context, messages []components.Message, opts completion.Options) (string, error) {
	resp, err := c.client.CreateMessages(ctx, c.Request(messages, opts))
	if err != nil {
		return "", err
	}
	c.logger.DebugContext(ctx, "anthropic messages",
		"model", string(resp.Model),
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens)
	var sb strings.Builder
	for _, content := range resp.Content {
		if content.Type == anthropic.MessagesContentTypeText {
			sb.WriteString(content.GetText())
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", completion.ErrEmptyResponse
	}
	return sb.String(), nil
}

// StreamComplete adapts the callback based streaming API into a pull Stream
func (c *Completer) StreamComplete(ctx context.Context, messages []components.Message, opts completion.Options) (completion.Stream, error) {
	req := c.Request(messages, opts)
	return completion.NewChanStream(ctx, func(ctx context.Context, emit func(string) bool) error {
		_, err := c.client.CreateMessagesStream(ctx, anthropic.MessagesStreamRequest{
			MessagesRequest: req,
			OnContentBlockDelta: func(data anthropic.MessagesEventContentBlockDeltaData) {
				if text := data.Delta.GetText(); text != "" {
					emit(text)
				}
			},
		})
		return err
	}), nil
}

// prepareMessages lifts leading system messages into the system prompt.
// The messages API only knows user and assistant turns, so later system messages
// (a folded sub context preamble) become user text and consecutive messages of the
// same role are merged into one message with several text blocks.
func prepareMessages(messages []components.Message) (string, []anthropic.Message) {
	var (
		systemParts []string
		list        = make([]anthropic.Message, 0, len(messages))
		leading     = true
	)
	for _, msg := range messages {
		if leading && msg.Role() == components.SystemRole {
			systemParts = append(systemParts, msg.Content())
			continue
		}
		leading = false
		var v anthropic.Message
		msg.ToAnthropic(&v)
		if l := len(list); l > 0 && list[l-1].Role == v.Role {
			list[l-1].Content = append(list[l-1].Content, v.Content...)
			continue
		}
		list = append(list, v)
	}
	return strings.Join(systemParts, "\n\n"), list
}
