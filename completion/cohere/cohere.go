// Package cohere implements completion.Completer with the Cohere chat API.
package cohere

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
	cohereoption "github.com/cohere-ai/cohere-go/v2/option"

	"github.com/bububa/wowagent/completion"
	"github.com/bububa/wowagent/components"
	"github.com/bububa/wowagent/components/logger"
)

// ErrNoUserMessage the chat API needs a trailing user message
var ErrNoUserMessage = errors.New("cohere: conversation has no user message")

type Completer struct {
	client *cohereclient.Client
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

func New(client *cohereclient.Client, opts ...Option) *Completer {
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
	reqOpts := make([]cohereoption.RequestOption, 0, 2)
	reqOpts = append(reqOpts, cohereoption.WithToken(authToken))
	if baseURL != "" {
		reqOpts = append(reqOpts, cohereoption.WithBaseURL(baseURL))
	}
	return New(cohereclient.NewClient(reqOpts...), opts...)
}

// Request converts messages and options into a chat request
func (c *Completer) Request(messages []components.Message, opts completion.Options) (*cohere.ChatRequest, error) {
	preamble, history, message, err := prepareMessages(messages)
	if err != nil {
		return nil, err
	}
	req := &cohere.ChatRequest{
		Message:     message,
		ChatHistory: history,
	}
	model := opts.Model
	if model == "" {
		model = c.model
	}
	if model != "" {
		req.Model = &model
	}
	if preamble != "" {
		req.Preamble = &preamble
	}
	if opts.Temperature > 0 {
		temperature := float64(opts.Temperature)
		req.Temperature = &temperature
	}
	if opts.MaxTokens > 0 {
		maxTokens := opts.MaxTokens
		req.MaxTokens = &maxTokens
	}
	return req, nil
}

func (c *Completer) Complete(ctx context.Context, messages []components.Message, opts completion.Options) (string, error) {
	req, err := c.Request(messages, opts)
	if err != nil {
		return "", err
	}
	resp, err := c.client.Chat(ctx, req)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Text) == "" {
		return "", completion.ErrEmptyResponse
	}
	c.logger.DebugContext(ctx, "cohere chat", "chars", len(resp.Text))
	return resp.Text, nil
}

// StreamComplete delivers the whole reply as a single fragment
// TODO: switch to ChatStream once text-generation events are mapped into fragments.
func (c *Completer) StreamComplete(ctx context.Context, messages []components.Message, opts completion.Options) (completion.Stream, error) {
	reply, err := c.Complete(ctx, messages, opts)
	if err != nil {
		return nil, err
	}
	return completion.NewSliceStream(reply), nil
}

// prepareMessages splits the conversation into preamble, chat history and the last user message
func prepareMessages(messages []components.Message) (string, []*cohere.Message, string, error) {
	last := -1
	for idx := len(messages) - 1; idx >= 0; idx-- {
		if messages[idx].Role() == components.UserRole {
			last = idx
			break
		}
	}
	if last < 0 {
		return "", nil, "", ErrNoUserMessage
	}
	var (
		preambleParts []string
		history       = make([]*cohere.Message, 0, len(messages))
		leading       = true
	)
	for idx, msg := range messages {
		if idx == last {
			continue
		}
		if leading && msg.Role() == components.SystemRole {
			preambleParts = append(preambleParts, msg.Content())
			continue
		}
		leading = false
		v := new(cohere.Message)
		msg.ToCohere(v)
		history = append(history, v)
	}
	return strings.Join(preambleParts, "\n\n"), history, messages[last].Content(), nil
}
