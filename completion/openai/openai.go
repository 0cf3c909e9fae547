// Package openai implements completion.Completer on top of any OpenAI compatible
// chat completions endpoint (OpenAI, Qwen DashScope, Moonshot, Ollama, ...).
package openai

import (
	"context"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/bububa/wowagent/completion"
	"github.com/bububa/wowagent/components"
	"github.com/bububa/wowagent/components/logger"
)

// Completer calls the chat completions API
type Completer struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

var _ completion.Completer = (*Completer)(nil)

type Option func(*Completer)

// WithModel sets the default model, used when Options.Model is empty
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

// New returns a Completer using an existing client
func New(client *openai.Client, opts ...Option) *Completer {
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

// NewWithToken returns a Completer for the endpoint at baseURL.
// An empty baseURL targets api.openai.com.
func NewWithToken(authToken string, baseURL string, opts ...Option) *Completer {
	cfg := openai.DefaultConfig(authToken)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return New(openai.NewClientWithConfig(cfg), opts...)
}

// Client returns the underlying go-openai client
func (c *Completer) Client() *openai.Client {
	return c.client
}

// Model returns the default model
func (c *Completer) Model() string {
	return c.model
}

// Request converts messages and options into a chat completion request
func (c *Completer) Request(messages []components.Message, opts completion.Options) openai.ChatCompletionRequest {
	model := opts.Model
	if model == "" {
		model = c.model
	}
	req := openai.ChatCompletionRequest{
		Model:       model,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, msg := range messages {
		var v openai.ChatCompletionMessage
		msg.ToOpenAI(&v)
		req.Messages = append(req.Messages, v)
	}
	return req
}

func (c *Completer) Complete(ctx context.Context, messages []components.Message, opts completion.Options) (string, error) {
	req := c.Request(messages, opts)
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	c.logger.DebugContext(ctx, "chat completion",
		"model", resp.Model,
		"input_tokens", resp.Usage.PromptTokens,
		"output_tokens", resp.Usage.CompletionTokens)
	if len(resp.Choices) == 0 {
		return "", completion.ErrEmptyResponse
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", completion.ErrEmptyResponse
	}
	return content, nil
}

func (c *Completer) StreamComplete(ctx context.Context, messages []components.Message, opts completion.Options) (completion.Stream, error) {
	req := c.Request(messages, opts)
	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, err
	}
	return &chatStream{stream: stream}, nil
}

type chatStream struct {
	stream *openai.ChatCompletionStream
}

// Recv skips chunks without text, io.EOF is passed through from the client
func (s *chatStream) Recv() (string, error) {
	for {
		resp, err := s.stream.Recv()
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			return delta, nil
		}
	}
}

func (s *chatStream) Close() error {
	return s.stream.Close()
}
