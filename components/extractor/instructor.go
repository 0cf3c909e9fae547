package extractor

import (
	"context"
	"sync"

	"github.com/bububa/instructor-go"
	instructoropenai "github.com/bububa/instructor-go/instructors/openai"
	openai "github.com/sashabaranov/go-openai"

	"github.com/bububa/wowagent/completion"
	"github.com/bububa/wowagent/components"
)

// Extractor returns a structured value for a conversation
type Extractor[T any] interface {
	Extract(ctx context.Context, messages []components.Message) (*T, error)
}

var (
	_ Extractor[struct{}] = (*Retry[struct{}])(nil)
	_ Extractor[struct{}] = (*Instructor[struct{}])(nil)
)

// Instructor extracts values through instructor-go in JSON mode.
// The output schema of T is appended to the system message.
type Instructor[T any] struct {
	client  *instructoropenai.Instructor
	options completion.Options
	// the instructor caches its encoder on first use
	mu    sync.Mutex
	usage components.LLMUsage
}

// NewInstructor wraps an OpenAI compatible client
func NewInstructor[T any](clt *openai.Client, opts completion.Options, maxRetries int) *Instructor[T] {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Instructor[T]{
		client: instructoropenai.New(clt,
			instructor.WithMode(instructor.ModeJSON),
			instructor.WithMaxRetries(maxRetries),
			instructor.WithValidation(),
		),
		options: opts,
	}
}

func (i *Instructor[T]) Extract(ctx context.Context, messages []components.Message) (*T, error) {
	req := openai.ChatCompletionRequest{
		Model:       i.options.Model,
		Temperature: i.options.Temperature,
		MaxTokens:   i.options.MaxTokens,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, msg := range messages {
		v := new(openai.ChatCompletionMessage)
		msg.ToOpenAI(v)
		req.Messages = append(req.Messages, *v)
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	var (
		ret  = new(T)
		resp openai.ChatCompletionResponse
	)
	err := i.client.Chat(ctx, &req, ret, &resp)
	i.usage.Merge(&components.LLMUsage{
		InputTokens:  int64(resp.Usage.PromptTokens),
		OutputTokens: int64(resp.Usage.CompletionTokens),
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// Usage accumulated token usage
func (i *Instructor[T]) Usage() components.LLMUsage {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.usage
}
