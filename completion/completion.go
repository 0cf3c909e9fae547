// Package completion defines the language model completion contract used by the router,
// agents and pipelines, together with helpers shared by the provider implementations.
package completion

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/bububa/wowagent/components"
)

// ErrEmptyResponse is returned when a provider answers without any text
var ErrEmptyResponse = errors.New("empty completion response")

// Options are passed through unchanged to the provider.
// Zero values mean provider defaults.
type Options struct {
	// Model overrides the provider default model
	Model string `json:"model,omitempty" yaml:"model,omitempty"`
	// Temperature for response generation, typically ranging from 0 to 1.
	Temperature float32 `json:"temperature,omitempty" yaml:"temperature,omitempty" validate:"gte=0,lte=2"`
	// MaxTokens Maximum number of tokens allowed in the response
	MaxTokens int `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty" validate:"gte=0"`
}

// Stream is a finite, non restartable sequence of text fragments.
// Recv returns io.EOF once the stream is exhausted.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// Completer is the external completion service
type Completer interface {
	Complete(ctx context.Context, messages []components.Message, opts Options) (string, error)
	StreamComplete(ctx context.Context, messages []components.Message, opts Options) (Stream, error)
}

// Collect drains a stream and returns the concatenated text.
// The stream is always closed.
func Collect(stream Stream) (string, error) {
	defer stream.Close()
	var sb strings.Builder
	for {
		fragment, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(fragment)
	}
	return sb.String(), nil
}

// Prompt sends a single user message and returns the reply text
func Prompt(ctx context.Context, c Completer, prompt string, opts Options) (string, error) {
	return c.Complete(ctx, []components.Message{components.UserMessage(prompt)}, opts)
}

// PromptWithSystem sends a system preamble followed by a user message
func PromptWithSystem(ctx context.Context, c Completer, system string, prompt string, opts Options) (string, error) {
	msgs := []components.Message{
		components.SystemMessage(system),
		components.UserMessage(prompt),
	}
	return c.Complete(ctx, msgs, opts)
}

// SliceStream is a Stream over pre-computed fragments
type SliceStream struct {
	fragments []string
	offset    int
	closed    bool
}

var _ Stream = (*SliceStream)(nil)

// NewSliceStream returns a Stream yielding fragments in order
func NewSliceStream(fragments ...string) *SliceStream {
	return &SliceStream{fragments: fragments}
}

func (s *SliceStream) Recv() (string, error) {
	if s.closed || s.offset >= len(s.fragments) {
		return "", io.EOF
	}
	ret := s.fragments[s.offset]
	s.offset++
	return ret, nil
}

func (s *SliceStream) Close() error {
	s.closed = true
	return nil
}

// ChanStream adapts a push based producer into a Stream.
// The producer goroutine sends fragments and finally reports its error through Finish.
type ChanStream struct {
	fragments chan string
	done      chan struct{}
	err       error
	cancel    context.CancelFunc
}

var _ Stream = (*ChanStream)(nil)

// NewChanStream starts produce in a goroutine. produce must call emit for every fragment
// and return when finished; emit returns false once the consumer closed the stream.
func NewChanStream(ctx context.Context, produce func(ctx context.Context, emit func(string) bool) error) *ChanStream {
	ctx, cancel := context.WithCancel(ctx)
	s := &ChanStream{
		fragments: make(chan string),
		done:      make(chan struct{}),
		cancel:    cancel,
	}
	go func() {
		defer close(s.done)
		defer close(s.fragments)
		s.err = produce(ctx, func(fragment string) bool {
			select {
			case s.fragments <- fragment:
				return true
			case <-ctx.Done():
				return false
			}
		})
	}()
	return s
}

func (s *ChanStream) Recv() (string, error) {
	fragment, ok := <-s.fragments
	if ok {
		return fragment, nil
	}
	<-s.done
	if s.err != nil {
		return "", s.err
	}
	return "", io.EOF
}

func (s *ChanStream) Close() error {
	s.cancel()
	for range s.fragments {
	}
	<-s.done
	return nil
}
