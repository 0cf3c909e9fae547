package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/atomic"

	"github.com/bububa/wowagent/components"
	"github.com/bububa/wowagent/tools"
)

var (
	// ErrMaxSteps the model kept calling tools past the step limit
	ErrMaxSteps = errors.New("tool agent exceeded max steps")
	// ErrNoClient the agent has no completion client
	ErrNoClient = errors.New("tool agent has no client")
)

// DefaultMaxSteps completion rounds per Run
const DefaultMaxSteps = 8

// ToolAgent answers with the help of function calling. Every round sends the history and tool
// definitions, runs the requested tool calls and feeds their results back until the model
// replies without calling a tool.
type ToolAgent struct {
	Config
	registry  *tools.Registry
	maxSteps  int
	usage     components.LLMUsage
	toolCalls *atomic.Int64
	startHook func(context.Context, *ToolAgent, string)
	endHook   func(context.Context, *ToolAgent, string, string)
	errorHook func(context.Context, *ToolAgent, string, error)
	toolHook  func(context.Context, *ToolAgent, openai.ToolCall, string, error)
}

// NewToolAgent returns a new ToolAgent instance
func NewToolAgent(registry *tools.Registry, maxSteps int, options ...Option) *ToolAgent {
	ret := &ToolAgent{
		registry:  registry,
		maxSteps:  maxSteps,
		toolCalls: atomic.NewInt64(0),
	}
	for _, opt := range options {
		opt(&ret.Config)
	}
	ret.setDefaults()
	if ret.maxSteps <= 0 {
		ret.maxSteps = DefaultMaxSteps
	}
	return ret
}

func (a *ToolAgent) SetStartHook(fn func(context.Context, *ToolAgent, string)) {
	a.startHook = fn
}

func (a *ToolAgent) SetEndHook(fn func(context.Context, *ToolAgent, string, string)) {
	a.endHook = fn
}

func (a *ToolAgent) SetErrorHook(fn func(context.Context, *ToolAgent, string, error)) {
	a.errorHook = fn
}

// SetToolHook fn is called after every tool call with its result or error
func (a *ToolAgent) SetToolHook(fn func(context.Context, *ToolAgent, openai.ToolCall, string, error)) {
	a.toolHook = fn
}

// Usage accumulated token usage
func (a *ToolAgent) Usage() components.LLMUsage {
	return a.usage
}

// ToolCalls number of tool calls executed
func (a *ToolAgent) ToolCalls() int64 {
	return a.toolCalls.Load()
}

// Run answers userInput. Only the user input and the final answer are kept in memory.
func (a *ToolAgent) Run(ctx context.Context, userInput string) (string, error) {
	if fn := a.startHook; fn != nil {
		fn(ctx, a, userInput)
	}
	reply, err := a.run(ctx, userInput)
	if err != nil {
		if fn := a.errorHook; fn != nil {
			fn(ctx, a, userInput, err)
		}
		return "", err
	}
	if fn := a.endHook; fn != nil {
		fn(ctx, a, userInput, reply)
	}
	return reply, nil
}

func (a *ToolAgent) run(ctx context.Context, userInput string) (string, error) {
	if a.client == nil {
		return "", ErrNoClient
	}
	a.memory.NewTurn()
	userMsg := components.UserMessage(userInput).WithTurnID(a.memory.TurnID())
	var scratch []openai.ChatCompletionMessage
	for step := 0; step < a.maxSteps; step++ {
		req := a.request(userMsg, scratch)
		resp, err := a.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return "", err
		}
		a.usage.Merge(&components.LLMUsage{
			InputTokens:  int64(resp.Usage.PromptTokens),
			OutputTokens: int64(resp.Usage.CompletionTokens),
		})
		if len(resp.Choices) == 0 {
			return "", errors.New("no choices in completion response")
		}
		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			a.memory.Append(userMsg, components.AssistantMessage(msg.Content))
			return msg.Content, nil
		}
		scratch = append(scratch, msg)
		for _, call := range msg.ToolCalls {
			scratch = append(scratch, a.callTool(ctx, call))
		}
	}
	return "", fmt.Errorf("%w (%d)", ErrMaxSteps, a.maxSteps)
}

func (a *ToolAgent) request(userMsg components.Message, scratch []openai.ChatCompletionMessage) openai.ChatCompletionRequest {
	history := a.memory.History()
	req := openai.ChatCompletionRequest{
		Model:       a.options.Model,
		Temperature: a.options.Temperature,
		MaxTokens:   a.options.MaxTokens,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(history)+len(scratch)+2),
	}
	if a.registry != nil && a.registry.Len() > 0 {
		req.Tools = a.registry.OpenAI()
	}
	if prompt := a.SystemPrompt(); prompt != "" {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: prompt})
	}
	for _, msg := range append(history, userMsg) {
		v := new(openai.ChatCompletionMessage)
		msg.ToOpenAI(v)
		req.Messages = append(req.Messages, *v)
	}
	req.Messages = append(req.Messages, scratch...)
	return req
}

// callTool runs one tool call; failures are reported to the model as the tool result
func (a *ToolAgent) callTool(ctx context.Context, call openai.ToolCall) openai.ChatCompletionMessage {
	a.toolCalls.Inc()
	var (
		result string
		err    error
	)
	if a.registry == nil {
		err = fmt.Errorf("%w: %s", tools.ErrToolNotFound, call.Function.Name)
	} else {
		result, err = a.registry.Call(ctx, call.Function.Name, json.RawMessage(call.Function.Arguments))
	}
	if err != nil {
		a.logger.WarnContext(ctx, "tool call failed", "agent", a.name, "tool", call.Function.Name, "error", err)
		result = "error: " + err.Error()
	} else {
		a.logger.DebugContext(ctx, "tool call", "agent", a.name, "tool", call.Function.Name, "arguments", call.Function.Arguments)
	}
	if fn := a.toolHook; fn != nil {
		fn(ctx, a, call, result, err)
	}
	return openai.ChatCompletionMessage{
		Role:       openai.ChatMessageRoleTool,
		Content:    result,
		Name:       call.Function.Name,
		ToolCallID: call.ID,
	}
}
