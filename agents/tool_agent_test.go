package agents

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/bububa/wowagent/components"
	"github.com/bububa/wowagent/components/logger"
	"github.com/bububa/wowagent/components/systemprompt"
	"github.com/bububa/wowagent/tools"
	"github.com/bububa/wowagent/tools/calculator"
)

func toolCallResponse(id string, name string, args string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		ID:     "chatcmpl-" + id,
		Object: "chat.completion",
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleAssistant,
				ToolCalls: []openai.ToolCall{{
					ID:   id,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      name,
						Arguments: args,
					},
				}},
			},
			FinishReason: openai.FinishReasonToolCalls,
		}},
		Usage: openai.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}
}

func answerResponse(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		ID:     "chatcmpl-final",
		Object: "chat.completion",
		Choices: []openai.ChatCompletionChoice{{
			Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
			FinishReason: openai.FinishReasonStop,
		}},
		Usage: openai.Usage{PromptTokens: 20, CompletionTokens: 3, TotalTokens: 23},
	}
}

type fakeServer struct {
	responses []openai.ChatCompletionResponse
	requests  []openai.ChatCompletionRequest
	mu        sync.Mutex
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req openai.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.requests = append(f.requests, req)
	idx := len(f.requests) - 1
	f.mu.Unlock()
	if idx >= len(f.responses) {
		http.Error(w, "no more responses", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(f.responses[idx])
}

func newTestAgent(t *testing.T, f *fakeServer, maxSteps int) *ToolAgent {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	cfg := openai.DefaultConfig("test")
	cfg.BaseURL = srv.URL + "/v1"
	reg, err := tools.NewRegistry(calculator.Tools()...)
	if err != nil {
		t.Fatal(err)
	}
	return NewToolAgent(reg, maxSteps,
		WithClient(openai.NewClientWithConfig(cfg)),
		WithModel("qwen-plus"),
		WithName("calculator"),
		WithLogger(logger.Discard()),
		WithSystemPromptGenerator(systemprompt.New(systemprompt.WithBackground("You are good at arithmetic."))),
	)
}

func TestToolAgentRun(t *testing.T) {
	f := &fakeServer{responses: []openai.ChatCompletionResponse{
		toolCallResponse("call_1", "add", `{"a": 22, "b": 25}`),
		answerResponse("The two departments have 47 people."),
	}}
	agent := newTestAgent(t, f, 0)
	var called []string
	agent.SetToolHook(func(_ context.Context, _ *ToolAgent, call openai.ToolCall, result string, err error) {
		called = append(called, call.Function.Name+"="+result)
	})
	reply, err := agent.Run(context.Background(), "How many people in total?")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if reply != "The two departments have 47 people." {
		t.Errorf("reply = %q", reply)
	}
	if len(called) != 1 || called[0] != `add={"result":47}` {
		t.Errorf("tool calls = %v", called)
	}
	if len(f.requests) != 2 {
		t.Fatalf("requests = %d", len(f.requests))
	}
	first := f.requests[0]
	if first.Model != "qwen-plus" || len(first.Tools) != 3 {
		t.Errorf("first request model %q with %d tools", first.Model, len(first.Tools))
	}
	if first.Messages[0].Role != openai.ChatMessageRoleSystem {
		t.Errorf("first message role = %s", first.Messages[0].Role)
	}
	second := f.requests[1].Messages
	last := second[len(second)-1]
	if last.Role != openai.ChatMessageRoleTool || last.ToolCallID != "call_1" || last.Content != `{"result":47}` {
		t.Errorf("tool result message = %+v", last)
	}
	history := agent.Memory().History()
	if len(history) != 2 || history[0].Role() != components.UserRole || history[1].Content() != reply {
		t.Errorf("memory = %+v", history)
	}
	if usage := agent.Usage(); usage.InputTokens != 30 || usage.OutputTokens != 8 {
		t.Errorf("usage = %+v", usage)
	}
	if agent.ToolCalls() != 1 {
		t.Errorf("tool calls = %d", agent.ToolCalls())
	}
}

func TestToolAgentUnknownTool(t *testing.T) {
	f := &fakeServer{responses: []openai.ChatCompletionResponse{
		toolCallResponse("call_1", "weather", `{"city": "BJ"}`),
		answerResponse("I cannot check the weather."),
	}}
	agent := newTestAgent(t, f, 0)
	if _, err := agent.Run(context.Background(), "weather in Beijing?"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	msgs := f.requests[1].Messages
	if content := msgs[len(msgs)-1].Content; content == "" || content[:6] != "error:" {
		t.Errorf("tool error not reported to the model: %q", content)
	}
}

func TestToolAgentMaxSteps(t *testing.T) {
	f := &fakeServer{responses: []openai.ChatCompletionResponse{
		toolCallResponse("call_1", "add", `{"a": 1, "b": 1}`),
		toolCallResponse("call_2", "add", `{"a": 2, "b": 2}`),
		answerResponse("never"),
	}}
	agent := newTestAgent(t, f, 2)
	var failed error
	agent.SetErrorHook(func(_ context.Context, _ *ToolAgent, _ string, err error) {
		failed = err
	})
	if _, err := agent.Run(context.Background(), "loop"); !errors.Is(err, ErrMaxSteps) {
		t.Fatalf("err = %v, want ErrMaxSteps", err)
	}
	if !errors.Is(failed, ErrMaxSteps) {
		t.Error("error hook not called")
	}
	if len(agent.Memory().History()) != 0 {
		t.Error("failed run must not be kept in memory")
	}
}
