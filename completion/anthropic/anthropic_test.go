package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	anthropic "github.com/liushuangls/go-anthropic/v2"

	"github.com/bububa/wowagent/completion"
	"github.com/bububa/wowagent/components"
	"github.com/bububa/wowagent/components/logger"
)

func TestPrepareMessages(t *testing.T) {
	msgs := []components.Message{
		components.SystemMessage("you route"),
		components.UserMessage("sign me up"),
		components.SystemMessage("you register"),
		components.UserMessage("sign me up"),
		components.AssistantMessage("name?"),
	}
	system, list := prepareMessages(msgs)
	if system != "you route" {
		t.Errorf("expect leading system prompt, got %q", system)
	}
	if len(list) != 2 {
		t.Fatalf("expect user turns merged into 2 messages, got %d", len(list))
	}
	if list[0].Role != anthropic.RoleUser || len(list[0].Content) != 3 {
		t.Errorf("expect merged user message with 3 blocks, got %+v", list[0])
	}
	if list[1].Role != anthropic.RoleAssistant {
		t.Errorf("expect assistant second, got %s", list[1].Role)
	}
}

func TestComplete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-test","content":[{"type":"text","text":"hello"}],"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":1}}`)
	}))
	defer srv.Close()
	c := NewWithToken("key", srv.URL, WithModel("claude-test"), WithLogger(logger.Discard()))
	reply, err := completion.PromptWithSystem(context.Background(), c, "be brief", "hi", completion.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if reply != "hello" {
		t.Errorf("expect hello, got %q", reply)
	}
	if got["system"] != "be brief" {
		t.Errorf("expect system prompt lifted, got %v", got["system"])
	}
	if v, _ := got["max_tokens"].(float64); int(v) != DefaultMaxTokens {
		t.Errorf("expect default max tokens, got %v", got["max_tokens"])
	}
}
