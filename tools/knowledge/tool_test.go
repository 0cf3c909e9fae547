package knowledge

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/philippgille/chromem-go"

	"github.com/bububa/wowagent/components/document"
	kb "github.com/bububa/wowagent/components/knowledge"
	"github.com/bububa/wowagent/components/logger"
)

// keywords embeds text by the presence of a few fixed words
func keywords(_ context.Context, text string) ([]float32, error) {
	words := []string{"patent", "trademark", "refund"}
	vec := make([]float32, len(words)+1)
	lower := strings.ToLower(text)
	var hits float64
	for i, w := range words {
		if strings.Contains(lower, w) {
			vec[i] = 1
			hits++
		}
	}
	if hits == 0 {
		vec[len(words)] = 1
		return vec, nil
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / math.Sqrt(hits))
	}
	return vec, nil
}

func TestTool(t *testing.T) {
	ctx := context.Background()
	base, err := kb.New(chromem.NewDB(), "faq", keywords, kb.WithLogger(logger.Discard()), kb.WithSplitter(kb.NewSplitter(20, 0, nil)))
	if err != nil {
		t.Fatal(err)
	}
	_, err = base.AddDocuments(ctx,
		document.Document{Content: "Patent filings take six months.", Meta: map[string]string{"filename": "patent.md"}},
		document.Document{Content: "Refunds are paid within a week.", Meta: map[string]string{"filename": "refund.md"}},
	)
	if err != nil {
		t.Fatalf("AddDocuments: %v", err)
	}
	tool := New(base)
	if tool.Name() != "knowledge_base" {
		t.Errorf("name = %s", tool.Name())
	}
	ret, err := tool.Call(ctx, json.RawMessage(`{"query": "how long for a patent", "top_k": 1}`))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	var out Output
	if err := json.Unmarshal([]byte(ret), &out); err != nil {
		t.Fatalf("output %s: %v", ret, err)
	}
	if len(out.Passages) != 1 || out.Passages[0].Source != "patent.md" {
		t.Errorf("passages = %+v", out.Passages)
	}
	if _, err := tool.Call(ctx, json.RawMessage(`{}`)); err == nil {
		t.Error("expected validation error for empty query")
	}
}
