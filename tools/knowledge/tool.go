// Package knowledge exposes a knowledge base lookup as a tool
package knowledge

import (
	"context"

	kb "github.com/bububa/wowagent/components/knowledge"
	"github.com/bububa/wowagent/tools"
)

// Input of a knowledge base lookup
type Input struct {
	Query string `json:"query" jsonschema:"title=query,description=Question or keywords to look up in the knowledge base." validate:"required"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"title=top_k,description=Maximum number of passages to return." validate:"gte=0"`
}

// Output retrieved passages, most similar first
type Output struct {
	Passages []kb.Passage `json:"passages"`
}

// New returns the knowledge_base tool reading from base
func New(base *kb.Base, opts ...tools.Option) *tools.Func[Input, Output] {
	opts = append([]tools.Option{tools.WithDescription("Searches the local knowledge base and returns the most relevant passages.")}, opts...)
	return tools.NewFunc("knowledge_base", func(ctx context.Context, in *Input) (*Output, error) {
		passages, err := base.Query(ctx, in.Query, in.TopK)
		if err != nil {
			return nil, err
		}
		return &Output{Passages: passages}, nil
	}, opts...)
}
