// Package testcase generates new software test cases from an existing spreadsheet of cases
package testcase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bububa/wowagent/completion"
	"github.com/bububa/wowagent/components"
	"github.com/bububa/wowagent/components/extractor"
	"github.com/bububa/wowagent/components/logger"
)

// ErrEmptySheet no valid test case rows were found
var ErrEmptySheet = errors.New("no valid test cases")

// Case is one row of the source spreadsheet
type Case struct {
	Feature      string `json:"feature"`
	SubFeature   string `json:"sub_feature"`
	Priority     string `json:"priority"`
	Requirement  string `json:"requirement"`
	Precondition string `json:"precondition"`
	Steps        string `json:"steps"`
	Expected     string `json:"expected"`
}

// fields in spreadsheet column order
func (c Case) fields() []string {
	return []string{c.Feature, c.SubFeature, c.Priority, c.Requirement, c.Precondition, c.Steps, c.Expected}
}

// Generated is a test case produced by the model
type Generated struct {
	Title    string `json:"title" validate:"required"`
	Steps    string `json:"steps" validate:"required"`
	Expected string `json:"expected" validate:"required"`
}

// Prompt renders the generation instructions for c
func Prompt(c Case) string {
	return fmt.Sprintf(`作为软件测试专家，请基于以下信息生成一个新的测试用例：
- 一级功能: %s
- 二级功能: %s
- 优先级: %s
- 需求说明: %s
- 预置条件: %s
- 测试步骤: %s
- 预期结果: %s

请按照以下JSON格式返回：
{
    "title": "测试标题",
    "steps": "测试步骤",
    "expected": "预期结果"
}

要求：
1. 测试步骤要详细且清晰
2. 预期结果要具体且可验证
3. 测试标题要简洁明了`, c.Feature, c.SubFeature, c.Priority, c.Requirement, c.Precondition, c.Steps, c.Expected)
}

// Generator turns source cases into new ones
type Generator struct {
	extractor extractor.Extractor[Generated]
	logger    *slog.Logger
}

type Option func(*Generator)

// WithExtractor replaces the default completion backed extractor
func WithExtractor(e extractor.Extractor[Generated]) Option {
	return func(g *Generator) {
		g.extractor = e
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) {
		g.logger = l
	}
}

func NewGenerator(completer completion.Completer, opts completion.Options, maxRetries int, options ...Option) *Generator {
	g := new(Generator)
	for _, opt := range options {
		opt(g)
	}
	if g.logger == nil {
		g.logger = logger.Default()
	}
	if g.extractor == nil {
		g.extractor = extractor.NewRetry[Generated](completer,
			extractor.WithOptions(opts),
			extractor.WithMaxRetries(maxRetries),
			extractor.WithLogger(g.logger),
		)
	}
	return g
}

// Generate asks for one new case per source case. Cases that fail are logged
// and skipped; a cancelled context stops the batch.
func (g *Generator) Generate(ctx context.Context, cases []Case) ([]Generated, error) {
	ret := make([]Generated, 0, len(cases))
	for idx, c := range cases {
		if err := ctx.Err(); err != nil {
			return ret, err
		}
		g.logger.InfoContext(ctx, "generating test case", "case", idx+1, "total", len(cases))
		gen, err := g.extractor.Extract(ctx, []components.Message{components.UserMessage(Prompt(c))})
		if err != nil {
			g.logger.ErrorContext(ctx, "generate test case failed", "case", idx+1, "error", err)
			continue
		}
		ret = append(ret, *gen)
	}
	return ret, nil
}
