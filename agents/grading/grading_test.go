package grading

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bububa/wowagent/completion"
	"github.com/bububa/wowagent/components"
	"github.com/bububa/wowagent/components/logger"
)

type replies struct {
	texts   []string
	prompts []string
}

func (r *replies) Complete(_ context.Context, msgs []components.Message, _ completion.Options) (string, error) {
	r.prompts = append(r.prompts, msgs[len(msgs)-1].Content())
	if len(r.texts) == 0 {
		return "", errors.New("no more replies")
	}
	text := r.texts[0]
	r.texts = r.texts[1:]
	return text, nil
}

func (r *replies) StreamComplete(ctx context.Context, msgs []components.Message, opts completion.Options) (completion.Stream, error) {
	text, err := r.Complete(ctx, msgs, opts)
	if err != nil {
		return nil, err
	}
	return completion.NewSliceStream(text), nil
}

var sample = Item{
	Question:  "请解释前序部分、特征部分、引用部分、限定部分",
	Answer:    "前序部分（2.5分）；特征部分（2.5分）；引用部分（2.5分）；限定部分（2.5分）。",
	FullScore: 10,
	Reply:     "前序部分：独立权利要求中与现有技术相同的技术特征",
}

func TestPrompt(t *testing.T) {
	p := Prompt(sample)
	for _, want := range []string{"满分为10分", "题目：" + sample.Question, "学生的回复：" + sample.Reply, `"llmgetscore": 0`} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestGrade(t *testing.T) {
	c := &replies{texts: []string{"```json\n{\"llmgetscore\": 7.5, \"llmcomments\": \"基本正确\"}\n```"}}
	g := New(c, completion.Options{}, 0, WithLogger(logger.Discard()))
	item, err := g.Grade(context.Background(), sample)
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if item.Score != 7.5 || item.Comments != "基本正确" {
		t.Errorf("got %+v", item)
	}
	if item.Question != sample.Question {
		t.Errorf("question changed: %q", item.Question)
	}
}

func TestGradeClampsAndRetries(t *testing.T) {
	c := &replies{texts: []string{
		"I think the score is high",
		`{"llmgetscore": 15, "llmcomments": "很好"}`,
		`{"llmgetscore": -2, "llmcomments": "离题"}`,
	}}
	g := New(c, completion.Options{}, 2, WithLogger(logger.Discard()))
	items, err := g.Run(context.Background(), []Item{sample, sample})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d", len(items))
	}
	if items[0].Score != 10 {
		t.Errorf("score = %v, want clamped to 10", items[0].Score)
	}
	if items[1].Score != 0 {
		t.Errorf("score = %v, want clamped to 0", items[1].Score)
	}
	if len(c.prompts) != 3 {
		t.Errorf("completions = %d, want 3", len(c.prompts))
	}
}

func TestRunStopsOnFailure(t *testing.T) {
	c := &replies{texts: []string{`{"llmgetscore": 5, "llmcomments": "一般"}`}}
	g := New(c, completion.Options{}, 1, WithLogger(logger.Discard()))
	items, err := g.Run(context.Background(), []Item{sample, sample})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(items) != 1 {
		t.Errorf("graded = %d, want 1", len(items))
	}
}

func TestXLSX(t *testing.T) {
	graded := sample
	graded.Score = 6
	graded.Comments = "部分正确"
	var buf bytes.Buffer
	if err := SaveXLSX(&buf, []Item{graded}); err != nil {
		t.Fatalf("SaveXLSX: %v", err)
	}
	items, err := LoadXLSX(&buf)
	if err != nil {
		t.Fatalf("LoadXLSX: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("len = %d", len(items))
	}
	got := items[0]
	if got.Question != sample.Question || got.FullScore != 10 || got.Reply != sample.Reply {
		t.Errorf("got %+v", got)
	}
	if got.Score != 0 || got.Comments != "" {
		t.Errorf("loaded item should not carry grades: %+v", got)
	}

	buf.Reset()
	if err := SaveXLSX(&buf, nil); err != nil {
		t.Fatalf("SaveXLSX empty: %v", err)
	}
	if _, err := LoadXLSX(&buf); !errors.Is(err, ErrEmptySheet) {
		t.Errorf("err = %v, want ErrEmptySheet", err)
	}
}

func TestGradeRejectsInvalidItem(t *testing.T) {
	c := &replies{texts: []string{`{"llmgetscore": 5, "llmcomments": "一般"}`}}
	g := New(c, completion.Options{}, 1, WithLogger(logger.Discard()))
	zero := sample
	zero.FullScore = 0
	if _, err := g.Grade(context.Background(), zero); !errors.Is(err, ErrInvalidItem) {
		t.Errorf("zero full score: err = %v, want ErrInvalidItem", err)
	}
	blank := sample
	blank.Question = ""
	if _, err := g.Grade(context.Background(), blank); !errors.Is(err, ErrInvalidItem) {
		t.Errorf("blank question: err = %v, want ErrInvalidItem", err)
	}
	if len(c.prompts) != 0 {
		t.Errorf("invalid items reached the model %d times", len(c.prompts))
	}

	var buf bytes.Buffer
	if err := SaveXLSX(&buf, []Item{sample, zero}); err != nil {
		t.Fatalf("SaveXLSX: %v", err)
	}
	if _, err := LoadXLSX(&buf); !errors.Is(err, ErrInvalidItem) {
		t.Errorf("LoadXLSX zero full score: err = %v, want ErrInvalidItem", err)
	}
}
