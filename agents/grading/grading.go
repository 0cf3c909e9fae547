// Package grading scores exam answers against a reference answer with a language model
package grading

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/bububa/wowagent/completion"
	"github.com/bububa/wowagent/components"
	"github.com/bububa/wowagent/components/extractor"
	"github.com/bububa/wowagent/components/logger"
)

// ErrInvalidItem the item lacks a question or a positive full score
var ErrInvalidItem = errors.New("invalid grading item")

var validate = validator.New(validator.WithRequiredStructEnabled())

// DefaultTemperature used when no options are given
const DefaultTemperature float32 = 0.7

const systemPrompt = "你是一位专业的考试阅卷专家。"

const promptTemplate = `你是一位中国专利代理师考试阅卷专家，
擅长根据给定的题目和答案为考生生成符合要求的评分和中文评语，
并按照特定的格式输出。
你的任务是，根据我输入的考题和答案，针对考生的作答生成评分和中文的评语，并以JSON格式返回。
阅卷标准适当宽松一些，只要考生回答出基本的意思就应当给分。
答案如果有数字标注，含义是考生如果答出这个知识点，这道题就会得到几分。
生成的中文评语需要能够被JSON解析器正确解析。
生成的整个中文评语需要用英文的双引号包裹，在被包裹的字符串内部，请用中文的双引号。
中文评语中不可以出现换行符、转义字符等等。

输出格式为JSON:
{
  "llmgetscore": 0,
  "llmcomments": "中文评语"
}

比较学生的回答与正确答案，
并给出满分为%s分的评分和中文评语。
题目：%s
答案：%s
学生的回复：%s`

// Item is one exam question with the candidate reply and, after grading, its score
type Item struct {
	Question  string  `json:"ques_title" validate:"required"`
	Answer    string  `json:"answer"`
	FullScore float64 `json:"fullscore" validate:"gt=0"`
	Reply     string  `json:"reply"`
	Score     float64 `json:"llmgetscore"`
	Comments  string  `json:"llmcomments"`
}

// Grade is the structured reply expected from the model
type Grade struct {
	Score    float64 `json:"llmgetscore"`
	Comments string  `json:"llmcomments" validate:"required"`
}

// Prompt renders the grading instructions for item
func Prompt(item Item) string {
	return fmt.Sprintf(promptTemplate, formatScore(item.FullScore), item.Question, item.Answer, item.Reply)
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Grader grades items one at a time
type Grader struct {
	extractor extractor.Extractor[Grade]
	logger    *slog.Logger
}

type Option func(*Grader)

// WithExtractor replaces the default completion backed extractor, e.g. with an extractor.Instructor
func WithExtractor(e extractor.Extractor[Grade]) Option {
	return func(g *Grader) {
		g.extractor = e
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Grader) {
		g.logger = l
	}
}

// New returns a Grader asking completer for JSON grades with up to maxRetries attempts per item
func New(completer completion.Completer, opts completion.Options, maxRetries int, options ...Option) *Grader {
	g := new(Grader)
	for _, opt := range options {
		opt(g)
	}
	if g.logger == nil {
		g.logger = logger.Default()
	}
	if g.extractor == nil {
		if opts.Temperature == 0 {
			opts.Temperature = DefaultTemperature
		}
		g.extractor = extractor.NewRetry[Grade](completer,
			extractor.WithOptions(opts),
			extractor.WithMaxRetries(maxRetries),
			extractor.WithLogger(g.logger),
		)
	}
	return g
}

// Grade scores a single item. The score is clamped to [0, FullScore].
func (g *Grader) Grade(ctx context.Context, item Item) (Item, error) {
	if err := validate.Struct(item); err != nil {
		return item, fmt.Errorf("%w: %w", ErrInvalidItem, err)
	}
	msgs := []components.Message{
		components.SystemMessage(systemPrompt),
		components.UserMessage(Prompt(item)),
	}
	grade, err := g.extractor.Extract(ctx, msgs)
	if err != nil {
		return item, err
	}
	item.Score = clamp(grade.Score, item.FullScore)
	item.Comments = strings.TrimSpace(grade.Comments)
	return item, nil
}

// Run grades items in order and returns the graded copies.
// It stops at the first item that cannot be graded.
func (g *Grader) Run(ctx context.Context, items []Item) ([]Item, error) {
	ret := make([]Item, 0, len(items))
	for idx, item := range items {
		g.logger.InfoContext(ctx, "grading", "item", idx+1, "total", len(items))
		graded, err := g.Grade(ctx, item)
		if err != nil {
			return ret, fmt.Errorf("grade item %d: %w", idx+1, err)
		}
		ret = append(ret, graded)
	}
	return ret, nil
}

func clamp(score float64, full float64) float64 {
	if score < 0 {
		return 0
	}
	if full > 0 && score > full {
		return full
	}
	return score
}
