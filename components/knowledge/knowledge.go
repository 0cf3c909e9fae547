// Package knowledge stores document chunks in a vector collection and answers questions from them
package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"strings"

	"github.com/philippgille/chromem-go"

	"github.com/bububa/wowagent/completion"
	"github.com/bububa/wowagent/components"
	"github.com/bububa/wowagent/components/document"
	"github.com/bububa/wowagent/components/logger"
)

// DefaultTopK passages used to answer a question
const DefaultTopK = 3

// Passage a retrieved chunk
type Passage struct {
	ID         string            `json:"id"`
	Content    string            `json:"content"`
	Source     string            `json:"source,omitempty"`
	Similarity float32           `json:"similarity"`
	Meta       map[string]string `json:"-"`
}

type Option func(*Base)

func WithSplitter(s *Splitter) Option {
	return func(b *Base) {
		b.splitter = s
	}
}

func WithTopK(k int) Option {
	return func(b *Base) {
		b.topK = k
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(b *Base) {
		b.logger = l
	}
}

// Base is a knowledge base over one chromem collection
type Base struct {
	col      *chromem.Collection
	splitter *Splitter
	topK     int
	logger   *slog.Logger
}

// New opens (or creates) collection name in db
func New(db *chromem.DB, name string, embed chromem.EmbeddingFunc, opts ...Option) (*Base, error) {
	col, err := db.GetOrCreateCollection(name, nil, embed)
	if err != nil {
		return nil, err
	}
	ret := &Base{col: col}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.splitter == nil {
		ret.splitter = NewSplitter(0, DefaultOverlap, nil)
	}
	if ret.topK <= 0 {
		ret.topK = DefaultTopK
	}
	if ret.logger == nil {
		ret.logger = logger.Default()
	}
	return ret, nil
}

// Count number of stored chunks
func (b *Base) Count() int {
	return b.col.Count()
}

// AddDocuments splits and embeds docs, returning the number of stored chunks
func (b *Base) AddDocuments(ctx context.Context, docs ...document.Document) (int, error) {
	var list []chromem.Document
	for idx, doc := range docs {
		source := doc.Meta["filename"]
		if source == "" {
			source = "doc" + strconv.Itoa(idx)
		}
		for i, chunk := range b.splitter.Split(doc.Content) {
			meta := make(map[string]string, len(doc.Meta)+1)
			for k, v := range doc.Meta {
				meta[k] = v
			}
			meta["source"] = source
			list = append(list, chromem.Document{
				ID:       fmt.Sprintf("%s#%d", source, i),
				Content:  chunk,
				Metadata: meta,
			})
		}
	}
	if len(list) == 0 {
		return 0, nil
	}
	if err := b.col.AddDocuments(ctx, list, runtime.NumCPU()); err != nil {
		return 0, err
	}
	b.logger.InfoContext(ctx, "knowledge documents added", "documents", len(docs), "chunks", len(list))
	return len(list), nil
}

// Query returns the topK passages most similar to q
func (b *Base) Query(ctx context.Context, q string, topK int) ([]Passage, error) {
	if topK <= 0 {
		topK = b.topK
	}
	topK = min(topK, b.col.Count())
	if topK == 0 {
		return nil, nil
	}
	results, err := b.col.Query(ctx, q, topK, nil, nil)
	if err != nil {
		return nil, err
	}
	ret := make([]Passage, 0, len(results))
	for _, res := range results {
		ret = append(ret, Passage{
			ID:         res.ID,
			Content:    res.Content,
			Source:     res.Metadata["source"],
			Similarity: res.Similarity,
			Meta:       res.Metadata,
		})
	}
	return ret, nil
}

const answerPrompt = `Answer the question using only the context below.
If the context does not contain the answer, say you do not know.

Context:
%s

Question: %s`

// Prompt renders the retrieval augmented prompt for q
func Prompt(q string, passages []Passage) string {
	var sb strings.Builder
	for i, p := range passages {
		if i > 0 {
			sb.WriteString("\n---\n")
		}
		sb.WriteString(p.Content)
	}
	return fmt.Sprintf(answerPrompt, sb.String(), q)
}

// Answer retrieves passages for q and asks the completion service
func (b *Base) Answer(ctx context.Context, completer completion.Completer, q string, opts completion.Options) (string, []Passage, error) {
	passages, err := b.Query(ctx, q, b.topK)
	if err != nil {
		return "", nil, err
	}
	reply, err := completer.Complete(ctx, []components.Message{components.UserMessage(Prompt(q, passages))}, opts)
	if err != nil {
		return "", passages, err
	}
	return reply, passages, nil
}
