package knowledge

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"testing"
	"unicode"

	"github.com/philippgille/chromem-go"

	"github.com/bububa/wowagent/completion"
	"github.com/bububa/wowagent/components"
	"github.com/bububa/wowagent/components/document"
	"github.com/bububa/wowagent/components/logger"
)

// bagOfWords hashes lower cased words into a fixed size normalized vector
func bagOfWords(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, 64)
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool { return !unicode.IsLetter(r) }) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[h.Sum32()%64]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec, nil
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / math.Sqrt(norm))
	}
	return vec, nil
}

func TestSplitter(t *testing.T) {
	s := NewSplitter(6, 1, nil)
	chunks := s.Split("One two three. Four five six. Seven eight nine. Ten.")
	want := []string{"One two three. Four five six.", "Four five six. Seven eight nine.", "Seven eight nine. Ten."}
	if len(chunks) != len(want) {
		t.Fatalf("chunks = %q", chunks)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, chunks[i], want[i])
		}
	}
	if got := NewSplitter(100, 0, nil).Split("  "); len(got) != 0 {
		t.Errorf("blank text chunks = %q", got)
	}
}

type echo struct {
	prompt string
}

func (e *echo) Complete(_ context.Context, msgs []components.Message, _ completion.Options) (string, error) {
	e.prompt = msgs[len(msgs)-1].Content()
	return "answer", nil
}

func (e *echo) StreamComplete(ctx context.Context, msgs []components.Message, opts completion.Options) (completion.Stream, error) {
	v, err := e.Complete(ctx, msgs, opts)
	return completion.NewSliceStream(v), err
}

func TestBase(t *testing.T) {
	ctx := context.Background()
	kb, err := New(chromem.NewDB(), "faq", bagOfWords, WithTopK(1), WithLogger(logger.Discard()), WithSplitter(NewSplitter(8, 0, nil)))
	if err != nil {
		t.Fatal(err)
	}
	if ret, err := kb.Query(ctx, "anything", 0); err != nil || len(ret) != 0 {
		t.Fatalf("empty base query = %v, %v", ret, err)
	}
	n, err := kb.AddDocuments(ctx,
		document.Document{Content: "Workers register at the front desk with an ID card.", Meta: map[string]string{"filename": "register.md"}},
		document.Document{Content: "The canteen serves lunch from noon until two.", Meta: map[string]string{"filename": "canteen.md"}},
	)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 || kb.Count() != 2 {
		t.Fatalf("chunks = %d, count = %d", n, kb.Count())
	}
	passages, err := kb.Query(ctx, "where do workers register", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(passages) != 2 || passages[0].Source != "register.md" {
		t.Errorf("passages = %+v", passages)
	}
	c := new(echo)
	reply, used, err := kb.Answer(ctx, c, "Where do workers register?", completion.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if reply != "answer" || len(used) != 1 {
		t.Errorf("reply %q with %d passages", reply, len(used))
	}
	if !strings.Contains(c.prompt, "front desk") || !strings.Contains(c.prompt, "Question: Where do workers register?") {
		t.Errorf("prompt = %q", c.prompt)
	}
}
