package knowledge

import (
	"strings"

	"github.com/clipperhouse/uax29/sentences"

	"github.com/bububa/wowagent/components"
)

const (
	DefaultChunkSize = 200
	DefaultOverlap   = 1
)

// Splitter groups sentences into chunks of at most chunkSize tokens.
// The last overlap sentences of a chunk start the next one.
type Splitter struct {
	chunkSize int
	overlap   int
	counter   components.TokenCounter
}

func NewSplitter(chunkSize int, overlap int, counter components.TokenCounter) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if counter == nil {
		counter = components.WordsTokenCounter{}
	}
	return &Splitter{
		chunkSize: chunkSize,
		overlap:   overlap,
		counter:   counter,
	}
}

// Sentences splits text on unicode sentence boundaries, dropping blank segments
func Sentences(text string) []string {
	var ret []string
	scanner := sentences.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		if s := strings.TrimSpace(scanner.Text()); s != "" {
			ret = append(ret, s)
		}
	}
	return ret
}

// Split returns the chunks of text. A sentence longer than chunkSize becomes its own chunk.
func (s *Splitter) Split(text string) []string {
	list := Sentences(text)
	var (
		ret     []string
		current []string
		size    int
	)
	flush := func() {
		if len(current) == 0 {
			return
		}
		ret = append(ret, strings.Join(current, " "))
		keep := min(s.overlap, len(current)-1)
		if keep < 0 {
			keep = 0
		}
		current = append([]string(nil), current[len(current)-keep:]...)
		size = 0
		for _, v := range current {
			size += s.counter.Count(v)
		}
	}
	for _, sentence := range list {
		n := s.counter.Count(sentence)
		if size > 0 && size+n > s.chunkSize {
			flush()
			// the carried overlap alone may not leave room
			if size > 0 && size+n > s.chunkSize {
				current = current[:0]
				size = 0
			}
		}
		current = append(current, sentence)
		size += n
	}
	if len(current) > 0 {
		ret = append(ret, strings.Join(current, " "))
	}
	return ret
}
