// Package document loads files as plain text or markdown for retrieval
package document

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"unicode"
)

// ErrUnsupported no parser handles the detected content type
var ErrUnsupported = errors.New("unsupported document type")

// Document is a parsed document with metadata
type Document struct {
	Content string            `json:"content"`
	Meta    map[string]string `json:"meta,omitempty"`
}

// Parser converts raw content into text written to writer
type Parser interface {
	Parse(context.Context, *bytes.Reader, io.Writer) error
}

// TextParser copies text as is
type TextParser struct{}

var _ Parser = TextParser{}

func (TextParser) Parse(_ context.Context, reader *bytes.Reader, writer io.Writer) error {
	_, err := io.Copy(writer, reader)
	return err
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"|", `\|`,
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
)

// EscapeMarkdown escapes characters that break markdown table cells
func EscapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// StripUnprintable replaces control characters, newlines included, with spaces
func StripUnprintable(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) {
			return r
		}
		if unicode.IsSpace(r) {
			return ' '
		}
		return -1
	}, s)
}
