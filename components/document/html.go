package document

import (
	"bytes"
	"context"
	"io"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
)

// HTMLParser converts html to markdown
type HTMLParser struct {
	opts []converter.ConvertOptionFunc
}

var _ Parser = (*HTMLParser)(nil)

func NewHTMLParser(opts ...converter.ConvertOptionFunc) *HTMLParser {
	return &HTMLParser{
		opts: opts,
	}
}

func (h *HTMLParser) Parse(_ context.Context, reader *bytes.Reader, writer io.Writer) error {
	bs, err := htmltomarkdown.ConvertReader(reader, h.opts...)
	if err != nil {
		return err
	}
	_, err = writer.Write(bs)
	return err
}
