package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const (
	mimePDF  = "application/pdf"
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimeHTML = "text/html"
	mimeText = "text/plain"
)

// ParserFor returns the parser of a detected mime type, falling back to the file extension
func ParserFor(mime *mimetype.MIME, name string) (Parser, error) {
	switch {
	case mime.Is(mimePDF):
		return NewPDFParser(), nil
	case mime.Is(mimeXLSX):
		return NewXLSXParser(""), nil
	case mime.Is(mimeHTML):
		return NewHTMLParser(), nil
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		return NewXLSXParser(""), nil
	case ".pdf":
		return NewPDFParser(), nil
	case ".txt", ".md", ".markdown", ".csv":
		return TextParser{}, nil
	}
	for m := mime; m != nil; m = m.Parent() {
		if m.Is(mimeText) {
			return TextParser{}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s (%s)", ErrUnsupported, name, mime.String())
}

// Load reads and parses the file at path
func Load(ctx context.Context, path string) (*Document, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	info, err := fp.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	doc, err := LoadReader(ctx, info.Name(), fp)
	if err != nil {
		return nil, err
	}
	doc.Meta["path"] = path
	doc.Meta["modtime"] = strconv.FormatInt(info.ModTime().Unix(), 10)
	return doc, nil
}

// LoadReader parses content read from r, name is used for metadata and extension fallback
func LoadReader(ctx context.Context, name string, r io.Reader) (*Document, error) {
	bs, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	mime := mimetype.Detect(bs)
	parser, err := ParserFor(mime, name)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := parser.Parse(ctx, bytes.NewReader(bs), &buf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return &Document{
		Content: buf.String(),
		Meta: map[string]string{
			"filename": name,
			"mime":     mime.String(),
		},
	}, nil
}

// LoadDir loads every supported file directly under dir, unsupported files are skipped
func LoadDir(ctx context.Context, dir string) ([]Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	ret := make([]Document, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		doc, err := Load(ctx, filepath.Join(dir, entry.Name()))
		if err != nil {
			if errors.Is(err, ErrUnsupported) {
				continue
			}
			return nil, err
		}
		ret = append(ret, *doc)
	}
	return ret, nil
}
