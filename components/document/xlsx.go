package document

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// XLSXParser renders every sheet as a markdown table headed by the sheet name
type XLSXParser struct {
	password string
}

var _ Parser = (*XLSXParser)(nil)

func NewXLSXParser(password string) *XLSXParser {
	return &XLSXParser{password: password}
}

func (p *XLSXParser) Parse(ctx context.Context, reader *bytes.Reader, writer io.Writer) error {
	opts := make([]excelize.Options, 0, 1)
	if p.password != "" {
		opts = append(opts, excelize.Options{Password: p.password})
	}
	doc, err := excelize.OpenReader(reader, opts...)
	if err != nil {
		return err
	}
	defer doc.Close()
	for _, sheet := range doc.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return err
		}
		rows, err := doc.GetRows(sheet)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			continue
		}
		width := 0
		for _, row := range rows {
			width = max(width, len(row))
		}
		if width == 0 {
			continue
		}
		fmt.Fprintf(writer, "# %s\n\n", sheet)
		for rowIdx, row := range rows {
			cells := make([]string, width)
			for colIdx := range cells {
				if colIdx < len(row) {
					cells[colIdx] = strings.TrimSpace(EscapeMarkdown(StripUnprintable(row[colIdx])))
				}
			}
			fmt.Fprintf(writer, "| %s |\n", strings.Join(cells, " | "))
			if rowIdx == 0 {
				fmt.Fprintf(writer, "|%s\n", strings.Repeat(" --- |", width))
			}
		}
		writer.Write([]byte{'\n'})
	}
	return nil
}
