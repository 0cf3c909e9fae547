package grading

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrEmptySheet the workbook holds no gradable rows
var ErrEmptySheet = errors.New("no gradable rows")

// Header columns of a grading workbook. Input files need the first four.
var Header = []string{"ques_title", "answer", "fullscore", "reply", "llmgetscore", "llmcomments"}

// LoadXLSX reads items from the first sheet, skipping the header row
// and rows without a question. A full score must be positive.
func LoadXLSX(r io.Reader) ([]Item, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, err
	}
	var items []Item
	for idx, row := range rows {
		if idx == 0 || len(row) < 4 {
			continue
		}
		question := strings.TrimSpace(row[0])
		if question == "" {
			continue
		}
		full, err := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid full score %q: %w", idx+1, row[2], err)
		}
		if full <= 0 {
			return nil, fmt.Errorf("row %d: %w: full score %v", idx+1, ErrInvalidItem, full)
		}
		items = append(items, Item{
			Question:  question,
			Answer:    strings.TrimSpace(row[1]),
			FullScore: full,
			Reply:     strings.TrimSpace(row[3]),
		})
	}
	if len(items) == 0 {
		return nil, ErrEmptySheet
	}
	return items, nil
}

// SaveXLSX writes graded items with the Header row
func SaveXLSX(w io.Writer, items []Item) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	header := make([]any, 0, len(Header))
	for _, h := range Header {
		header = append(header, h)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for idx, item := range items {
		cell, err := excelize.CoordinatesToCellName(1, idx+2)
		if err != nil {
			return err
		}
		row := []any{item.Question, item.Answer, item.FullScore, item.Reply, item.Score, item.Comments}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(sheet, "A", "F", 40); err != nil {
		return err
	}
	return f.Write(w)
}
