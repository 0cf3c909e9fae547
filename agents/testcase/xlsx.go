package testcase

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// MinColumns required in the source sheet
const MinColumns = 7

// OutputHeader of the generated workbook
var OutputHeader = []string{"Title", "Steps", "Expected"}

const columnWidth = 40

// ReadXLSX reads cases from the first sheet. The header row is skipped and
// rows with any empty cell are ignored.
func ReadXLSX(r io.Reader) ([]Case, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrEmptySheet
	}
	if len(rows[0]) < MinColumns {
		return nil, fmt.Errorf("need %d columns, got %d", MinColumns, len(rows[0]))
	}
	var cases []Case
	for _, row := range rows[1:] {
		c, ok := parseRow(row)
		if !ok {
			continue
		}
		cases = append(cases, c)
	}
	if len(cases) == 0 {
		return nil, ErrEmptySheet
	}
	return cases, nil
}

func parseRow(row []string) (Case, bool) {
	if len(row) < MinColumns {
		return Case{}, false
	}
	cells := make([]string, MinColumns)
	for idx := range cells {
		cells[idx] = strings.TrimSpace(row[idx])
		if cells[idx] == "" {
			return Case{}, false
		}
	}
	return Case{
		Feature:      cells[0],
		SubFeature:   cells[1],
		Priority:     cells[2],
		Requirement:  cells[3],
		Precondition: cells[4],
		Steps:        cells[5],
		Expected:     cells[6],
	}, true
}

// WriteXLSX writes generated cases under OutputHeader
func WriteXLSX(w io.Writer, cases []Generated) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	header := []any{OutputHeader[0], OutputHeader[1], OutputHeader[2]}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for idx, c := range cases {
		cell, err := excelize.CoordinatesToCellName(1, idx+2)
		if err != nil {
			return err
		}
		row := []any{c.Title, c.Steps, c.Expected}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(sheet, "A", "C", columnWidth); err != nil {
		return err
	}
	return f.Write(w)
}
