// Package xlsx exports the tables of a document into an .xlsx workbook.
package xlsx

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/klytics/docbridge/internal/formats/docx"
)

// Sheet is one exported table.
type Sheet struct {
	Name string     `json:"name"`
	Rows [][]string `json:"rows"`
}

// Workbook holds one sheet per table.
type Workbook struct {
	Sheets []Sheet `json:"sheets"`
}

// FromDocument collects the top-level tables of doc in document order. Rows
// keep their own cell counts; multi-paragraph cells are joined with newlines.
func FromDocument(doc *docx.Document) *Workbook {
	wb := &Workbook{}
	for _, b := range doc.Blocks {
		t, ok := b.(*docx.Table)
		if !ok {
			continue
		}
		sheet := Sheet{Name: "Table " + strconv.Itoa(len(wb.Sheets)+1)}
		for _, row := range t.Rows {
			cells := make([]string, len(row.Cells))
			for i, c := range row.Cells {
				cells[i] = cellText(c)
			}
			sheet.Rows = append(sheet.Rows, cells)
		}
		wb.Sheets = append(wb.Sheets, sheet)
	}
	return wb
}

func cellText(c docx.Cell) string {
	lines := make([]string, len(c.Paragraphs))
	for i := range c.Paragraphs {
		lines[i] = c.Paragraphs[i].Text()
	}
	return strings.Join(lines, "\n")
}

// Width returns the cell count of the widest row.
func (s *Sheet) Width() int {
	w := 0
	for _, row := range s.Rows {
		w = max(w, len(row))
	}
	return w
}

// ToCSV renders the sheet as CSV. Short rows are not padded.
func (s *Sheet) ToCSV() (string, error) {
	var b strings.Builder
	w := csv.NewWriter(&b)
	if err := w.WriteAll(s.Rows); err != nil {
		return "", fmt.Errorf("writing %s as CSV: %w", s.Name, err)
	}
	return b.String(), nil
}
