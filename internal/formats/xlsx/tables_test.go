package xlsx

import (
	"bytes"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/klytics/docbridge/internal/formats/docx"
)

func cell(lines ...string) docx.Cell {
	c := docx.Cell{}
	for _, l := range lines {
		c.Paragraphs = append(c.Paragraphs, docx.Paragraph{Runs: []docx.Run{{Text: l}}})
	}
	return c
}

func sampleDocument() *docx.Document {
	doc := docx.NewDocument()
	doc.Blocks = []docx.Block{
		&docx.Paragraph{Runs: []docx.Run{{Text: "intro"}}},
		&docx.Table{Rows: []docx.Row{
			{Cells: []docx.Cell{cell("Name"), cell("City")}},
			{Cells: []docx.Cell{cell("Alice"), cell("Paris", "France")}},
			{Cells: []docx.Cell{cell("Bob")}},
		}},
		&docx.Table{Rows: []docx.Row{{Cells: []docx.Cell{cell("a, \"b\"")}}}},
	}
	return doc
}

func TestFromDocument(t *testing.T) {
	wb := FromDocument(sampleDocument())
	if len(wb.Sheets) != 2 {
		t.Fatalf("got %d sheets, want 2", len(wb.Sheets))
	}
	want := [][]string{{"Name", "City"}, {"Alice", "Paris\nFrance"}, {"Bob"}}
	if !reflect.DeepEqual(wb.Sheets[0].Rows, want) {
		t.Errorf("rows = %q", wb.Sheets[0].Rows)
	}
	if wb.Sheets[0].Name != "Table 1" || wb.Sheets[1].Name != "Table 2" {
		t.Errorf("names = %q, %q", wb.Sheets[0].Name, wb.Sheets[1].Name)
	}
	if w := wb.Sheets[0].Width(); w != 2 {
		t.Errorf("width = %d", w)
	}
}

func TestToCSV(t *testing.T) {
	wb := FromDocument(sampleDocument())
	var got string
	for _, sheet := range wb.Sheets {
		text, err := sheet.ToCSV()
		if err != nil {
			t.Fatalf("ToCSV failed: %v", err)
		}
		got += text
	}
	want := "Name,City\nAlice,\"Paris\nFrance\"\nBob\n\"a, \"\"b\"\"\"\n"
	if got != want {
		t.Errorf("csv = %q, want %q", got, want)
	}
}

func TestWriteReadBack(t *testing.T) {
	wb := FromDocument(sampleDocument())
	path := filepath.Join(t.TempDir(), "tables.xlsx")
	if err := WriteFile(wb, path); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if got := f.GetSheetList(); !reflect.DeepEqual(got, []string{"Table 1", "Table 2"}) {
		t.Errorf("sheets = %q", got)
	}
	rows, err := f.GetRows("Table 1")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(rows, wb.Sheets[0].Rows) {
		t.Errorf("rows = %q", rows)
	}
	styleID, err := f.GetCellStyle("Table 1", "B1")
	if err != nil {
		t.Fatal(err)
	}
	style, err := f.GetStyle(styleID)
	if err != nil || style.Font == nil || !style.Font.Bold {
		t.Errorf("header cell is not bold: %+v, %v", style, err)
	}
}

func TestWriteEmptyWorkbook(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&Workbook{}, &buf); err != nil {
		t.Fatal(err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("empty workbook does not open: %v", err)
	}
	f.Close()
}
