package diff

import (
	"testing"

	"github.com/klytics/docbridge/internal/formats/docx"
)

func TestBlockTexts(t *testing.T) {
	cell := func(s string) docx.Cell {
		return docx.Cell{Paragraphs: []docx.Paragraph{{Runs: []docx.Run{{Text: s}}}}}
	}
	doc := docx.NewDocument()
	doc.Blocks = []docx.Block{
		&docx.Paragraph{Runs: []docx.Run{{Text: "Hello", Bold: true}, {Text: " World"}}},
		&docx.Paragraph{},
		&docx.Table{Rows: []docx.Row{
			{Cells: []docx.Cell{cell("A1"), cell("B1")}},
			{Cells: []docx.Cell{cell("A2")}},
		}},
	}

	got := BlockTexts(doc)
	want := []string{"Hello World", "", "[table] A1 | B1 / A2"}
	if len(got) != len(want) {
		t.Fatalf("got %d blocks, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("block %d = %q, want %q", i, got[i], want[i])
		}
	}
}
