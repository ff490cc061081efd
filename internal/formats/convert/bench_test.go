package convert

import (
	"context"
	"fmt"
	"testing"

	"github.com/klytics/docbridge/internal/formats/docx"
)

func benchPackage(b *testing.B, paragraphs int) []byte {
	b.Helper()
	doc := docx.NewDocument()
	for i := 0; i < paragraphs; i++ {
		doc.Blocks = append(doc.Blocks, &docx.Paragraph{Runs: []docx.Run{
			{Text: fmt.Sprintf("Paragraph %d ", i), Bold: i%3 == 0},
			{Text: "with some ordinary body text to simulate a real document."},
		}})
	}
	data, err := docx.Serialize(doc)
	if err != nil {
		b.Fatal(err)
	}
	return data
}

func BenchmarkPackageToHTML(b *testing.B) {
	data := benchPackage(b, 200)
	c := New(DefaultOptions(), nil, nil)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.PackageToHTML(ctx, data); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkHTMLToPackageWithBase(b *testing.B) {
	data := benchPackage(b, 200)
	c := New(DefaultOptions(), nil, nil)
	ctx := context.Background()
	res, err := c.PackageToHTML(ctx, data)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.HTMLToPackage(ctx, res.HTML, data); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSecondaryRead(b *testing.B) {
	data := benchPackage(b, 200)
	l := NewLegacy()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := l.PackageToHTML(data); err != nil {
			b.Fatal(err)
		}
	}
}
