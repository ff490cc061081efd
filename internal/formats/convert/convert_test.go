package convert

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/klytics/docbridge/internal/formats/docx"
)

type stubSecondary struct {
	calls atomic.Int32
	html  string
	data  []byte
	err   error
	block chan struct{}
	panic bool
}

func (s *stubSecondary) PackageToHTML([]byte) (string, error) {
	s.calls.Add(1)
	if s.block != nil {
		<-s.block
	}
	if s.panic {
		panic("secondary exploded")
	}
	return s.html, s.err
}

func (s *stubSecondary) HTMLToPackage(string) ([]byte, error) {
	s.calls.Add(1)
	return s.data, s.err
}

func para(text string) *docx.Paragraph {
	return &docx.Paragraph{Runs: []docx.Run{{Text: text}}}
}

// samplePackage builds the Title / Hello World / 2x2 table document with an
// image relationship the HTML never shows.
func samplePackage(t *testing.T) []byte {
	t.Helper()
	doc := docx.NewDocument()
	heading := para("Title")
	heading.StyleID = "Heading1"
	cell := func(s string) docx.Cell { return docx.Cell{Paragraphs: []docx.Paragraph{*para(s)}} }
	doc.Blocks = []docx.Block{
		heading,
		&docx.Paragraph{Runs: []docx.Run{{Text: "Hello", Bold: true}, {Text: " World"}}},
		&docx.Table{Rows: []docx.Row{
			{Cells: []docx.Cell{cell("A1"), cell("B1")}},
			{Cells: []docx.Cell{cell("A2"), cell("B2")}},
		}},
	}
	doc.Relationships = docx.RelationshipTable{Rels: []docx.Relationship{
		{ID: "rId7", Type: docx.RelTypeImage, Target: "media/image1.png"},
	}}
	doc.Resources = []docx.Resource{{Path: "word/media/image1.png", ContentType: "image/png", Data: []byte("png")}}
	return serialize(t, doc)
}

func serialize(t *testing.T, doc *docx.Document) []byte {
	t.Helper()
	data, err := docx.Serialize(doc)
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	return data
}

func texts(doc *docx.Document) []string {
	var out []string
	for _, b := range doc.Blocks {
		if p, ok := b.(*docx.Paragraph); ok {
			out = append(out, p.Text())
		}
	}
	return out
}

func TestPackageToHTMLNative(t *testing.T) {
	stub := &stubSecondary{}
	c := New(DefaultOptions(), stub, zap.NewNop())

	res, err := c.PackageToHTML(context.Background(), samplePackage(t))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Native || res.Document == nil {
		t.Errorf("expected a native result, got %+v", res)
	}
	for _, want := range []string{"<h1>Title</h1>", "<p><strong>Hello</strong> World</p>", "<table>"} {
		if !strings.Contains(res.HTML, want) {
			t.Errorf("missing %q in:\n%s", want, res.HTML)
		}
	}
	if n := stub.calls.Load(); n != 0 {
		t.Errorf("secondary called %d times on a healthy package", n)
	}
}

func TestPackageToHTMLStandalone(t *testing.T) {
	opts := DefaultOptions()
	opts.Standalone = true
	opts.Title = "Report <draft>"

	res, err := New(opts, nil, nil).PackageToHTML(context.Background(), samplePackage(t))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(res.HTML, "<!DOCTYPE html>") {
		t.Errorf("not a standalone page:\n%s", res.HTML)
	}
	if !strings.Contains(res.HTML, "<title>Report &lt;draft&gt;</title>") {
		t.Error("title not escaped into the page")
	}
}

func TestPackageToHTMLFallbackOnCorruption(t *testing.T) {
	c := New(DefaultOptions(), nil, zap.NewNop())
	ctx := context.Background()

	t.Run("plain text", func(t *testing.T) {
		res, err := c.PackageToHTML(ctx, []byte("Meeting notes\nsecond line"))
		if err != nil {
			t.Fatal(err)
		}
		if res.Native || !strings.Contains(res.HTML, "Meeting notes") {
			t.Errorf("unexpected fallback result %+v", res)
		}
	})

	t.Run("html", func(t *testing.T) {
		const page = `<html><head><link rel="stylesheet" href="https://cdn.example.com/x.css"><title>Notes</title></head>` +
			`<body><p onclick="steal()">already <b>html</b></p><script>alert(document.cookie)</script>` +
			`<img src="https://cdn.example.com/pixel.png"><p><a href="javascript:steal()">link</a></p></body></html>`
		res, err := c.PackageToHTML(ctx, []byte(page))
		if err != nil {
			t.Fatal(err)
		}
		if res.Native || !strings.Contains(res.HTML, "<p>already <strong>html</strong></p>") {
			t.Errorf("html input not rebuilt: %+v", res)
		}
		for _, unsafe := range []string{"<script", "alert(", "onclick", "<link", "stylesheet", "<img", "javascript:", "<title"} {
			if strings.Contains(res.HTML, unsafe) {
				t.Errorf("output keeps %q:\n%s", unsafe, res.HTML)
			}
		}
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := c.PackageToHTML(ctx, []byte("\x00\x01\x02\x03 not a document"))
		var ce *ConversionError
		if !errors.As(err, &ce) {
			t.Fatalf("expected *ConversionError, got %v", err)
		}
		if ce.Op != opRead || ce.Native == nil || ce.Secondary == nil {
			t.Errorf("incomplete error: %+v", ce)
		}
		if !errors.Is(err, docx.ErrNotAnArchive) {
			t.Errorf("native cause lost: %v", err)
		}
	})

	t.Run("archive without document", func(t *testing.T) {
		var buf bytes.Buffer
		zw := zip.NewWriter(&buf)
		w, _ := zw.Create("notes.txt")
		w.Write([]byte("hello"))
		zw.Close()

		_, err := c.PackageToHTML(ctx, buf.Bytes())
		if !errors.Is(err, docx.ErrMissingPart) {
			t.Errorf("expected a missing part cause, got %v", err)
		}
	})
}

func TestCorruptInputNeverEscapes(t *testing.T) {
	valid := samplePackage(t)
	inputs := [][]byte{
		nil,
		{},
		valid[:len(valid)/2],
		bytes.Repeat([]byte{0xff}, 64),
		[]byte("PK\x03\x04truncated"),
	}
	c := New(DefaultOptions(), nil, zap.NewNop())
	for i, in := range inputs {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			res, err := c.PackageToHTML(context.Background(), in)
			if err == nil {
				if res == nil || res.Native {
					t.Errorf("corrupt input reported as native: %+v", res)
				}
				return
			}
			var ce *ConversionError
			if !errors.As(err, &ce) {
				t.Errorf("error is not a *ConversionError: %v", err)
			}
		})
	}
}

func TestSingleFallbackAttempt(t *testing.T) {
	stub := &stubSecondary{err: errors.New("secondary down")}
	c := New(DefaultOptions(), stub, zap.NewNop())

	_, err := c.PackageToHTML(context.Background(), []byte("\x00garbage"))
	if err == nil || !strings.Contains(err.Error(), "secondary down") {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := stub.calls.Load(); n != 1 {
		t.Errorf("secondary called %d times, want 1", n)
	}
}

func TestPreferSecondary(t *testing.T) {
	opts := DefaultOptions()
	opts.PreferNativeRead = false
	opts.PreferNativeWrite = false

	stub := &stubSecondary{html: "<p>from secondary</p>", data: []byte("pkg")}
	c := New(opts, stub, zap.NewNop())
	ctx := context.Background()

	res, err := c.PackageToHTML(ctx, samplePackage(t))
	if err != nil {
		t.Fatal(err)
	}
	if res.Native || res.HTML != "<p>from secondary</p>" {
		t.Errorf("read did not use the secondary: %+v", res)
	}

	pkg, err := c.HTMLToPackage(ctx, "<p>x</p>", nil)
	if err != nil {
		t.Fatal(err)
	}
	if pkg.Native || string(pkg.Data) != "pkg" {
		t.Errorf("write did not use the secondary: %+v", pkg)
	}

	stub.err = errors.New("nope")
	_, err = c.HTMLToPackage(ctx, "<p>x</p>", nil)
	var ce *ConversionError
	if !errors.As(err, &ce) || ce.Native != nil || ce.Op != opWrite {
		t.Errorf("expected a secondary-only ConversionError, got %v", err)
	}
}

func TestLegacyRoundTrip(t *testing.T) {
	opts := DefaultOptions()
	opts.PreferNativeRead = false
	opts.PreferNativeWrite = false
	c := New(opts, nil, zap.NewNop())
	ctx := context.Background()

	res, err := c.PackageToHTML(ctx, samplePackage(t))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.HTML, "Title") || !strings.Contains(res.HTML, "<table>") {
		t.Errorf("secondary HTML lost content:\n%s", res.HTML)
	}

	pkg, err := c.HTMLToPackage(ctx, "<h1>Notes</h1><p>plain <strong>bold</strong></p><ul><li>one</li></ul>", nil)
	if err != nil {
		t.Fatal(err)
	}
	doc, err := docx.ParseBytes(pkg.Data)
	if err != nil {
		t.Fatalf("secondary package does not parse: %v", err)
	}
	joined := strings.Join(texts(doc), "|")
	for _, want := range []string{"Notes", "plain bold", "one"} {
		if !strings.Contains(joined, want) {
			t.Errorf("missing %q in %q", want, joined)
		}
	}
}

func TestHTMLToPackageWithBase(t *testing.T) {
	base := samplePackage(t)
	c := New(DefaultOptions(), nil, zap.NewNop())
	ctx := context.Background()

	read, err := c.PackageToHTML(ctx, base)
	if err != nil {
		t.Fatal(err)
	}
	edited := strings.Replace(read.HTML, " World", " there", 1)

	res, err := c.HTMLToPackage(ctx, edited, base)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Native {
		t.Error("expected the native writer")
	}
	saved, err := docx.ParseBytes(res.Data)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(saved.Relationships, read.Document.Relationships) {
		t.Errorf("relationships changed\n got %+v\nwant %+v", saved.Relationships, read.Document.Relationships)
	}
	if got := texts(saved); len(got) < 2 || got[0] != "Title" || got[1] != "Hello there" {
		t.Errorf("paragraphs = %q", got)
	}

	model, err := c.HTMLToPackageModel(ctx, read.HTML, read.Document)
	if err != nil {
		t.Fatal(err)
	}
	again, err := docx.ParseBytes(model.Data)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(again.Blocks, read.Document.Blocks) {
		t.Error("unedited HTML changed the blocks on re-save")
	}
}

func TestHTMLToPackageIgnoresBadBase(t *testing.T) {
	c := New(DefaultOptions(), &stubSecondary{err: errors.New("unused")}, zap.NewNop())
	res, err := c.HTMLToPackage(context.Background(), "<p>fresh</p>", []byte("not a package"))
	if err != nil {
		t.Fatal(err)
	}
	doc, err := docx.ParseBytes(res.Data)
	if err != nil {
		t.Fatal(err)
	}
	if got := texts(doc); !reflect.DeepEqual(got, []string{"fresh"}) {
		t.Errorf("paragraphs = %q", got)
	}
}

func TestCanceledContext(t *testing.T) {
	stub := &stubSecondary{}
	c := New(DefaultOptions(), stub, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.PackageToHTML(ctx, samplePackage(t)); !errors.Is(err, context.Canceled) {
		t.Errorf("PackageToHTML error = %v", err)
	}
	if _, err := c.HTMLToPackage(ctx, "<p>x</p>", nil); !errors.Is(err, context.Canceled) {
		t.Errorf("HTMLToPackage error = %v", err)
	}
	if n := stub.calls.Load(); n != 0 {
		t.Errorf("secondary called %d times after cancel", n)
	}
}

func TestCancelAbandonsInFlightConversion(t *testing.T) {
	opts := DefaultOptions()
	opts.PreferNativeRead = false
	stub := &stubSecondary{html: "<p>stale</p>", block: make(chan struct{})}
	defer close(stub.block)
	c := New(opts, stub, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := c.PackageToHTML(ctx, []byte("x"))
		errc <- err
	}()
	for stub.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("conversion did not return after cancel")
	}
}

func TestPanicBecomesConversionError(t *testing.T) {
	opts := DefaultOptions()
	opts.PreferNativeRead = false
	c := New(opts, &stubSecondary{panic: true}, zap.NewNop())

	_, err := c.PackageToHTML(context.Background(), []byte("x"))
	var ce *ConversionError
	if !errors.As(err, &ce) || !strings.Contains(ce.Secondary.Error(), "secondary exploded") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestConcurrentConversions(t *testing.T) {
	c := New(DefaultOptions(), nil, zap.NewNop())
	const n = 16

	inputs := make([][]byte, n)
	for i := range inputs {
		doc := docx.NewDocument()
		doc.Blocks = []docx.Block{para(fmt.Sprintf("document %d", i))}
		inputs[i] = serialize(t, doc)
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := c.PackageToHTML(context.Background(), inputs[i])
			if err != nil {
				errs[i] = err
				return
			}
			want := fmt.Sprintf("<p>document %d</p>", i)
			if res.HTML != want+"\n" {
				errs[i] = fmt.Errorf("got %q, want %q", res.HTML, want)
				return
			}
			if _, err := c.HTMLToPackage(context.Background(), res.HTML, inputs[i]); err != nil {
				errs[i] = err
			}
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Errorf("conversion %d: %v", i, err)
		}
	}
}

func TestConversionErrorUnwrap(t *testing.T) {
	native := &docx.ArchiveError{Kind: docx.NotAnArchive}
	secondary := errors.New("secondary failed")

	err := error(&ConversionError{Op: opRead, Native: native, Secondary: secondary})
	if !errors.Is(err, docx.ErrNotAnArchive) || !errors.Is(err, secondary) {
		t.Error("causes not reachable through errors.Is")
	}
	var ae *docx.ArchiveError
	if !errors.As(err, &ae) || ae != native {
		t.Error("archive error not reachable through errors.As")
	}
	if !strings.Contains(err.Error(), "native:") || !strings.Contains(err.Error(), "secondary:") {
		t.Errorf("message = %q", err.Error())
	}

	only := &ConversionError{Op: opWrite, Secondary: secondary}
	if len(only.Unwrap()) != 1 || strings.Contains(only.Error(), "native") {
		t.Errorf("secondary-only error = %q", only.Error())
	}
}

func TestConvertFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "report.docx")
	if err := os.WriteFile(in, samplePackage(t), 0644); err != nil {
		t.Fatal(err)
	}
	c := New(DefaultOptions(), nil, zap.NewNop())
	ctx := context.Background()

	htmlPath := filepath.Join(dir, "out", "report.html")
	res, err := c.ConvertFile(ctx, in, htmlPath, FormatHTML, "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Path != htmlPath || !res.Native {
		t.Errorf("result = %+v", res)
	}
	written, err := os.ReadFile(htmlPath)
	if err != nil || !strings.Contains(string(written), "<h1>Title</h1>") {
		t.Fatalf("html file = %q, %v", written, err)
	}

	edited := filepath.Join(dir, "edited.html")
	os.WriteFile(edited, bytes.Replace(written, []byte("Title"), []byte("New title"), 1), 0644)
	out := filepath.Join(dir, "edited.docx")
	if _, err := c.ConvertFile(ctx, edited, out, FormatDOCX, in); err != nil {
		t.Fatal(err)
	}
	doc, err := docx.ParseFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if got := texts(doc); got[0] != "New title" {
		t.Errorf("paragraphs = %q", got)
	}
	if _, ok := doc.Relationships.Lookup("rId7"); !ok {
		t.Error("base relationship lost")
	}

	md, err := c.ConvertFile(ctx, in, "", FormatMarkdown, "")
	if err != nil {
		t.Fatal(err)
	}
	if md.Path != "" || !strings.Contains(string(md.Data), "# Title") {
		t.Errorf("markdown result = %+v", md)
	}

	txt, err := c.ConvertFile(ctx, in, "", FormatText, "")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(txt.Data), "Hello World") {
		t.Errorf("text = %q", txt.Data)
	}
}

func TestConvertMarkdownFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "notes.md")
	os.WriteFile(in, []byte("# Plan\n\nSome **bold** text\n\n- one\n- two\n"), 0644)
	c := New(DefaultOptions(), nil, zap.NewNop())

	res, err := c.ConvertFile(context.Background(), in, OutputPath(in, FormatDOCX), FormatDOCX, "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Path != filepath.Join(dir, "notes.docx") {
		t.Errorf("path = %s", res.Path)
	}
	doc, err := docx.ParseBytes(res.Data)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Blocks) != 4 {
		t.Fatalf("got %d blocks, want 4: %q", len(doc.Blocks), texts(doc))
	}
	heading := doc.Blocks[0].(*docx.Paragraph)
	if doc.Styles.HeadingLevel(heading.StyleID) != 1 || heading.Text() != "Plan" {
		t.Errorf("heading = %+v", heading)
	}
	body := doc.Blocks[1].(*docx.Paragraph)
	if len(body.Runs) != 3 || !body.Runs[1].Bold || body.Runs[1].Text != "bold" {
		t.Errorf("body runs = %+v", body.Runs)
	}
	if item := doc.Blocks[2].(*docx.Paragraph); item.Numbering == nil || doc.Numbering.Ordered(item.Numbering) {
		t.Errorf("list item = %+v", item)
	}
}

func TestConvertFileErrors(t *testing.T) {
	dir := t.TempDir()
	c := New(DefaultOptions(), nil, zap.NewNop())
	ctx := context.Background()

	tests := []struct {
		name, in, to, want string
	}{
		{"unknown extension", "data.pdf", FormatHTML, "could not detect input format"},
		{"unsupported pair", "notes.txt", FormatDOCX, "unsupported conversion"},
		{"missing file", filepath.Join(dir, "missing.docx"), FormatHTML, "file not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.ConvertFile(ctx, tt.in, "", tt.to, "")
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestDetectFormat(t *testing.T) {
	tests := map[string]string{
		"a.docx":     FormatDOCX,
		"A.DOCX":     FormatDOCX,
		"b.md":       FormatMarkdown,
		"b.markdown": FormatMarkdown,
		"c.htm":      FormatHTML,
		"c.html":     FormatHTML,
		"d.txt":      FormatText,
		"e.xlsx":     "",
		"noext":      "",
	}
	for path, want := range tests {
		if got := DetectFormat(path); got != want {
			t.Errorf("DetectFormat(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestHTMLToPackageFallsBackWhenNativeWriteFails(t *testing.T) {
	base := docx.NewDocument()
	base.Blocks = []docx.Block{para("kept")}
	base.SectionXML = "<w:sectPr><w:pgSz"

	stub := &stubSecondary{data: []byte("secondary package")}
	c := New(DefaultOptions(), stub, zap.NewNop())
	ctx := context.Background()

	res, err := c.HTMLToPackageModel(ctx, "<p>kept</p>", base)
	if err != nil {
		t.Fatalf("fallback write failed: %v", err)
	}
	if res.Native || string(res.Data) != "secondary package" {
		t.Errorf("write did not fall back: %+v", res)
	}
	if n := stub.calls.Load(); n != 1 {
		t.Errorf("secondary called %d times, want 1", n)
	}

	stub.calls.Store(0)
	stub.err = errors.New("secondary down")
	_, err = c.HTMLToPackageModel(ctx, "<p>kept</p>", base)
	var ce *ConversionError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *ConversionError, got %v", err)
	}
	if ce.Op != opWrite || ce.Native == nil || ce.Secondary == nil {
		t.Errorf("incomplete error: %+v", ce)
	}
	var se *docx.SerializationError
	if !errors.As(err, &se) {
		t.Errorf("native serialization cause lost: %v", err)
	}
	if !errors.Is(err, stub.err) {
		t.Errorf("secondary cause lost: %v", err)
	}
	if n := stub.calls.Load(); n != 1 {
		t.Errorf("secondary called %d times, want 1", n)
	}
}
