package shell

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klytics/docbridge/internal/formats/convert"
	"github.com/klytics/docbridge/internal/formats/docx"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	s, err := NewSession(convert.DefaultOptions(), nil)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	return s
}

func writeDocx(t *testing.T, dir string, texts ...string) string {
	t.Helper()
	doc := docx.NewDocument()
	for _, text := range texts {
		doc.Blocks = append(doc.Blocks, &docx.Paragraph{Runs: []docx.Run{{Text: text}}})
	}
	data, err := docx.Serialize(doc)
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	path := filepath.Join(dir, "doc.docx")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func paragraphs(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	doc, err := docx.ParseBytes(data)
	if err != nil {
		t.Fatalf("ParseBytes failed: %v", err)
	}
	var out []string
	for _, b := range doc.Blocks {
		if p, ok := b.(*docx.Paragraph); ok {
			out = append(out, p.Text())
		}
	}
	return out
}

func TestNewSession(t *testing.T) {
	s := newTestSession(t)
	if !strings.HasSuffix(s.HistoryFile, filepath.Join(".docbridge", "shell_history")) {
		t.Errorf("HistoryFile = %q", s.HistoryFile)
	}
	if s.Path != "" || s.HTML != "" {
		t.Error("new session should have no document open")
	}
}

func TestEvalEditRoundTrip(t *testing.T) {
	dir := t.TempDir()
	in := writeDocx(t, dir, "Hello", "World")
	s := newTestSession(t)
	ctx := context.Background()

	out, err := s.Eval(ctx, "open "+in)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if !strings.Contains(out, "Opened") {
		t.Errorf("open output = %q", out)
	}
	if !s.Native {
		t.Error("expected native conversion")
	}

	shown, err := s.Eval(ctx, "show")
	if err != nil || !strings.Contains(shown, "World") {
		t.Fatalf("show = %q, %v", shown, err)
	}

	if _, err := s.Eval(ctx, "replace World => Gophers"); err != nil {
		t.Fatalf("replace failed: %v", err)
	}

	saved := filepath.Join(dir, "edited.docx")
	if _, err := s.Eval(ctx, "save "+saved); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	got := paragraphs(t, saved)
	if len(got) != 2 || got[0] != "Hello" || got[1] != "Gophers" {
		t.Errorf("saved paragraphs = %q", got)
	}
}

func TestEvalLoadAndExport(t *testing.T) {
	dir := t.TempDir()
	in := writeDocx(t, dir, "One")
	s := newTestSession(t)
	ctx := context.Background()

	if _, err := s.Eval(ctx, "open "+in); err != nil {
		t.Fatal(err)
	}
	htmlPath := filepath.Join(dir, "edit.html")
	if err := os.WriteFile(htmlPath, []byte("<p>One</p><p>Two</p>"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Eval(ctx, "load "+htmlPath); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	exported := filepath.Join(dir, "out.html")
	if _, err := s.Eval(ctx, "export "+exported); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	data, _ := os.ReadFile(exported)
	if string(data) != "<p>One</p><p>Two</p>" {
		t.Errorf("exported = %q", data)
	}

	// save without a path overwrites the open file
	if _, err := s.Eval(ctx, "save"); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if got := paragraphs(t, in); len(got) != 2 || got[1] != "Two" {
		t.Errorf("paragraphs = %q", got)
	}
}

func TestEvalErrors(t *testing.T) {
	s := newTestSession(t)
	ctx := context.Background()
	missing := filepath.Join(t.TempDir(), "missing.docx")

	tests := []struct {
		line string
		want string
	}{
		{"show", "no document open"},
		{"save", "no document open"},
		{"replace a => b", "no document open"},
		{"open", "usage"},
		{"open " + missing, "could not read"},
		{"native maybe", "usage"},
		{"frobnicate", "unknown command"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			_, err := s.Eval(ctx, tt.line)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Eval(%q) error = %v, want %q", tt.line, err, tt.want)
			}
		})
	}
}

func TestEvalReplaceNotFound(t *testing.T) {
	s := newTestSession(t)
	s.HTML = "<p>x</p>"
	if _, err := s.Eval(context.Background(), "replace y => z"); err == nil {
		t.Error("expected error for missing text")
	}
	if _, err := s.Eval(context.Background(), "replace => z"); err == nil {
		t.Error("expected usage error")
	}
}

func TestEvalNativeToggle(t *testing.T) {
	s := newTestSession(t)
	ctx := context.Background()

	if _, err := s.Eval(ctx, "native off"); err != nil {
		t.Fatal(err)
	}
	out, _ := s.Eval(ctx, "native")
	if !strings.Contains(out, "native read: false") {
		t.Errorf("native = %q", out)
	}

	in := writeDocx(t, t.TempDir(), "Plain")
	if _, err := s.Eval(ctx, "open "+in); err != nil {
		t.Fatal(err)
	}
	if s.Native {
		t.Error("expected secondary conversion with native off")
	}
	if status, _ := s.Eval(ctx, "status"); !strings.Contains(status, "secondary") {
		t.Errorf("status = %q", status)
	}
}

func TestEvalWarningsAndStatus(t *testing.T) {
	s := newTestSession(t)
	ctx := context.Background()
	if out, _ := s.Eval(ctx, "status"); out != "No document open\n" {
		t.Errorf("status = %q", out)
	}
	if out, _ := s.Eval(ctx, "warnings"); out != "No warnings\n" {
		t.Errorf("warnings = %q", out)
	}
	s.Warnings = []docx.Warning{{Code: "nested-table", Message: "flattened"}}
	if out, _ := s.Eval(ctx, "warnings"); !strings.Contains(out, "nested-table: flattened") {
		t.Errorf("warnings = %q", out)
	}
}

func TestHistoryGrows(t *testing.T) {
	s := newTestSession(t)
	ctx := context.Background()
	s.Eval(ctx, "help")
	s.Eval(ctx, "status")
	out, _ := s.Eval(ctx, "history")
	if len(s.CommandHistory) != 3 {
		t.Errorf("history length = %d, want 3", len(s.CommandHistory))
	}
	if !strings.Contains(out, "1  help") || !strings.Contains(out, "2  status") {
		t.Errorf("history = %q", out)
	}
}

func TestComplete(t *testing.T) {
	s := newTestSession(t)
	tests := []struct {
		input string
		want  []string
	}{
		{"s", []string{"save", "show", "status"}},
		{"ex", []string{"exit", "export"}},
		{"native o", []string{"on", "off"}},
		{"native of", []string{"off"}},
		{"open foo", nil},
	}
	for _, tt := range tests {
		got := s.Complete(tt.input)
		if strings.Join(got, ",") != strings.Join(tt.want, ",") {
			t.Errorf("Complete(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
	if len(s.Complete("")) != len(commands) {
		t.Error("empty input should list all commands")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{5 * time.Second, "5s"},
		{90 * time.Second, "1m 30s"},
		{0, "0s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
