package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, "convert", map[string]string{"output": "a.html"}); err != nil {
		t.Fatal(err)
	}
	var got JSONResult
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if !got.OK || got.Command != "convert" || got.Version == "" {
		t.Errorf("envelope = %+v", got)
	}
	if data, _ := got.Data.(map[string]any); data["output"] != "a.html" {
		t.Errorf("data = %v", got.Data)
	}
}

func TestWriteJSONError(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSONError(&buf, "convert", errors.New("boom"), ExitSystemError); err != nil {
		t.Fatal(err)
	}
	var got JSONResult
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.OK || got.Error != "boom" || got.Code != ExitSystemError {
		t.Errorf("envelope = %+v", got)
	}
	if strings.Contains(buf.String(), `"data"`) {
		t.Error("empty data should be omitted")
	}
}

func TestStatusLines(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	Status(&buf, "Converted %s", "a.docx")
	Warn(&buf, "%d warnings", 2)
	Fail(&buf, "failed")

	want := "✓ Converted a.docx\n! 2 warnings\n✗ failed\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}
