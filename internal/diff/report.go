package diff

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Result holds a block-level comparison of two documents.
type Result struct {
	Original   string `json:"original"`
	Revised    string `json:"revised"`
	Insertions int    `json:"insertions"`
	Deletions  int    `json:"deletions"`
	Unchanged  int    `json:"unchanged"`
	Hunks      []Hunk `json:"hunks"`
}

// Hunk represents a contiguous group of changes.
type Hunk struct {
	Header string `json:"header"`
	Lines  []Line `json:"lines"`
}

// Line represents a single block in a hunk.
type Line struct {
	Type    string `json:"type"` // "insert", "delete", "context"
	Content string `json:"content"`
	OldLine int    `json:"oldLine,omitempty"`
	NewLine int    `json:"newLine,omitempty"`
}

// Blocks compares two block sequences and groups the changes into hunks with
// contextLines of surrounding blocks. A negative contextLines means 3.
func Blocks(orig, rev []string, origName, revName string, contextLines int) *Result {
	if contextLines < 0 {
		contextLines = 3
	}

	ops := Compute(orig, rev)
	result := &Result{Original: origName, Revised: revName}
	for _, op := range ops {
		switch op.Kind {
		case Equal:
			result.Unchanged++
		case Insert:
			result.Insertions++
		case Delete:
			result.Deletions++
		}
	}
	result.Hunks = buildHunks(ops, contextLines)
	return result
}

func buildHunks(ops []Op, contextLines int) []Hunk {
	type changeRange struct {
		start, end int
	}
	var changes []changeRange
	for i, op := range ops {
		if op.Kind == Equal {
			continue
		}
		if len(changes) > 0 && i-changes[len(changes)-1].end <= 2*contextLines {
			changes[len(changes)-1].end = i + 1
		} else {
			changes = append(changes, changeRange{start: i, end: i + 1})
		}
	}

	var hunks []Hunk
	for _, cr := range changes {
		start := max(cr.start-contextLines, 0)
		end := min(cr.end+contextLines, len(ops))

		oldStart, newStart := 1, 1
		for _, op := range ops[:start] {
			if op.Kind != Insert {
				oldStart++
			}
			if op.Kind != Delete {
				newStart++
			}
		}

		oldCount, newCount := 0, 0
		oldLine, newLine := oldStart, newStart
		var lines []Line
		for _, op := range ops[start:end] {
			switch op.Kind {
			case Equal:
				lines = append(lines, Line{Type: "context", Content: op.Text, OldLine: oldLine, NewLine: newLine})
				oldLine++
				newLine++
				oldCount++
				newCount++
			case Delete:
				lines = append(lines, Line{Type: "delete", Content: op.Text, OldLine: oldLine})
				oldLine++
				oldCount++
			case Insert:
				lines = append(lines, Line{Type: "insert", Content: op.Text, NewLine: newLine})
				newLine++
				newCount++
			}
		}

		hunks = append(hunks, Hunk{
			Header: fmt.Sprintf("@@ -%d,%d +%d,%d @@", oldStart, oldCount, newStart, newCount),
			Lines:  lines,
		})
	}
	return hunks
}

// FormatUnified returns the result as a unified diff, colored when useColor is set.
func (d *Result) FormatUnified(useColor bool) string {
	del := fmt.Sprint
	ins := fmt.Sprint
	hdr := fmt.Sprint
	if useColor {
		del = color.New(color.FgRed).Sprint
		ins = color.New(color.FgGreen).Sprint
		hdr = color.New(color.FgCyan).Sprint
	}

	var b strings.Builder
	fmt.Fprintf(&b, "--- %s  (%d blocks)\n", d.Original, d.Unchanged+d.Deletions)
	fmt.Fprintf(&b, "+++ %s  (%d blocks)\n", d.Revised, d.Unchanged+d.Insertions)

	for _, hunk := range d.Hunks {
		b.WriteString("\n")
		b.WriteString(hdr(hunk.Header))
		b.WriteString("\n")
		for _, line := range hunk.Lines {
			switch line.Type {
			case "context":
				b.WriteString("  " + line.Content + "\n")
			case "delete":
				b.WriteString(del("- "+line.Content) + "\n")
			case "insert":
				b.WriteString(ins("+ "+line.Content) + "\n")
			}
		}
	}

	fmt.Fprintf(&b, "\n%s\n", d.Stats())
	return b.String()
}

// Stats returns a single-line summary.
func (d *Result) Stats() string {
	return fmt.Sprintf("%d insertions, %d deletions, %d unchanged", d.Insertions, d.Deletions, d.Unchanged)
}
