// Package progress draws a single-line progress bar for long batch runs.
// It only draws on a terminal.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// Bar renders an ASCII progress bar.
type Bar struct {
	Total   int
	Current int
	Failed  int
	Label   string
	Width   int
	Enabled bool

	w  io.Writer
	mu sync.Mutex
}

// New creates a progress bar on stderr. It is disabled when stderr is not a
// terminal, when json is set, or when DOCBRIDGE_NO_PROGRESS=1.
func New(label string, total int, json bool) *Bar {
	return &Bar{
		Total:   total,
		Label:   label,
		Width:   30,
		Enabled: !json && os.Getenv("DOCBRIDGE_NO_PROGRESS") != "1" && isatty.IsTerminal(os.Stderr.Fd()),
		w:       os.Stderr,
	}
}

// NewWriter creates an enabled bar drawing to w.
func NewWriter(w io.Writer, label string, total int) *Bar {
	return &Bar{Total: total, Label: label, Width: 30, Enabled: true, w: w}
}

// Increment advances the bar by one finished item and redraws. failed marks
// the item as failed.
func (b *Bar) Increment(item string, failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.Current = min(b.Current+1, b.Total)
	if failed {
		b.Failed++
	}
	b.render(item)
}

// Finish clears the bar and prints summary.
func (b *Bar) Finish(summary string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.Enabled {
		return
	}
	fmt.Fprintf(b.w, "\r\033[K%s\n", summary)
}

func (b *Bar) render(item string) {
	if !b.Enabled {
		return
	}

	filled := 0
	if b.Total > 0 {
		filled = min(b.Current*b.Width/b.Total, b.Width)
	}
	bar := strings.Repeat("=", filled) + strings.Repeat(" ", b.Width-filled)

	failed := ""
	if b.Failed > 0 {
		failed = fmt.Sprintf(" (%d failed)", b.Failed)
	}
	fmt.Fprintf(b.w, "\r\033[K%s [%s] %d/%d%s  %s", b.Label, bar, b.Current, b.Total, failed, item)
}

// Pct returns the current percentage (0-100) of the bar.
func (b *Bar) Pct() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Total == 0 {
		return 0
	}
	return float64(b.Current) / float64(b.Total) * 100
}
