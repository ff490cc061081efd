// Package shell provides the interactive docbridge edit session: open a
// .docx as HTML, change the HTML, and save it back against the original.
package shell

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"go.uber.org/zap"

	"github.com/klytics/docbridge/internal/formats/convert"
	"github.com/klytics/docbridge/internal/formats/docx"
)

// Session manages an interactive edit session. One document is open at a
// time; its original bytes are kept as the base for saving.
type Session struct {
	Path           string // the open .docx, empty when none
	HTML           string // current editable HTML
	Native         bool   // whether HTML came from the native converter
	Warnings       []docx.Warning
	CommandHistory []string
	HistoryFile    string
	StartTime      time.Time

	base []byte
	opts convert.Options
	conv *convert.Converter
	log  *zap.Logger
}

// commands are the shell built-ins, used for help and completion.
var commands = []string{
	"open", "show", "load", "replace", "save", "export",
	"native", "warnings", "status", "history", "help", "exit", "quit",
}

// NewSession creates a session converting with opts.
func NewSession(opts convert.Options, log *zap.Logger) (*Session, error) {
	home, _ := os.UserHomeDir()
	histFile := filepath.Join(home, ".docbridge", "shell_history")

	// Ensure parent dir exists
	os.MkdirAll(filepath.Dir(histFile), 0755)

	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		HistoryFile: histFile,
		StartTime:   time.Now(),
		opts:        opts,
		conv:        convert.New(opts, nil, log),
		log:         log,
	}, nil
}

// Run starts the REPL loop. Blocks until 'exit' or Ctrl+D.
func (s *Session) Run(ctx context.Context, out io.Writer) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "docbridge> ",
		HistoryFile:     s.HistoryFile,
		AutoComplete:    readline.NewPrefixCompleter(s.buildCompleter()...),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	fmt.Fprintln(out, "docbridge edit session")
	fmt.Fprintln(out, "Type 'help' for commands, 'exit' to quit.")
	fmt.Fprintln(out)

	for {
		line, err := rl.Readline()
		if err != nil { // io.EOF or interrupt
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			fmt.Fprintf(out, "\nSession ended. %d commands run in %s.\n",
				len(s.CommandHistory), formatDuration(time.Since(s.StartTime)))
			return nil
		}

		output, err := s.Eval(ctx, line)
		if err != nil {
			fmt.Fprintf(rl.Stderr(), "Error: %s\n", err)
			continue
		}
		if output != "" {
			fmt.Fprint(out, output)
			if !strings.HasSuffix(output, "\n") {
				fmt.Fprintln(out)
			}
		}
	}
}

// Eval runs one shell command and returns its output.
func (s *Session) Eval(ctx context.Context, line string) (string, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", nil
	}
	s.CommandHistory = append(s.CommandHistory, line)

	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	switch name {
	case "open":
		return s.open(ctx, rest)
	case "show":
		if err := s.requireOpen(); err != nil {
			return "", err
		}
		return s.HTML, nil
	case "load":
		return s.load(rest)
	case "replace":
		return s.replace(rest)
	case "save":
		return s.save(ctx, rest)
	case "export":
		return s.export(rest)
	case "native":
		return s.native(rest)
	case "warnings":
		return s.warnings(), nil
	case "status":
		return s.status(), nil
	case "history":
		var b strings.Builder
		for i, cmd := range s.CommandHistory {
			fmt.Fprintf(&b, "  %d  %s\n", i+1, cmd)
		}
		return b.String(), nil
	case "help":
		return helpText, nil
	default:
		return "", fmt.Errorf("unknown command %q, type 'help'", name)
	}
}

func (s *Session) requireOpen() error {
	if s.HTML == "" && s.Path == "" {
		return fmt.Errorf("no document open, use 'open <file.docx>'")
	}
	return nil
}

func (s *Session) open(ctx context.Context, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("usage: open <file.docx>")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("could not read %s: %w", path, err)
	}
	res, err := s.conv.PackageToHTML(ctx, data)
	if err != nil {
		return "", err
	}
	s.Path, s.base = path, data
	s.HTML, s.Native, s.Warnings = res.HTML, res.Native, res.Warnings

	msg := fmt.Sprintf("Opened %s", path)
	if !res.Native {
		msg += " (secondary converter: text structure only)"
	}
	if n := len(res.Warnings); n > 0 {
		msg += fmt.Sprintf(", %d warning(s)", n)
	}
	return msg + "\n", nil
}

func (s *Session) load(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("usage: load <file.html>")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("could not read %s: %w", path, err)
	}
	s.HTML = string(data)
	return fmt.Sprintf("Loaded %d bytes of HTML from %s\n", len(data), path), nil
}

// replace applies "old => new" to the first occurrence of old.
func (s *Session) replace(arg string) (string, error) {
	if err := s.requireOpen(); err != nil {
		return "", err
	}
	old, repl, ok := strings.Cut(arg, "=>")
	old, repl = strings.TrimSpace(old), strings.TrimSpace(repl)
	if !ok || old == "" {
		return "", fmt.Errorf("usage: replace <old> => <new>")
	}
	if !strings.Contains(s.HTML, old) {
		return "", fmt.Errorf("%q not found", old)
	}
	s.HTML = strings.Replace(s.HTML, old, repl, 1)
	return "Replaced 1 occurrence\n", nil
}

func (s *Session) save(ctx context.Context, path string) (string, error) {
	if err := s.requireOpen(); err != nil {
		return "", err
	}
	if path == "" {
		path = s.Path
	}
	if path == "" {
		return "", fmt.Errorf("usage: save <file.docx>")
	}
	res, err := s.conv.HTMLToPackage(ctx, s.HTML, s.base)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, res.Data, 0644); err != nil {
		return "", fmt.Errorf("could not write %s: %w", path, err)
	}
	s.Warnings = res.Warnings
	s.log.Debug("saved", zap.String("path", path), zap.Bool("native", res.Native))
	return fmt.Sprintf("Saved %s (%d bytes)\n", path, len(res.Data)), nil
}

func (s *Session) export(path string) (string, error) {
	if err := s.requireOpen(); err != nil {
		return "", err
	}
	if path == "" {
		return "", fmt.Errorf("usage: export <file.html>")
	}
	if err := os.WriteFile(path, []byte(s.HTML), 0644); err != nil {
		return "", fmt.Errorf("could not write %s: %w", path, err)
	}
	return fmt.Sprintf("Exported %s\n", path), nil
}

// native toggles the preferred path for both directions.
func (s *Session) native(arg string) (string, error) {
	switch arg {
	case "on":
		s.opts.PreferNativeRead, s.opts.PreferNativeWrite = true, true
	case "off":
		s.opts.PreferNativeRead, s.opts.PreferNativeWrite = false, false
	case "":
		return fmt.Sprintf("native read: %v, native write: %v\n", s.opts.PreferNativeRead, s.opts.PreferNativeWrite), nil
	default:
		return "", fmt.Errorf("usage: native [on|off]")
	}
	s.conv = s.conv.WithOptions(s.opts)
	return fmt.Sprintf("Native converter %s\n", arg), nil
}

func (s *Session) warnings() string {
	if len(s.Warnings) == 0 {
		return "No warnings\n"
	}
	var b strings.Builder
	for _, w := range s.Warnings {
		fmt.Fprintf(&b, "  %s\n", w)
	}
	return b.String()
}

func (s *Session) status() string {
	if s.Path == "" && s.HTML == "" {
		return "No document open\n"
	}
	source := "native"
	if !s.Native {
		source = "secondary"
	}
	return fmt.Sprintf("%s: %d bytes of HTML (%s), %d warning(s)\n", s.Path, len(s.HTML), source, len(s.Warnings))
}

// Complete returns tab-completion candidates for the given input.
func (s *Session) Complete(input string) []string {
	input = strings.TrimSpace(input)
	if input == "" {
		return commands
	}
	parts := strings.Fields(input)
	if len(parts) == 1 {
		var matches []string
		for _, cmd := range commands {
			if strings.HasPrefix(cmd, parts[0]) {
				matches = append(matches, cmd)
			}
		}
		sort.Strings(matches)
		return matches
	}
	if parts[0] == "native" && len(parts) == 2 {
		var matches []string
		for _, v := range []string{"on", "off"} {
			if strings.HasPrefix(v, parts[1]) {
				matches = append(matches, v)
			}
		}
		return matches
	}
	return nil
}

const helpText = `Commands:
  open <file.docx>        open a document for editing
  show                    print the current HTML
  load <file.html>        replace the current HTML with a file
  replace <old> => <new>  edit the HTML in place
  save [file.docx]        write the HTML back, keeping what HTML cannot show
  export <file.html>      write the current HTML to a file
  native [on|off]         prefer the native converter (default on)
  warnings                list fidelity warnings from the last conversion
  status                  show the open document
  history                 show command history
  exit                    leave the shell
`

func (s *Session) buildCompleter() []readline.PrefixCompleterInterface {
	var items []readline.PrefixCompleterInterface
	for _, cmd := range commands {
		switch cmd {
		case "native":
			items = append(items, readline.PcItem(cmd, readline.PcItem("on"), readline.PcItem("off")))
		default:
			items = append(items, readline.PcItem(cmd))
		}
	}
	return items
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm %ds", m, s)
}
