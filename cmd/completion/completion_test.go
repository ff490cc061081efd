package completion

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func testRootCmd() *cobra.Command {
	root := &cobra.Command{Use: "docbridge"}
	root.AddCommand(&cobra.Command{Use: "convert", Short: "Convert documents", Run: func(*cobra.Command, []string) {}})
	root.AddCommand(&cobra.Command{Use: "watch", Short: "Watch directories", Run: func(*cobra.Command, []string) {}})
	return root
}

func TestGenerate(t *testing.T) {
	tests := []struct {
		shell string
		want  string
	}{
		{"bash", "__start_docbridge"},
		{"zsh", "compdef"},
		{"fish", "complete -c docbridge"},
		{"powershell", "docbridge"},
	}
	for _, tt := range tests {
		t.Run(tt.shell, func(t *testing.T) {
			var buf bytes.Buffer
			if err := generate(testRootCmd(), &buf, tt.shell); err != nil {
				t.Fatal(err)
			}
			out := buf.String()
			if !strings.HasPrefix(out, "# docbridge "+tt.shell+" completion") {
				t.Errorf("missing header: %q", out[:min(len(out), 60)])
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("%s completion should contain %q", tt.shell, tt.want)
			}
		})
	}
}

func TestGenerateUnsupportedShell(t *testing.T) {
	var buf bytes.Buffer
	err := generate(testRootCmd(), &buf, "tcsh")
	if err == nil || !strings.Contains(err.Error(), "unsupported shell") {
		t.Errorf("error = %v", err)
	}
	if buf.Len() != 0 {
		t.Error("nothing should be written for an unsupported shell")
	}
}

func TestCommandWritesToOut(t *testing.T) {
	root := testRootCmd()
	root.AddCommand(NewCommand(root))
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"completion", "fish"})
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "complete -c docbridge") {
		t.Error("completion output should go to the command's writer")
	}
}
