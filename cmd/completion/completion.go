// Package completion provides shell completion generation commands.
package completion

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var installHints = map[string]string{
	"bash":       "docbridge completion bash > /etc/bash_completion.d/docbridge",
	"zsh":        "docbridge completion zsh > ~/.zsh/completions/_docbridge",
	"fish":       "docbridge completion fish > ~/.config/fish/completions/docbridge.fish",
	"powershell": "docbridge completion powershell >> $PROFILE",
}

// NewCommand returns the completion command.
func NewCommand(rootCmd *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completions",
		Long: `Generate shell completion scripts for docbridge.

Install:
  Bash:       ` + installHints["bash"] + `
  Zsh:        ` + installHints["zsh"] + `
  Fish:       ` + installHints["fish"] + `
  PowerShell: ` + installHints["powershell"],
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		Args:      cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return generate(rootCmd, cmd.OutOrStdout(), args[0])
		},
	}
}

func generate(root *cobra.Command, w io.Writer, shell string) error {
	hint, ok := installHints[shell]
	if !ok {
		return fmt.Errorf("unsupported shell: %s (supported: bash, zsh, fish, powershell)", shell)
	}
	fmt.Fprintf(w, "# docbridge %s completion\n# Install: %s\n\n", shell, hint)

	switch shell {
	case "bash":
		return root.GenBashCompletionV2(w, true)
	case "zsh":
		return root.GenZshCompletion(w)
	case "fish":
		return root.GenFishCompletion(w, true)
	default:
		return root.GenPowerShellCompletionWithDesc(w)
	}
}
