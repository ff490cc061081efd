// Package shell provides the "docbridge shell" interactive edit session.
package shell

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/klytics/docbridge/internal/cli"
	shellpkg "github.com/klytics/docbridge/internal/shell"
)

// NewCommand creates the "shell" command.
func NewCommand() *cobra.Command {
	var (
		evalCmd string
		open    string
	)

	cmd := &cobra.Command{
		Use:   "shell [file.docx]",
		Short: "Edit a document as HTML in an interactive session",
		Long: `Start an interactive session that opens a .docx as HTML, lets you change the
HTML, and saves it back against the original so content HTML cannot show
is kept.

Examples:
  docbridge shell report.docx
  docbridge shell report.docx --eval "replace Draft => Final"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env := cli.From(cmd)
			session, err := shellpkg.NewSession(env.ConvertOptions(), env.Log)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				open = args[0]
			}
			if open != "" {
				out, err := session.Eval(cmd.Context(), "open "+open)
				if err != nil {
					return err
				}
				fmt.Fprint(os.Stderr, out)
			}
			if evalCmd != "" {
				out, err := session.Eval(cmd.Context(), evalCmd)
				if err != nil {
					return err
				}
				fmt.Print(out)
				return nil
			}
			return session.Run(cmd.Context(), os.Stdout)
		},
	}

	cmd.Flags().StringVar(&evalCmd, "eval", "", "Run a single command and exit")
	return cmd
}
