// Package cmd contains all CLI commands for the docbridge binary.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/klytics/docbridge/cmd/batch"
	"github.com/klytics/docbridge/cmd/completion"
	cmdconfig "github.com/klytics/docbridge/cmd/config"
	"github.com/klytics/docbridge/cmd/convert"
	"github.com/klytics/docbridge/cmd/diff"
	"github.com/klytics/docbridge/cmd/doctor"
	"github.com/klytics/docbridge/cmd/shell"
	"github.com/klytics/docbridge/cmd/tables"
	"github.com/klytics/docbridge/cmd/version"
	cmdwatch "github.com/klytics/docbridge/cmd/watch"
	"github.com/klytics/docbridge/internal/cli"
)

var (
	jsonOutput bool
	verbose    bool
	noColor    bool
)

// NewRootCommand creates and returns the root cobra command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "docbridge",
		Short: "Convert Word documents to HTML and back",
		Long: `docbridge converts .docx documents to editable HTML and writes edited HTML
back to .docx, keeping what HTML cannot show from the original document.

A native converter handles both directions; a text-only secondary converter
takes over once when the native path fails.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cli.Setup(cmd)
		},
	}

	// Global persistent flags
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as machine-readable JSON")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable ANSI color output")

	// Register subcommands
	rootCmd.AddCommand(convert.NewCommand())
	rootCmd.AddCommand(diff.NewCommand())
	rootCmd.AddCommand(cmdwatch.NewCommand())
	rootCmd.AddCommand(shell.NewCommand())
	rootCmd.AddCommand(batch.NewCommand())
	rootCmd.AddCommand(tables.NewCommand())
	rootCmd.AddCommand(cmdconfig.NewCommand())
	rootCmd.AddCommand(doctor.NewCommand())
	rootCmd.AddCommand(completion.NewCommand(rootCmd))
	rootCmd.AddCommand(version.NewCommand())

	return rootCmd
}

// Execute runs the root command and handles any returned errors. SIGINT and
// SIGTERM cancel the command's context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		stop()
		os.Exit(1)
	}
}
