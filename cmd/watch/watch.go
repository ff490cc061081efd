// Package watch provides the "docbridge watch" command.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/klytics/docbridge/internal/cli"
	"github.com/klytics/docbridge/internal/formats/convert"
	"github.com/klytics/docbridge/internal/output"
	w "github.com/klytics/docbridge/internal/watch"
)

// NewCommand creates the "watch" command.
func NewCommand() *cobra.Command {
	var (
		recursive  bool
		debounce   int
		outDir     string
		standalone bool
	)

	cmd := &cobra.Command{
		Use:   "watch <directory> [directory...]",
		Short: "Convert .docx files to HTML whenever they change",
		Long: `Watch directories and convert every created or modified .docx file to an
.html file next to it (or in --out-dir). When a file changes again while it is
still being converted, the older conversion is canceled and its result is
never written.

Example:
  docbridge watch ./contracts --recursive --standalone`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env := cli.From(cmd)

			opts := env.ConvertOptions()
			if cmd.Flags().Changed("standalone") {
				opts.Standalone = standalone
			}
			c := env.Converter(opts)

			if !cmd.Flags().Changed("debounce") {
				debounce = env.Config.Watch.DebounceMS
			}
			cfg := w.Config{
				Directories: args,
				Recursive:   recursive,
				Debounce:    time.Duration(debounce) * time.Millisecond,
			}

			watcher, err := w.New(cfg, Handler(c, outDir), env.Log)
			if err != nil {
				return env.Fail("watch", err, output.ExitSystemError)
			}

			var mu sync.Mutex
			watcher.OnEvent = func(e w.Event) {
				mu.Lock()
				defer mu.Unlock()
				if env.JSON {
					output.PrintJSON("watch", e)
					return
				}
				switch e.Status {
				case "converted":
					output.Status(os.Stdout, "%s", e.Path)
				case "superseded":
					output.Warn(os.Stdout, "%s: superseded by a newer change", e.Path)
				default:
					output.Fail(os.Stdout, "%s: %s", e.Path, e.Error)
				}
			}

			if !env.JSON {
				fmt.Printf("Watching %s for .docx changes\n", strings.Join(args, ", "))
				fmt.Println("Press Ctrl+C to stop")
			}
			if err := watcher.Start(cmd.Context()); err != nil {
				return env.Fail("watch", err, output.ExitSystemError)
			}

			if !env.JSON {
				fmt.Printf("\nStopped after %d event(s)\n", watcher.GetStatus().EventCount)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Watch directories recursively")
	cmd.Flags().IntVar(&debounce, "debounce", 300, "Debounce interval in milliseconds")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "Write HTML files here instead of next to the source")
	cmd.Flags().BoolVar(&standalone, "standalone", false, "Wrap HTML output in a complete page")

	return cmd
}

// Handler converts the .docx at path to HTML. The write happens in the
// returned commit, so a superseded conversion never touches the output.
func Handler(c *convert.Converter, outDir string) w.Handler {
	return func(ctx context.Context, path string) (func() error, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		res, err := c.PackageToHTML(ctx, data)
		if err != nil {
			return nil, err
		}

		dest := convert.OutputPath(path, convert.FormatHTML)
		if outDir != "" {
			dest = filepath.Join(outDir, filepath.Base(dest))
		}
		return func() error {
			if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
				return err
			}
			return os.WriteFile(dest, []byte(res.HTML), 0644)
		}, nil
	}
}
