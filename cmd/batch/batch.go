// Package batch provides the "docbridge batch" command.
package batch

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/klytics/docbridge/internal/batch"
	"github.com/klytics/docbridge/internal/cli"
	"github.com/klytics/docbridge/internal/output"
	"github.com/klytics/docbridge/internal/progress"
)

// NewCommand returns the batch subcommand.
func NewCommand() *cobra.Command {
	var (
		workers int
		dryRun  bool
	)

	cmd := &cobra.Command{
		Use:   "batch <manifest.yaml>",
		Short: "Run a manifest of conversions in parallel",
		Long: `Runs every job of a YAML manifest on a bounded worker pool. Paths are
relative to the manifest file.

Example manifest:
  name: site
  out_dir: public/${{ date.today }}
  standalone: true
  on_failure: continue   # or stop
  jobs:
    - id: docs
      input: docs/*.docx
      to: html
    - id: edited
      input: edited/report.html
      base: docs/report.docx
      to: docx
      output: final/report.docx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env := cli.From(cmd)

			m, err := batch.LoadManifest(args[0])
			if err != nil {
				return env.Fail("batch", err, output.ExitUserError)
			}
			dir := filepath.Dir(args[0])
			tasks, err := m.Plan(dir)
			if err != nil {
				return env.Fail("batch", err, output.ExitUserError)
			}

			if dryRun {
				if env.JSON {
					return output.PrintJSON("batch", tasks)
				}
				for _, t := range tasks {
					fmt.Printf("[%s] %s → %s\n", t.JobID, t.Input, t.Output)
				}
				return nil
			}

			if !cmd.Flags().Changed("workers") {
				workers = env.Config.Batch.Workers
			}
			runner := batch.NewRunner(env.Converter(env.ConvertOptions()), workers, env.Log)
			bar := progress.New(m.Name, len(tasks), env.JSON)
			switch {
			case bar.Enabled:
				runner.Progress = func(done, total int, r batch.Result) {
					bar.Increment(filepath.Base(r.Input), r.Status == batch.StatusError)
				}
			case !env.JSON:
				runner.Progress = func(done, total int, r batch.Result) {
					switch r.Status {
					case batch.StatusOK:
						output.Status(os.Stderr, "[%d/%d] %s → %s", done, total, r.Input, r.Output)
					case batch.StatusError:
						output.Fail(os.Stderr, "[%d/%d] %s: %s", done, total, r.Input, r.Error)
					default:
						output.Warn(os.Stderr, "[%d/%d] %s: skipped", done, total, r.Input)
					}
				}
			}

			results, runErr := runner.Run(cmd.Context(), m, dir)
			ok, failed, skipped := batch.Summary(results)
			bar.Finish(fmt.Sprintf("%s: %d/%d converted", m.Name, ok, len(results)))
			if bar.Enabled {
				for _, r := range results {
					if r.Status == batch.StatusError {
						output.Fail(os.Stderr, "%s: %s", r.Input, r.Error)
					}
				}
			}
			if env.JSON {
				if runErr != nil {
					return env.Fail("batch", runErr, output.ExitSystemError)
				}
				return output.PrintJSON("batch", results)
			}
			fmt.Printf("\nProcessed %d files. %d succeeded, %d failed, %d skipped.\n", len(results), ok, failed, skipped)
			if runErr != nil {
				return runErr
			}
			if failed > 0 {
				return fmt.Errorf("%d conversion(s) failed", failed)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 4, "Number of parallel workers")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List the planned conversions without running them")

	return cmd
}
