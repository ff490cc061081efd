// Package convert provides the "docbridge convert" CLI command.
package convert

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/klytics/docbridge/internal/cli"
	conv "github.com/klytics/docbridge/internal/formats/convert"
	"github.com/klytics/docbridge/internal/output"
)

type convertResult struct {
	Input    string   `json:"input"`
	Output   string   `json:"output,omitempty"`
	Format   string   `json:"format"`
	Native   bool     `json:"native"`
	Warnings []string `json:"warnings,omitempty"`
}

// NewCommand creates the "convert" command.
func NewCommand() *cobra.Command {
	var (
		toFmt      string
		outPath    string
		outDir     string
		base       string
		secondary  bool
		standalone bool
		title      string
	)

	cmd := &cobra.Command{
		Use:   "convert <file> --to <format>",
		Short: "Convert between .docx, HTML and Markdown",
		Long: `Convert documents with the native converter, falling back once to the
text-only secondary converter when the native path fails.

Supported conversions:
  .docx → .html, .md, .txt
  .html → .docx   (use --base to keep what HTML cannot show)
  .md   → .docx, .html

Examples:
  docbridge convert report.docx --to html --standalone
  docbridge convert report.html --to docx --base report.docx -o report-edited.docx
  docbridge convert '*.docx' --to html --out-dir ./site/`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env := cli.From(cmd)
			if toFmt == "" {
				return env.Fail("convert", fmt.Errorf("--to is required (html, docx, md, txt)"), output.ExitUserError)
			}

			opts := env.ConvertOptions()
			if secondary {
				opts.PreferNativeRead, opts.PreferNativeWrite = false, false
			}
			if cmd.Flags().Changed("standalone") {
				opts.Standalone = standalone
			}
			opts.Title = title
			c := env.Converter(opts)

			inputs := []string{args[0]}
			if strings.ContainsAny(args[0], "*?[") {
				matches, err := filepath.Glob(args[0])
				if err != nil {
					return env.Fail("convert", fmt.Errorf("invalid pattern: %w", err), output.ExitUserError)
				}
				if len(matches) == 0 {
					return env.Fail("convert", fmt.Errorf("no files matched %q", args[0]), output.ExitUserError)
				}
				inputs = matches
				if outPath != "" {
					return env.Fail("convert", fmt.Errorf("--output cannot be used with a pattern, use --out-dir"), output.ExitUserError)
				}
			}

			var results []convertResult
			for _, in := range inputs {
				dest := destination(in, outPath, outDir, toFmt, len(inputs) > 1)
				res, err := c.ConvertFile(cmd.Context(), in, dest, toFmt, base)
				if err != nil {
					if len(inputs) > 1 {
						output.Fail(os.Stderr, "could not convert %s: %v", in, err)
						continue
					}
					return env.Fail("convert", err, output.ExitSystemError)
				}

				r := convertResult{Input: in, Output: res.Path, Format: toFmt, Native: res.Native}
				for _, w := range res.Warnings {
					r.Warnings = append(r.Warnings, w.String())
				}
				results = append(results, r)

				if env.JSON {
					continue
				}
				if res.Path == "" {
					os.Stdout.Write(res.Data)
				} else {
					output.Status(os.Stderr, "Converted: %s → %s", in, res.Path)
				}
				if !res.Native {
					output.Warn(os.Stderr, "%s: converted by the secondary converter, text structure only", in)
				}
				cli.PrintWarnings(os.Stderr, res.Warnings)
			}

			if env.JSON {
				if len(results) == 1 {
					return output.PrintJSON("convert", results[0])
				}
				return output.PrintJSON("convert", results)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&toFmt, "to", "", "Target format (html, docx, md, txt)")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Output file path")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "Output directory for pattern conversion")
	cmd.Flags().StringVar(&base, "base", "", "Original .docx the HTML was produced from")
	cmd.Flags().BoolVar(&secondary, "secondary", false, "Use only the secondary converter")
	cmd.Flags().BoolVar(&standalone, "standalone", false, "Wrap HTML output in a complete page")
	cmd.Flags().StringVar(&title, "title", "", "Page title for --standalone")

	return cmd
}

// destination picks the output path. Text output of a single file goes to
// stdout unless a path is given; .docx output always goes to a file.
func destination(in, outPath, outDir, to string, many bool) string {
	switch {
	case outPath != "":
		return outPath
	case outDir != "":
		return filepath.Join(outDir, filepath.Base(conv.OutputPath(in, to)))
	case many || to == conv.FormatDOCX:
		return conv.OutputPath(in, to)
	default:
		return ""
	}
}
