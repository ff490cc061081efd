// Package diff provides the docbridge diff command for comparing documents.
package diff

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/klytics/docbridge/internal/cli"
	dif "github.com/klytics/docbridge/internal/diff"
	"github.com/klytics/docbridge/internal/formats/docx"
	"github.com/klytics/docbridge/internal/output"
)

// NewCommand returns the diff command.
func NewCommand() *cobra.Command {
	var (
		contextLines int
		stats        bool
	)

	cmd := &cobra.Command{
		Use:   "diff <original.docx> <revised.docx>",
		Short: "Compare two Word documents block by block",
		Long: `Shows a colored unified diff of block-level changes between two .docx files.
Paragraphs compare by text; tables compare row by row.

Examples:
  docbridge diff original.docx revised.docx
  docbridge diff original.docx revised.docx --stats`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			env := cli.From(cmd)

			var blocks [2][]string
			for i, p := range args {
				if !strings.HasSuffix(strings.ToLower(p), ".docx") {
					return env.Fail("diff", fmt.Errorf("expected a .docx file, got %q", p), output.ExitUserError)
				}
				doc, err := docx.ParseFile(p)
				if err != nil {
					return env.Fail("diff", err, output.ExitSystemError)
				}
				blocks[i] = BlockTexts(doc)
			}

			result := dif.Blocks(blocks[0], blocks[1], args[0], args[1], contextLines)
			if env.JSON {
				return output.PrintJSON("diff", result)
			}
			if stats {
				fmt.Println(result.Stats())
				return nil
			}
			fmt.Fprint(os.Stdout, result.FormatUnified(true))
			return nil
		},
	}

	cmd.Flags().IntVarP(&contextLines, "context", "C", 3, "Number of context blocks around each change")
	cmd.Flags().BoolVar(&stats, "stats", false, "Show only insertion/deletion counts")

	return cmd
}

// BlockTexts renders each top-level block as one comparable line.
func BlockTexts(doc *docx.Document) []string {
	out := make([]string, 0, len(doc.Blocks))
	for _, b := range doc.Blocks {
		switch v := b.(type) {
		case *docx.Paragraph:
			out = append(out, v.Text())
		case *docx.Table:
			rows := make([]string, 0, len(v.Rows))
			for _, r := range v.Rows {
				cells := make([]string, 0, len(r.Cells))
				for _, c := range r.Cells {
					var parts []string
					for i := range c.Paragraphs {
						parts = append(parts, c.Paragraphs[i].Text())
					}
					cells = append(cells, strings.Join(parts, " "))
				}
				rows = append(rows, strings.Join(cells, " | "))
			}
			out = append(out, "[table] "+strings.Join(rows, " / "))
		}
	}
	return out
}
