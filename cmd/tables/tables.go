// Package tables provides the "docbridge tables" command.
package tables

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/klytics/docbridge/internal/cli"
	"github.com/klytics/docbridge/internal/formats/docx"
	"github.com/klytics/docbridge/internal/formats/xlsx"
	"github.com/klytics/docbridge/internal/output"
)

// NewCommand returns the tables command.
func NewCommand() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "tables <file.docx>",
		Short: "Export the tables of a document",
		Long: `Exports every top-level table of a .docx document. With -o file.xlsx each
table becomes a worksheet; with -o file.csv or no -o the tables are written
as CSV, separated by blank lines.

Examples:
  docbridge tables report.docx
  docbridge tables report.docx -o report-tables.xlsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env := cli.From(cmd)

			doc, err := docx.ParseFile(args[0])
			if err != nil {
				return env.Fail("tables", err, output.ExitSystemError)
			}
			wb := xlsx.FromDocument(doc)
			if len(wb.Sheets) == 0 {
				return env.Fail("tables", fmt.Errorf("%s has no tables", args[0]), output.ExitUserError)
			}

			if env.JSON && outPath == "" {
				return output.PrintJSON("tables", wb)
			}

			switch strings.ToLower(filepath.Ext(outPath)) {
			case ".xlsx":
				if err := xlsx.WriteFile(wb, outPath); err != nil {
					return env.Fail("tables", err, output.ExitSystemError)
				}
			case ".csv", "":
				var b strings.Builder
				for i, s := range wb.Sheets {
					if i > 0 {
						b.WriteString("\n")
					}
					text, err := s.ToCSV()
					if err != nil {
						return env.Fail("tables", err, output.ExitSystemError)
					}
					b.WriteString(text)
				}
				if outPath == "" {
					fmt.Print(b.String())
					return nil
				}
				if err := os.WriteFile(outPath, []byte(b.String()), 0644); err != nil {
					return env.Fail("tables", err, output.ExitSystemError)
				}
			default:
				return env.Fail("tables", fmt.Errorf("unsupported output %q: use .xlsx or .csv", outPath), output.ExitUserError)
			}

			if env.JSON {
				return output.PrintJSON("tables", map[string]any{"output": outPath, "tables": len(wb.Sheets)})
			}
			output.Status(os.Stderr, "Exported %d table(s) → %s", len(wb.Sheets), outPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Output file (.xlsx or .csv)")
	return cmd
}
