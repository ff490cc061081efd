// Package doctor provides the "docbridge doctor" command for checking that
// the configuration and both converters work.
package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/docbridge/internal/cli"
	"github.com/klytics/docbridge/internal/config"
	"github.com/klytics/docbridge/internal/formats/convert"
	"github.com/klytics/docbridge/internal/formats/docx"
	"github.com/klytics/docbridge/internal/output"
)

// Check represents a single health check result.
type Check struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // "ok", "warning", "error"
	Message string `json:"message"`
}

// NewCommand creates the "doctor" command.
func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and converter health",
		Long:  "Run diagnostic checks and a round trip through both converters.",
		RunE: func(cmd *cobra.Command, args []string) error {
			env := cli.From(cmd)
			checks := RunChecks(cmd.Context(), true)

			if env.JSON {
				return output.PrintJSON("doctor", checks)
			}

			green := color.New(color.FgGreen).SprintFunc()
			yellow := color.New(color.FgYellow).SprintFunc()
			red := color.New(color.FgRed).SprintFunc()

			fmt.Println("docbridge doctor")
			fmt.Println("================")
			fmt.Println()

			okCount, warnCount, errCount := 0, 0, 0
			for _, c := range checks {
				var icon string
				switch c.Status {
				case "ok":
					icon = green("✓")
					okCount++
				case "warning":
					icon = yellow("!")
					warnCount++
				case "error":
					icon = red("✗")
					errCount++
				}
				fmt.Printf("  %s %s: %s\n", icon, c.Name, c.Message)
			}

			fmt.Println()
			fmt.Printf("  %d passed, %d warnings, %d errors\n", okCount, warnCount, errCount)

			if errCount > 0 {
				return fmt.Errorf("%d check(s) failed", errCount)
			}
			return nil
		},
	}
}

// RunChecks runs every check. The converter round trips always run; the
// configuration checks read the loaded viper state when withConfig is set.
func RunChecks(ctx context.Context, withConfig bool) []Check {
	checks := []Check{{
		Name:    "Go Runtime",
		Status:  "ok",
		Message: fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH),
	}}

	if withConfig {
		path := config.ConfigPath()
		if _, err := os.Stat(path); err == nil {
			checks = append(checks, Check{Name: "Config File", Status: "ok", Message: path})
		} else {
			checks = append(checks, Check{Name: "Config File", Status: "ok", Message: "not found, using defaults"})
		}
		if dir := filepath.Dir(path); !writable(dir) {
			checks = append(checks, Check{Name: "Config Directory", Status: "warning", Message: dir + " is not writable"})
		}
		for _, issue := range config.Validate() {
			checks = append(checks, Check{Name: "Config " + issue.Key, Status: issue.Severity, Message: issue.Message})
		}
	}

	checks = append(checks,
		roundTrip(ctx, "Native Converter", convert.DefaultOptions()),
		roundTrip(ctx, "Secondary Converter", convert.Options{}),
	)
	return checks
}

// roundTrip converts a small document to HTML and back with opts.
func roundTrip(ctx context.Context, name string, opts convert.Options) Check {
	doc := docx.NewDocument()
	doc.Blocks = []docx.Block{
		&docx.Paragraph{Runs: []docx.Run{{Text: "doctor", Bold: true}, {Text: " check"}}},
	}
	data, err := docx.Serialize(doc)
	if err != nil {
		return Check{Name: name, Status: "error", Message: err.Error()}
	}

	c := convert.New(opts, nil, nil)
	html, err := c.PackageToHTML(ctx, data)
	if err != nil {
		return Check{Name: name, Status: "error", Message: "read: " + err.Error()}
	}
	if !strings.Contains(html.HTML, "doctor") {
		return Check{Name: name, Status: "error", Message: "read lost the document text"}
	}
	pkg, err := c.HTMLToPackage(ctx, html.HTML, data)
	if err != nil {
		return Check{Name: name, Status: "error", Message: "write: " + err.Error()}
	}
	back, err := docx.ParseBytes(pkg.Data)
	if err != nil {
		return Check{Name: name, Status: "error", Message: "written package unreadable: " + err.Error()}
	}
	if len(back.Blocks) == 0 {
		return Check{Name: name, Status: "error", Message: "round trip lost every block"}
	}
	if p, ok := back.Blocks[0].(*docx.Paragraph); !ok || p.Text() != "doctor check" {
		return Check{Name: name, Status: "error", Message: "round trip changed the document text"}
	}
	return Check{Name: name, Status: "ok", Message: "round trip succeeded"}
}

func writable(dir string) bool {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return false
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return false
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return true
}
