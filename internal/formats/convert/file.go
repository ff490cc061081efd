package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/klytics/docbridge/internal/formats/docx"
	"github.com/klytics/docbridge/internal/formats/htmldoc"
	"github.com/klytics/docbridge/internal/formats/textdoc"
)

// Format names accepted by ConvertFile.
const (
	FormatDOCX     = "docx"
	FormatHTML     = "html"
	FormatMarkdown = "md"
	FormatText     = "txt"
)

// SupportedConversions lists all supported from→to format pairs.
var SupportedConversions = map[string][]string{
	FormatDOCX:     {FormatHTML, FormatMarkdown, FormatText},
	FormatHTML:     {FormatDOCX},
	FormatMarkdown: {FormatDOCX, FormatHTML},
}

// FileResult describes a file conversion.
type FileResult struct {
	From, To string
	// Path is where the output was written; empty when out was empty.
	Path     string
	Data     []byte
	Native   bool
	Warnings []docx.Warning
}

// ConvertFile converts the file at in to format to. The output is written to
// out unless out is empty. base names the original .docx an edited HTML file
// came from and is only used for HTML to .docx.
func (c *Converter) ConvertFile(ctx context.Context, in, out, to, base string) (*FileResult, error) {
	from := DetectFormat(in)
	if from == "" {
		return nil, fmt.Errorf("could not detect input format from extension: %s", filepath.Ext(in))
	}
	if !Supported(from, to) {
		return nil, fmt.Errorf("unsupported conversion: %s → %s (supported from %s: %v)", from, to, from, SupportedConversions[from])
	}

	input, err := os.ReadFile(in)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", in)
		}
		return nil, fmt.Errorf("could not read %s: %w", in, err)
	}

	res := &FileResult{From: from, To: to}
	switch from + "→" + to {
	case "docx→html":
		r, err := c.PackageToHTML(ctx, input)
		if err != nil {
			return nil, err
		}
		res.Data, res.Native, res.Warnings = []byte(r.HTML), r.Native, r.Warnings
	case "docx→md", "docx→txt":
		doc, err := textdoc.Read(input)
		if err != nil {
			return nil, fmt.Errorf("could not parse docx: %w", err)
		}
		if to == FormatMarkdown {
			res.Data = []byte(doc.Markdown())
		} else {
			res.Data = []byte(doc.PlainText())
		}
	case "html→docx", "md→docx":
		src := string(input)
		if from == FormatMarkdown {
			if src, err = renderMarkdown(input); err != nil {
				return nil, err
			}
		}
		var baseData []byte
		if base != "" {
			if baseData, err = os.ReadFile(base); err != nil {
				return nil, fmt.Errorf("could not read base %s: %w", base, err)
			}
		}
		r, err := c.HTMLToPackage(ctx, src, baseData)
		if err != nil {
			return nil, err
		}
		res.Data, res.Native, res.Warnings = r.Data, r.Native, r.Warnings
	case "md→html":
		html, err := renderMarkdown(input)
		if err != nil {
			return nil, err
		}
		if c.opts.Standalone {
			html = htmldoc.Page(c.opts.Title, html)
		}
		res.Data, res.Native = []byte(html), true
	}

	if out == "" {
		return res, nil
	}
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(out, res.Data, 0644); err != nil {
		return nil, fmt.Errorf("could not write %s: %w", out, err)
	}
	res.Path = out
	return res, nil
}

// OutputPath derives the default output path for converting in to format to.
func OutputPath(in, to string) string {
	return strings.TrimSuffix(in, filepath.Ext(in)) + "." + to
}

// DetectFormat maps a file extension to a format name, or "" if unknown.
func DetectFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".docx":
		return FormatDOCX
	case ".md", ".markdown":
		return FormatMarkdown
	case ".html", ".htm":
		return FormatHTML
	case ".txt":
		return FormatText
	default:
		return ""
	}
}

// Supported reports whether from can be converted to to.
func Supported(from, to string) bool {
	for _, s := range SupportedConversions[from] {
		if s == to {
			return true
		}
	}
	return false
}
