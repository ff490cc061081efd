package convert

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/klytics/docbridge/internal/formats/textdoc"
)

// Legacy is the secondary converter. It goes through Markdown and keeps only
// text structure: headings, paragraphs, lists, tables and inline emphasis.
// Inputs that are really HTML or plain text under a .docx name are accepted;
// HTML input is rebuilt through Markdown, so scripts, handlers and external
// resources never reach the output.
type Legacy struct {
	html *md.Converter
}

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
)

// NewLegacy returns a ready Legacy converter.
func NewLegacy() *Legacy {
	conv := md.NewConverter("", true, &md.Options{
		EmDelimiter:      "*",
		StrongDelimiter:  "**",
		BulletListMarker: "-",
	})
	conv.Use(plugin.GitHubFlavored())
	conv.Remove("head", "link", "meta", "iframe", "object", "embed", "img", "form", "button", "input", "select")

	return &Legacy{html: conv}
}

// PackageToHTML renders data as HTML through the lenient text reader.
func (l *Legacy) PackageToHTML(data []byte) (string, error) {
	ct := http.DetectContentType(data)
	switch {
	case strings.HasPrefix(ct, "text/html"):
		text, err := l.html.ConvertString(string(data))
		if err != nil {
			return "", fmt.Errorf("could not convert HTML to Markdown: %w", err)
		}
		return renderMarkdown([]byte(text))
	case strings.HasPrefix(ct, "text/plain"):
		return renderMarkdown(data)
	}

	doc, err := textdoc.Read(data)
	if err != nil {
		return "", err
	}
	return renderMarkdown([]byte(doc.Markdown()))
}

// HTMLToPackage writes src as a .docx package with text structure only.
func (l *Legacy) HTMLToPackage(src string) ([]byte, error) {
	text, err := l.html.ConvertString(src)
	if err != nil {
		return nil, fmt.Errorf("could not convert HTML to Markdown: %w", err)
	}
	return textdoc.Write(textdoc.ParseMarkdown(text))
}

func renderMarkdown(src []byte) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert(src, &buf); err != nil {
		return "", fmt.Errorf("could not render Markdown: %w", err)
	}
	return buf.String(), nil
}
