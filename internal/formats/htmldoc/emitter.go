// Package htmldoc converts between the docx document model and the HTML
// vocabulary of the editing surface: paragraphs, headings, inline bold,
// italic, underline and strike, lists, block quotes and tables.
package htmldoc

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/klytics/docbridge/internal/formats/docx"
)

// Emitter renders a document as HTML. The zero value renders a fragment.
type Emitter struct {
	// Standalone wraps the fragment in a self-contained HTML5 page.
	Standalone bool
	// Title is the page title in standalone mode.
	Title string
}

// ToHTML renders the document body as an HTML fragment.
func ToHTML(doc *docx.Document) string {
	out, _ := Emitter{}.Render(doc)
	return out
}

// Render returns the HTML for doc and the fidelity warnings collected while
// rendering it. Output is deterministic for a given document.
func (e Emitter) Render(doc *docx.Document) (string, []docx.Warning) {
	r := &renderer{doc: doc}
	r.blocks(doc.Blocks)
	if e.Standalone {
		return Page(e.Title, r.b.String()), r.warnings
	}
	return r.b.String(), r.warnings
}

// Page wraps an HTML fragment in a self-contained HTML5 document.
func Page(title, body string) string {
	if title == "" {
		title = "Document"
	}
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>`)
	b.WriteString(html.EscapeString(title))
	b.WriteString(`</title>
  <style>
    body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif; max-width: 800px; margin: 2rem auto; line-height: 1.6; padding: 0 1rem; }
    h1, h2, h3 { margin-top: 2rem; }
    table { border-collapse: collapse; width: 100%; margin: 1rem 0; }
    td, th { border: 1px solid #ddd; padding: 8px; text-align: left; vertical-align: top; }
    td p { margin: 0; }
    ul, ol { padding-left: 2rem; }
    blockquote { margin: 1rem 0; padding-left: 1rem; border-left: 3px solid #ccc; color: #555; }
  </style>
</head>
<body>
`)
	b.WriteString(body)
	b.WriteString("</body>\n</html>\n")
	return b.String()
}

type renderer struct {
	doc      *docx.Document
	b        strings.Builder
	cells    int // depth of table cells being rendered
	warnings []docx.Warning
}

func (r *renderer) warn(code, msg string) {
	r.warnings = append(r.warnings, docx.Warning{Code: code, Message: msg})
}

func (r *renderer) newline() {
	if r.cells == 0 {
		r.b.WriteByte('\n')
	}
}

// blocks renders a block sequence. Adjacent list paragraphs sharing a numId
// form one list; adjacent quote paragraphs form one blockquote.
func (r *renderer) blocks(blocks []docx.Block) {
	for i := 0; i < len(blocks); {
		switch v := blocks[i].(type) {
		case *docx.Table:
			r.table(v)
			i++
		case *docx.Paragraph:
			end := i + 1
			switch {
			case v.Numbering != nil:
				for end < len(blocks) && inList(blocks[end], v.Numbering.NumID) {
					end++
				}
				r.list(blocks[i:end])
			case r.isQuote(v):
				for end < len(blocks) && r.isQuoteBlock(blocks[end]) {
					end++
				}
				r.b.WriteString("<blockquote>")
				r.newline()
				for _, q := range blocks[i:end] {
					r.paragraph(q.(*docx.Paragraph))
				}
				r.b.WriteString("</blockquote>")
				r.newline()
			default:
				r.paragraph(v)
			}
			i = end
		default:
			panic(fmt.Sprintf("htmldoc: unknown block type %T", v))
		}
	}
}

func inList(b docx.Block, numID string) bool {
	p, ok := b.(*docx.Paragraph)
	return ok && p.Numbering != nil && p.Numbering.NumID == numID
}

func (r *renderer) isQuote(p *docx.Paragraph) bool {
	return p.Blockquote && p.Numbering == nil && r.headingLevel(p) == 0
}

func (r *renderer) isQuoteBlock(b docx.Block) bool {
	p, ok := b.(*docx.Paragraph)
	return ok && r.isQuote(p)
}

// headingLevel clamps outline levels 7-9 to h6.
func (r *renderer) headingLevel(p *docx.Paragraph) int {
	level := r.doc.Styles.HeadingLevel(p.StyleID)
	if level > 6 {
		level = 6
	}
	return level
}

func (r *renderer) paragraph(p *docx.Paragraph) {
	tag := "p"
	if level := r.headingLevel(p); level > 0 {
		tag = "h" + strconv.Itoa(level)
	}
	r.b.WriteString("<" + tag + alignAttr(p.Align) + ">")
	r.inline(p.Runs)
	r.b.WriteString("</" + tag + ">")
	r.newline()
}

func (r *renderer) listTag(p *docx.Paragraph) string {
	if r.doc.Numbering.Ordered(p.Numbering) {
		return "ol"
	}
	return "ul"
}

// list renders paragraphs of one numbering instance. A list never nests more
// than one level deeper than the item before it.
func (r *renderer) list(items []docx.Block) {
	var stack []string
	for _, b := range items {
		p := b.(*docx.Paragraph)
		level := p.Numbering.Level
		if level < 0 {
			level = 0
		}
		if level > len(stack) {
			level = len(stack)
		}
		if level == len(stack) {
			tag := r.listTag(p)
			r.b.WriteString("<" + tag + ">")
			stack = append(stack, tag)
		} else {
			for len(stack) > level+1 {
				r.b.WriteString("</li></" + stack[len(stack)-1] + ">")
				stack = stack[:len(stack)-1]
			}
			r.b.WriteString("</li>")
		}
		r.b.WriteString("<li" + alignAttr(p.Align) + ">")
		r.inline(p.Runs)
	}
	for len(stack) > 0 {
		r.b.WriteString("</li></" + stack[len(stack)-1] + ">")
		stack = stack[:len(stack)-1]
	}
	r.newline()
}

func (r *renderer) table(t *docx.Table) {
	r.b.WriteString("<table>")
	r.newline()
	for _, row := range t.Rows {
		r.b.WriteString("<tr>")
		for _, cell := range row.Cells {
			r.b.WriteString("<td>")
			blocks := make([]docx.Block, len(cell.Paragraphs))
			for i := range cell.Paragraphs {
				blocks[i] = &cell.Paragraphs[i]
			}
			r.cells++
			r.blocks(blocks)
			r.cells--
			r.b.WriteString("</td>")
		}
		r.b.WriteString("</tr>")
		r.newline()
	}
	r.b.WriteString("</table>")
	r.newline()
}

// inline renders runs. A trailing <br> keeps empty lines and a final line
// break visible; the builder strips it again.
func (r *renderer) inline(runs []docx.Run) {
	last := ""
	for _, run := range runs {
		if run.Object != nil {
			r.warn(docx.WarnEmbeddedObject, "embedded object is not rendered; it is kept when saving against the original document")
			continue
		}
		if run.Text == "" {
			continue
		}
		r.run(run)
		last = run.Text
	}
	if last == "" || strings.HasSuffix(last, "\n") {
		r.b.WriteString("<br>")
	}
}

func (r *renderer) run(run docx.Run) {
	var closers []string
	open := func(tag, attrs string) {
		r.b.WriteString("<" + tag + attrs + ">")
		closers = append(closers, "</"+tag+">")
	}
	if run.Bold {
		open("strong", "")
	}
	if run.Italic {
		open("em", "")
	}
	if run.Underline {
		open("u", "")
	}
	if run.Strike {
		open("s", "")
	}
	if style := spanStyle(run); style != "" {
		open("span", ` style="`+style+`"`)
	}

	text := html.EscapeString(run.Text)
	r.b.WriteString(strings.ReplaceAll(text, "\n", "<br>"))

	for i := len(closers) - 1; i >= 0; i-- {
		r.b.WriteString(closers[i])
	}
}

func spanStyle(run docx.Run) string {
	var parts []string
	if run.Color != "" {
		parts = append(parts, "color:#"+run.Color)
	}
	if run.Size > 0 {
		parts = append(parts, "font-size:"+strconv.FormatFloat(float64(run.Size)/2, 'f', -1, 64)+"pt")
	}
	return strings.Join(parts, ";")
}

func alignAttr(a docx.Alignment) string {
	switch a {
	case docx.AlignCenter:
		return ` style="text-align:center"`
	case docx.AlignEnd:
		return ` style="text-align:right"`
	case docx.AlignJustify:
		return ` style="text-align:justify"`
	default:
		return ""
	}
}
