package textdoc

import (
	"regexp"
	"strings"
)

var (
	orderedListRe = regexp.MustCompile(`^(\d+)[.)]\s`)
	boldItalicRe  = regexp.MustCompile(`\*\*\*(.+?)\*\*\*`)
	boldRe        = regexp.MustCompile(`\*\*(.+?)\*\*`)
	italicRe      = regexp.MustCompile(`\*(.+?)\*`)
	strikeRe      = regexp.MustCompile(`~~(.+?)~~`)
	linkRe        = regexp.MustCompile(`!?\[([^\]]*)\]\([^)]*\)`)
	codeRe        = regexp.MustCompile("`([^`]*)`")
	escapeRe      = regexp.MustCompile(`\\([\\` + "`" + `*_{}\[\]()#+\-.!|~>])`)
)

// List numIds used by Write for bullet and numbered lists.
const (
	BulletListID  = "1"
	OrderedListID = "2"
)

// ParseMarkdown converts Markdown into a Document. It understands ATX
// headings, bullet and numbered lists (nesting by indentation), block quotes,
// GFM tables and bold/italic/strikethrough spans.
func ParseMarkdown(input string) *Document {
	doc := &Document{}
	lines := strings.Split(strings.ReplaceAll(input, "\r\n", "\n"), "\n")

	i := 0
	for i < len(lines) {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		if trimmed == "" {
			i++
			continue
		}

		if trimmed == "---" || trimmed == "***" || trimmed == "___" || trimmed == "* * *" {
			i++
			continue
		}

		if strings.HasPrefix(trimmed, "#") {
			level := 0
			for _, c := range trimmed {
				if c != '#' {
					break
				}
				level++
			}
			if level <= 6 && (len(trimmed) == level || trimmed[level] == ' ') {
				text := strings.TrimSpace(trimmed[level:])
				doc.Nodes = append(doc.Nodes, textNode(NodeHeading, text, level))
				i++
				continue
			}
		}

		indent := len(line) - len(strings.TrimLeft(line, " \t"))

		if strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ") || strings.HasPrefix(trimmed, "+ ") {
			node := textNode(NodeListItem, trimmed[2:], indent/2)
			node.ListInfo = &ListInfo{NumID: BulletListID, Level: node.Level}
			doc.Nodes = append(doc.Nodes, node)
			i++
			continue
		}

		if m := orderedListRe.FindStringSubmatch(trimmed); m != nil {
			node := textNode(NodeListItem, trimmed[len(m[0]):], indent/3)
			node.ListInfo = &ListInfo{NumID: OrderedListID, Level: node.Level, Ordered: true}
			doc.Nodes = append(doc.Nodes, node)
			i++
			continue
		}

		if strings.HasPrefix(trimmed, ">") {
			text := strings.TrimSpace(strings.TrimLeft(trimmed, ">"))
			if text != "" {
				node := textNode(NodeParagraph, text, 0)
				node.Style = "Quote"
				doc.Nodes = append(doc.Nodes, node)
			}
			i++
			continue
		}

		if strings.HasPrefix(trimmed, "|") {
			var rows [][]string
			for i < len(lines) {
				l := strings.TrimSpace(lines[i])
				if !strings.HasPrefix(l, "|") {
					break
				}
				if !isSeparatorRow(l) {
					rows = append(rows, parseTableRow(l))
				}
				i++
			}
			if len(rows) > 0 {
				node := Node{Type: NodeTable}
				for _, row := range rows {
					rowNode := Node{}
					for _, cell := range row {
						rowNode.Children = append(rowNode.Children, Node{
							Type: NodeParagraph,
							Text: stripFormatting(cell),
						})
					}
					node.Children = append(node.Children, rowNode)
				}
				doc.Nodes = append(doc.Nodes, node)
			}
			continue
		}

		doc.Nodes = append(doc.Nodes, textNode(NodeParagraph, trimmed, 0))
		i++
	}

	return doc
}

func textNode(typ NodeType, text string, level int) Node {
	text = strings.TrimSuffix(text, "\\")
	runs := parseInlineFormatting(text)
	var b strings.Builder
	for _, r := range runs {
		b.WriteString(r.Text)
	}
	return Node{Type: typ, Text: b.String(), Level: level, Runs: runs}
}

// parseInlineFormatting splits text into runs at emphasis markers.
func parseInlineFormatting(text string) []Run {
	text = linkRe.ReplaceAllString(text, "$1")
	text = codeRe.ReplaceAllString(text, "$1")
	text = protect(text)

	var runs []Run
	remaining := text
	for remaining != "" {
		if run, rest, ok := leadingSpan(remaining); ok {
			runs = append(runs, run)
			remaining = rest
			continue
		}

		next := len(remaining)
		for _, re := range []*regexp.Regexp{boldItalicRe, boldRe, italicRe, strikeRe} {
			if loc := re.FindStringIndex(remaining); loc != nil && loc[0] < next {
				next = loc[0]
			}
		}
		if next == 0 {
			// an unmatched marker at the start: take it literally
			next = 1
		}
		runs = append(runs, Run{Text: unescape(remaining[:next])})
		remaining = remaining[next:]
	}

	return mergeRuns(runs)
}

func leadingSpan(s string) (Run, string, bool) {
	spans := []struct {
		re  *regexp.Regexp
		run Run
	}{
		{boldItalicRe, Run{Bold: true, Italic: true}},
		{boldRe, Run{Bold: true}},
		{italicRe, Run{Italic: true}},
		{strikeRe, Run{Strike: true}},
	}
	for _, sp := range spans {
		loc := sp.re.FindStringSubmatchIndex(s)
		if loc == nil || loc[0] != 0 {
			continue
		}
		inner := s[loc[2]:loc[3]]
		run := sp.run
		// Nested strike inside emphasis, e.g. **~~x~~**.
		if m := strikeRe.FindStringSubmatch(inner); m != nil && m[0] == inner {
			run.Strike = true
			inner = m[1]
		}
		run.Text = unescape(inner)
		return run, s[loc[1]:], true
	}
	return Run{}, s, false
}

func mergeRuns(runs []Run) []Run {
	out := make([]Run, 0, len(runs))
	for _, r := range runs {
		if r.Text == "" {
			continue
		}
		if n := len(out); n > 0 {
			last := out[n-1]
			if last.Bold == r.Bold && last.Italic == r.Italic && last.Underline == r.Underline && last.Strike == r.Strike {
				out[n-1].Text += r.Text
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

// Backslash-escaped punctuation is moved into the private use area while
// emphasis markers are matched, then restored.
const escapeBase = 0xE000

func protect(s string) string {
	return escapeRe.ReplaceAllStringFunc(s, func(m string) string {
		return string(rune(escapeBase + int(m[1])))
	})
}

func unescape(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= escapeBase && r < escapeBase+0x80 {
			return r - escapeBase
		}
		return r
	}, s)
}

func stripFormatting(text string) string {
	var b strings.Builder
	for _, r := range parseInlineFormatting(text) {
		b.WriteString(r.Text)
	}
	return b.String()
}

func isSeparatorRow(line string) bool {
	stripped := strings.NewReplacer("|", "", "-", "", ":", "").Replace(line)
	return strings.TrimSpace(stripped) == ""
}

func parseTableRow(line string) []string {
	line = strings.TrimPrefix(line, "|")
	line = strings.TrimSuffix(line, "|")
	line = strings.ReplaceAll(line, `\|`, "\x00")
	parts := strings.Split(line, "|")
	cells := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ReplaceAll(p, "\x00", `\|`)
		cells = append(cells, strings.TrimSpace(p))
	}
	return cells
}
