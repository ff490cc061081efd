package textdoc

import (
	"strconv"
	"strings"
)

// PlainText returns the document content as plain text with section headers.
func (d *Document) PlainText() string {
	var b strings.Builder
	for _, n := range d.Nodes {
		writeNodePlainText(&b, n)
	}
	return b.String()
}

func writeNodePlainText(b *strings.Builder, n Node) {
	switch n.Type {
	case NodeHeading:
		b.WriteString("\n")
		b.WriteString(strings.Repeat("#", n.Level))
		b.WriteString(" ")
		b.WriteString(n.Text)
		b.WriteString("\n\n")
	case NodeParagraph:
		b.WriteString(n.Text)
		b.WriteString("\n")
	case NodeListItem:
		b.WriteString(strings.Repeat("  ", n.Level))
		b.WriteString("- ")
		b.WriteString(n.Text)
		b.WriteString("\n")
	case NodeTable:
		for _, row := range n.Children {
			cells := make([]string, 0, len(row.Children))
			for _, cell := range row.Children {
				cells = append(cells, cell.Text)
			}
			b.WriteString("| ")
			b.WriteString(strings.Join(cells, " | "))
			b.WriteString(" |\n")
		}
		b.WriteString("\n")
	}
}

// Markdown returns the document content formatted as GitHub-flavored Markdown.
func (d *Document) Markdown() string {
	var b strings.Builder
	counters := map[string]int{}
	for i, n := range d.Nodes {
		if n.Type != NodeListItem {
			counters = map[string]int{}
		}
		writeNodeMarkdown(&b, n, counters)
		// A list needs a blank line before whatever follows it.
		if n.Type == NodeListItem && (i+1 == len(d.Nodes) || d.Nodes[i+1].Type != NodeListItem) {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func writeNodeMarkdown(b *strings.Builder, n Node, counters map[string]int) {
	switch n.Type {
	case NodeHeading:
		level := n.Level
		if level > 6 {
			level = 6
		}
		b.WriteString(strings.Repeat("#", level))
		b.WriteString(" ")
		writeRunsMarkdown(b, n)
		b.WriteString("\n\n")
	case NodeParagraph:
		writeRunsMarkdown(b, n)
		b.WriteString("\n\n")
	case NodeListItem:
		b.WriteString(strings.Repeat("   ", n.Level))
		if n.ListInfo != nil && n.ListInfo.Ordered {
			key := n.ListInfo.NumID + "/" + strconv.Itoa(n.Level)
			counters[key]++
			b.WriteString(strconv.Itoa(counters[key]))
			b.WriteString(". ")
		} else {
			b.WriteString("- ")
		}
		writeRunsMarkdown(b, n)
		b.WriteString("\n")
	case NodeTable:
		if len(n.Children) == 0 {
			return
		}
		width := 0
		for _, row := range n.Children {
			if len(row.Children) > width {
				width = len(row.Children)
			}
		}
		for i, row := range n.Children {
			cells := make([]string, width)
			for j, cell := range row.Children {
				cells[j] = escapeCell(cell.Text)
			}
			b.WriteString("| ")
			b.WriteString(strings.Join(cells, " | "))
			b.WriteString(" |\n")
			if i == 0 {
				b.WriteString("|")
				for j := 0; j < width; j++ {
					b.WriteString(" --- |")
				}
				b.WriteString("\n")
			}
		}
		b.WriteString("\n")
	}
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", "<br>")
}

func writeRunsMarkdown(b *strings.Builder, n Node) {
	if len(n.Runs) == 0 {
		b.WriteString(n.Text)
		return
	}
	for _, r := range n.Runs {
		text := r.Text
		if r.Strike {
			text = "~~" + text + "~~"
		}
		switch {
		case r.Bold && r.Italic:
			b.WriteString("***" + text + "***")
		case r.Bold:
			b.WriteString("**" + text + "**")
		case r.Italic:
			b.WriteString("*" + text + "*")
		default:
			b.WriteString(text)
		}
	}
}

// WordCount returns the total number of words across all text nodes.
func (d *Document) WordCount() int {
	count := 0
	for _, n := range d.Nodes {
		count += countWords(n)
	}
	return count
}

func countWords(n Node) int {
	count := len(strings.Fields(n.Text))
	for _, child := range n.Children {
		count += countWords(child)
	}
	return count
}
