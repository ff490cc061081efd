package htmldoc

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/net/html"

	"github.com/klytics/docbridge/internal/formats/docx"
)

// Builder turns editor HTML back into a document. A Builder is not safe for
// concurrent use; create one per conversion.
type Builder struct {
	doc         *docx.Document
	lists       map[bool]string // ordered -> numId used for fresh lists
	addedStyles map[string]bool
	addedLists  map[string]bool
	warnings    []docx.Warning
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Warnings returns the fidelity warnings collected by the last Build.
func (b *Builder) Warnings() []docx.Warning {
	return b.warnings
}

// FromHTML builds a document from HTML. When base is non-nil its blocks are
// reused wherever the HTML left them unchanged; base itself is not modified.
func FromHTML(src string, base *docx.Document) (*docx.Document, error) {
	return NewBuilder().Build(src, base)
}

// Build is FromHTML with warnings retained on the builder.
func (b *Builder) Build(src string, base *docx.Document) (*docx.Document, error) {
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	b.warnings = nil
	b.lists = make(map[bool]string)
	b.addedStyles = make(map[string]bool)
	b.addedLists = make(map[string]bool)
	if base == nil {
		b.doc = docx.NewDocument()
		b.doc.Numbering = docx.DefaultNumbering()
	} else {
		b.doc = base.Clone()
	}

	body := findElement(root, "body")
	if body == nil {
		body = root
	}
	fresh := b.collect(body, false, make([]docx.Block, 0))

	doc := b.doc
	if base == nil {
		doc.Blocks = fresh
		return doc, nil
	}
	doc.Blocks = reconcile(base, doc, fresh)
	b.pruneUnused()
	return doc, nil
}

func (b *Builder) warn(code, format string, args ...any) {
	b.warnings = append(b.warnings, docx.Warning{Code: code, Message: fmt.Sprintf(format, args...)})
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// skippedElements never carry document content.
var skippedElements = map[string]bool{
	"head": true, "script": true, "style": true, "template": true,
	"noscript": true, "title": true, "meta": true, "link": true,
}

// droppedElements are content the model cannot represent.
var droppedElements = map[string]bool{
	"img": true, "svg": true, "video": true, "audio": true, "iframe": true,
	"object": true, "embed": true, "canvas": true, "picture": true,
	"math": true, "input": true, "button": true, "select": true, "textarea": true,
}

// containerElements are unwrapped: their children are read as blocks.
var containerElements = map[string]bool{
	"body": true, "div": true, "section": true, "article": true, "main": true,
	"header": true, "footer": true, "aside": true, "nav": true, "center": true,
	"form": true, "figure": true, "dl": true, "dd": true, "dt": true,
	"details": true, "summary": true, "address": true, "hgroup": true,
}

func isBlockElement(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.Data {
	case "p", "h1", "h2", "h3", "h4", "h5", "h6", "ul", "ol", "blockquote", "table", "pre", "hr", "li":
		return true
	}
	return containerElements[n.Data]
}

// collect appends the blocks of a container. Loose inline content between
// blocks becomes its own paragraph.
func (b *Builder) collect(container *html.Node, quote bool, out []docx.Block) []docx.Block {
	var pending []*html.Node
	flush := func() {
		if len(pending) == 0 {
			return
		}
		c := newCollector(b, false)
		for _, n := range pending {
			c.node(n, format{})
		}
		pending = nil
		if c.blank() {
			return
		}
		out = append(out, b.newParagraph(c.result(), docx.AlignStart, quote))
	}

	for n := container.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == html.CommentNode || n.Type == html.DoctypeNode {
			continue
		}
		if !isBlockElement(n) {
			if n.Type == html.ElementNode && skippedElements[n.Data] {
				continue
			}
			pending = append(pending, n)
			continue
		}
		flush()

		switch n.Data {
		case "p", "pre", "li":
			c := newCollector(b, n.Data == "pre")
			c.children(n, format{})
			out = append(out, b.newParagraph(c.result(), alignment(n), quote))
		case "h1", "h2", "h3", "h4", "h5", "h6":
			c := newCollector(b, false)
			c.children(n, format{})
			p := &docx.Paragraph{Runs: c.result(), Align: alignment(n)}
			p.StyleID = b.styleFor(b.doc.Styles.HeadingStyleID(int(n.Data[1] - '0')))
			out = append(out, p)
		case "ul", "ol":
			out = b.list(n, b.listID(n.Data == "ol"), 0, out)
		case "blockquote":
			out = b.collect(n, true, out)
		case "table":
			if t := b.table(n); t != nil {
				out = append(out, t)
			}
		case "hr":
			b.warn(docx.WarnDroppedMarkup, "dropped horizontal rule")
		default:
			out = b.collect(n, quote, out)
		}
	}
	flush()
	return out
}

func (b *Builder) newParagraph(runs []docx.Run, align docx.Alignment, quote bool) *docx.Paragraph {
	p := &docx.Paragraph{Runs: runs, Align: align, Blockquote: quote}
	if quote {
		p.StyleID = b.styleFor(docx.QuoteStyleID)
	}
	return p
}

// list appends one paragraph per item. Nested lists share the numId of the
// outermost list; their ordering comes from the definition's level formats.
func (b *Builder) list(n *html.Node, numID string, level int, out []docx.Block) []docx.Block {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.Data {
		case "li":
			out = b.listItem(c, numID, level, out)
		case "ul", "ol":
			out = b.list(c, numID, level+1, out)
		}
	}
	return out
}

func (b *Builder) listItem(li *html.Node, numID string, level int, out []docx.Block) []docx.Block {
	item := &docx.Paragraph{
		Align:     alignment(li),
		Numbering: &docx.NumberingRef{NumID: numID, Level: level},
	}
	c := newCollector(b, false)
	emitted := false
	emit := func() {
		if !emitted {
			item.Runs = c.result()
			out = append(out, item)
			emitted = true
		}
	}

	for n := li.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == html.ElementNode && (n.Data == "ul" || n.Data == "ol") {
			emit()
			out = b.list(n, numID, level+1, out)
			continue
		}
		c.node(n, format{})
	}
	emit()
	return out
}

func (b *Builder) table(n *html.Node) *docx.Table {
	t := &docx.Table{Rows: make([]docx.Row, 0)}
	var rows func(parent *html.Node)
	rows = func(parent *html.Node) {
		for c := parent.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.Data {
			case "thead", "tbody", "tfoot":
				rows(c)
			case "tr":
				t.Rows = append(t.Rows, b.row(c))
			}
		}
	}
	rows(n)
	if len(t.Rows) == 0 {
		b.warn(docx.WarnDroppedMarkup, "dropped table without rows")
		return nil
	}
	return t
}

func (b *Builder) row(tr *html.Node) docx.Row {
	row := docx.Row{Cells: make([]docx.Cell, 0)}
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
			row.Cells = append(row.Cells, docx.Cell{Paragraphs: b.cellParagraphs(c)})
		}
	}
	return row
}

// cellParagraphs reads a cell as blocks. Nested tables are flattened into the
// cell, which always keeps at least one paragraph.
func (b *Builder) cellParagraphs(td *html.Node) []docx.Paragraph {
	var paras []docx.Paragraph
	var flatten func(blocks []docx.Block)
	flatten = func(blocks []docx.Block) {
		for _, blk := range blocks {
			switch v := blk.(type) {
			case *docx.Paragraph:
				paras = append(paras, *v)
			case *docx.Table:
				b.warn(docx.WarnNestedTable, "nested table flattened into its enclosing cell")
				for _, row := range v.Rows {
					for _, cell := range row.Cells {
						for i := range cell.Paragraphs {
							flatten([]docx.Block{&cell.Paragraphs[i]})
						}
					}
				}
			}
		}
	}
	flatten(b.collect(td, false, nil))
	if len(paras) == 0 {
		paras = []docx.Paragraph{{Runs: make([]docx.Run, 0)}}
	}
	return paras
}

// styleFor returns id, adding the default definition as a synthetic style
// when the document lacks it.
func (b *Builder) styleFor(id string) string {
	if _, ok := b.doc.Styles.Lookup(id); ok {
		return id
	}
	def, ok := docx.DefaultStyleSheet().Lookup(id)
	if !ok {
		return id
	}
	def.Synthetic = true
	if b.doc.Styles.Styles == nil {
		b.doc.Styles.Styles = make(map[string]docx.Style)
	}
	b.doc.Styles.Styles[id] = def
	b.addedStyles[id] = true
	if def.BasedOn != "" {
		b.styleFor(def.BasedOn)
	}
	return id
}

// listID returns the numId for a fresh top-level list. Bullet lists share one
// definition. Every ordered list after the first gets its own num instance
// restarting at 1, so separate lists do not continue each other's numbering.
func (b *Builder) listID(ordered bool) string {
	id, ok := b.lists[ordered]
	if !ok {
		id = b.firstListID(ordered)
		b.lists[ordered] = id
		return id
	}
	if !ordered {
		return id
	}
	def := b.doc.Numbering.Lists[id]
	numID, _ := b.doc.Numbering.NextIDs()
	restart := docx.NumberingDef{
		NumID:      numID,
		AbstractID: def.AbstractID,
		Formats:    append([]string(nil), def.Formats...),
		Restart:    true,
		Synthetic:  true,
	}
	b.doc.Numbering.Lists[numID] = restart
	b.addedLists[numID] = true
	return numID
}

// firstListID reuses the document's list of the requested kind, adding a
// synthetic definition when it has none.
func (b *Builder) firstListID(ordered bool) string {
	if id, ok := b.doc.Numbering.FindList(ordered); ok {
		return id
	}
	id, abstractID := b.doc.Numbering.NextIDs()
	if b.doc.Numbering.Lists == nil {
		b.doc.Numbering.Lists = make(map[string]docx.NumberingDef)
	}
	b.doc.Numbering.Lists[id] = docx.NewListDef(id, abstractID, ordered)
	b.addedLists[id] = true
	return id
}

// pruneUnused drops synthetic definitions added for fresh blocks that the
// merge replaced with base blocks.
func (b *Builder) pruneUnused() {
	styles := make(map[string]bool)
	lists := make(map[string]bool)
	visit := func(p *docx.Paragraph) {
		styles[p.StyleID] = true
		if p.Numbering != nil {
			lists[p.Numbering.NumID] = true
		}
	}
	for _, blk := range b.doc.Blocks {
		switch v := blk.(type) {
		case *docx.Paragraph:
			visit(v)
		case *docx.Table:
			for _, row := range v.Rows {
				for _, cell := range row.Cells {
					for i := range cell.Paragraphs {
						visit(&cell.Paragraphs[i])
					}
				}
			}
		}
	}
	// Keep the basedOn parents of styles that survive.
	for id := range styles {
		for cur := id; cur != ""; {
			st, ok := b.doc.Styles.Lookup(cur)
			if !ok || styles[st.BasedOn] {
				break
			}
			styles[st.BasedOn] = true
			cur = st.BasedOn
		}
	}
	for id := range b.addedStyles {
		if !styles[id] {
			delete(b.doc.Styles.Styles, id)
		}
	}
	for id := range b.addedLists {
		if !lists[id] {
			delete(b.doc.Numbering.Lists, id)
		}
	}
}

func alignment(n *html.Node) docx.Alignment {
	val := strings.ToLower(attr(n, "align"))
	if v, ok := styleProperties(attr(n, "style"))["text-align"]; ok {
		val = v
	}
	switch val {
	case "center":
		return docx.AlignCenter
	case "right", "end":
		return docx.AlignEnd
	case "justify":
		return docx.AlignJustify
	default:
		return docx.AlignStart
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// styleProperties parses an inline style attribute into lowercase properties.
func styleProperties(style string) map[string]string {
	props := make(map[string]string)
	for _, decl := range strings.Split(style, ";") {
		key, val, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		val = strings.ToLower(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(val), "!important")))
		if key != "" {
			props[key] = val
		}
	}
	return props
}

// format is the inline formatting in effect at a point of the tree.
type format struct {
	bold, italic, underline, strike bool
	size                            int
	color                           string
}

func (f format) run(text string) docx.Run {
	return docx.Run{
		Text:      text,
		Bold:      f.bold,
		Italic:    f.italic,
		Underline: f.underline,
		Strike:    f.strike,
		Size:      f.size,
		Color:     f.color,
	}
}

func (f format) withStyle(style string) format {
	if style == "" {
		return f
	}
	props := styleProperties(style)
	switch w := props["font-weight"]; w {
	case "bold", "bolder", "600", "700", "800", "900":
		f.bold = true
	case "normal", "lighter", "400":
		f.bold = false
	}
	switch props["font-style"] {
	case "italic", "oblique":
		f.italic = true
	case "normal":
		f.italic = false
	}
	for _, key := range []string{"text-decoration", "text-decoration-line"} {
		deco := props[key]
		if strings.Contains(deco, "underline") {
			f.underline = true
		}
		if strings.Contains(deco, "line-through") {
			f.strike = true
		}
	}
	if c := parseColor(props["color"]); c != "" {
		f.color = c
	}
	if sz := parseFontSize(props["font-size"]); sz > 0 {
		f.size = sz
	}
	return f
}

// parseColor accepts #rgb, #rrggbb and rgb(r, g, b).
func parseColor(v string) string {
	v = strings.TrimSpace(v)
	if hex, ok := strings.CutPrefix(v, "#"); ok {
		if len(hex) == 3 {
			hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
		}
		if len(hex) != 6 {
			return ""
		}
		if _, err := strconv.ParseUint(hex, 16, 32); err != nil {
			return ""
		}
		return strings.ToUpper(hex)
	}
	if inner, ok := strings.CutPrefix(v, "rgb("); ok {
		parts := strings.Split(strings.TrimSuffix(inner, ")"), ",")
		if len(parts) != 3 {
			return ""
		}
		var out strings.Builder
		for _, p := range parts {
			n, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil || n < 0 || n > 255 {
				return ""
			}
			fmt.Fprintf(&out, "%02X", n)
		}
		return out.String()
	}
	return ""
}

// parseFontSize converts pt or px to half-points.
func parseFontSize(v string) int {
	var points float64
	switch {
	case strings.HasSuffix(v, "pt"):
		f, err := strconv.ParseFloat(strings.TrimSuffix(v, "pt"), 64)
		if err != nil {
			return 0
		}
		points = f
	case strings.HasSuffix(v, "px"):
		f, err := strconv.ParseFloat(strings.TrimSuffix(v, "px"), 64)
		if err != nil {
			return 0
		}
		points = f * 0.75
	default:
		return 0
	}
	return int(math.Round(points * 2))
}

// collector gathers the runs of one paragraph. Whitespace containing a line
// break collapses to a single space and is dropped at paragraph edges.
type collector struct {
	b        *Builder
	preserve bool
	runs     []docx.Run
	soft     bool // collapsed space waiting for following text
	trailing bool // last run is a <br>
}

func newCollector(b *Builder, preserve bool) *collector {
	return &collector{b: b, preserve: preserve}
}

func (c *collector) empty() bool {
	return len(c.runs) == 0
}

// blank reports whether the collector holds only spaces and tabs.
func (c *collector) blank() bool {
	for _, r := range c.runs {
		if strings.Trim(r.Text, " \t") != "" {
			return false
		}
	}
	return true
}

// result returns the coalesced runs, dropping a final placeholder <br>.
func (c *collector) result() []docx.Run {
	runs := c.runs
	if c.trailing && len(runs) > 0 {
		runs = runs[:len(runs)-1]
	}
	return docx.CoalesceRuns(runs)
}

func (c *collector) add(text string, f format) {
	c.runs = append(c.runs, f.run(text))
	c.trailing = false
}

func (c *collector) children(n *html.Node, f format) {
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		c.node(ch, f)
	}
}

func (c *collector) node(n *html.Node, f format) {
	switch n.Type {
	case html.TextNode:
		c.text(n.Data, f)
		return
	case html.ElementNode:
	default:
		return
	}

	if skippedElements[n.Data] {
		return
	}
	if droppedElements[n.Data] {
		c.b.warn(docx.WarnDroppedMarkup, "dropped <%s>", n.Data)
		return
	}

	switch n.Data {
	case "br":
		c.soft = false
		c.add("\n", f)
		c.trailing = true
		return
	case "strong", "b":
		f.bold = true
	case "em", "i":
		f.italic = true
	case "u", "ins":
		f.underline = true
	case "s", "strike", "del":
		f.strike = true
	}
	c.children(n, f.withStyle(attr(n, "style")))
}

func (c *collector) text(s string, f format) {
	if c.preserve {
		c.add(s, f)
		return
	}
	for s != "" {
		i := strings.IndexFunc(s, unicode.IsSpace)
		if i != 0 {
			if i < 0 {
				i = len(s)
			}
			if c.soft && !c.empty() && !c.trailing {
				c.add(" ", f)
			}
			c.soft = false
			c.add(s[:i], f)
			s = s[i:]
			continue
		}
		j := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsSpace(r) })
		if j < 0 {
			j = len(s)
		}
		space := s[:j]
		s = s[j:]
		if strings.ContainsAny(space, "\r\n") {
			c.soft = true
			continue
		}
		c.soft = false
		c.add(space, f)
	}
}
