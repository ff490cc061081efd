package docx

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// Parser turns a Package into a Document. A Parser is not safe for
// concurrent use; create one per conversion.
type Parser struct {
	resolver *Resolver
	warnings []Warning
	seen     map[string]bool
}

// NewParser returns a parser using the standard namespace resolver.
func NewParser() *Parser {
	return &Parser{resolver: NewResolver()}
}

// Warnings returns the fidelity warnings collected by the last Parse.
func (p *Parser) Warnings() []Warning {
	return p.warnings
}

// Parse builds a Document from a package.
func Parse(pkg *Package) (*Document, error) {
	return NewParser().Parse(pkg)
}

// ParseBytes opens and parses raw .docx bytes.
func ParseBytes(data []byte) (*Document, error) {
	pkg, err := OpenPackage(data)
	if err != nil {
		return nil, err
	}
	return Parse(pkg)
}

// ParseFile reads and parses a .docx file from the given path.
func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s: check that the path is correct", path)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("permission denied reading %s: check file permissions or close the file if it is open in another application", path)
		}
		return nil, fmt.Errorf("could not read %s: %w", path, err)
	}
	return ParseBytes(data)
}

// Parse builds a Document from a package. Only an unreadable main document
// part is an error; every other absence degrades to defaults.
func (p *Parser) Parse(pkg *Package) (*Document, error) {
	p.warnings = nil
	p.seen = nil

	data, ok := pkg.Part(pkg.MainPart)
	if !ok {
		return nil, &ArchiveError{Kind: MissingPart, Part: pkg.MainPart}
	}

	tree := etree.NewDocument()
	if err := tree.ReadFromBytes(data); err != nil {
		return nil, &ParseError{Kind: MalformedStructure, Part: pkg.MainPart, Err: err}
	}
	root := tree.Root()
	if root == nil {
		return nil, &ParseError{Kind: MalformedStructure, Part: pkg.MainPart, Err: errors.New("no root element")}
	}

	doc := &Document{
		MainPart:             pkg.MainPart,
		Blocks:               make([]Block, 0),
		Relationships:        cloneTable(pkg.RelationshipsOf(pkg.MainPart)),
		PackageRelationships: cloneTable(pkg.RelationshipsOf("")),
	}

	stylesPart := relatedPart(pkg, RelTypeStyles, "styles.xml")
	numberingPart := relatedPart(pkg, RelTypeNumbering, "numbering.xml")
	doc.Styles = p.parseStyles(pkg, stylesPart)
	doc.Numbering = p.parseNumbering(pkg, numberingPart)

	body := p.resolver.Child(root, "body")
	if body == nil {
		p.warn(WarnUnsupportedElement, "document has no body element; treating it as empty")
	} else {
		p.checkBodyChildren(body)
		doc.Blocks = p.parseBlocks(body, doc.Styles, doc.Blocks)
		if sect := p.resolver.Child(body, "sectPr"); sect != nil {
			doc.SectionXML = canonicalXML(sect)
		}
	}

	doc.Resources = collectResources(pkg, stylesPart, numberingPart)
	return doc, nil
}

func (p *Parser) warn(code, format string, args ...any) {
	p.warnings = append(p.warnings, Warning{Code: code, Message: fmt.Sprintf(format, args...)})
}

// warnOnce reports a warning the first time key is seen in a parse.
func (p *Parser) warnOnce(code, key, format string, args ...any) {
	if p.seen[key] {
		return
	}
	if p.seen == nil {
		p.seen = make(map[string]bool)
	}
	p.seen[key] = true
	p.warn(code, format, args...)
}

// ignoredBodyElements carry no content worth reporting.
var ignoredBodyElements = map[string]bool{
	"p": true, "tbl": true, "sdt": true, "sectPr": true,
	"bookmarkStart": true, "bookmarkEnd": true, "proofErr": true,
	"permStart": true, "permEnd": true, "customXml": true,
}

func (p *Parser) checkBodyChildren(body *etree.Element) {
	for _, child := range body.ChildElements() {
		if local := LocalName(child); !ignoredBodyElements[local] {
			p.warn(WarnUnsupportedElement, "dropped unsupported body element <%s>", local)
		}
	}
}

// parseBlocks appends the paragraphs and tables of a container in order.
// Content controls are unwrapped.
func (p *Parser) parseBlocks(container *etree.Element, styles StyleSheet, blocks []Block) []Block {
	for _, el := range p.resolver.Children(container, "p", "tbl", "sdt") {
		switch LocalName(el) {
		case "p":
			para := p.parseParagraph(el, styles)
			blocks = append(blocks, &para)
		case "tbl":
			blocks = append(blocks, p.parseTable(el, styles))
		case "sdt":
			if content := p.resolver.Child(el, "sdtContent"); content != nil {
				blocks = p.parseBlocks(content, styles, blocks)
			}
		}
	}
	return blocks
}

func (p *Parser) parseParagraph(el *etree.Element, styles StyleSheet) Paragraph {
	r := p.resolver
	para := Paragraph{}

	if ppr := r.Child(el, "pPr"); ppr != nil {
		para.StyleID = r.Val(ppr, "pStyle")
		para.Align = parseAlignment(r.Val(ppr, "jc"))
		if numPr := r.Child(ppr, "numPr"); numPr != nil {
			numID := r.Val(numPr, "numId")
			if numID != "" && numID != "0" {
				level, _ := strconv.Atoi(r.Val(numPr, "ilvl"))
				para.Numbering = &NumberingRef{NumID: numID, Level: level}
			}
		}
	}
	para.Blockquote = styles.IsQuote(para.StyleID)
	para.Runs = CoalesceRuns(p.parseInline(el, "", nil))
	return para
}

func parseAlignment(val string) Alignment {
	switch val {
	case "center":
		return AlignCenter
	case "right", "end":
		return AlignEnd
	case "both", "distribute", "justify":
		return AlignJustify
	default:
		return AlignStart
	}
}

// inlineWrappers contribute their runs to the enclosing paragraph.
var inlineWrappers = map[string]bool{
	"smartTag": true, "ins": true, "fldSimple": true, "customXml": true,
	"dir": true, "bdo": true, "moveTo": true,
}

// silentInline are paragraph children with no visible content.
var silentInline = map[string]bool{
	"pPr": true, "bookmarkStart": true, "bookmarkEnd": true, "proofErr": true,
	"permStart": true, "permEnd": true, "commentRangeStart": true, "commentRangeEnd": true,
	"del": true, "moveFrom": true, "moveFromRangeStart": true, "moveFromRangeEnd": true,
	"moveToRangeStart": true, "moveToRangeEnd": true, "customXmlPr": true, "smartTagPr": true,
}

// parseInline collects runs from a paragraph or an inline wrapper in
// document order. link is the hyperlink target of the enclosing
// w:hyperlink, if any.
func (p *Parser) parseInline(el *etree.Element, link string, runs []Run) []Run {
	r := p.resolver
	for _, child := range el.ChildElements() {
		local := LocalName(child)
		switch {
		case isAlternateContent(child):
			if choice := firstAlternative(child); choice != nil {
				p.warnOnce(WarnDroppedMarkup, "alternate-content", "alternate inline content reduced to its first choice")
				runs = p.parseInline(choice, link, runs)
			}
		case local == "r":
			runs = p.parseRun(child, link, runs)
		case local == "hyperlink":
			target := Attr(child, "id")
			if target == "" {
				if anchor := Attr(child, "anchor"); anchor != "" {
					target = "#" + anchor
				}
			}
			runs = p.parseInline(child, target, runs)
		case local == "sdt":
			if content := r.Child(child, "sdtContent"); content != nil {
				runs = p.parseInline(content, link, runs)
			}
		case inlineWrappers[local]:
			runs = p.parseInline(child, link, runs)
		case silentInline[local]:
		default:
			p.warnOnce(WarnUnsupportedElement, "inline:"+local, "dropped unsupported inline element <%s>", local)
		}
	}
	return runs
}

// objectNames are run children carried through whole as embedded objects.
var objectNames = map[string]bool{"drawing": true, "pict": true, "object": true}

// silentRun are run children with no visible content.
var silentRun = map[string]bool{"rPr": true, "lastRenderedPageBreak": true, "softHyphen": true}

func (p *Parser) parseRun(el *etree.Element, link string, runs []Run) []Run {
	r := p.resolver
	base := Run{Hyperlink: link}
	if rpr := r.Child(el, "rPr"); rpr != nil {
		base.Bold = p.flag(rpr, "b")
		base.Italic = p.flag(rpr, "i")
		base.Underline = p.flag(rpr, "u")
		base.Strike = p.flag(rpr, "strike") || p.flag(rpr, "dstrike")
		if sz, err := strconv.Atoi(r.Val(rpr, "sz")); err == nil && sz > 0 {
			base.Size = sz
		}
		if color := r.Val(rpr, "color"); color != "" && color != "auto" {
			base.Color = strings.ToUpper(color)
		}
	}

	var text strings.Builder
	flush := func() {
		if text.Len() == 0 {
			return
		}
		run := base
		run.Text = text.String()
		runs = append(runs, run)
		text.Reset()
	}

	for _, child := range el.ChildElements() {
		local := LocalName(child)
		switch {
		case isAlternateContent(child), objectNames[local]:
			flush()
			runs = append(runs, Run{Object: &EmbeddedObject{
				XML:    canonicalXML(child),
				RelIDs: relationshipIDs(child),
			}})
		case local == "t":
			text.WriteString(child.Text())
		case local == "tab":
			text.WriteByte('\t')
		case local == "br", local == "cr":
			text.WriteByte('\n')
		case local == "noBreakHyphen":
			text.WriteByte('-')
		case silentRun[local]:
		default:
			p.warnOnce(WarnUnsupportedElement, "run:"+local, "dropped unsupported run element <%s>", local)
		}
	}
	flush()
	return runs
}

// isAlternateContent reports whether el is a markup-compatibility
// mc:AlternateContent block.
func isAlternateContent(el *etree.Element) bool {
	if LocalName(el) != "AlternateContent" {
		return false
	}
	uri := el.NamespaceURI()
	return uri == namespaceMC || (uri == "" && el.Space == "mc")
}

// firstAlternative returns the first mc:Choice of an alternate-content
// block, or its mc:Fallback when it has no choice.
func firstAlternative(el *etree.Element) *etree.Element {
	var fallback *etree.Element
	for _, child := range el.ChildElements() {
		switch LocalName(child) {
		case "Choice":
			return child
		case "Fallback":
			fallback = child
		}
	}
	return fallback
}

// flag is a presence test; an explicit val of 0/false/none switches it off.
func (p *Parser) flag(rpr *etree.Element, name string) bool {
	el := p.resolver.Child(rpr, name)
	if el == nil {
		return false
	}
	switch Attr(el, "val") {
	case "0", "false", "off", "none":
		return false
	}
	return true
}

func (p *Parser) parseTable(el *etree.Element, styles StyleSheet) *Table {
	r := p.resolver
	t := &Table{Rows: make([]Row, 0)}
	if pr := r.Child(el, "tblPr"); pr != nil {
		t.PropertiesXML = canonicalXML(pr)
	}
	for _, tr := range r.Children(el, "tr") {
		row := Row{Cells: make([]Cell, 0)}
		for _, tc := range r.Children(tr, "tc") {
			cell := Cell{Paragraphs: p.cellParagraphs(tc, styles, nil)}
			if len(cell.Paragraphs) == 0 {
				cell.Paragraphs = []Paragraph{{Runs: make([]Run, 0)}}
			}
			row.Cells = append(row.Cells, cell)
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// cellParagraphs collects the paragraphs of a cell. Nested tables are
// flattened into the cell, row by row.
func (p *Parser) cellParagraphs(el *etree.Element, styles StyleSheet, out []Paragraph) []Paragraph {
	r := p.resolver
	for _, child := range r.Children(el, "p", "tbl", "sdt") {
		switch LocalName(child) {
		case "p":
			out = append(out, p.parseParagraph(child, styles))
		case "tbl":
			p.warn(WarnNestedTable, "nested table flattened into its enclosing cell")
			for _, tr := range r.Children(child, "tr") {
				for _, tc := range r.Children(tr, "tc") {
					out = p.cellParagraphs(tc, styles, out)
				}
			}
		case "sdt":
			if content := r.Child(child, "sdtContent"); content != nil {
				out = p.cellParagraphs(content, styles, out)
			}
		}
	}
	return out
}

// relatedPart resolves the target of a main-document relationship, falling
// back to the conventional file name next to the main part.
func relatedPart(pkg *Package, relType, fallback string) string {
	if rel, ok := pkg.RelationshipsOf(pkg.MainPart).FindType(relType); ok {
		return ResolveTarget(pkg.MainPart, rel.Target)
	}
	return ResolveTarget(pkg.MainPart, fallback)
}

// collectResources returns every part the model does not represent
// semantically, sorted by path.
func collectResources(pkg *Package, stylesPart, numberingPart string) []Resource {
	skip := map[string]bool{
		ContentTypesPart:          true,
		PackageRelsPart:           true,
		pkg.MainPart:              true,
		RelsPartFor(pkg.MainPart): true,
		stylesPart:                true,
		numberingPart:             true,
	}
	var resources []Resource
	for name, data := range pkg.Parts {
		if skip[name] {
			continue
		}
		resources = append(resources, Resource{
			Path:        name,
			ContentType: pkg.ContentTypes.Lookup(name),
			Data:        data,
		})
	}
	sort.Slice(resources, func(i, j int) bool { return resources[i].Path < resources[j].Path })
	return resources
}

func cloneTable(t RelationshipTable) RelationshipTable {
	return RelationshipTable{Rels: append([]Relationship(nil), t.Rels...)}
}
