package docx

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Alignment is a paragraph's horizontal alignment.
type Alignment int

const (
	AlignStart Alignment = iota
	AlignCenter
	AlignEnd
	AlignJustify
)

func (a Alignment) String() string {
	switch a {
	case AlignCenter:
		return "center"
	case AlignEnd:
		return "end"
	case AlignJustify:
		return "justify"
	default:
		return "start"
	}
}

// Document is the semantic model of a .docx package. Block order is
// significant and preserved on every round trip.
type Document struct {
	MainPart             string            `json:"mainPart"`
	Blocks               []Block           `json:"blocks"`
	Styles               StyleSheet        `json:"styles"`
	Numbering            NumberingTable    `json:"numbering"`
	Relationships        RelationshipTable `json:"relationships"`
	PackageRelationships RelationshipTable `json:"packageRelationships"`
	Resources            []Resource        `json:"resources,omitempty"`
	SectionXML           string            `json:"sectionXml,omitempty"` // canonical w:sectPr
}

// NewDocument returns an empty document with the default style set.
func NewDocument() *Document {
	return &Document{
		MainPart: DefaultMainPart,
		Styles:   DefaultStyleSheet(),
		Numbering: NumberingTable{
			Lists: make(map[string]NumberingDef),
		},
	}
}

// Block is a top-level body element. The set of implementations is closed:
// *Paragraph and *Table.
type Block interface {
	isBlock()
}

// Paragraph is an ordered list of runs. A paragraph without runs is an empty
// line and must never be dropped.
type Paragraph struct {
	Runs       []Run         `json:"runs"`
	Align      Alignment     `json:"align,omitempty"`
	StyleID    string        `json:"styleId,omitempty"`
	Numbering  *NumberingRef `json:"numbering,omitempty"`
	Blockquote bool          `json:"blockquote,omitempty"`
}

// NumberingRef places a paragraph in a list.
type NumberingRef struct {
	NumID string `json:"numId"`
	Level int    `json:"level"`
}

// Run is a span of text with uniform formatting.
type Run struct {
	Text      string          `json:"text"`
	Bold      bool            `json:"bold,omitempty"`
	Italic    bool            `json:"italic,omitempty"`
	Underline bool            `json:"underline,omitempty"`
	Strike    bool            `json:"strike,omitempty"`
	Size      int             `json:"size,omitempty"`  // half-points
	Color     string          `json:"color,omitempty"` // RRGGBB
	Hyperlink string          `json:"hyperlink,omitempty"`
	Object    *EmbeddedObject `json:"object,omitempty"`
}

// EmbeddedObject is a drawing or picture carried through verbatim so its
// relationships survive a round trip. It is not rendered.
type EmbeddedObject struct {
	XML    string   `json:"xml"`
	RelIDs []string `json:"relIds,omitempty"`
}

// SameFormat reports whether two runs can be merged without changing meaning.
func (r Run) SameFormat(o Run) bool {
	return r.Object == nil && o.Object == nil &&
		r.Bold == o.Bold && r.Italic == o.Italic &&
		r.Underline == o.Underline && r.Strike == o.Strike &&
		r.Size == o.Size && r.Color == o.Color &&
		r.Hyperlink == o.Hyperlink
}

// CoalesceRuns merges adjacent runs with identical formatting and drops empty
// text runs. It returns a new slice.
func CoalesceRuns(runs []Run) []Run {
	out := make([]Run, 0, len(runs))
	for _, r := range runs {
		if r.Object == nil && r.Text == "" {
			continue
		}
		if n := len(out); n > 0 && out[n-1].SameFormat(r) {
			out[n-1].Text += r.Text
			continue
		}
		out = append(out, r)
	}
	return out
}

// Text returns the concatenated run text.
func (p *Paragraph) Text() string {
	var b strings.Builder
	for _, r := range p.Runs {
		b.WriteString(r.Text)
	}
	return b.String()
}

// Table is an ordered list of rows. Rows may have different cell counts.
type Table struct {
	Rows          []Row  `json:"rows"`
	PropertiesXML string `json:"propertiesXml,omitempty"` // canonical w:tblPr
}

// Row is an ordered list of cells.
type Row struct {
	Cells []Cell `json:"cells"`
}

// Cell holds at least one paragraph.
type Cell struct {
	Paragraphs []Paragraph `json:"paragraphs"`
}

func (*Paragraph) isBlock() {}
func (*Table) isBlock()     {}

// Style is a single entry of the style sheet.
type Style struct {
	ID           string `json:"id"`
	Name         string `json:"name,omitempty"`
	Type         string `json:"type,omitempty"`
	BasedOn      string `json:"basedOn,omitempty"`
	HeadingLevel int    `json:"headingLevel,omitempty"`
	Bold         bool   `json:"bold,omitempty"`
	Italic       bool   `json:"italic,omitempty"`
	Size         int    `json:"size,omitempty"`
	Synthetic    bool   `json:"-"` // added by the converter, absent from Raw
}

// StyleSheet maps style ids to properties. Raw holds the original styles part
// so it can be written back untouched.
type StyleSheet struct {
	Styles map[string]Style `json:"styles"`
	Raw    []byte           `json:"-"`
}

// Lookup returns the style with the given id.
func (s StyleSheet) Lookup(id string) (Style, bool) {
	st, ok := s.Styles[id]
	return st, ok
}

// HeadingLevel resolves a paragraph style to a heading level (0 = not a
// heading), following basedOn chains and falling back to built-in ids.
func (s StyleSheet) HeadingLevel(id string) int {
	seen := make(map[string]bool)
	for cur := id; cur != "" && !seen[cur]; {
		seen[cur] = true
		st, ok := s.Styles[cur]
		if !ok {
			break
		}
		if st.HeadingLevel > 0 {
			return st.HeadingLevel
		}
		cur = st.BasedOn
	}
	return builtinHeadingLevel(id)
}

// IsQuote reports whether the style renders as a block quotation.
func (s StyleSheet) IsQuote(id string) bool {
	if id == "" {
		return false
	}
	if strings.Contains(strings.ToLower(id), "quote") {
		return true
	}
	st, ok := s.Styles[id]
	return ok && strings.Contains(strings.ToLower(st.Name), "quote")
}

// HeadingStyleID returns the id of the style used for a heading level,
// preferring an existing style in the sheet.
func (s StyleSheet) HeadingStyleID(level int) string {
	want := "Heading" + strconv.Itoa(level)
	if _, ok := s.Styles[want]; ok {
		return want
	}
	var candidates []string
	for id, st := range s.Styles {
		if st.HeadingLevel == level && st.Type == "paragraph" {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		return want
	}
	sort.Strings(candidates)
	return candidates[0]
}

func builtinHeadingLevel(id string) int {
	lower := strings.ToLower(strings.ReplaceAll(id, " ", ""))
	if !strings.HasPrefix(lower, "heading") || len(lower) != len("heading")+1 {
		return 0
	}
	ch := lower[len(lower)-1]
	if ch >= '1' && ch <= '9' {
		return int(ch - '0')
	}
	return 0
}

// QuoteStyleID is the built-in style used for block quotations.
const QuoteStyleID = "Quote"

// DefaultStyleSheet returns the styles emitted for fresh documents.
func DefaultStyleSheet() StyleSheet {
	sizes := []int{32, 26, 24, 22, 20, 20}
	styles := map[string]Style{
		"Normal":     {ID: "Normal", Name: "Normal", Type: "paragraph"},
		QuoteStyleID: {ID: QuoteStyleID, Name: "Quote", Type: "paragraph", BasedOn: "Normal", Italic: true},
	}
	for i, size := range sizes {
		level := i + 1
		id := fmt.Sprintf("Heading%d", level)
		styles[id] = Style{
			ID:           id,
			Name:         fmt.Sprintf("heading %d", level),
			Type:         "paragraph",
			BasedOn:      "Normal",
			HeadingLevel: level,
			Bold:         true,
			Size:         size,
		}
	}
	return StyleSheet{Styles: styles}
}

// NumberingDef is a list definition: a num instance and the per-level
// formats of its abstract definition.
type NumberingDef struct {
	NumID      string   `json:"numId"`
	AbstractID string   `json:"abstractId"`
	Formats    []string `json:"formats"`           // numFmt per level, e.g. "bullet", "decimal"
	Restart    bool     `json:"restart,omitempty"` // the num instance overrides every level to start at 1
	Synthetic  bool     `json:"-"`
}

// Ordered reports whether the given level renders as an ordered list.
func (d NumberingDef) Ordered(level int) bool {
	if len(d.Formats) == 0 {
		return false
	}
	if level < 0 {
		level = 0
	}
	if level >= len(d.Formats) {
		level = len(d.Formats) - 1
	}
	f := d.Formats[level]
	return f != "" && f != "bullet" && f != "none"
}

// NumberingTable maps numIds to list definitions.
type NumberingTable struct {
	Lists map[string]NumberingDef `json:"lists"`
	Raw   []byte                  `json:"-"`
}

// Ordered reports whether a list reference renders as <ol>.
func (n NumberingTable) Ordered(ref *NumberingRef) bool {
	if ref == nil {
		return false
	}
	def, ok := n.Lists[ref.NumID]
	return ok && def.Ordered(ref.Level)
}

// FindList returns the numId of the first definition (by numeric id) whose
// top level matches the requested ordering.
func (n NumberingTable) FindList(ordered bool) (string, bool) {
	best, found := 0, false
	for id, def := range n.Lists {
		if def.Ordered(0) != ordered {
			continue
		}
		num, err := strconv.Atoi(id)
		if err != nil {
			continue
		}
		if !found || num < best {
			best, found = num, true
		}
	}
	if !found {
		return "", false
	}
	return strconv.Itoa(best), true
}

// NextIDs returns unused numeric num and abstractNum ids.
func (n NumberingTable) NextIDs() (numID, abstractID string) {
	maxNum, maxAbs := 0, -1
	for id, def := range n.Lists {
		if v, err := strconv.Atoi(id); err == nil && v > maxNum {
			maxNum = v
		}
		if v, err := strconv.Atoi(def.AbstractID); err == nil && v > maxAbs {
			maxAbs = v
		}
	}
	return strconv.Itoa(maxNum + 1), strconv.Itoa(maxAbs + 1)
}

// NewListDef builds a synthetic nine-level definition.
func NewListDef(numID, abstractID string, ordered bool) NumberingDef {
	formats := make([]string, 9)
	for i := range formats {
		switch {
		case !ordered:
			formats[i] = "bullet"
		case i%3 == 0:
			formats[i] = "decimal"
		case i%3 == 1:
			formats[i] = "lowerLetter"
		default:
			formats[i] = "lowerRoman"
		}
	}
	return NumberingDef{NumID: numID, AbstractID: abstractID, Formats: formats, Synthetic: true}
}

// DefaultNumbering returns a bullet list (numId 1) and a decimal list (numId 2).
func DefaultNumbering() NumberingTable {
	return NumberingTable{Lists: map[string]NumberingDef{
		"1": NewListDef("1", "0", false),
		"2": NewListDef("2", "1", true),
	}}
}

// Relationship is one entry of a relationship part.
type Relationship struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Target     string `json:"target"`
	TargetMode string `json:"targetMode,omitempty"`
}

// RelationshipTable is an ordered relationship part.
type RelationshipTable struct {
	Rels []Relationship `json:"rels"`
}

// Lookup finds a relationship by id.
func (t RelationshipTable) Lookup(id string) (Relationship, bool) {
	for _, r := range t.Rels {
		if r.ID == id {
			return r, true
		}
	}
	return Relationship{}, false
}

// FindType returns the first relationship of the given type.
func (t RelationshipTable) FindType(relType string) (Relationship, bool) {
	for _, r := range t.Rels {
		if r.Type == relType {
			return r, true
		}
	}
	return Relationship{}, false
}

// NextID returns an rId not yet used in the table.
func (t RelationshipTable) NextID() string {
	used := make(map[string]bool, len(t.Rels))
	for _, r := range t.Rels {
		used[r.ID] = true
	}
	for i := len(t.Rels) + 1; ; i++ {
		id := "rId" + strconv.Itoa(i)
		if !used[id] {
			return id
		}
	}
}

// Resource is a package part carried through without semantic modeling
// (media, theme, settings, fonts, headers, document properties).
type Resource struct {
	Path        string `json:"path"`
	ContentType string `json:"contentType"`
	Data        []byte `json:"-"`
}

// Clone returns a deep copy of the document. Resource data is shared because
// it is never mutated.
func (d *Document) Clone() *Document {
	out := *d
	out.Blocks = CloneBlocks(d.Blocks)
	out.Styles = d.Styles.clone()
	out.Numbering = d.Numbering.clone()
	out.Relationships = RelationshipTable{Rels: append([]Relationship(nil), d.Relationships.Rels...)}
	out.PackageRelationships = RelationshipTable{Rels: append([]Relationship(nil), d.PackageRelationships.Rels...)}
	out.Resources = append([]Resource(nil), d.Resources...)
	return &out
}

// CloneBlocks deep-copies a block list.
func CloneBlocks(blocks []Block) []Block {
	out := make([]Block, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, CloneBlock(b))
	}
	return out
}

// CloneBlock deep-copies a single block.
func CloneBlock(b Block) Block {
	switch v := b.(type) {
	case *Paragraph:
		p := cloneParagraph(*v)
		return &p
	case *Table:
		t := &Table{PropertiesXML: v.PropertiesXML, Rows: make([]Row, len(v.Rows))}
		for i, row := range v.Rows {
			cells := make([]Cell, len(row.Cells))
			for j, cell := range row.Cells {
				paras := make([]Paragraph, len(cell.Paragraphs))
				for k, p := range cell.Paragraphs {
					paras[k] = cloneParagraph(p)
				}
				cells[j] = Cell{Paragraphs: paras}
			}
			t.Rows[i] = Row{Cells: cells}
		}
		return t
	default:
		panic(fmt.Sprintf("docx: unknown block type %T", b))
	}
}

func cloneParagraph(p Paragraph) Paragraph {
	out := p
	out.Runs = make([]Run, len(p.Runs))
	for i, r := range p.Runs {
		out.Runs[i] = r
		if r.Object != nil {
			obj := *r.Object
			obj.RelIDs = append([]string(nil), r.Object.RelIDs...)
			out.Runs[i].Object = &obj
		}
	}
	if p.Numbering != nil {
		ref := *p.Numbering
		out.Numbering = &ref
	}
	return out
}

func (s StyleSheet) clone() StyleSheet {
	out := StyleSheet{Styles: make(map[string]Style, len(s.Styles)), Raw: s.Raw}
	for k, v := range s.Styles {
		out.Styles[k] = v
	}
	return out
}

func (n NumberingTable) clone() NumberingTable {
	out := NumberingTable{Lists: make(map[string]NumberingDef, len(n.Lists)), Raw: n.Raw}
	for k, v := range n.Lists {
		v.Formats = append([]string(nil), v.Formats...)
		out.Lists[k] = v
	}
	return out
}
