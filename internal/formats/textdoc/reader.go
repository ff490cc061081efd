// Package textdoc reads and writes .docx files as a flat list of text nodes.
// It tolerates malformed markup and keeps only text structure, which makes it
// the fallback path when the full model cannot be built.
package textdoc

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
)

// NodeType identifies the kind of content node in a document.
type NodeType int

const (
	// NodeParagraph represents a text paragraph.
	NodeParagraph NodeType = iota
	// NodeHeading represents a heading paragraph with a level (1-9).
	NodeHeading
	// NodeTable represents a table with rows and cells.
	NodeTable
	// NodeListItem represents a list item (bulleted or numbered).
	NodeListItem
)

// Node represents a single structural element in a document.
type Node struct {
	Type     NodeType  `json:"type"`
	Text     string    `json:"text"`
	Level    int       `json:"level,omitempty"`    // Heading level (1-9) or list nesting level
	Style    string    `json:"style,omitempty"`    // Original OOXML style name
	Children []Node    `json:"children,omitempty"` // For tables: rows containing cells
	Runs     []Run     `json:"runs,omitempty"`
	ListInfo *ListInfo `json:"listInfo,omitempty"`
}

// Run represents a contiguous run of text with consistent formatting.
type Run struct {
	Text      string `json:"text"`
	Bold      bool   `json:"bold,omitempty"`
	Italic    bool   `json:"italic,omitempty"`
	Underline bool   `json:"underline,omitempty"`
	Strike    bool   `json:"strike,omitempty"`
}

// ListInfo holds numbering details for list items.
type ListInfo struct {
	NumID   string `json:"numId"`
	Level   int    `json:"level"`
	Ordered bool   `json:"ordered,omitempty"`
}

// Metadata holds document-level metadata extracted from core.xml.
type Metadata struct {
	Title       string `json:"title,omitempty"`
	Creator     string `json:"creator,omitempty"`
	Description string `json:"description,omitempty"`
	Created     string `json:"created,omitempty"`
	Modified    string `json:"modified,omitempty"`
}

// Document is the flat text representation of a .docx file.
type Document struct {
	Nodes    []Node   `json:"nodes"`
	Metadata Metadata `json:"metadata"`
}

type xmlParagraph struct {
	Properties xmlParagraphProps `xml:"pPr"`
	Inline     []xmlInline       `xml:",any"`
}

type xmlParagraphProps struct {
	Style   xmlVal   `xml:"pStyle"`
	NumPr   xmlNumPr `xml:"numPr"`
	Heading xmlVal   `xml:"outlineLvl"`
}

type xmlVal struct {
	Val string `xml:"val,attr"`
}

type xmlNumPr struct {
	ILevel xmlVal `xml:"ilvl"`
	NumID  xmlVal `xml:"numId"`
}

// xmlInline is a run, or a wrapper (hyperlink, smart tag, insertion) holding runs.
type xmlInline struct {
	XMLName    xml.Name
	Properties xmlRunProps `xml:"rPr"`
	Text       []xmlText   `xml:"t"`
	Runs       []xmlRun    `xml:"r"`
}

type xmlRun struct {
	Properties xmlRunProps `xml:"rPr"`
	Text       []xmlText   `xml:"t"`
}

type xmlRunProps struct {
	Bold      *xmlVal `xml:"b"`
	Italic    *xmlVal `xml:"i"`
	Underline *xmlVal `xml:"u"`
	Strike    *xmlVal `xml:"strike"`
}

type xmlText struct {
	Space string `xml:"space,attr"`
	Value string `xml:",chardata"`
}

type xmlTable struct {
	Rows []xmlTableRow `xml:"tr"`
}

type xmlTableRow struct {
	Cells []xmlTableCell `xml:"tc"`
}

type xmlTableCell struct {
	Paragraphs []xmlParagraph `xml:"p"`
}

type xmlCoreProperties struct {
	Title       string `xml:"title"`
	Creator     string `xml:"creator"`
	Description string `xml:"description"`
	Created     string `xml:"created"`
	Modified    string `xml:"modified"`
}

type xmlNumbering struct {
	Abstract []struct {
		ID     string `xml:"abstractNumId,attr"`
		Levels []struct {
			ILevel string `xml:"ilvl,attr"`
			Format xmlVal `xml:"numFmt"`
		} `xml:"lvl"`
	} `xml:"abstractNum"`
	Nums []struct {
		ID       string `xml:"numId,attr"`
		Abstract xmlVal `xml:"abstractNumId"`
	} `xml:"num"`
}

// ReadFile reads and parses a .docx file from the given path.
func ReadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", path)
		}
		return nil, fmt.Errorf("could not read %s: %w", path, err)
	}
	return Read(data)
}

// Read parses .docx bytes. Markup errors after the first recovered node stop
// the scan but keep what was read so far.
func Read(data []byte) (*Document, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("invalid .docx file: not a ZIP archive: %w", err)
	}

	doc := &Document{}

	// Metadata is optional.
	if raw, ok := readMember(reader, "docProps/core.xml"); ok {
		var props xmlCoreProperties
		if xml.Unmarshal(raw, &props) == nil {
			doc.Metadata = Metadata(props)
		}
	}

	body, ok := readMember(reader, findMainPart(reader))
	if !ok {
		return nil, fmt.Errorf("invalid .docx file: no main document part")
	}

	ordered := map[string]bool{}
	if raw, ok := readMember(reader, "word/numbering.xml"); ok {
		ordered = orderedLists(raw)
	}

	if err := parseXMLBody(body, doc, ordered); err != nil {
		return nil, err
	}
	return doc, nil
}

func findMainPart(reader *zip.Reader) string {
	for _, f := range reader.File {
		if f.Name == "word/document.xml" {
			return f.Name
		}
	}
	for _, f := range reader.File {
		name := path.Base(f.Name)
		if strings.HasPrefix(name, "document") && strings.HasSuffix(name, ".xml") && !strings.Contains(f.Name, "_rels") {
			return f.Name
		}
	}
	return ""
}

func readMember(reader *zip.Reader, name string) ([]byte, bool) {
	if name == "" {
		return nil, false
	}
	for _, f := range reader.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, false
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, false
		}
		return data, true
	}
	return nil, false
}

// orderedLists maps numIds to whether their first level is numbered.
func orderedLists(data []byte) map[string]bool {
	var n xmlNumbering
	out := make(map[string]bool)
	if err := newDecoder(data).Decode(&n); err != nil {
		return out
	}
	formats := make(map[string]string, len(n.Abstract))
	for _, a := range n.Abstract {
		for _, l := range a.Levels {
			if l.ILevel == "0" {
				formats[a.ID] = l.Format.Val
			}
		}
	}
	for _, num := range n.Nums {
		f := formats[num.Abstract.Val]
		out[num.ID] = f != "" && f != "bullet" && f != "none"
	}
	return out
}

func newDecoder(data []byte) *xml.Decoder {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.Strict = false
	decoder.Entity = xml.HTMLEntity
	return decoder
}

func parseXMLBody(data []byte, doc *Document, ordered map[string]bool) error {
	decoder := newDecoder(data)

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			return fmt.Errorf("invalid .docx file: no body element found")
		}
		if err != nil {
			return fmt.Errorf("XML parse error before body: %w", err)
		}
		if se, ok := tok.(xml.StartElement); ok && se.Name.Local == "body" {
			break
		}
	}

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			if len(doc.Nodes) > 0 {
				return nil
			}
			return fmt.Errorf("XML parse error: %w", err)
		}

		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch se.Name.Local {
		case "p":
			var p xmlParagraph
			if err := decoder.DecodeElement(&p, &se); err != nil {
				return partial(doc, fmt.Errorf("could not parse paragraph: %w", err))
			}
			if node := paragraphNode(p, ordered); node != nil {
				doc.Nodes = append(doc.Nodes, *node)
			}
		case "tbl":
			var t xmlTable
			if err := decoder.DecodeElement(&t, &se); err != nil {
				return partial(doc, fmt.Errorf("could not parse table: %w", err))
			}
			doc.Nodes = append(doc.Nodes, tableNode(t))
		case "sdt", "sdtContent", "customXml":
			// descend into content controls
		default:
			if err := decoder.Skip(); err != nil {
				return partial(doc, err)
			}
		}
	}

	return nil
}

func partial(doc *Document, err error) error {
	if len(doc.Nodes) > 0 {
		return nil
	}
	return err
}

func on(v *xmlVal) bool {
	if v == nil {
		return false
	}
	switch v.Val {
	case "0", "false", "none", "off":
		return false
	}
	return true
}

func inlineRuns(p xmlParagraph) []Run {
	var runs []Run
	add := func(props xmlRunProps, texts []xmlText) {
		var b strings.Builder
		for _, t := range texts {
			b.WriteString(t.Value)
		}
		if b.Len() == 0 {
			return
		}
		runs = append(runs, Run{
			Text:      b.String(),
			Bold:      on(props.Bold),
			Italic:    on(props.Italic),
			Underline: on(props.Underline),
			Strike:    on(props.Strike),
		})
	}
	for _, item := range p.Inline {
		switch item.XMLName.Local {
		case "r":
			add(item.Properties, item.Text)
		case "hyperlink", "smartTag", "ins", "fldSimple":
			for _, r := range item.Runs {
				add(r.Properties, r.Text)
			}
		}
	}
	return runs
}

func paragraphNode(p xmlParagraph, ordered map[string]bool) *Node {
	runs := inlineRuns(p)
	var text strings.Builder
	for _, r := range runs {
		text.WriteString(r.Text)
	}

	// Empty paragraphs carry no text worth keeping here.
	if strings.TrimSpace(text.String()) == "" {
		return nil
	}

	node := &Node{
		Type: NodeParagraph,
		Text: text.String(),
		Runs: runs,
	}

	styleName := p.Properties.Style.Val
	node.Style = styleName
	if strings.HasPrefix(styleName, "Heading") || strings.HasPrefix(styleName, "heading") {
		node.Type = NodeHeading
		level := 1
		if len(styleName) > 7 {
			ch := styleName[7]
			if ch >= '1' && ch <= '9' {
				level = int(ch - '0')
			}
		}
		node.Level = level
	}

	if v := p.Properties.Heading.Val; v != "" {
		ch := v[0]
		if ch >= '0' && ch <= '8' {
			node.Type = NodeHeading
			node.Level = int(ch-'0') + 1
		}
	}

	if numID := p.Properties.NumPr.NumID.Val; numID != "" && numID != "0" {
		node.Type = NodeListItem
		level := 0
		if v := p.Properties.NumPr.ILevel.Val; v != "" {
			ch := v[0]
			if ch >= '0' && ch <= '9' {
				level = int(ch - '0')
			}
		}
		node.Level = level
		node.ListInfo = &ListInfo{NumID: numID, Level: level, Ordered: ordered[numID]}
	}

	return node
}

func tableNode(t xmlTable) Node {
	node := Node{
		Type:     NodeTable,
		Children: make([]Node, 0, len(t.Rows)),
	}
	for _, row := range t.Rows {
		rowNode := Node{Children: make([]Node, 0, len(row.Cells))}
		for _, cell := range row.Cells {
			var texts []string
			for _, p := range cell.Paragraphs {
				var text strings.Builder
				for _, r := range inlineRuns(p) {
					text.WriteString(r.Text)
				}
				if text.Len() > 0 {
					texts = append(texts, text.String())
				}
			}
			rowNode.Children = append(rowNode.Children, Node{
				Type: NodeParagraph,
				Text: strings.Join(texts, "\n"),
			})
		}
		node.Children = append(node.Children, rowNode)
	}
	return node
}
