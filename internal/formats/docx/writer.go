package docx

import (
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// Serialize writes a Document as .docx bytes. The output always opens with
// OpenPackage and parses with Parse.
func Serialize(doc *Document) ([]byte, error) {
	pkg, err := BuildPackage(doc)
	if err != nil {
		return nil, err
	}
	return WritePackage(pkg)
}

// BuildPackage lays out every part of a document without archiving it.
func BuildPackage(doc *Document) (*Package, error) {
	main := doc.MainPart
	if main == "" {
		main = DefaultMainPart
	}

	pkg := NewPackage()
	pkg.MainPart = main

	for _, res := range doc.Resources {
		ct := res.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		pkg.SetPart(res.Path, ct, res.Data)
	}

	pkgRels := cloneTable(doc.PackageRelationships)
	pkgRels = ensureRelationship(pkgRels, RelTypeOfficeDocument, main)
	pkg.Relationships[""] = pkgRels

	docRels := cloneTable(doc.Relationships)

	if len(doc.Styles.Styles) > 0 || doc.Styles.Raw != nil {
		data, err := writeStyles(doc.Styles)
		if err != nil {
			return nil, &SerializationError{Part: "styles", Err: err}
		}
		var part string
		docRels, part = relatedTarget(docRels, main, RelTypeStyles, "styles.xml")
		pkg.SetPart(part, ContentTypeStyles, data)
	}

	if len(doc.Numbering.Lists) > 0 || doc.Numbering.Raw != nil {
		data, err := writeNumbering(doc.Numbering)
		if err != nil {
			return nil, &SerializationError{Part: "numbering", Err: err}
		}
		var part string
		docRels, part = relatedTarget(docRels, main, RelTypeNumbering, "numbering.xml")
		pkg.SetPart(part, ContentTypeNumbering, data)
	}

	body, err := writeMainPart(doc)
	if err != nil {
		return nil, &SerializationError{Part: main, Err: err}
	}
	pkg.SetPart(main, ContentTypeMain, body)
	pkg.Relationships[main] = docRels

	return pkg, nil
}

// ensureRelationship makes sure the table has a relationship of the given type
// pointing at target (a package-root relative path).
func ensureRelationship(t RelationshipTable, relType, target string) RelationshipTable {
	for i, rel := range t.Rels {
		if rel.Type == relType {
			t.Rels[i].Target = target
			return t
		}
	}
	t.Rels = append(t.Rels, Relationship{ID: t.NextID(), Type: relType, Target: target})
	return t
}

// relatedTarget returns the part a main-document relationship points at,
// adding the relationship when it is missing.
func relatedTarget(t RelationshipTable, main, relType, file string) (RelationshipTable, string) {
	if rel, ok := t.FindType(relType); ok {
		return t, ResolveTarget(main, rel.Target)
	}
	t.Rels = append(t.Rels, Relationship{ID: t.NextID(), Type: relType, Target: file})
	return t, path.Join(path.Dir(main), file)
}

func newTree(root string) (*etree.Document, *etree.Element) {
	tree := etree.NewDocument()
	tree.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)
	return tree, tree.CreateElement(root)
}

func writeMainPart(doc *Document) ([]byte, error) {
	tree, root := newTree("w:document")
	for _, ns := range documentNamespaces {
		root.CreateAttr("xmlns:"+ns.Prefix, ns.URI)
	}
	root.CreateAttr("mc:Ignorable", "w14 w15 wp14")

	body := root.CreateElement("w:body")
	for _, b := range doc.Blocks {
		switch v := b.(type) {
		case *Paragraph:
			if err := writeParagraph(body, v); err != nil {
				return nil, err
			}
		case *Table:
			if err := writeTable(body, v); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("unknown block type %T", b)
		}
	}

	if doc.SectionXML != "" {
		sect, err := parseFragment(doc.SectionXML)
		if err != nil {
			return nil, fmt.Errorf("section properties: %w", err)
		}
		body.AddChild(sect)
	} else {
		writeDefaultSection(body)
	}

	return tree.WriteToBytes()
}

func writeDefaultSection(body *etree.Element) {
	sect := body.CreateElement("w:sectPr")
	sz := sect.CreateElement("w:pgSz")
	sz.CreateAttr("w:w", "12240")
	sz.CreateAttr("w:h", "15840")
	mar := sect.CreateElement("w:pgMar")
	for _, kv := range [][2]string{
		{"w:top", "1440"}, {"w:right", "1440"}, {"w:bottom", "1440"}, {"w:left", "1440"},
		{"w:header", "720"}, {"w:footer", "720"}, {"w:gutter", "0"},
	} {
		mar.CreateAttr(kv[0], kv[1])
	}
}

func setVal(parent *etree.Element, tag, val string) *etree.Element {
	el := parent.CreateElement(tag)
	el.CreateAttr("w:val", val)
	return el
}

var alignValues = map[Alignment]string{
	AlignCenter:  "center",
	AlignEnd:     "right",
	AlignJustify: "both",
}

func writeParagraph(parent *etree.Element, p *Paragraph) error {
	el := parent.CreateElement("w:p")

	styleID := p.StyleID
	if styleID == "" && p.Blockquote {
		styleID = QuoteStyleID
	}
	if styleID != "" || p.Numbering != nil || p.Align != AlignStart {
		ppr := el.CreateElement("w:pPr")
		if styleID != "" {
			setVal(ppr, "w:pStyle", styleID)
		}
		if p.Numbering != nil {
			numPr := ppr.CreateElement("w:numPr")
			setVal(numPr, "w:ilvl", strconv.Itoa(p.Numbering.Level))
			setVal(numPr, "w:numId", p.Numbering.NumID)
		}
		if v, ok := alignValues[p.Align]; ok {
			setVal(ppr, "w:jc", v)
		}
	}

	return writeRuns(el, CoalesceRuns(p.Runs))
}

// writeRuns groups consecutive runs sharing a hyperlink into one w:hyperlink.
func writeRuns(p *etree.Element, runs []Run) error {
	var link *etree.Element
	current := ""
	for _, r := range runs {
		container := p
		if r.Hyperlink != "" {
			if link == nil || r.Hyperlink != current {
				link = p.CreateElement("w:hyperlink")
				if anchor, ok := strings.CutPrefix(r.Hyperlink, "#"); ok {
					link.CreateAttr("w:anchor", anchor)
				} else {
					link.CreateAttr("r:id", r.Hyperlink)
				}
				current = r.Hyperlink
			}
			container = link
		} else {
			link, current = nil, ""
		}
		if err := writeRun(container, r); err != nil {
			return err
		}
	}
	return nil
}

func writeRun(parent *etree.Element, r Run) error {
	el := parent.CreateElement("w:r")
	if r.Object != nil {
		obj, err := parseFragment(r.Object.XML)
		if err != nil {
			return fmt.Errorf("embedded object: %w", err)
		}
		el.AddChild(obj)
		return nil
	}

	writeRunProperties(el, r)

	var text strings.Builder
	flush := func() {
		if text.Len() == 0 {
			return
		}
		t := el.CreateElement("w:t")
		t.CreateAttr("xml:space", "preserve")
		t.SetText(text.String())
		text.Reset()
	}
	for _, ch := range r.Text {
		switch ch {
		case '\n':
			flush()
			el.CreateElement("w:br")
		case '\t':
			flush()
			el.CreateElement("w:tab")
		default:
			text.WriteRune(ch)
		}
	}
	flush()
	return nil
}

// writeRunProperties emits rPr children in schema order.
func writeRunProperties(el *etree.Element, r Run) {
	if !r.Bold && !r.Italic && !r.Strike && r.Color == "" && r.Size == 0 && !r.Underline {
		return
	}
	rpr := el.CreateElement("w:rPr")
	if r.Bold {
		rpr.CreateElement("w:b")
	}
	if r.Italic {
		rpr.CreateElement("w:i")
	}
	if r.Strike {
		rpr.CreateElement("w:strike")
	}
	if r.Color != "" {
		setVal(rpr, "w:color", r.Color)
	}
	if r.Size > 0 {
		setVal(rpr, "w:sz", strconv.Itoa(r.Size))
	}
	if r.Underline {
		setVal(rpr, "w:u", "single")
	}
}

func writeTable(parent *etree.Element, t *Table) error {
	tbl := parent.CreateElement("w:tbl")
	if t.PropertiesXML != "" {
		pr, err := parseFragment(t.PropertiesXML)
		if err != nil {
			return fmt.Errorf("table properties: %w", err)
		}
		tbl.AddChild(pr)
	} else {
		writeDefaultTableProperties(tbl)
	}

	cols := 0
	for _, row := range t.Rows {
		if len(row.Cells) > cols {
			cols = len(row.Cells)
		}
	}
	grid := tbl.CreateElement("w:tblGrid")
	for i := 0; i < cols; i++ {
		col := grid.CreateElement("w:gridCol")
		col.CreateAttr("w:w", strconv.Itoa(9360/cols))
	}

	for _, row := range t.Rows {
		tr := tbl.CreateElement("w:tr")
		for _, cell := range row.Cells {
			tc := tr.CreateElement("w:tc")
			paras := cell.Paragraphs
			if len(paras) == 0 {
				paras = []Paragraph{{}}
			}
			for i := range paras {
				if err := writeParagraph(tc, &paras[i]); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func writeDefaultTableProperties(tbl *etree.Element) {
	pr := tbl.CreateElement("w:tblPr")
	w := pr.CreateElement("w:tblW")
	w.CreateAttr("w:w", "0")
	w.CreateAttr("w:type", "auto")
	borders := pr.CreateElement("w:tblBorders")
	for _, side := range []string{"top", "left", "bottom", "right", "insideH", "insideV"} {
		b := borders.CreateElement("w:" + side)
		b.CreateAttr("w:val", "single")
		b.CreateAttr("w:sz", "4")
		b.CreateAttr("w:space", "0")
		b.CreateAttr("w:color", "auto")
	}
}

// writeStyles returns the styles part: the original bytes untouched, the
// original augmented with synthetic styles, or a generated sheet.
func writeStyles(sheet StyleSheet) ([]byte, error) {
	var synthetic []Style
	for _, st := range sheet.Styles {
		if st.Synthetic || sheet.Raw == nil {
			synthetic = append(synthetic, st)
		}
	}
	sort.Slice(synthetic, func(i, j int) bool { return styleOrder(synthetic[i]) < styleOrder(synthetic[j]) })

	if sheet.Raw != nil && len(synthetic) == 0 {
		return sheet.Raw, nil
	}

	tree, root, err := auxiliaryTree(sheet.Raw, "w:styles")
	if err != nil {
		return nil, err
	}
	declare := needsDeclaration(root)
	for _, st := range synthetic {
		el := styleElement(st)
		if declare {
			el.CreateAttr("xmlns:w", NamespaceW)
		}
		root.AddChild(el)
	}
	return tree.WriteToBytes()
}

// styleOrder sorts Normal first, then by id.
func styleOrder(st Style) string {
	if st.ID == "Normal" {
		return ""
	}
	return st.ID
}

func styleElement(st Style) *etree.Element {
	el := etree.NewElement("w:style")
	typ := st.Type
	if typ == "" {
		typ = "paragraph"
	}
	el.CreateAttr("w:type", typ)
	if st.ID == "Normal" {
		el.CreateAttr("w:default", "1")
	}
	el.CreateAttr("w:styleId", st.ID)
	name := st.Name
	if name == "" {
		name = st.ID
	}
	setVal(el, "w:name", name)
	if st.BasedOn != "" {
		setVal(el, "w:basedOn", st.BasedOn)
	}
	if st.HeadingLevel > 0 || st.ID == QuoteStyleID {
		setVal(el, "w:next", "Normal")
		el.CreateElement("w:qFormat")
	}
	if st.HeadingLevel > 0 {
		ppr := el.CreateElement("w:pPr")
		ppr.CreateElement("w:keepNext")
		setVal(ppr, "w:outlineLvl", strconv.Itoa(st.HeadingLevel-1))
	}
	if st.Bold || st.Italic || st.Size > 0 {
		rpr := el.CreateElement("w:rPr")
		if st.Bold {
			rpr.CreateElement("w:b")
		}
		if st.Italic {
			rpr.CreateElement("w:i")
		}
		if st.Size > 0 {
			setVal(rpr, "w:sz", strconv.Itoa(st.Size))
		}
	}
	return el
}

// writeNumbering mirrors writeStyles for list definitions. Abstract
// definitions must precede every w:num in the part.
func writeNumbering(table NumberingTable) ([]byte, error) {
	var synthetic []NumberingDef
	for _, def := range table.Lists {
		if def.Synthetic || table.Raw == nil {
			synthetic = append(synthetic, def)
		}
	}
	sort.Slice(synthetic, func(i, j int) bool { return numericLess(synthetic[i].NumID, synthetic[j].NumID) })

	if table.Raw != nil && len(synthetic) == 0 {
		return table.Raw, nil
	}

	tree, root, err := auxiliaryTree(table.Raw, "w:numbering")
	if err != nil {
		return nil, err
	}
	declare := needsDeclaration(root)

	insertAt := len(root.Child)
	for i, tok := range root.Child {
		if el, ok := tok.(*etree.Element); ok && LocalName(el) == "num" {
			insertAt = i
			break
		}
	}

	written := make(map[string]bool)
	for _, el := range root.ChildElements() {
		if LocalName(el) == "abstractNum" {
			written[Attr(el, "abstractNumId")] = true
		}
	}
	for _, def := range synthetic {
		if written[def.AbstractID] {
			continue
		}
		written[def.AbstractID] = true
		el := abstractNumElement(def)
		if declare {
			el.CreateAttr("xmlns:w", NamespaceW)
		}
		root.InsertChildAt(insertAt, el)
		insertAt++
	}
	for _, def := range synthetic {
		el := etree.NewElement("w:num")
		if declare {
			el.CreateAttr("xmlns:w", NamespaceW)
		}
		el.CreateAttr("w:numId", def.NumID)
		setVal(el, "w:abstractNumId", def.AbstractID)
		if def.Restart {
			for i := range def.Formats {
				override := el.CreateElement("w:lvlOverride")
				override.CreateAttr("w:ilvl", strconv.Itoa(i))
				setVal(override, "w:startOverride", "1")
			}
		}
		root.AddChild(el)
	}
	return tree.WriteToBytes()
}

var bulletGlyphs = []string{"•", "o", "▪"}

func abstractNumElement(def NumberingDef) *etree.Element {
	el := etree.NewElement("w:abstractNum")
	el.CreateAttr("w:abstractNumId", def.AbstractID)
	setVal(el, "w:multiLevelType", "hybridMultilevel")
	for i, format := range def.Formats {
		lvl := el.CreateElement("w:lvl")
		lvl.CreateAttr("w:ilvl", strconv.Itoa(i))
		setVal(lvl, "w:start", "1")
		setVal(lvl, "w:numFmt", format)
		text := fmt.Sprintf("%%%d.", i+1)
		if format == "bullet" {
			text = bulletGlyphs[i%len(bulletGlyphs)]
		}
		setVal(lvl, "w:lvlText", text)
		setVal(lvl, "w:lvlJc", "left")
		ind := lvl.CreateElement("w:pPr").CreateElement("w:ind")
		ind.CreateAttr("w:left", strconv.Itoa(720*(i+1)))
		ind.CreateAttr("w:hanging", "360")
	}
	return el
}

// auxiliaryTree parses raw part bytes, or starts a fresh part with the given
// root when raw is nil.
func auxiliaryTree(raw []byte, rootTag string) (*etree.Document, *etree.Element, error) {
	if raw == nil {
		tree, root := newTree(rootTag)
		root.CreateAttr("xmlns:w", NamespaceW)
		return tree, root, nil
	}
	tree := etree.NewDocument()
	if err := tree.ReadFromBytes(raw); err != nil {
		return nil, nil, err
	}
	root := tree.Root()
	if root == nil {
		return nil, nil, fmt.Errorf("empty %s part", rootTag)
	}
	return tree, root, nil
}

// needsDeclaration reports whether elements using the "w" prefix appended to
// root must declare it themselves.
func needsDeclaration(root *etree.Element) bool {
	return root.SelectAttrValue("xmlns:w", "") != NamespaceW
}

func numericLess(a, b string) bool {
	x, errA := strconv.Atoi(a)
	y, errB := strconv.Atoi(b)
	if errA != nil || errB != nil {
		return a < b
	}
	return x < y
}
