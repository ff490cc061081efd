package docx

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// parseStyles reads the styles part. A missing part yields an empty sheet;
// an unreadable one is dropped with a warning.
func (p *Parser) parseStyles(pkg *Package, part string) StyleSheet {
	sheet := StyleSheet{Styles: make(map[string]Style)}
	data, ok := pkg.Part(part)
	if !ok {
		return sheet
	}
	root := p.readAuxiliary(part, data)
	if root == nil {
		return sheet
	}
	sheet.Raw = data

	r := p.resolver
	for _, el := range r.Children(root, "style") {
		st := Style{
			ID:      Attr(el, "styleId"),
			Type:    Attr(el, "type"),
			Name:    r.Val(el, "name"),
			BasedOn: r.Val(el, "basedOn"),
		}
		if st.ID == "" {
			continue
		}
		if rpr := r.Child(el, "rPr"); rpr != nil {
			st.Bold = p.flag(rpr, "b")
			st.Italic = p.flag(rpr, "i")
			st.Size, _ = strconv.Atoi(r.Val(rpr, "sz"))
		}
		st.HeadingLevel = p.styleHeadingLevel(st, r.Child(el, "pPr"))
		sheet.Styles[st.ID] = st
	}
	return sheet
}

// styleHeadingLevel derives a heading level from the style id, its name
// ("heading 2") or an explicit outline level.
func (p *Parser) styleHeadingLevel(st Style, ppr *etree.Element) int {
	if level := builtinHeadingLevel(st.ID); level > 0 {
		return level
	}
	if level := builtinHeadingLevel(st.Name); level > 0 {
		return level
	}
	if ppr == nil || (st.Type != "" && st.Type != "paragraph") {
		return 0
	}
	if lvl, err := strconv.Atoi(p.resolver.Val(ppr, "outlineLvl")); err == nil && lvl >= 0 && lvl < 9 {
		return lvl + 1
	}
	return 0
}

// parseNumbering reads list definitions: abstractNum level formats resolved
// through each num instance.
func (p *Parser) parseNumbering(pkg *Package, part string) NumberingTable {
	table := NumberingTable{Lists: make(map[string]NumberingDef)}
	data, ok := pkg.Part(part)
	if !ok {
		return table
	}
	root := p.readAuxiliary(part, data)
	if root == nil {
		return table
	}
	table.Raw = data

	r := p.resolver
	abstract := make(map[string][]string)
	for _, an := range r.Children(root, "abstractNum") {
		var formats []string
		for _, lvl := range r.Children(an, "lvl") {
			ilvl, err := strconv.Atoi(Attr(lvl, "ilvl"))
			if err != nil || ilvl < 0 || ilvl > 8 {
				continue
			}
			for len(formats) <= ilvl {
				formats = append(formats, "")
			}
			formats[ilvl] = r.Val(lvl, "numFmt")
		}
		abstract[Attr(an, "abstractNumId")] = formats
	}

	for _, num := range r.Children(root, "num") {
		numID := Attr(num, "numId")
		if numID == "" {
			continue
		}
		absID := r.Val(num, "abstractNumId")
		def := NumberingDef{
			NumID:      numID,
			AbstractID: absID,
			Formats:    append([]string(nil), abstract[absID]...),
		}
		for _, override := range r.Children(num, "lvlOverride") {
			if r.Val(override, "startOverride") == "1" {
				def.Restart = true
			}
		}
		table.Lists[numID] = def
	}
	return table
}

func (p *Parser) readAuxiliary(part string, data []byte) *etree.Element {
	tree := etree.NewDocument()
	if err := tree.ReadFromBytes(data); err != nil {
		p.warn(WarnDroppedMarkup, "ignored unreadable %s: %v", part, err)
		return nil
	}
	root := tree.Root()
	if root == nil {
		p.warn(WarnDroppedMarkup, "ignored empty %s", strings.TrimPrefix(part, "/"))
	}
	return root
}
