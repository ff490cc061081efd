package docx

import (
	"archive/zip"
	"bytes"
	"sort"
	"testing"
)

const (
	manifestXML = `<?xml version="1.0" encoding="UTF-8"?>` +
		`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
		`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
		`<Default Extension="xml" ContentType="application/xml"/>` +
		`<Default Extension="png" ContentType="image/png"/>` +
		`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
		`<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>` +
		`</Types>`

	rootRelsXML = `<?xml version="1.0" encoding="UTF-8"?>` +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
		`</Relationships>`

	docRelsXML = `<?xml version="1.0" encoding="UTF-8"?>` +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>` +
		`<Relationship Id="rId5" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="media/image1.png"/>` +
		`<Relationship Id="rId9" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/hyperlink" Target="https://example.com" TargetMode="External"/>` +
		`</Relationships>`

	stylesXMLFixture = `<?xml version="1.0" encoding="UTF-8"?>` +
		`<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
		`<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/></w:style>` +
		`<w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/><w:basedOn w:val="Normal"/><w:rPr><w:b/><w:sz w:val="32"/></w:rPr></w:style>` +
		`<w:style w:type="paragraph" w:styleId="Titre"><w:name w:val="Custom Title"/><w:pPr><w:outlineLvl w:val="1"/></w:pPr></w:style>` +
		`</w:styles>`
)

// documentXML wraps body content in a prefixed w:document.
func documentXML(body string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" ` +
		`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">` +
		`<w:body>` + body + `</w:body></w:document>`
}

// packageParts returns a complete minimal package around a main part.
func packageParts(main string) map[string]string {
	return map[string]string{
		ContentTypesPart:               manifestXML,
		PackageRelsPart:                rootRelsXML,
		"word/_rels/document.xml.rels": docRelsXML,
		"word/document.xml":            main,
		"word/styles.xml":              stylesXMLFixture,
		"word/media/image1.png":        "\x89PNG fake",
	}
}

func zipParts(t *testing.T, parts map[string]string) []byte {
	t.Helper()
	names := make([]string, 0, len(parts))
	for name := range parts {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(parts[name])); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func parseBody(t *testing.T, body string) (*Document, *Parser) {
	t.Helper()
	pkg, err := OpenPackage(zipParts(t, packageParts(documentXML(body))))
	if err != nil {
		t.Fatalf("OpenPackage failed: %v", err)
	}
	p := NewParser()
	doc, err := p.Parse(pkg)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return doc, p
}

func paragraphAt(t *testing.T, doc *Document, i int) *Paragraph {
	t.Helper()
	if i >= len(doc.Blocks) {
		t.Fatalf("expected block %d, document has %d", i, len(doc.Blocks))
	}
	p, ok := doc.Blocks[i].(*Paragraph)
	if !ok {
		t.Fatalf("block %d is %T, want *Paragraph", i, doc.Blocks[i])
	}
	return p
}

func tableAt(t *testing.T, doc *Document, i int) *Table {
	t.Helper()
	if i >= len(doc.Blocks) {
		t.Fatalf("expected block %d, document has %d", i, len(doc.Blocks))
	}
	tbl, ok := doc.Blocks[i].(*Table)
	if !ok {
		t.Fatalf("block %d is %T, want *Table", i, doc.Blocks[i])
	}
	return tbl
}
