package docx

import (
	"archive/zip"
	"bytes"
	"errors"
	"testing"
)

func TestOpenPackageErrors(t *testing.T) {
	full := packageParts(documentXML(`<w:p/>`))

	withoutManifest := packageParts(documentXML(`<w:p/>`))
	delete(withoutManifest, ContentTypesPart)

	withoutMain := packageParts(documentXML(`<w:p/>`))
	delete(withoutMain, "word/document.xml")

	tests := []struct {
		name     string
		data     []byte
		sentinel error
		part     string
	}{
		{"not a zip", []byte("not a zip file"), ErrNotAnArchive, ""},
		{"missing manifest", zipParts(t, withoutManifest), ErrMissingPart, ContentTypesPart},
		{"missing main part", zipParts(t, withoutMain), ErrMissingPart, "word/document.xml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := OpenPackage(tt.data)
			if !errors.Is(err, tt.sentinel) {
				t.Fatalf("got %v, want %v", err, tt.sentinel)
			}
			var archiveErr *ArchiveError
			if !errors.As(err, &archiveErr) {
				t.Fatalf("expected *ArchiveError, got %T", err)
			}
			if archiveErr.Part != tt.part {
				t.Errorf("part = %q, want %q", archiveErr.Part, tt.part)
			}
		})
	}

	if _, err := OpenPackage(zipParts(t, full)); err != nil {
		t.Fatalf("valid package rejected: %v", err)
	}
}

func TestOpenPackageIndexesParts(t *testing.T) {
	pkg, err := OpenPackage(zipParts(t, packageParts(documentXML(`<w:p/>`))))
	if err != nil {
		t.Fatal(err)
	}

	if pkg.MainPart != "word/document.xml" {
		t.Errorf("main part = %q", pkg.MainPart)
	}
	if ct := pkg.ContentTypes.Lookup("word/document.xml"); ct != ContentTypeMain {
		t.Errorf("main content type = %q", ct)
	}
	if ct := pkg.ContentTypes.Lookup("word/media/image1.png"); ct != "image/png" {
		t.Errorf("default content type = %q", ct)
	}
	rel, ok := pkg.RelationshipsOf("word/document.xml").Lookup("rId9")
	if !ok || rel.TargetMode != "External" || rel.Target != "https://example.com" {
		t.Errorf("hyperlink relationship = %+v, %v", rel, ok)
	}
}

func TestOpenPackageRenamedMainPart(t *testing.T) {
	parts := packageParts("")
	delete(parts, "word/document.xml")
	parts["word/document2.xml"] = documentXML(`<w:p><w:r><w:t>moved</w:t></w:r></w:p>`)
	parts[PackageRelsPart] = `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		`<Relationship Id="rId1" Type="` + RelTypeOfficeDocument + `" Target="/word/document2.xml"/></Relationships>`

	doc, err := ParseBytes(zipParts(t, parts))
	if err != nil {
		t.Fatal(err)
	}
	if doc.MainPart != "word/document2.xml" {
		t.Errorf("main part = %q", doc.MainPart)
	}
	if got := paragraphAt(t, doc, 0).Text(); got != "moved" {
		t.Errorf("text = %q", got)
	}
}

func TestWritePackageOrder(t *testing.T) {
	pkg := NewPackage()
	pkg.SetPart("word/document.xml", ContentTypeMain, []byte(documentXML("")))
	pkg.SetPart("docProps/app.xml", "", []byte("<Properties/>"))
	pkg.Relationships[""] = RelationshipTable{Rels: []Relationship{{ID: "rId1", Type: RelTypeOfficeDocument, Target: "word/document.xml"}}}
	pkg.Relationships["word/document.xml"] = RelationshipTable{}

	data, err := WritePackage(pkg)
	if err != nil {
		t.Fatal(err)
	}
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}

	want := []string{ContentTypesPart, PackageRelsPart, "docProps/app.xml", "word/_rels/document.xml.rels", "word/document.xml"}
	if len(reader.File) != len(want) {
		t.Fatalf("got %d entries, want %d", len(reader.File), len(want))
	}
	for i, f := range reader.File {
		if f.Name != want[i] {
			t.Errorf("entry %d = %q, want %q", i, f.Name, want[i])
		}
	}

	again, err := WritePackage(pkg)
	if err != nil {
		t.Fatal(err)
	}
	reopened, err := OpenPackage(again)
	if err != nil {
		t.Fatalf("written package does not reopen: %v", err)
	}
	if reopened.MainPart != "word/document.xml" {
		t.Errorf("main part = %q", reopened.MainPart)
	}
}

func TestRelationshipPaths(t *testing.T) {
	tests := []struct {
		source, rels string
	}{
		{"", "_rels/.rels"},
		{"word/document.xml", "word/_rels/document.xml.rels"},
		{"word/header1.xml", "word/_rels/header1.xml.rels"},
	}
	for _, tt := range tests {
		if got := RelsPartFor(tt.source); got != tt.rels {
			t.Errorf("RelsPartFor(%q) = %q, want %q", tt.source, got, tt.rels)
		}
		source, ok := relsSource(tt.rels)
		if !ok || source != tt.source {
			t.Errorf("relsSource(%q) = %q, %v", tt.rels, source, ok)
		}
	}

	targets := []struct {
		source, target, want string
	}{
		{"word/document.xml", "styles.xml", "word/styles.xml"},
		{"word/document.xml", "media/image1.png", "word/media/image1.png"},
		{"word/document.xml", "../customXml/item1.xml", "customXml/item1.xml"},
		{"", "word/document.xml", "word/document.xml"},
		{"word/document.xml", "/word/numbering.xml", "word/numbering.xml"},
	}
	for _, tt := range targets {
		if got := ResolveTarget(tt.source, tt.target); got != tt.want {
			t.Errorf("ResolveTarget(%q, %q) = %q, want %q", tt.source, tt.target, got, tt.want)
		}
	}
}
