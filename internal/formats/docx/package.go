// Package docx reads and writes WordprocessingML packages (.docx) and maps
// them to and from a semantic document model.
package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
)

// Conventional part names.
const (
	ContentTypesPart = "[Content_Types].xml"
	PackageRelsPart  = "_rels/.rels"
	DefaultMainPart  = "word/document.xml"
)

// Namespaces and content types of the package scaffolding.
const (
	nsContentTypes = "http://schemas.openxmlformats.org/package/2006/content-types"
	nsPackageRels  = "http://schemas.openxmlformats.org/package/2006/relationships"

	ContentTypeRels      = "application/vnd.openxmlformats-package.relationships+xml"
	ContentTypeXML       = "application/xml"
	ContentTypeMain      = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
	ContentTypeStyles    = "application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"
	ContentTypeNumbering = "application/vnd.openxmlformats-officedocument.wordprocessingml.numbering+xml"
)

// Relationship types used by the converter.
const (
	relTypeBase           = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/"
	RelTypeOfficeDocument = relTypeBase + "officeDocument"
	RelTypeStyles         = relTypeBase + "styles"
	RelTypeNumbering      = relTypeBase + "numbering"
	RelTypeImage          = relTypeBase + "image"
	RelTypeHyperlink      = relTypeBase + "hyperlink"
)

// ContentTypes is the parsed [Content_Types].xml manifest.
type ContentTypes struct {
	Defaults  map[string]string // extension (lowercase, no dot) -> content type
	Overrides map[string]string // part name without leading slash -> content type
}

// Lookup returns the content type of a part, preferring overrides.
func (c ContentTypes) Lookup(part string) string {
	if ct, ok := c.Overrides[strings.TrimPrefix(part, "/")]; ok {
		return ct
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(part), "."))
	return c.Defaults[ext]
}

// Package is an opened or to-be-written ZIP container. It is built for a
// single operation and never kept as long-lived state.
type Package struct {
	ContentTypes  ContentTypes
	Parts         map[string][]byte
	Relationships map[string]RelationshipTable // source part ("" = package root) -> table
	MainPart      string
}

// NewPackage returns an empty package for the write path.
func NewPackage() *Package {
	return &Package{
		ContentTypes: ContentTypes{
			Defaults:  map[string]string{"rels": ContentTypeRels, "xml": ContentTypeXML},
			Overrides: make(map[string]string),
		},
		Parts:         make(map[string][]byte),
		Relationships: make(map[string]RelationshipTable),
		MainPart:      DefaultMainPart,
	}
}

// Part returns the raw bytes of a named part.
func (p *Package) Part(name string) ([]byte, bool) {
	data, ok := p.Parts[strings.TrimPrefix(name, "/")]
	return data, ok
}

// SetPart stores a part and registers its content type as an override.
func (p *Package) SetPart(name, contentType string, data []byte) {
	name = strings.TrimPrefix(name, "/")
	p.Parts[name] = data
	if contentType != "" {
		p.ContentTypes.Overrides[name] = contentType
	}
}

// RelationshipsOf returns the relationship table whose source is the given part.
func (p *Package) RelationshipsOf(source string) RelationshipTable {
	return p.Relationships[source]
}

// OpenPackage validates the container and exposes its parts. It never touches
// the filesystem.
func OpenPackage(data []byte) (*Package, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &ArchiveError{Kind: NotAnArchive, Err: err}
	}

	pkg := NewPackage()
	for _, f := range reader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		content, err := readZipFile(f)
		if err != nil {
			return nil, &ArchiveError{Kind: NotAnArchive, Err: fmt.Errorf("could not read %s inside archive: %w", f.Name, err)}
		}
		pkg.Parts[strings.TrimPrefix(f.Name, "/")] = content
	}

	manifest, ok := pkg.Parts[ContentTypesPart]
	if !ok {
		return nil, &ArchiveError{Kind: MissingPart, Part: ContentTypesPart}
	}
	ct, err := parseContentTypes(manifest)
	if err != nil {
		return nil, &ArchiveError{Kind: NotAnArchive, Err: fmt.Errorf("unreadable %s: %w", ContentTypesPart, err)}
	}
	pkg.ContentTypes = ct

	for name, content := range pkg.Parts {
		source, ok := relsSource(name)
		if !ok {
			continue
		}
		table, err := parseRelationships(content)
		if err != nil {
			// A damaged relationship part degrades to an empty table.
			continue
		}
		pkg.Relationships[source] = table
	}

	pkg.MainPart = DefaultMainPart
	if rel, ok := pkg.Relationships[""].FindType(RelTypeOfficeDocument); ok {
		pkg.MainPart = ResolveTarget("", rel.Target)
	}
	if _, ok := pkg.Parts[pkg.MainPart]; !ok {
		return nil, &ArchiveError{Kind: MissingPart, Part: pkg.MainPart}
	}

	return pkg, nil
}

// WritePackage assembles the package into archive bytes. The manifest and
// relationship parts are regenerated from ContentTypes and Relationships.
func WritePackage(p *Package) ([]byte, error) {
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	manifest, err := marshalContentTypes(p.ContentTypes)
	if err != nil {
		return nil, &SerializationError{Part: ContentTypesPart, Err: err}
	}
	if err := writeZipFile(zw, ContentTypesPart, manifest); err != nil {
		return nil, &SerializationError{Part: ContentTypesPart, Err: err}
	}

	rels := make(map[string][]byte, len(p.Relationships))
	for source, table := range p.Relationships {
		data, err := marshalRelationships(table)
		if err != nil {
			return nil, &SerializationError{Part: RelsPartFor(source), Err: err}
		}
		rels[RelsPartFor(source)] = data
	}

	if data, ok := rels[PackageRelsPart]; ok {
		if err := writeZipFile(zw, PackageRelsPart, data); err != nil {
			return nil, &SerializationError{Part: PackageRelsPart, Err: err}
		}
	}

	names := make([]string, 0, len(p.Parts)+len(rels))
	for name := range p.Parts {
		if name == ContentTypesPart || name == PackageRelsPart {
			continue
		}
		if _, generated := rels[name]; generated {
			continue
		}
		names = append(names, name)
	}
	for name := range rels {
		if name != PackageRelsPart {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		data, ok := rels[name]
		if !ok {
			data = p.Parts[name]
		}
		if err := writeZipFile(zw, name, data); err != nil {
			return nil, &SerializationError{Part: name, Err: err}
		}
	}

	if err := zw.Close(); err != nil {
		return nil, &SerializationError{Err: err}
	}
	return buf.Bytes(), nil
}

// RelsPartFor returns the relationship part name for a source part.
func RelsPartFor(source string) string {
	if source == "" {
		return PackageRelsPart
	}
	dir, file := path.Split(source)
	return dir + "_rels/" + file + ".rels"
}

// relsSource is the inverse of RelsPartFor.
func relsSource(name string) (string, bool) {
	if name == PackageRelsPart {
		return "", true
	}
	if !strings.HasSuffix(name, ".rels") {
		return "", false
	}
	dir, file := path.Split(name)
	if !strings.HasSuffix(dir, "_rels/") {
		return "", false
	}
	return strings.TrimSuffix(dir, "_rels/") + strings.TrimSuffix(file, ".rels"), true
}

// ResolveTarget resolves a relationship target relative to its source part.
func ResolveTarget(source, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return strings.TrimPrefix(path.Join(path.Dir(source), target), "./")
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func writeZipFile(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Package scaffolding XML types.

type xmlTypes struct {
	XMLName   xml.Name      `xml:"Types"`
	Xmlns     string        `xml:"xmlns,attr"`
	Defaults  []xmlDefault  `xml:"Default"`
	Overrides []xmlOverride `xml:"Override"`
}

type xmlDefault struct {
	Extension   string `xml:"Extension,attr"`
	ContentType string `xml:"ContentType,attr"`
}

type xmlOverride struct {
	PartName    string `xml:"PartName,attr"`
	ContentType string `xml:"ContentType,attr"`
}

type xmlRelationships struct {
	XMLName xml.Name          `xml:"Relationships"`
	Xmlns   string            `xml:"xmlns,attr"`
	Rels    []xmlRelationship `xml:"Relationship"`
}

type xmlRelationship struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr,omitempty"`
}

func parseContentTypes(data []byte) (ContentTypes, error) {
	var t xmlTypes
	if err := xml.Unmarshal(data, &t); err != nil {
		return ContentTypes{}, err
	}
	ct := ContentTypes{
		Defaults:  make(map[string]string, len(t.Defaults)),
		Overrides: make(map[string]string, len(t.Overrides)),
	}
	for _, d := range t.Defaults {
		ct.Defaults[strings.ToLower(d.Extension)] = d.ContentType
	}
	for _, o := range t.Overrides {
		ct.Overrides[strings.TrimPrefix(o.PartName, "/")] = o.ContentType
	}
	return ct, nil
}

func marshalContentTypes(ct ContentTypes) ([]byte, error) {
	t := xmlTypes{Xmlns: nsContentTypes}

	exts := make([]string, 0, len(ct.Defaults))
	for ext := range ct.Defaults {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	for _, ext := range exts {
		t.Defaults = append(t.Defaults, xmlDefault{Extension: ext, ContentType: ct.Defaults[ext]})
	}

	parts := make([]string, 0, len(ct.Overrides))
	for part := range ct.Overrides {
		parts = append(parts, part)
	}
	sort.Strings(parts)
	for _, part := range parts {
		t.Overrides = append(t.Overrides, xmlOverride{PartName: "/" + part, ContentType: ct.Overrides[part]})
	}

	return marshalWithHeader(t)
}

func parseRelationships(data []byte) (RelationshipTable, error) {
	var r xmlRelationships
	if err := xml.Unmarshal(data, &r); err != nil {
		return RelationshipTable{}, err
	}
	table := RelationshipTable{Rels: make([]Relationship, 0, len(r.Rels))}
	for _, rel := range r.Rels {
		table.Rels = append(table.Rels, Relationship(rel))
	}
	return table, nil
}

func marshalRelationships(table RelationshipTable) ([]byte, error) {
	r := xmlRelationships{Xmlns: nsPackageRels}
	for _, rel := range table.Rels {
		r.Rels = append(r.Rels, xmlRelationship(rel))
	}
	return marshalWithHeader(r)
}

func marshalWithHeader(v any) ([]byte, error) {
	body, err := xml.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}
