package docx

import (
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

type namespaceDecl struct {
	Prefix string
	URI    string
}

// documentNamespaces are declared on every written main document part. Raw
// subtrees carried through the model use exactly these prefixes.
var documentNamespaces = []namespaceDecl{
	{"wpc", "http://schemas.microsoft.com/office/word/2010/wordprocessingCanvas"},
	{"mc", namespaceMC},
	{"o", "urn:schemas-microsoft-com:office:office"},
	{"r", NamespaceR},
	{"m", "http://schemas.openxmlformats.org/officeDocument/2006/math"},
	{"v", "urn:schemas-microsoft-com:vml"},
	{"wp14", "http://schemas.microsoft.com/office/word/2010/wordprocessingDrawing"},
	{"wp", "http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"},
	{"w10", "urn:schemas-microsoft-com:office:word"},
	{"w", NamespaceW},
	{"w14", "http://schemas.microsoft.com/office/word/2010/wordml"},
	{"w15", "http://schemas.microsoft.com/office/word/2012/wordml"},
	{"wpg", "http://schemas.microsoft.com/office/word/2010/wordprocessingGroup"},
	{"wne", "http://schemas.microsoft.com/office/word/2006/wordml"},
	{"wps", "http://schemas.microsoft.com/office/word/2010/wordprocessingShape"},
	{"a", "http://schemas.openxmlformats.org/drawingml/2006/main"},
	{"pic", "http://schemas.openxmlformats.org/drawingml/2006/picture"},
}

const namespaceMC = "http://schemas.openxmlformats.org/markup-compatibility/2006"

var canonicalPrefixes = func() map[string]string {
	m := make(map[string]string, len(documentNamespaces)+2)
	for _, ns := range documentNamespaces {
		m[ns.URI] = ns.Prefix
	}
	m[NamespaceWStrict] = "w"
	m[NamespaceRStrict] = "r"
	return m
}()

func canonicalPrefix(uri, fallback string) string {
	if p, ok := canonicalPrefixes[uri]; ok {
		return p
	}
	return fallback
}

// canonicalXML serializes a subtree with every known namespace written with
// its conventional prefix, so the result is identical whether the producer
// used a prefix or a default namespace. Namespaces outside the known set keep
// the producer's prefix and are declared on the subtree root.
func canonicalXML(el *etree.Element) string {
	c := newCanonicalizer()
	root := c.copy(el)
	c.declare(root)

	tree := etree.NewDocument()
	tree.SetRoot(root)
	s, err := tree.WriteToString()
	if err != nil {
		return ""
	}
	return s
}

// reservedPrefixes are never handed out to a foreign namespace.
var reservedPrefixes = func() map[string]bool {
	m := map[string]bool{"xml": true, "xmlns": true}
	for _, p := range canonicalPrefixes {
		m[p] = true
	}
	return m
}()

// prefixListAttrs hold whitespace-separated namespace prefixes rather than
// names, so they are rewritten alongside the elements they refer to.
var prefixListAttrs = map[string]bool{"Ignorable": true, "MustUnderstand": true, "Requires": true}

type canonicalizer struct {
	foreign map[string]string // namespace URI -> prefix
	taken   map[string]bool
}

func newCanonicalizer() *canonicalizer {
	return &canonicalizer{foreign: make(map[string]string), taken: make(map[string]bool)}
}

// prefix returns the prefix a namespace is written with. An unresolvable
// prefix is kept as written.
func (c *canonicalizer) prefix(uri, producer string) string {
	if p, ok := canonicalPrefixes[uri]; ok {
		return p
	}
	if uri == "" {
		return producer
	}
	if p, ok := c.foreign[uri]; ok {
		return p
	}
	p := producer
	for n := 0; p == "" || c.taken[p] || reservedPrefixes[p]; n++ {
		p = "ns" + strconv.Itoa(n)
	}
	c.foreign[uri] = p
	c.taken[p] = true
	return p
}

func (c *canonicalizer) copy(el *etree.Element) *etree.Element {
	out := etree.NewElement(qualify(c.prefix(el.NamespaceURI(), el.Space), el.Tag))
	for i := range el.Attr {
		a := &el.Attr[i]
		if a.Space == "xmlns" || (a.Space == "" && a.Key == "xmlns") {
			continue
		}
		space := a.Space
		if space != "" && space != "xml" {
			space = c.prefix(a.NamespaceURI(), a.Space)
		}
		value := a.Value
		if prefixListAttrs[a.Key] && (a.NamespaceURI() == namespaceMC || (a.Space == "" && el.NamespaceURI() == namespaceMC)) {
			value = c.prefixList(el, value)
		}
		out.CreateAttr(qualify(space, a.Key), value)
	}
	for _, tok := range el.Child {
		switch t := tok.(type) {
		case *etree.Element:
			out.AddChild(c.copy(t))
		case *etree.CharData:
			if t.IsCData() {
				out.CreateCData(t.Data)
			} else {
				out.CreateText(t.Data)
			}
		}
	}
	return out
}

func (c *canonicalizer) prefixList(el *etree.Element, value string) string {
	fields := strings.Fields(value)
	for i, p := range fields {
		fields[i] = c.prefix(lookupNamespace(el, p), p)
	}
	return strings.Join(fields, " ")
}

// declare binds every foreign namespace used in the copy on its root.
func (c *canonicalizer) declare(root *etree.Element) {
	prefixes := make([]string, 0, len(c.foreign))
	uris := make(map[string]string, len(c.foreign))
	for uri, p := range c.foreign {
		prefixes = append(prefixes, p)
		uris[p] = uri
	}
	sort.Strings(prefixes)
	for _, p := range prefixes {
		root.CreateAttr("xmlns:"+p, uris[p])
	}
}

// lookupNamespace resolves a prefix in the scope of el.
func lookupNamespace(el *etree.Element, prefix string) string {
	for e := el; e != nil; e = e.Parent() {
		for _, a := range e.Attr {
			if a.Space == "xmlns" && a.Key == prefix {
				return a.Value
			}
		}
	}
	return ""
}

// parseFragment reads a canonical subtree back into an element.
func parseFragment(s string) (*etree.Element, error) {
	tree := etree.NewDocument()
	if err := tree.ReadFromString(s); err != nil {
		return nil, err
	}
	root := tree.Root()
	if root == nil {
		return nil, errors.New("empty XML fragment")
	}
	return root, nil
}

// relationshipIDs collects every relationship-namespace attribute value in a
// subtree (r:embed, r:id, r:link, ...).
func relationshipIDs(el *etree.Element) []string {
	var ids []string
	seen := make(map[string]bool)
	var walk func(e *etree.Element)
	walk = func(e *etree.Element) {
		for i := range e.Attr {
			a := &e.Attr[i]
			if a.Space == "" || a.Space == "xmlns" {
				continue
			}
			uri := a.NamespaceURI()
			if uri != NamespaceR && uri != NamespaceRStrict && a.Space != "r" {
				continue
			}
			if !seen[a.Value] {
				seen[a.Value] = true
				ids = append(ids, a.Value)
			}
		}
		for _, child := range e.ChildElements() {
			walk(child)
		}
	}
	walk(el)
	return ids
}
