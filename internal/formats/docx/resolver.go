package docx

import (
	"strings"

	"github.com/beevik/etree"
)

// WordprocessingML namespaces accepted by the resolver.
const (
	NamespaceW       = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	NamespaceWStrict = "http://purl.oclc.org/ooxml/wordprocessingml/main"
	NamespaceR       = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	NamespaceRStrict = "http://purl.oclc.org/ooxml/officeDocument/relationships"
)

// Strategy finds the children of parent whose tag matches one of names,
// in document order. Strategies are pure and never mutate the tree.
type Strategy func(parent *etree.Element, names []string) []*etree.Element

// QualifiedName matches the literal tag as written by the producer, e.g.
// "w:p" for prefix "w". No namespace resolution takes place.
func QualifiedName(prefix string) Strategy {
	return func(parent *etree.Element, names []string) []*etree.Element {
		var out []*etree.Element
		for _, child := range parent.ChildElements() {
			full := child.FullTag()
			for _, name := range names {
				if full == qualify(prefix, name) {
					out = append(out, child)
					break
				}
			}
		}
		return out
	}
}

// NamespaceURI matches children whose resolved namespace URI is one of uris
// and whose local name is one of names. This covers default-namespace
// bindings and non-conventional prefixes.
func NamespaceURI(uris ...string) Strategy {
	known := make(map[string]bool, len(uris))
	for _, u := range uris {
		known[u] = true
	}
	return func(parent *etree.Element, names []string) []*etree.Element {
		var out []*etree.Element
		for _, child := range parent.ChildElements() {
			if !known[child.NamespaceURI()] {
				continue
			}
			if containsName(names, child.Tag) {
				out = append(out, child)
			}
		}
		return out
	}
}

// LocalNameWalk walks the subtree comparing only the local part of each tag.
// It descends through wrapper elements (content controls, smart tags, custom
// XML) but never into a structural element listed in stop, so a lookup for
// paragraphs in a body does not pick up paragraphs inside table cells.
func LocalNameWalk(stop ...string) Strategy {
	return func(parent *etree.Element, names []string) []*etree.Element {
		var out []*etree.Element
		var walk func(el *etree.Element)
		walk = func(el *etree.Element) {
			for _, child := range el.ChildElements() {
				local := LocalName(child)
				if containsName(names, local) {
					out = append(out, child)
					continue
				}
				if containsName(stop, local) {
					continue
				}
				walk(child)
			}
		}
		walk(parent)
		return out
	}
}

// structuralNames are never descended into by the local-name walk.
var structuralNames = []string{"p", "tbl", "tr", "tc", "r", "pPr", "rPr", "tblPr", "sectPr", "drawing", "pict", "object", "AlternateContent"}

// Resolver locates WordprocessingML elements regardless of how the producing
// tool bound the namespace. Strategies are tried in order until one yields a
// non-empty result.
type Resolver struct {
	Prefix     string
	Strategies []Strategy
}

// NewResolver returns the standard three-tier resolver.
func NewResolver() *Resolver {
	return &Resolver{
		Prefix: "w",
		Strategies: []Strategy{
			QualifiedName("w"),
			NamespaceURI(NamespaceW, NamespaceWStrict),
			LocalNameWalk(structuralNames...),
		},
	}
}

// Children returns the children of el matching any of names.
func (r *Resolver) Children(el *etree.Element, names ...string) []*etree.Element {
	if el == nil {
		return nil
	}
	for _, strategy := range r.Strategies {
		if found := strategy(el, names); len(found) > 0 {
			return found
		}
	}
	return nil
}

// Child returns the first child of el matching name, or nil.
func (r *Resolver) Child(el *etree.Element, name string) *etree.Element {
	if found := r.Children(el, name); len(found) > 0 {
		return found[0]
	}
	return nil
}

// Val returns the "val" attribute of the named child, or "" when absent.
func (r *Resolver) Val(el *etree.Element, name string) string {
	return Attr(r.Child(el, name), "val")
}

// Has reports whether the named child is present.
func (r *Resolver) Has(el *etree.Element, name string) bool {
	return r.Child(el, name) != nil
}

// Attr returns the value of the attribute with the given local key,
// whatever its prefix.
func Attr(el *etree.Element, key string) string {
	if el == nil {
		return ""
	}
	for _, a := range el.Attr {
		if a.Key == key && a.Space != "xmlns" {
			return a.Value
		}
	}
	return ""
}

// LocalName returns the local part of an element's tag.
func LocalName(el *etree.Element) string {
	tag := el.Tag
	if i := strings.LastIndexByte(tag, ':'); i >= 0 {
		return tag[i+1:]
	}
	return tag
}

func qualify(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + ":" + name
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
