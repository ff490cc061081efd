package htmldoc

import (
	"strconv"

	"golang.org/x/text/unicode/norm"

	"github.com/klytics/docbridge/internal/diff"
	"github.com/klytics/docbridge/internal/formats/docx"
)

// Signature returns the canonical form of a block as the editor sees it. Two
// blocks with equal signatures render identically.
func Signature(doc *docx.Document, b docx.Block) string {
	r := &renderer{doc: doc, cells: 1}
	switch v := b.(type) {
	case *docx.Paragraph:
		switch {
		case v.Numbering != nil:
			r.b.WriteString("li:" + r.listTag(v) + ":" + strconv.Itoa(v.Numbering.Level) + ":")
		case r.isQuote(v):
			r.b.WriteString("quote:")
		}
		r.paragraph(v)
	case *docx.Table:
		r.table(v)
	}
	return norm.NFC.String(r.b.String())
}

// Signatures returns the signature of every block in order.
func Signatures(doc *docx.Document, blocks []docx.Block) []string {
	out := make([]string, len(blocks))
	for i, b := range blocks {
		out[i] = Signature(doc, b)
	}
	return out
}

// reconcile aligns fresh blocks built from HTML against the base document.
// Blocks the edit left unchanged are copies of the base blocks; the rest are
// the fresh ones, inheriting what HTML cannot express from the base block
// they replaced.
func reconcile(base, target *docx.Document, fresh []docx.Block) []docx.Block {
	ops := diff.Compute(Signatures(base, base.Blocks), Signatures(target, fresh))

	out := make([]docx.Block, 0, len(fresh))
	var replaced []docx.Block
	for _, op := range ops {
		switch op.Kind {
		case diff.Equal:
			out = append(out, docx.CloneBlock(base.Blocks[op.A]))
			replaced = nil
		case diff.Delete:
			replaced = append(replaced, base.Blocks[op.A])
		case diff.Insert:
			block := fresh[op.B]
			for i, old := range replaced {
				if inherit(target, old, block) {
					replaced = append(replaced[:i:i], replaced[i+1:]...)
					break
				}
			}
			out = append(out, block)
		}
	}
	return out
}

// inherit copies non-HTML metadata from a replaced base block of the same
// kind into its fresh replacement and reports whether the kinds matched.
func inherit(doc *docx.Document, old, fresh docx.Block) bool {
	switch f := fresh.(type) {
	case *docx.Table:
		o, ok := old.(*docx.Table)
		if !ok {
			return false
		}
		f.PropertiesXML = o.PropertiesXML
		return true
	case *docx.Paragraph:
		o, ok := old.(*docx.Paragraph)
		if !ok {
			return false
		}
		inheritParagraph(doc, o, f)
		return true
	}
	return false
}

func inheritParagraph(doc *docx.Document, old, fresh *docx.Paragraph) {
	styles := doc.Styles
	switch {
	case fresh.Numbering != nil:
		if old.Numbering != nil {
			ref := docx.NumberingRef{NumID: old.Numbering.NumID, Level: fresh.Numbering.Level}
			if doc.Numbering.Ordered(&ref) == doc.Numbering.Ordered(fresh.Numbering) {
				fresh.Numbering.NumID = ref.NumID
			}
		}
	case fresh.Blockquote:
		if old.Blockquote {
			fresh.StyleID = old.StyleID
		}
	default:
		level := min(styles.HeadingLevel(fresh.StyleID), 6)
		oldLevel := min(styles.HeadingLevel(old.StyleID), 6)
		if level == oldLevel && old.Numbering == nil && !old.Blockquote {
			fresh.StyleID = old.StyleID
		}
	}
}
