package browser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// Document is a parsed HTML snapshot that answers selector lookups.
type Document struct {
	doc *goquery.Document
}

// ParseDocument parses html into a Document.
func ParseDocument(html string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrap(err, "browser: parse html")
	}
	return &Document{doc: doc}, nil
}

// Locate returns every node matching the CSS selector in document order.
// An invalid selector matches nothing.
func (d *Document) Locate(selector string) []Element {
	sel := d.doc.Find(selector)
	elems := make([]Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		elems = append(elems, node{sel: s})
	})
	return elems
}

// Has reports whether at least one node matches selector.
func (d *Document) Has(selector string) bool {
	return d.doc.Find(selector).Length() > 0
}

type node struct {
	sel *goquery.Selection
}

func (n node) Text() string {
	return strings.TrimSpace(n.sel.Text())
}

func (n node) Attribute(name string) string {
	return strings.TrimSpace(n.sel.AttrOr(name, ""))
}
