// Package markup is a small typed query layer over parsed HTML.
//
// Lookups are expressed as a tag plus zero or more class markers. A lookup
// that matches nothing returns ErrNotFound rather than an empty node, so
// callers that trust the shape of a page still fail loudly when it changes.
package markup

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrNotFound is returned when an element or attribute is absent.
var ErrNotFound = errors.New("markup: not found")

// Document is a parsed HTML page.
type Document struct {
	doc *goquery.Document
}

// Parse reads an HTML document from r.
func Parse(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{doc: doc}, nil
}

// ParseString parses an HTML document held in memory.
func ParseString(html string) (*Document, error) {
	return Parse(strings.NewReader(html))
}

// Root returns the node wrapping the whole document.
func (d *Document) Root() Node {
	return Node{sel: d.doc.Selection}
}

// FindFirst is shorthand for Root().FindFirst.
func (d *Document) FindFirst(tag string, classes ...string) (Node, error) {
	return d.Root().FindFirst(tag, classes...)
}

// FindAll is shorthand for Root().FindAll.
func (d *Document) FindAll(tag string, classes ...string) ([]Node, error) {
	return d.Root().FindAll(tag, classes...)
}

// Node is a single element in a Document.
type Node struct {
	sel *goquery.Selection
}

// FindFirst returns the first descendant matching tag and every class.
func (n Node) FindFirst(tag string, classes ...string) (Node, error) {
	m, query, err := compile(tag, classes)
	if err != nil {
		return Node{}, err
	}
	if n.sel == nil {
		return Node{}, fmt.Errorf("%w: %s", ErrNotFound, query)
	}
	found := n.sel.FindMatcher(m).First()
	if found.Length() == 0 {
		return Node{}, fmt.Errorf("%w: %s", ErrNotFound, query)
	}
	return Node{sel: found}, nil
}

// FindAll returns every descendant matching tag and every class, in
// document order. No match is an empty slice, not an error.
func (n Node) FindAll(tag string, classes ...string) ([]Node, error) {
	m, _, err := compile(tag, classes)
	if err != nil {
		return nil, err
	}
	if n.sel == nil {
		return nil, nil
	}
	found := n.sel.FindMatcher(m)
	nodes := make([]Node, 0, found.Length())
	found.Each(func(_ int, s *goquery.Selection) {
		nodes = append(nodes, Node{sel: s})
	})
	return nodes, nil
}

// Attr returns the value of the named attribute.
func (n Node) Attr(name string) (string, error) {
	if n.sel == nil {
		return "", fmt.Errorf("%w: attribute %q", ErrNotFound, name)
	}
	v, ok := n.sel.Attr(name)
	if !ok {
		return "", fmt.Errorf("%w: attribute %q on <%s>", ErrNotFound, name, goquery.NodeName(n.sel))
	}
	return v, nil
}

// Classes returns the tokens of the class attribute in source order.
func (n Node) Classes() []string {
	if n.sel == nil {
		return nil
	}
	v, _ := n.sel.Attr("class")
	return strings.Fields(v)
}

// Text returns the combined text content of the node and its descendants.
func (n Node) Text() string {
	if n.sel == nil {
		return ""
	}
	return n.sel.Text()
}

// TrimmedText returns Text with surrounding whitespace removed.
func (n Node) TrimmedText() string {
	return strings.TrimSpace(n.Text())
}
