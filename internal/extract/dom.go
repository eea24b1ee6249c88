package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmtext "github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// NodeKind distinguishes the node types the extractor cares about
type NodeKind int

const (
	KindOther NodeKind = iota
	KindElement
	KindText
)

// Node is the minimal tree view the claim extractor walks.
// Any tree that can report children, text and document order can back it.
type Node interface {
	Kind() NodeKind
	// Tag returns the lower-case element name, or "" for non-elements
	Tag() string
	// Data returns the raw text of a text node
	Data() string
	Parent() Node
	Children() []Node
	// TextContent returns the concatenated text of all descendant text nodes
	TextContent() string
	// CompareOrder returns -1, 0 or 1 when the node precedes, is, or follows other in document order
	CompareOrder(other Node) int
}

// Document is a parsed HTML tree with a precomputed document order
type Document struct {
	root  *html.Node
	order map[*html.Node]int
}

// ParseHTML parses HTML into a Document
func ParseHTML(htmlContent string) (*Document, error) {
	root, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return NewDocument(root), nil
}

// ParseMarkdown renders Markdown to HTML and parses the result. Bare "[3]"
// labels in prose become <sup> marker elements so Markdown reports can be
// checked the same way as rendered articles. Links labelled with a number,
// such as "[3]" with a "[3]: https://..." definition, keep their href and
// get their brackets back.
func ParseMarkdown(source []byte) (*Document, error) {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(
			parser.WithASTTransformers(util.Prioritized(citationLinks{}, 100)),
		),
	)
	var buf bytes.Buffer
	if err := md.Convert(source, &buf); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}

	root, err := html.Parse(&buf)
	if err != nil {
		return nil, fmt.Errorf("parse rendered markdown: %w", err)
	}
	wrapBracketLabels(root)

	return NewDocument(root), nil
}

// citationLinks rewrites the text of links whose label is a bare number
// to "[N]" so the rendered anchor reads as a citation marker
type citationLinks struct{}

func (citationLinks) Transform(doc *ast.Document, reader gmtext.Reader, _ parser.Context) {
	source := reader.Source()
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		link, ok := n.(*ast.Link)
		if !ok {
			return ast.WalkContinue, nil
		}
		if label, ok := numericLabel(link, source); ok {
			link.RemoveChildren(link)
			link.AppendChild(link, ast.NewString([]byte("["+label+"]")))
		}
		return ast.WalkSkipChildren, nil
	})
}

// numericLabel returns the link text when it is a single run of digits
func numericLabel(link *ast.Link, source []byte) (string, bool) {
	if link.ChildCount() != 1 {
		return "", false
	}
	t, ok := link.FirstChild().(*ast.Text)
	if !ok {
		return "", false
	}
	label := strings.TrimSpace(string(t.Segment.Value(source)))
	if label == "" || strings.Trim(label, "0123456789") != "" {
		return "", false
	}
	return label, true
}

// wrapBracketLabels splits text nodes around "[N]" labels and moves each
// label into its own <sup> element. Code spans and blocks are left alone.
func wrapBracketLabels(n *html.Node) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "code", "pre", "script", "style", "sup":
			return
		}
	}

	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.TextNode {
			splitLabels(c)
		} else {
			wrapBracketLabels(c)
		}
		c = next
	}
}

func splitLabels(text *html.Node) {
	locs := labelPattern.FindAllStringIndex(text.Data, -1)
	if len(locs) == 0 {
		return
	}

	parent := text.Parent
	data := text.Data
	prev := 0
	for _, loc := range locs {
		if loc[0] > prev {
			parent.InsertBefore(&html.Node{Type: html.TextNode, Data: data[prev:loc[0]]}, text)
		}
		sup := &html.Node{Type: html.ElementNode, Data: "sup", DataAtom: atom.Sup}
		sup.AppendChild(&html.Node{Type: html.TextNode, Data: data[loc[0]:loc[1]]})
		parent.InsertBefore(sup, text)
		prev = loc[1]
	}
	if prev < len(data) {
		parent.InsertBefore(&html.Node{Type: html.TextNode, Data: data[prev:]}, text)
	}
	parent.RemoveChild(text)
}

// NewDocument indexes an already parsed tree
func NewDocument(root *html.Node) *Document {
	doc := &Document{
		root:  root,
		order: make(map[*html.Node]int),
	}

	pos := 0
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		doc.order[n] = pos
		pos++
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return doc
}

// Root returns the document root as a Node
func (d *Document) Root() Node {
	return d.wrap(d.root)
}

// HTML returns the underlying parsed tree
func (d *Document) HTML() *html.Node {
	return d.root
}

func (d *Document) wrap(n *html.Node) Node {
	if n == nil {
		return nil
	}
	return htmlNode{n: n, doc: d}
}

// Unwrap returns the x/net/html node behind a Node, or nil for other implementations
func Unwrap(n Node) *html.Node {
	if hn, ok := n.(htmlNode); ok {
		return hn.n
	}
	return nil
}

// htmlNode adapts *html.Node to Node. Two htmlNodes are equal when they
// wrap the same *html.Node.
type htmlNode struct {
	n   *html.Node
	doc *Document
}

func (h htmlNode) Kind() NodeKind {
	switch h.n.Type {
	case html.ElementNode:
		return KindElement
	case html.TextNode:
		return KindText
	default:
		return KindOther
	}
}

func (h htmlNode) Tag() string {
	if h.n.Type != html.ElementNode {
		return ""
	}
	return strings.ToLower(h.n.Data)
}

func (h htmlNode) Data() string {
	if h.n.Type != html.TextNode {
		return ""
	}
	return h.n.Data
}

func (h htmlNode) Parent() Node {
	if h.n.Parent == nil {
		return nil
	}
	return h.doc.wrap(h.n.Parent)
}

func (h htmlNode) Children() []Node {
	var children []Node
	for c := h.n.FirstChild; c != nil; c = c.NextSibling {
		children = append(children, h.doc.wrap(c))
	}
	return children
}

func (h htmlNode) TextContent() string {
	if h.n.Type == html.TextNode {
		return h.n.Data
	}

	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(h.n)
	return buf.String()
}

func (h htmlNode) CompareOrder(other Node) int {
	o, ok := other.(htmlNode)
	if !ok || o.doc != h.doc {
		return 0
	}
	a, b := h.doc.order[h.n], h.doc.order[o.n]
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
