package extract

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// labelPattern matches a numeric citation label anywhere in text
	labelPattern = regexp.MustCompile(`\[\d+\]`)

	// markerPattern matches an element whose whole text is a citation label
	markerPattern = regexp.MustCompile(`^\s*\[(\d+)\]\s*$`)
)

// Marker is one citation marker found in a document
type Marker struct {
	Node       Node
	Index      int // Displayed citation number
	Occurrence int // 1-based rank among markers sharing Index
}

// skippedTags never contribute markers or text
var skippedTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
}

// literalTags hold text that is shown verbatim and never acts as a marker
var literalTags = map[string]bool{
	"code": true,
	"pre":  true,
	"kbd":  true,
	"samp": true,
}

// structuralTags group blocks or whole documents and are never markers,
// even when the only text below them is a label
var structuralTags = map[string]bool{
	"html": true, "head": true, "body": true, "main": true, "article": true,
	"header": true, "footer": true, "nav": true, "aside": true,
	"ul": true, "ol": true, "dl": true, "dt": true, "dd": true, "menu": true,
	"table": true, "caption": true, "thead": true, "tbody": true, "tfoot": true,
	"tr": true, "colgroup": true, "blockquote": true, "figure": true,
	"figcaption": true, "form": true, "fieldset": true, "details": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// markerIndex returns the citation number of a marker element. A marker is
// the outermost inline element whose whole text is a label; elements that
// wrap a block are containers, not markers.
func (e *ClaimExtractor) markerIndex(n Node) (int, bool) {
	if n.Kind() != KindElement {
		return 0, false
	}
	tag := n.Tag()
	if e.blockTags[tag] || structuralTags[tag] || skippedTags[tag] || literalTags[tag] {
		return 0, false
	}

	m := markerPattern.FindStringSubmatch(n.TextContent())
	if m == nil || e.wrapsBlock(n) {
		return 0, false
	}

	index, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return index, true
}

// Markers lists every citation marker in document order. Descendants of a
// marker are not visited.
func (e *ClaimExtractor) Markers(root Node) []Marker {
	var markers []Marker
	seen := make(map[int]int)

	var walk func(Node)
	walk = func(n Node) {
		if n.Kind() == KindElement && skippedTags[n.Tag()] {
			return
		}
		if index, ok := e.markerIndex(n); ok {
			seen[index]++
			markers = append(markers, Marker{
				Node:       n,
				Index:      index,
				Occurrence: seen[index],
			})
			return
		}
		for _, c := range n.Children() {
			walk(c)
		}
	}

	walk(root)
	return markers
}

func (e *ClaimExtractor) wrapsBlock(n Node) bool {
	for _, c := range n.Children() {
		if c.Kind() != KindElement {
			continue
		}
		if e.blockTags[c.Tag()] || structuralTags[c.Tag()] || e.wrapsBlock(c) {
			return true
		}
	}
	return false
}

// markersWithIndex returns the markers labelled index, in document order
func (e *ClaimExtractor) markersWithIndex(root Node, index int) []Marker {
	var matches []Marker
	for _, m := range e.Markers(root) {
		if m.Index == index {
			matches = append(matches, m)
		}
	}
	return matches
}

// enclosingBlock returns the nearest block-level ancestor of n
func (e *ClaimExtractor) enclosingBlock(n Node) Node {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if p.Kind() == KindElement && e.blockTags[p.Tag()] {
			return p
		}
	}
	return nil
}

// token is a text node or a marker inside an enclosing block
type token struct {
	node   Node
	marker bool
}

// blockTokens flattens a block into text nodes and markers in document order
func (e *ClaimExtractor) blockTokens(block Node) []token {
	var tokens []token

	var walk func(Node)
	walk = func(n Node) {
		switch n.Kind() {
		case KindText:
			tokens = append(tokens, token{node: n})
			return
		case KindElement:
			if skippedTags[n.Tag()] {
				return
			}
			if _, ok := e.markerIndex(n); ok {
				tokens = append(tokens, token{node: n, marker: true})
				return
			}
		}
		for _, c := range n.Children() {
			walk(c)
		}
	}

	for _, c := range block.Children() {
		walk(c)
	}
	return tokens
}

// normalizeText strips citation labels and collapses whitespace
func normalizeText(s string) string {
	s = labelPattern.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}
