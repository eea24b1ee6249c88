package adapters

import (
	"strings"

	"golang.org/x/net/html"
)

// nodeText joins the trimmed text nodes under n with single spaces
func nodeText(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.TextNode {
			if t := strings.TrimSpace(c.Data); t != "" {
				if b.Len() > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(t)
			}
			return
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			walk(k)
		}
	}
	walk(n)
	return b.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// findAll returns every node under root, root included, that matches
func findAll(root *html.Node, match func(*html.Node) bool) []*html.Node {
	var found []*html.Node
	for n := range root.Descendants() {
		if match(n) {
			found = append(found, n)
		}
	}
	if match(root) {
		found = append([]*html.Node{root}, found...)
	}
	return found
}

// findFirst returns the first match in document order, root included
func findFirst(root *html.Node, match func(*html.Node) bool) *html.Node {
	if match(root) {
		return root
	}
	for n := range root.Descendants() {
		if match(n) {
			return n
		}
	}
	return nil
}

// markerAnchor is the marker itself when it is a link, else its first link
func markerAnchor(marker *html.Node) *html.Node {
	return findFirst(marker, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "a" && attr(n, "href") != ""
	})
}

func findByID(doc *html.Node, id string) *html.Node {
	if id == "" {
		return nil
	}
	return findFirst(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && attr(n, "id") == id
	})
}
