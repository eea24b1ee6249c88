package extract

import (
	"strings"

	"golang.org/x/net/html"
)

// SourcePage is the readable content of a fetched source
type SourcePage struct {
	Title string
	Text  string
}

// SourceText extracts the title and visible text of a source page
func SourceText(htmlContent string) (*SourcePage, error) {
	doc, err := ParseHTML(htmlContent)
	if err != nil {
		return nil, err
	}

	root := doc.HTML()
	return &SourcePage{
		Title: strings.Join(strings.Fields(findTitle(root)), " "),
		Text:  extractVisibleText(root),
	}, nil
}

// extractVisibleText extracts text nodes from HTML, skipping scripts/styles and page chrome
func extractVisibleText(n *html.Node) string {
	var parts []string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "nav", "footer", "head", "template":
				return
			}
		}

		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				parts = append(parts, text)
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(n)
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
		return n.FirstChild.Data
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}
