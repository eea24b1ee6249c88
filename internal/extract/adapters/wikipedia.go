package adapters

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ppiankov/citecheck/internal/model"
	"golang.org/x/net/html"
)

// WikipediaAdapter resolves reference markers on Wikipedia articles
type WikipediaAdapter struct{}

// NewWikipediaAdapter creates a new Wikipedia adapter
func NewWikipediaAdapter() *WikipediaAdapter {
	return &WikipediaAdapter{}
}

// Name returns the adapter name
func (a *WikipediaAdapter) Name() string {
	return "wikipedia"
}

// CanHandle checks if this is a Wikipedia URL
func (a *WikipediaAdapter) CanHandle(rawURL string, contentType string) bool {
	return strings.Contains(rawURL, "wikipedia.org")
}

// ResolveSources follows the marker's #cite_note anchor to its reference
// list entry and returns the external links cited there. Short citations
// ("Smith 2001, p. 5") are followed one hop to the full bibliography entry.
func (a *WikipediaAdapter) ResolveSources(doc *html.Node, marker *html.Node, pageURL string) ([]model.Evidence, error) {
	anchor := markerAnchor(marker)
	if anchor == nil {
		return nil, fmt.Errorf("marker has no reference link: %w", ErrNoSources)
	}

	href := attr(anchor, "href")
	if !strings.HasPrefix(href, "#") {
		return nil, fmt.Errorf("marker link %q is not a reference anchor: %w", href, ErrNoSources)
	}

	targetID := strings.TrimPrefix(href, "#")
	entry := findByID(doc, targetID)
	if entry == nil {
		return nil, fmt.Errorf("reference %s not found: %w", targetID, ErrNoSources)
	}

	base := parseBase(pageURL)
	note := a.referenceText(entry)

	evidence := a.externalLinks(entry, base, note)
	if len(evidence) == 0 {
		// Short citation pointing at a bibliography entry
		if full := a.citeRefTarget(doc, entry); full != nil {
			evidence = a.externalLinks(full, base, nodeText(full))
		}
	}

	if len(evidence) == 0 {
		return nil, fmt.Errorf("reference %s has no external link: %w", targetID, ErrNoSources)
	}

	return dedupeEvidence(evidence), nil
}

// externalLinks returns the a.external links inside a reference entry
func (a *WikipediaAdapter) externalLinks(entry *html.Node, base *url.URL, note string) []model.Evidence {
	links := findAll(entry, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "a" && hasClass(n, "external")
	})

	var evidence []model.Evidence
	for _, link := range links {
		resolved := resolveURL(base, attr(link, "href"))
		if resolved == "" {
			continue
		}
		evidence = append(evidence, newEvidence(resolved, model.EvidenceKindCitation, base, nodeText(link), note))
	}
	return evidence
}

// referenceText returns the reference-text span of an entry, or the whole entry
func (a *WikipediaAdapter) referenceText(entry *html.Node) string {
	span := findFirst(entry, func(n *html.Node) bool {
		return hasClass(n, "reference-text")
	})
	if span == nil {
		span = entry
	}
	return nodeText(span)
}

// citeRefTarget follows the first #CITEREF anchor inside an entry
func (a *WikipediaAdapter) citeRefTarget(doc *html.Node, entry *html.Node) *html.Node {
	link := findFirst(entry, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "a" &&
			strings.HasPrefix(attr(n, "href"), "#CITEREF")
	})
	if link == nil {
		return nil
	}
	return findByID(doc, strings.TrimPrefix(attr(link, "href"), "#"))
}
