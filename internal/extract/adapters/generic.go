package adapters

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/ppiankov/citecheck/internal/model"
	"golang.org/x/net/html"
)

// labelPrefix matches a reference list entry that starts with its label, e.g. "[3] Smith..."
var labelPrefix = regexp.MustCompile(`^\s*\[(\d+)\]`)

// GenericAdapter is the fallback adapter for unknown domains
type GenericAdapter struct{}

// NewGenericAdapter creates a new generic adapter
func NewGenericAdapter() *GenericAdapter {
	return &GenericAdapter{}
}

// Name returns the adapter name
func (a *GenericAdapter) Name() string {
	return "generic"
}

// CanHandle always returns true (fallback adapter)
func (a *GenericAdapter) CanHandle(url string, contentType string) bool {
	return true
}

// ResolveSources tries, in order: an absolute link on the marker, the
// element its #fragment points at, and a reference list entry starting
// with the same "[N]" label.
func (a *GenericAdapter) ResolveSources(doc *html.Node, marker *html.Node, pageURL string) ([]model.Evidence, error) {
	base := parseBase(pageURL)

	if anchor := markerAnchor(marker); anchor != nil {
		href := attr(anchor, "href")

		if strings.HasPrefix(href, "#") {
			if target := findByID(doc, strings.TrimPrefix(href, "#")); target != nil {
				if evidence := a.linksIn(target, base); len(evidence) > 0 {
					return evidence, nil
				}
			}
		} else if resolved := resolveURL(base, href); resolved != "" {
			return []model.Evidence{
				newEvidence(resolved, classifyEvidenceKind(href, anchor), base, nodeText(anchor), ""),
			}, nil
		}
	}

	label := labelPrefix.FindString(nodeText(marker))
	if label != "" {
		if entry := a.referenceEntry(doc, marker, strings.TrimSpace(label)); entry != nil {
			if evidence := a.linksIn(entry, base); len(evidence) > 0 {
				return evidence, nil
			}
		}
	}

	return nil, fmt.Errorf("marker %q: %w", nodeText(marker), ErrNoSources)
}

// linksIn returns every http(s) link inside n as reference evidence
func (a *GenericAdapter) linksIn(n *html.Node, base *url.URL) []model.Evidence {
	note := nodeText(n)

	var evidence []model.Evidence
	for _, link := range findAll(n, func(c *html.Node) bool {
		return c.Type == html.ElementNode && c.Data == "a"
	}) {
		resolved := resolveURL(base, attr(link, "href"))
		if resolved == "" {
			continue
		}
		evidence = append(evidence, newEvidence(resolved, model.EvidenceKindReference, base, nodeText(link), note))
	}
	return dedupeEvidence(evidence)
}

// referenceEntry finds the last list item or paragraph that begins with label
// and does not contain the marker itself. Reference lists sit at the end of a
// document, so the last match wins.
func (a *GenericAdapter) referenceEntry(doc *html.Node, marker *html.Node, label string) *html.Node {
	candidates := findAll(doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode || (n.Data != "li" && n.Data != "p") {
			return false
		}
		return strings.HasPrefix(strings.TrimSpace(nodeText(n)), label)
	})

	for i := len(candidates) - 1; i >= 0; i-- {
		if !contains(candidates[i], marker) {
			return candidates[i]
		}
	}
	return nil
}

func contains(ancestor, n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == ancestor {
			return true
		}
	}
	return false
}
