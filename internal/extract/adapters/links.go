package adapters

import (
	"net/url"
	"strings"

	"github.com/ppiankov/citecheck/internal/model"
	"golang.org/x/net/html"
)

// resolveURL resolves a relative URL against a base URL.
// Anchors, javascript: and mailto: links and non-http schemes resolve to "".
func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
		return ""
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := parsed
	if base != nil {
		resolved = base.ResolveReference(parsed)
	}
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}

	return resolved.String()
}

// classifyEvidenceKind determines the kind of evidence link
func classifyEvidenceKind(href string, n *html.Node) model.EvidenceKind {
	lower := strings.ToLower(href)

	if strings.Contains(lower, "cite") || strings.Contains(lower, "#ref") {
		return model.EvidenceKindCitation
	}

	for _, attr := range n.Attr {
		if attr.Key == "class" && strings.Contains(attr.Val, "reference") {
			return model.EvidenceKindCitation
		}
	}

	if strings.Contains(lower, "reference") || strings.Contains(lower, "footnote") {
		return model.EvidenceKindReference
	}

	return model.EvidenceKindExternalLink
}

// newEvidence builds an Evidence entry for a resolved link
func newEvidence(resolved string, kind model.EvidenceKind, base *url.URL, text, note string) model.Evidence {
	host := ""
	if parsed, err := url.Parse(resolved); err == nil {
		host = parsed.Host
	}

	return model.Evidence{
		URL:        resolved,
		Kind:       kind,
		Host:       host,
		IsSameHost: base != nil && host == base.Host,
		Text:       text,
		Note:       note,
	}
}

// dedupeEvidence removes duplicate evidence links
func dedupeEvidence(evidence []model.Evidence) []model.Evidence {
	seen := make(map[string]bool)
	var unique []model.Evidence

	for _, ev := range evidence {
		if !seen[ev.URL] && ev.URL != "" {
			seen[ev.URL] = true
			unique = append(unique, ev)
		}
	}

	return unique
}

// parseBase parses the page URL; an unparsable or empty URL yields nil
func parseBase(pageURL string) *url.URL {
	if pageURL == "" {
		return nil
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	return base
}
