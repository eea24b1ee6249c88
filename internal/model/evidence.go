package model

// Evidence represents a cited source resolved from a citation marker
type Evidence struct {
	URL        string       `json:"url"`                // Full URL
	Kind       EvidenceKind `json:"kind"`               // citation, external_link, reference
	Host       string       `json:"host,omitempty"`     // Domain name
	IsSameHost bool         `json:"is_same_host"`       // Whether it's same domain as the article
	Text       string       `json:"text,omitempty"`     // Link anchor text
	Note       string       `json:"note,omitempty"`     // Reference list entry text
}

// EvidenceKind classifies the type of evidence
type EvidenceKind string

const (
	EvidenceKindCitation     EvidenceKind = "citation"      // Formal citation (e.g., Wikipedia references)
	EvidenceKindExternalLink EvidenceKind = "external_link" // Outbound link
	EvidenceKindReference    EvidenceKind = "reference"     // Named reference without a link
)
