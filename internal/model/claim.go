package model

// ClaimStatus describes how a claim span was obtained
type ClaimStatus string

const (
	ClaimStatusSpan     ClaimStatus = "span"     // Text between boundary and marker
	ClaimStatusFallback ClaimStatus = "fallback" // Whole enclosing block (span too short)
	ClaimStatusEmpty    ClaimStatus = "empty"    // Span and block both empty, needs manual handling
)

// ClaimResult is the text attributed to one citation marker occurrence
type ClaimResult struct {
	Claim      string      `json:"claim"`                 // Normalized claim text
	BlockText  string      `json:"block_text"`            // Normalized text of the enclosing block
	Index      int         `json:"citation_index"`        // Numeric citation label
	Occurrence int         `json:"occurrence"`            // 1-based occurrence actually used
	Requested  int         `json:"requested_occurrence"`  // Occurrence asked for by the caller
	Clamped    bool        `json:"occurrence_clamped"`    // Requested occurrence did not exist, first marker used
	BlockTag   string      `json:"block_tag,omitempty"`   // Tag name of the enclosing block
	Status     ClaimStatus `json:"status"`
}

// IsEmpty reports whether the extractor produced no usable text
func (c *ClaimResult) IsEmpty() bool {
	return c.Status == ClaimStatusEmpty
}
