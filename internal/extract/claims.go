package extract

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/citecheck/internal/model"
)

var (
	// ErrNoMatchingMarker means the citation index does not appear in the document
	ErrNoMatchingMarker = errors.New("no marker with this citation index")

	// ErrNoEnclosingBlock means the marker sits outside every block container
	ErrNoEnclosingBlock = errors.New("marker has no enclosing block")

	// ErrOccurrenceOutOfRange is returned in strict mode when the occurrence does not exist
	ErrOccurrenceOutOfRange = errors.New("occurrence out of range")
)

// ExtractorConfig holds the claim extraction settings
type ExtractorConfig struct {
	// MinClaimLength is the shortest span (in characters) used before falling back to the whole block
	MinClaimLength int

	// BlockTags are the element names that scope a claim
	BlockTags []string

	// StrictOccurrence fails instead of falling back to the first marker
	// when the requested occurrence does not exist
	StrictOccurrence bool
}

// DefaultExtractorConfig returns the documented defaults
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfigFromModel(model.DefaultConfig().Extraction)
}

// ExtractorConfigFromModel converts model.ExtractionConfig to ExtractorConfig
func ExtractorConfigFromModel(cfg model.ExtractionConfig) ExtractorConfig {
	return ExtractorConfig{
		MinClaimLength:   cfg.MinClaimLength,
		BlockTags:        cfg.BlockTags,
		StrictOccurrence: cfg.StrictOccurrence,
	}
}

// ClaimExtractor finds the text a citation marker supports
type ClaimExtractor struct {
	minLength int
	blockTags map[string]bool
	strict    bool
}

// NewClaimExtractor creates a new claim extractor
func NewClaimExtractor(cfg ExtractorConfig) *ClaimExtractor {
	tags := cfg.BlockTags
	if len(tags) == 0 {
		tags = model.DefaultBlockTags
	}

	blockTags := make(map[string]bool, len(tags))
	for _, tag := range tags {
		blockTags[strings.ToLower(strings.TrimSpace(tag))] = true
	}

	minLength := cfg.MinClaimLength
	if minLength < 0 {
		minLength = 0
	}

	return &ClaimExtractor{
		minLength: minLength,
		blockTags: blockTags,
		strict:    cfg.StrictOccurrence,
	}
}

// Location is a marker selected for a citation index and occurrence
type Location struct {
	Marker    Marker
	Requested int  // Occurrence asked for
	Clamped   bool // Requested occurrence did not exist and the first marker was used
}

// Locate selects the marker for a citation index and 1-based occurrence
func (e *ClaimExtractor) Locate(root Node, index, occurrence int) (*Location, error) {
	matches := e.markersWithIndex(root, index)
	if len(matches) == 0 {
		return nil, fmt.Errorf("citation [%d]: %w", index, ErrNoMatchingMarker)
	}

	if occurrence >= 1 && occurrence <= len(matches) {
		return &Location{Marker: matches[occurrence-1], Requested: occurrence}, nil
	}

	if e.strict {
		return nil, fmt.Errorf("citation [%d] occurrence %d of %d: %w", index, occurrence, len(matches), ErrOccurrenceOutOfRange)
	}

	// Lenient: caller metadata disagrees with the document, use the first marker
	return &Location{Marker: matches[0], Requested: occurrence, Clamped: true}, nil
}

// Extract returns the claim text attributed to a citation occurrence
func (e *ClaimExtractor) Extract(root Node, index, occurrence int) (*model.ClaimResult, error) {
	loc, err := e.Locate(root, index, occurrence)
	if err != nil {
		return nil, err
	}
	return e.ExtractAt(loc)
}

// ExtractAt returns the claim text for an already located marker
func (e *ClaimExtractor) ExtractAt(loc *Location) (*model.ClaimResult, error) {
	target := loc.Marker.Node

	// 1. Scope to the enclosing block
	block := e.enclosingBlock(target)
	if block == nil {
		return nil, fmt.Errorf("citation [%d] occurrence %d: %w", loc.Marker.Index, loc.Marker.Occurrence, ErrNoEnclosingBlock)
	}

	tokens := e.blockTokens(block)

	// 2. Markers inside the block and the target's position among them
	var markerPos []int
	localIndex := -1
	for i, t := range tokens {
		if !t.marker {
			continue
		}
		if t.node.CompareOrder(target) == 0 {
			localIndex = len(markerPos)
		}
		markerPos = append(markerPos, i)
	}
	if localIndex < 0 {
		// Target is nested inside another marker; treat the block as unmarked
		localIndex = 0
		markerPos = nil
	}

	// 3. Walk back over stacked markers to where prose resumes
	var start Node
	if b := startBoundary(tokens, markerPos, localIndex); b >= 0 {
		start = tokens[b].node
	}

	// 4. Text strictly between start boundary and target
	claim := normalizeText(spanText(tokens, start, target))
	blockText := normalizeText(spanText(tokens, nil, nil))

	result := &model.ClaimResult{
		Claim:      claim,
		BlockText:  blockText,
		Index:      loc.Marker.Index,
		Occurrence: loc.Marker.Occurrence,
		Requested:  loc.Requested,
		Clamped:    loc.Clamped,
		BlockTag:   block.Tag(),
		Status:     model.ClaimStatusSpan,
	}

	// 5. Too short: fall back to the whole block
	if claim == "" || utf8.RuneCountInString(claim) < e.minLength {
		result.Claim = blockText
		result.Status = model.ClaimStatusFallback
		if blockText == "" {
			result.Status = model.ClaimStatusEmpty
		}
	}

	return result, nil
}

// startBoundary returns the token position of the marker after which the
// claim begins, or -1 for the start of the block. Each candidate is judged
// by the gap to the marker that follows it, so runs like "claim.[3][4][5]"
// resolve to the same boundary for every marker in the run.
func startBoundary(tokens []token, markerPos []int, localIndex int) int {
	for i := localIndex - 1; i >= 0; i-- {
		if gapHasText(tokens, markerPos[i], markerPos[i+1]) {
			return markerPos[i]
		}
	}
	return -1
}

// gapHasText reports whether any non-whitespace text lies between two token positions
func gapHasText(tokens []token, from, to int) bool {
	for _, t := range tokens[from+1 : to] {
		if !t.marker && strings.TrimSpace(t.node.Data()) != "" {
			return true
		}
	}
	return false
}

// spanText concatenates text nodes strictly after start and strictly before
// end. A nil bound is open.
func spanText(tokens []token, start, end Node) string {
	var buf strings.Builder
	for _, t := range tokens {
		if t.marker {
			continue
		}
		if start != nil && start.CompareOrder(t.node) >= 0 {
			continue
		}
		if end != nil && t.node.CompareOrder(end) >= 0 {
			continue
		}
		buf.WriteString(t.node.Data())
	}
	return buf.String()
}
