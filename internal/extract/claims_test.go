package extract

import (
	"testing"

	"github.com/ppiankov/citecheck/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func extractFrom(t *testing.T, htmlContent string, index, occurrence int) *model.ClaimResult {
	t.Helper()

	doc, err := ParseHTML(htmlContent)
	require.NoError(t, err)

	result, err := NewClaimExtractor(DefaultExtractorConfig()).Extract(doc.Root(), index, occurrence)
	require.NoError(t, err)
	return result
}

func TestClaimExtractor_SingleMarker(t *testing.T) {
	result := extractFrom(t, `<p>The Eiffel Tower opened in 1889.<sup>[1]</sup></p>`, 1, 1)

	assert.Equal(t, "The Eiffel Tower opened in 1889.", result.Claim)
	assert.Equal(t, model.ClaimStatusSpan, result.Status)
	assert.Equal(t, "p", result.BlockTag)
	assert.Equal(t, 1, result.Occurrence)
	assert.False(t, result.Clamped)
}

func TestClaimExtractor_StackedMarkersShareClaim(t *testing.T) {
	tests := []struct {
		name string
		html string
	}{
		{"adjacent", `<p>Paris is the capital of France.<sup>[3]</sup><sup>[4]</sup><sup>[5]</sup></p>`},
		{"whitespace between", `<p>Paris is the capital of France. <sup>[3]</sup> <sup>[4]</sup>
			<sup>[5]</sup></p>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, index := range []int{3, 4, 5} {
				result := extractFrom(t, tt.html, index, 1)
				assert.Equal(t, "Paris is the capital of France.", result.Claim, "marker [%d]", index)
				assert.Equal(t, model.ClaimStatusSpan, result.Status)
			}
		})
	}
}

func TestClaimExtractor_MarkersSeparatedByText(t *testing.T) {
	html := `<p>First claim sentence here.<sup>[1]</sup> Second claim sentence here.<sup>[2]</sup></p>`

	assert.Equal(t, "First claim sentence here.", extractFrom(t, html, 1, 1).Claim)
	assert.Equal(t, "Second claim sentence here.", extractFrom(t, html, 2, 1).Claim)
}

func TestClaimExtractor_StackAfterText(t *testing.T) {
	html := `<p>Opening statement of the paragraph.<sup>[1]</sup> Water boils at 100 degrees.<sup>[2]</sup><sup>[3]</sup></p>`

	assert.Equal(t, "Water boils at 100 degrees.", extractFrom(t, html, 2, 1).Claim)
	assert.Equal(t, "Water boils at 100 degrees.", extractFrom(t, html, 3, 1).Claim)
}

func TestClaimExtractor_Idempotent(t *testing.T) {
	html := `<p>Some   claim
	with [7] inline   label.<sup>[1]</sup></p>`

	first := extractFrom(t, html, 1, 1)
	second := extractFrom(t, html, 1, 1)

	assert.Equal(t, first, second)
	assert.Equal(t, "Some claim with inline label.", first.Claim)
	assert.Equal(t, first.Claim, normalizeText(first.Claim))
}

func TestClaimExtractor_ShortSpanFallsBackToBlock(t *testing.T) {
	html := `<p>Long introductory sentence about rivers.<sup>[1]</sup> Yes.<sup>[2]</sup></p>`

	result := extractFrom(t, html, 2, 1)

	assert.Equal(t, model.ClaimStatusFallback, result.Status)
	assert.Equal(t, "Long introductory sentence about rivers. Yes.", result.Claim)
	assert.Equal(t, result.BlockText, result.Claim)
}

func TestClaimExtractor_MarkerAtBlockStart(t *testing.T) {
	result := extractFrom(t, `<ul><li><sup>[2]</sup> trailing description of the item</li></ul>`, 2, 1)

	assert.Equal(t, model.ClaimStatusFallback, result.Status)
	assert.Equal(t, "trailing description of the item", result.Claim)
	assert.Equal(t, "li", result.BlockTag)
}

func TestClaimExtractor_EmptyBlock(t *testing.T) {
	result := extractFrom(t, `<p><sup>[1]</sup></p>`, 1, 1)

	assert.Equal(t, model.ClaimStatusEmpty, result.Status)
	assert.True(t, result.IsEmpty())
	assert.Empty(t, result.Claim)
}

func TestClaimExtractor_CitationOnlyBlocks(t *testing.T) {
	tests := []struct {
		name  string
		html  string
		block string
	}{
		{"paragraph", `<p><sup>[1]</sup></p>`, "p"},
		{"full document", `<html><head><title>T</title></head><body><p><sup>[1]</sup></p></body></html>`, "p"},
		{"list item under text", `<div>Intro paragraph text here.<ul><li><sup>[1]</sup></li></ul></div>`, "li"},
		{"ordered list", `<ol><li><a href="#n1">[1]</a></li></ol>`, "li"},
		{"table cell", `<section>Table caption for the figures.<table><tbody><tr><td><sup>[1]</sup></td></tr></tbody></table></section>`, "td"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := ParseHTML(tt.html)
			require.NoError(t, err)

			extractor := NewClaimExtractor(DefaultExtractorConfig())
			markers := extractor.Markers(doc.Root())
			require.Len(t, markers, 1)
			assert.Contains(t, []string{"sup", "a"}, markers[0].Node.Tag())

			result, err := extractor.Extract(doc.Root(), 1, 1)
			require.NoError(t, err)
			assert.Equal(t, tt.block, result.BlockTag)
			assert.Equal(t, model.ClaimStatusEmpty, result.Status)
			assert.Empty(t, result.Claim)
		})
	}
}

func TestClaimExtractor_ContainerWithoutBlock(t *testing.T) {
	doc, err := ParseHTML(`<html><body><ul><span><sup>[1]</sup></span></ul></body></html>`)
	require.NoError(t, err)

	extractor := NewClaimExtractor(ExtractorConfig{MinClaimLength: 10, BlockTags: []string{"p"}})
	markers := extractor.Markers(doc.Root())
	require.Len(t, markers, 1)
	assert.Equal(t, "span", markers[0].Node.Tag())

	_, err = extractor.Extract(doc.Root(), 1, 1)
	assert.ErrorIs(t, err, ErrNoEnclosingBlock)
}

func TestClaimExtractor_NoMatchingMarker(t *testing.T) {
	doc, err := ParseHTML(`<p>Only one citation.<sup>[1]</sup></p>`)
	require.NoError(t, err)

	_, err = NewClaimExtractor(DefaultExtractorConfig()).Extract(doc.Root(), 9, 1)
	assert.ErrorIs(t, err, ErrNoMatchingMarker)
}

func TestClaimExtractor_NoEnclosingBlock(t *testing.T) {
	doc, err := ParseHTML(`<html><body><span>Orphan text outside blocks</span><sup>[1]</sup></body></html>`)
	require.NoError(t, err)

	_, err = NewClaimExtractor(DefaultExtractorConfig()).Extract(doc.Root(), 1, 1)
	assert.ErrorIs(t, err, ErrNoEnclosingBlock)
}

func TestClaimExtractor_Occurrences(t *testing.T) {
	html := `<p>Alpha statement number one.<sup>[1]</sup></p><p>Beta statement number two.<sup>[1]</sup></p>`

	t.Run("second occurrence", func(t *testing.T) {
		result := extractFrom(t, html, 1, 2)
		assert.Equal(t, "Beta statement number two.", result.Claim)
		assert.Equal(t, 2, result.Occurrence)
		assert.False(t, result.Clamped)
	})

	t.Run("overflow clamps to first", func(t *testing.T) {
		result := extractFrom(t, html, 1, 5)
		assert.Equal(t, "Alpha statement number one.", result.Claim)
		assert.Equal(t, 1, result.Occurrence)
		assert.Equal(t, 5, result.Requested)
		assert.True(t, result.Clamped)
	})

	t.Run("zero clamps to first", func(t *testing.T) {
		result := extractFrom(t, html, 1, 0)
		assert.Equal(t, "Alpha statement number one.", result.Claim)
		assert.True(t, result.Clamped)
	})

	t.Run("strict rejects overflow", func(t *testing.T) {
		doc, err := ParseHTML(html)
		require.NoError(t, err)

		cfg := DefaultExtractorConfig()
		cfg.StrictOccurrence = true
		_, err = NewClaimExtractor(cfg).Extract(doc.Root(), 1, 3)
		assert.ErrorIs(t, err, ErrOccurrenceOutOfRange)
	})
}

func TestClaimExtractor_NearestBlock(t *testing.T) {
	tests := []struct {
		name  string
		html  string
		tag   string
		claim string
	}{
		{
			name:  "paragraph inside div",
			html:  `<div>Outer text.<p>Inner paragraph text here.<sup>[1]</sup></p></div>`,
			tag:   "p",
			claim: "Inner paragraph text here.",
		},
		{
			name:  "table cell",
			html:  `<table><tr><td>Cell claim text value.<sup>[1]</sup></td></tr></table>`,
			tag:   "td",
			claim: "Cell claim text value.",
		},
		{
			name:  "section",
			html:  `<section>Section level claim text.<sup>[1]</sup></section>`,
			tag:   "section",
			claim: "Section level claim text.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := extractFrom(t, tt.html, 1, 1)
			assert.Equal(t, tt.tag, result.BlockTag)
			assert.Equal(t, tt.claim, result.Claim)
		})
	}
}

func TestClaimExtractor_CustomBlockTags(t *testing.T) {
	doc, err := ParseHTML(`<div>Division text long enough to keep.<sup>[1]</sup></div>`)
	require.NoError(t, err)

	extractor := NewClaimExtractor(ExtractorConfig{MinClaimLength: 10, BlockTags: []string{"P"}})
	_, err = extractor.Extract(doc.Root(), 1, 1)
	assert.ErrorIs(t, err, ErrNoEnclosingBlock)
}

func TestClaimExtractor_SkipsScripts(t *testing.T) {
	html := `<p>Visible text for the claim.<script>var x = "[1]";</script><sup>[1]</sup></p>`

	doc, err := ParseHTML(html)
	require.NoError(t, err)

	extractor := NewClaimExtractor(DefaultExtractorConfig())
	assert.Len(t, extractor.Markers(doc.Root()), 1)

	result, err := extractor.Extract(doc.Root(), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "Visible text for the claim.", result.Claim)
}

func TestClaimExtractor_Markers(t *testing.T) {
	doc, err := ParseHTML(`<p>A.<sup>[1]</sup> B.<sup>[2]</sup> C.<sup><a href="#n1">[1]</a></sup></p>`)
	require.NoError(t, err)

	markers := NewClaimExtractor(DefaultExtractorConfig()).Markers(doc.Root())
	require.Len(t, markers, 3)

	assert.Equal(t, 1, markers[0].Index)
	assert.Equal(t, 1, markers[0].Occurrence)
	assert.Equal(t, 2, markers[1].Index)
	assert.Equal(t, 1, markers[2].Index)
	assert.Equal(t, 2, markers[2].Occurrence)
	assert.Equal(t, "sup", markers[2].Node.Tag())
}

func TestClaimExtractor_WikipediaMarkup(t *testing.T) {
	html := `<div class="mw-parser-output"><p>Laksa is a spicy noodle soup popular in Southeast Asia.<sup id="cite_ref-1" class="reference"><a href="#cite_note-1">[1]</a></sup><sup id="cite_ref-2" class="reference"><a href="#cite_note-2">[2]</a></sup> It is served with prawns.<sup id="cite_ref-3" class="reference"><a href="#cite_note-3">[3]</a></sup></p></div>`

	assert.Equal(t, "Laksa is a spicy noodle soup popular in Southeast Asia.", extractFrom(t, html, 2, 1).Claim)
	assert.Equal(t, "It is served with prawns.", extractFrom(t, html, 3, 1).Claim)
}

func TestClaimExtractor_Markdown(t *testing.T) {
	source := []byte("Rust guarantees memory safety without a garbage collector.[1] It compiles to native code.[2]\n\nUse `[3]` literally.\n")

	doc, err := ParseMarkdown(source)
	require.NoError(t, err)

	extractor := NewClaimExtractor(DefaultExtractorConfig())
	assert.Len(t, extractor.Markers(doc.Root()), 2)

	first, err := extractor.Extract(doc.Root(), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "Rust guarantees memory safety without a garbage collector.", first.Claim)

	second, err := extractor.Extract(doc.Root(), 2, 1)
	require.NoError(t, err)
	assert.Equal(t, "It compiles to native code.", second.Claim)

	_, err = extractor.Extract(doc.Root(), 3, 1)
	assert.ErrorIs(t, err, ErrNoMatchingMarker)
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  plain  ", "plain"},
		{"Multiple\n   spaces\tand lines.", "Multiple spaces and lines."},
		{"Claim.[12][13]", "Claim."},
		{"[1]", ""},
		{"keeps [a] and [ 1 ] as text", "keeps [a] and [ 1 ] as text"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeText(tt.in), "input %q", tt.in)
	}
}
