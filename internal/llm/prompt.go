package llm

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultSystemPrompt instructs the model to judge one claim against one source
const DefaultSystemPrompt = `You check whether a cited source supports a claim.

Judge ONLY from the source text provided. Do not use outside knowledge.

Choose exactly one verdict:
- Supported: the source states the claim, or something that directly entails it.
- Partially supported: the source supports part of the claim, or a weaker or less specific version.
- Not supported: the source does not state the claim or contradicts it.
- Source unavailable: the source text is missing, empty, paywalled, or unrelated to the citation.

Respond with a single JSON object and nothing else:
{"verdict": "<one of the four verdicts>", "confidence": <0-100>, "comments": "<one or two sentences quoting or citing the relevant passage>"}`

// TruncationMarker is appended when the source text is cut
const TruncationMarker = "\n[... source truncated ...]"

// PromptInput is the material for one verification prompt
type PromptInput struct {
	Claim string

	// Context is the full enclosing block text, optional
	Context string

	SourceURL   string
	SourceTitle string
	SourceText  string

	// SourceError explains why the source could not be fetched
	SourceError string
}

// BuildUserPrompt renders the user prompt, truncating the source text to
// maxSourceChars characters (0 means no limit)
func BuildUserPrompt(in PromptInput, maxSourceChars int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "CLAIM:\n%s\n\n", strings.TrimSpace(in.Claim))

	if ctx := strings.TrimSpace(in.Context); ctx != "" && ctx != strings.TrimSpace(in.Claim) {
		fmt.Fprintf(&b, "CONTEXT (surrounding text, for disambiguation only):\n%s\n\n", ctx)
	}

	if in.SourceURL != "" {
		fmt.Fprintf(&b, "SOURCE URL: %s\n", in.SourceURL)
	}
	if in.SourceTitle != "" {
		fmt.Fprintf(&b, "SOURCE TITLE: %s\n", in.SourceTitle)
	}

	text := strings.TrimSpace(in.SourceText)
	switch {
	case in.SourceError != "":
		fmt.Fprintf(&b, "\nSOURCE TEXT: unavailable (%s)\n", in.SourceError)
	case text == "":
		b.WriteString("\nSOURCE TEXT: unavailable (empty page)\n")
	default:
		fmt.Fprintf(&b, "\nSOURCE TEXT:\n%s\n", TruncateRunes(text, maxSourceChars))
	}

	return b.String()
}

// TruncateRunes cuts s to at most limit characters without splitting a
// multi-byte character and appends TruncationMarker when it cuts
func TruncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}

	count := 0
	for i := range s {
		if count == limit {
			return s[:i] + TruncationMarker
		}
		count++
	}
	return s
}
