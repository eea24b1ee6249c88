package verdict

import (
	"fmt"
	"strings"

	"github.com/ppiankov/citecheck/internal/model"
)

// Rule maps labels containing any of its patterns to a verdict
type Rule struct {
	Patterns []string
	Verdict  model.Verdict
}

// Rules is the ordered rule table; the first rule with a matching pattern wins.
// "not supported" precedes "supported" since the latter is a substring of the former.
var Rules = []Rule{
	{Patterns: []string{"not supported", "not_supported"}, Verdict: model.VerdictNotSupported},
	{Patterns: []string{"partially"}, Verdict: model.VerdictPartiallySupported},
	{Patterns: []string{"unavailable"}, Verdict: model.VerdictSourceUnavailable},
	{Patterns: []string{"supported"}, Verdict: model.VerdictSupported},
	{Patterns: []string{"error"}, Verdict: model.VerdictError},
}

// Normalize maps a free-text label onto a verdict using Rules
func Normalize(raw string) model.Verdict {
	return NormalizeWith(Rules, raw)
}

// NormalizeWith maps a free-text label onto a verdict using a custom rule table
func NormalizeWith(rules []Rule, raw string) model.Verdict {
	label := strings.ToLower(raw)
	if strings.TrimSpace(label) == "" {
		return model.VerdictUnknown
	}

	for _, rule := range rules {
		for _, pattern := range rule.Patterns {
			if strings.Contains(label, pattern) {
				return rule.Verdict
			}
		}
	}
	return model.VerdictUnknown
}

// NormalizeValue normalizes a decoded JSON value; nil and non-string values
// are rendered with fmt before matching
func NormalizeValue(v any) model.Verdict {
	switch val := v.(type) {
	case nil:
		return model.VerdictUnknown
	case string:
		return Normalize(val)
	case model.Verdict:
		return Normalize(string(val))
	default:
		return Normalize(fmt.Sprint(val))
	}
}
