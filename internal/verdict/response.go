package verdict

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/ppiankov/citecheck/internal/model"
)

// ErrUnparseableResponse means a model response held neither a JSON object
// nor a recognizable verdict keyword
var ErrUnparseableResponse = errors.New("unparseable verdict response")

// fencePattern matches a fenced code block, optionally tagged json
var fencePattern = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)```")

// Response is a parsed model answer
type Response struct {
	Verdict           model.Verdict `json:"verdict"`
	RawVerdict        string        `json:"raw_verdict,omitempty"`
	Confidence        float64       `json:"confidence"`
	InvalidConfidence bool          `json:"invalid_confidence,omitempty"`
	Comments          string        `json:"comments,omitempty"`
	FromJSON          bool          `json:"from_json"`
}

// ParseResponse extracts verdict, confidence and comments from raw model output.
// An unparseable response still yields a Response with verdict Error, together
// with ErrUnparseableResponse.
func ParseResponse(raw string) (*Response, error) {
	if fields, ok := findJSONObject(raw); ok {
		return fromFields(fields), nil
	}

	// No JSON: classify the whole text by keyword
	resp := &Response{
		Verdict:    Normalize(raw),
		RawVerdict: strings.TrimSpace(raw),
	}
	if resp.Verdict == model.VerdictUnknown {
		resp.Verdict = model.VerdictError
		return resp, fmt.Errorf("%q: %w", truncate(raw, 80), ErrUnparseableResponse)
	}
	return resp, nil
}

func fromFields(fields map[string]any) *Response {
	resp := &Response{FromJSON: true}

	if v, ok := fields["verdict"]; ok && v != nil {
		resp.RawVerdict = strings.TrimSpace(fmt.Sprint(v))
	}
	resp.Verdict = NormalizeValue(fields["verdict"])

	if c, ok := fields["confidence"]; ok && c != nil {
		resp.Confidence, resp.InvalidConfidence = ParseConfidence(c)
	}

	if c, ok := fields["comments"]; ok && c != nil {
		resp.Comments = strings.TrimSpace(fmt.Sprint(c))
	}

	return resp
}

// ParseConfidence converts a JSON confidence value to [0,100]. Non-numeric,
// NaN and out-of-range values become 0 and are reported invalid.
func ParseConfidence(v any) (float64, bool) {
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case int:
		f = float64(val)
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return 0, true
		}
		f = parsed
	case string:
		s := strings.TrimSuffix(strings.TrimSpace(val), "%")
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, true
		}
		f = parsed
	default:
		return 0, true
	}

	if math.IsNaN(f) || f < 0 || f > 100 {
		return 0, true
	}
	return f, false
}

// findJSONObject returns the first JSON object in raw, preferring the
// contents of a fenced code block. Keys are lower-cased.
func findJSONObject(raw string) (map[string]any, bool) {
	candidates := []string{}
	for _, m := range fencePattern.FindAllStringSubmatch(raw, -1) {
		candidates = append(candidates, m[1])
	}
	candidates = append(candidates, raw)

	for _, text := range candidates {
		for i := strings.IndexByte(text, '{'); i >= 0; {
			var obj map[string]any
			if err := json.NewDecoder(strings.NewReader(text[i:])).Decode(&obj); err == nil {
				fields := make(map[string]any, len(obj))
				for k, v := range obj {
					fields[strings.ToLower(strings.TrimSpace(k))] = v
				}
				return fields, true
			}

			next := strings.IndexByte(text[i+1:], '{')
			if next < 0 {
				break
			}
			i += next + 1
		}
	}
	return nil, false
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
