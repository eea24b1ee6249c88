package model

// Verdict is a canonical support category for a claim/source pair
type Verdict string

const (
	VerdictSupported          Verdict = "Supported"
	VerdictPartiallySupported Verdict = "Partially supported"
	VerdictNotSupported       Verdict = "Not supported"
	VerdictSourceUnavailable  Verdict = "Source unavailable"

	// Sentinels for labels that could not be classified
	VerdictError   Verdict = "Error"
	VerdictUnknown Verdict = "Unknown"
)

// CanonicalVerdicts lists the four comparable categories in report order
var CanonicalVerdicts = []Verdict{
	VerdictSupported,
	VerdictPartiallySupported,
	VerdictNotSupported,
	VerdictSourceUnavailable,
}

// IsCanonical reports whether v is one of the four comparable categories
func (v Verdict) IsCanonical() bool {
	return v.canonicalIndex() >= 0
}

// IsPositive reports whether v counts as supported in binary scoring
func (v Verdict) IsPositive() bool {
	return v == VerdictSupported || v == VerdictPartiallySupported
}

// IsValidPrediction reports whether a predicted verdict enters accuracy denominators
func (v Verdict) IsValidPrediction() bool {
	return v != VerdictError && v != VerdictUnknown
}

func (v Verdict) canonicalIndex() int {
	for i, c := range CanonicalVerdicts {
		if c == v {
			return i
		}
	}
	return -1
}

func (v Verdict) String() string {
	return string(v)
}
