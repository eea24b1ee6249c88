package model

import "time"

// Case is one citation occurrence from a ground-truth dataset
type Case struct {
	ID          string `json:"id"`
	ArticleURL  string `json:"article_url,omitempty"`  // Page containing the citation marker
	Index       int    `json:"citation_index"`         // Displayed citation number
	Occurrence  int    `json:"occurrence"`             // 1-based occurrence among markers with the same index
	SourceURL   string `json:"source_url,omitempty"`   // Cited source (resolved from the article when empty)
	Claim       string `json:"claim,omitempty"`        // Pre-extracted claim text (skips extraction when set)
	GroundTruth string `json:"ground_truth,omitempty"` // Free-text reference label
}

// Stage names where a case can fail
const (
	StageExtract = "extract"
	StageResolve = "resolve"
	StageFetch   = "fetch"
	StageVerify  = "verify"
	StageParse   = "parse"
)

// Record is the outcome of verifying one case with one model
type Record struct {
	CaseID            string      `json:"case_id"`
	RunID             string      `json:"run_id,omitempty"`
	Provider          string      `json:"provider,omitempty"`
	Model             string      `json:"model,omitempty"`
	Claim             string      `json:"claim,omitempty"`
	ClaimStatus       ClaimStatus `json:"claim_status,omitempty"`
	SourceURL         string      `json:"source_url,omitempty"`
	SourceError       string      `json:"source_error,omitempty"` // Source could not be read; the model was told so
	GroundTruth       Verdict     `json:"ground_truth"`
	Predicted         Verdict     `json:"predicted"`
	RawVerdict        string      `json:"raw_verdict,omitempty"`
	Confidence        float64     `json:"confidence"`
	ConfidenceInvalid bool        `json:"confidence_invalid,omitempty"` // Reported value replaced by 0
	Comments          string      `json:"comments,omitempty"`
	LatencyMS         int64       `json:"latency_ms"`
	TokensUsed        int         `json:"tokens_used,omitempty"`
	Stage             string      `json:"stage,omitempty"` // Stage that failed, empty on success
	Error             string      `json:"error,omitempty"`
	CompletedAt       time.Time   `json:"completed_at"`
}

// Failed reports whether a pipeline stage failed for this record
func (r *Record) Failed() bool {
	return r.Stage != ""
}

// Latency returns the recorded call latency
func (r *Record) Latency() time.Duration {
	return time.Duration(r.LatencyMS) * time.Millisecond
}

// Pair converts the record into a scoring input
func (r *Record) Pair() ScoredPair {
	return ScoredPair{
		Predicted:   r.Predicted,
		GroundTruth: r.GroundTruth,
		Confidence:  r.Confidence,
		Latency:     r.Latency(),
	}
}

// ScoredPair associates a prediction with its ground truth
type ScoredPair struct {
	Predicted   Verdict
	GroundTruth Verdict
	Confidence  float64 // 0-100
	Latency     time.Duration
}
