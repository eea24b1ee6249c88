package model

import (
	"encoding/json"
	"fmt"
)

// Metrics aggregates scoring results over a collection of pairs
type Metrics struct {
	Total  int `json:"total"`  // All pairs
	Valid  int `json:"valid"`  // Pairs with a usable prediction
	Errors int `json:"errors"` // Pairs predicted as Error or Unknown

	ExactMatches  int `json:"exact_matches"`
	LenientOnly   int `json:"lenient_only_matches"` // Supported <-> Partially supported confusions
	BinaryCorrect int `json:"binary_correct"`

	ExactAccuracy   float64 `json:"exact_accuracy"`
	LenientAccuracy float64 `json:"lenient_accuracy"`
	BinaryAccuracy  float64 `json:"binary_accuracy"`

	Confusion   ConfusionMatrix `json:"confusion_matrix"`
	Calibration Calibration     `json:"calibration"`
	Latency     LatencyStats    `json:"latency"`
}

// Calibration compares confidence on correct and incorrect predictions
type Calibration struct {
	MeanCorrect   float64 `json:"mean_correct"`
	MeanIncorrect float64 `json:"mean_incorrect"`
	Correct       int     `json:"correct_samples"`
	Incorrect     int     `json:"incorrect_samples"`
	Gap           float64 `json:"gap"`     // MeanCorrect - MeanIncorrect
	Defined       bool    `json:"defined"` // Both groups had samples
}

// LatencyStats summarizes call latency in milliseconds
type LatencyStats struct {
	Count  int     `json:"count"`
	MeanMS float64 `json:"mean_ms"`
	MinMS  float64 `json:"min_ms"`
	MaxMS  float64 `json:"max_ms"`
}

// ConfusionMatrix counts ground truth (rows) against predictions (columns)
// over the canonical verdicts
type ConfusionMatrix struct {
	counts [4][4]int
}

// Add increments the cell for a ground truth / prediction pair.
// Non-canonical verdicts are ignored.
func (m *ConfusionMatrix) Add(truth, predicted Verdict) bool {
	r, c := truth.canonicalIndex(), predicted.canonicalIndex()
	if r < 0 || c < 0 {
		return false
	}
	m.counts[r][c]++
	return true
}

// Get returns the count for a ground truth / prediction pair
func (m ConfusionMatrix) Get(truth, predicted Verdict) int {
	r, c := truth.canonicalIndex(), predicted.canonicalIndex()
	if r < 0 || c < 0 {
		return 0
	}
	return m.counts[r][c]
}

// Total returns the number of counted pairs
func (m ConfusionMatrix) Total() int {
	total := 0
	for _, row := range m.counts {
		for _, n := range row {
			total += n
		}
	}
	return total
}

// MarshalJSON renders the matrix as {"truth": {"predicted": n}}
func (m ConfusionMatrix) MarshalJSON() ([]byte, error) {
	out := make(map[string]map[string]int, len(CanonicalVerdicts))
	for r, truth := range CanonicalVerdicts {
		row := make(map[string]int, len(CanonicalVerdicts))
		for c, predicted := range CanonicalVerdicts {
			row[string(predicted)] = m.counts[r][c]
		}
		out[string(truth)] = row
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the nested map form written by MarshalJSON
func (m *ConfusionMatrix) UnmarshalJSON(data []byte) error {
	var in map[string]map[string]int
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	m.counts = [4][4]int{}
	for truth, row := range in {
		r := Verdict(truth).canonicalIndex()
		if r < 0 {
			return fmt.Errorf("unknown confusion row: %q", truth)
		}
		for predicted, n := range row {
			c := Verdict(predicted).canonicalIndex()
			if c < 0 {
				return fmt.Errorf("unknown confusion column: %q", predicted)
			}
			m.counts[r][c] = n
		}
	}
	return nil
}
