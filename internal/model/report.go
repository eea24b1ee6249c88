package model

import "time"

// Report is the rendered result of scoring a benchmark run
type Report struct {
	RunID       string             `json:"run_id"`
	GeneratedAt time.Time          `json:"generated_at"`
	Source      string             `json:"source"` // Results file that was scored
	Overall     Metrics            `json:"overall"`
	ByModel     map[string]Metrics `json:"by_model,omitempty"`
	Principles  Principles         `json:"principles"`
}

// Principles documents which scoring rules were applied
type Principles struct {
	ErrorsExcluded bool `json:"errors_excluded"` // Error/Unknown predictions left out of denominators
	LenientPair    bool `json:"lenient_pair"`    // Supported and Partially supported interchangeable
	BinaryPositive bool `json:"binary_positive"` // Supported+Partially supported collapsed to one class
}

// DefaultPrinciples returns the standard scoring principles
func DefaultPrinciples() Principles {
	return Principles{
		ErrorsExcluded: true,
		LenientPair:    true,
		BinaryPositive: true,
	}
}
