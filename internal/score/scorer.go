package score

import (
	"math"
	"sort"
	"time"

	"github.com/ppiankov/citecheck/internal/model"
	"github.com/ppiankov/citecheck/internal/verdict"
)

// Scorer compares predicted verdicts with ground truth. It holds no state;
// one Scorer can be shared across goroutines.
type Scorer struct{}

// NewScorer creates a new scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Correctness classifies one pair
type Correctness struct {
	Valid       bool // Prediction is a usable verdict
	Exact       bool
	LenientOnly bool // Supported and Partially supported confused, either direction
	Binary      bool // Positive-ness agrees
}

// Classify returns the per-pair correctness of a prediction
func Classify(predicted, truth model.Verdict) Correctness {
	predicted = verdict.Normalize(string(predicted))
	truth = verdict.Normalize(string(truth))

	if !predicted.IsValidPrediction() {
		return Correctness{}
	}

	exact := predicted == truth
	return Correctness{
		Valid:       true,
		Exact:       exact,
		LenientOnly: !exact && predicted.IsPositive() && truth.IsPositive(),
		Binary:      predicted.IsPositive() == truth.IsPositive(),
	}
}

// Score aggregates metrics over a collection of pairs
func (s *Scorer) Score(pairs []model.ScoredPair) model.Metrics {
	var m model.Metrics
	m.Total = len(pairs)

	var correctConf, incorrectConf []float64
	var latencies []time.Duration

	for _, p := range pairs {
		// 1. Latency counts for every call that recorded one
		if p.Latency > 0 {
			latencies = append(latencies, p.Latency)
		}

		// 2. Errors stay out of the denominators
		c := Classify(p.Predicted, p.GroundTruth)
		if !c.Valid {
			m.Errors++
			continue
		}
		m.Valid++

		// 3. Accuracy counters
		if c.Exact {
			m.ExactMatches++
		}
		if c.LenientOnly {
			m.LenientOnly++
		}
		if c.Binary {
			m.BinaryCorrect++
		}

		// 4. Confusion matrix over canonical verdicts
		m.Confusion.Add(verdict.Normalize(string(p.GroundTruth)), verdict.Normalize(string(p.Predicted)))

		// 5. Calibration samples
		if p.Confidence > 0 {
			if c.Exact {
				correctConf = append(correctConf, p.Confidence)
			} else {
				incorrectConf = append(incorrectConf, p.Confidence)
			}
		}
	}

	if m.Valid > 0 {
		valid := float64(m.Valid)
		m.ExactAccuracy = float64(m.ExactMatches) / valid
		m.LenientAccuracy = float64(m.ExactMatches+m.LenientOnly) / valid
		m.BinaryAccuracy = float64(m.BinaryCorrect) / valid
	}

	m.Calibration = calibration(correctConf, incorrectConf)
	m.Latency = latencyStats(latencies)

	return m
}

// calibration is mean(correct) - mean(incorrect); undefined when either side is empty
func calibration(correct, incorrect []float64) model.Calibration {
	c := model.Calibration{
		MeanCorrect:   mean(correct),
		MeanIncorrect: mean(incorrect),
		Correct:       len(correct),
		Incorrect:     len(incorrect),
	}
	if len(correct) > 0 && len(incorrect) > 0 {
		c.Defined = true
		c.Gap = c.MeanCorrect - c.MeanIncorrect
	}
	return c
}

func latencyStats(latencies []time.Duration) model.LatencyStats {
	if len(latencies) == 0 {
		return model.LatencyStats{}
	}

	stats := model.LatencyStats{
		Count: len(latencies),
		MinMS: math.Inf(1),
		MaxMS: math.Inf(-1),
	}

	var sum float64
	for _, d := range latencies {
		ms := float64(d) / float64(time.Millisecond)
		sum += ms
		stats.MinMS = math.Min(stats.MinMS, ms)
		stats.MaxMS = math.Max(stats.MaxMS, ms)
	}
	stats.MeanMS = sum / float64(len(latencies))

	return stats
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// ScoreRecords scores a run overall and per model
func (s *Scorer) ScoreRecords(records []model.Record) (model.Metrics, map[string]model.Metrics) {
	all := make([]model.ScoredPair, 0, len(records))
	grouped := make(map[string][]model.ScoredPair)

	for i := range records {
		pair := records[i].Pair()
		all = append(all, pair)
		key := ModelKey(records[i].Provider, records[i].Model)
		grouped[key] = append(grouped[key], pair)
	}

	byModel := make(map[string]model.Metrics, len(grouped))
	for key, pairs := range grouped {
		byModel[key] = s.Score(pairs)
	}

	return s.Score(all), byModel
}

// ModelKey names a provider/model combination in per-model reports
func ModelKey(provider, modelName string) string {
	switch {
	case provider == "" && modelName == "":
		return "unknown"
	case provider == "":
		return modelName
	case modelName == "":
		return provider
	default:
		return provider + "/" + modelName
	}
}

// SortedModelKeys returns the per-model keys in stable order
func SortedModelKeys(byModel map[string]model.Metrics) []string {
	keys := make([]string, 0, len(byModel))
	for k := range byModel {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
