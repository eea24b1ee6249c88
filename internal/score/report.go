package score

import (
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/citecheck/internal/model"
)

// BuildReport scores records into a report. source names the results file.
func (s *Scorer) BuildReport(records []model.Record, source string, generatedAt time.Time) *model.Report {
	overall, byModel := s.ScoreRecords(records)

	return &model.Report{
		RunID:       runIDs(records),
		GeneratedAt: generatedAt.UTC(),
		Source:      source,
		Overall:     overall,
		ByModel:     byModel,
		Principles:  model.DefaultPrinciples(),
	}
}

// runIDs joins the distinct run IDs present in records
func runIDs(records []model.Record) string {
	seen := make(map[string]bool)
	var ids []string
	for i := range records {
		id := records[i].RunID
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return strings.Join(ids, ",")
}
