package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/citecheck/internal/model"
	"github.com/ppiankov/citecheck/internal/score"
)

// Renderer writes benchmark reports as JSON, Markdown and a console summary
type Renderer struct {
	includeFooter bool
	out           io.Writer
}

// NewRenderer creates a renderer printing summaries to stdout
func NewRenderer(includeFooter bool) *Renderer {
	return &Renderer{includeFooter: includeFooter, out: os.Stdout}
}

// WithOutput redirects the console summary
func (r *Renderer) WithOutput(w io.Writer) *Renderer {
	r.out = w
	return r
}

// RenderJSON writes the report as indented JSON
func (r *Renderer) RenderJSON(report *model.Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// RenderMarkdown writes the report as a Markdown document
func (r *Renderer) RenderMarkdown(report *model.Report, path string) error {
	if err := os.WriteFile(path, []byte(r.Markdown(report)), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Markdown renders the report body
func (r *Renderer) Markdown(report *model.Report) string {
	var b strings.Builder

	b.WriteString("# Citation verification benchmark\n\n")
	if report.RunID != "" {
		fmt.Fprintf(&b, "- Run: `%s`\n", report.RunID)
	}
	if report.Source != "" {
		fmt.Fprintf(&b, "- Results: `%s`\n", report.Source)
	}
	fmt.Fprintf(&b, "- Generated: %s\n\n", report.GeneratedAt.UTC().Format(time.RFC3339))

	b.WriteString("## Overall\n\n")
	writeMetricsTable(&b, report.Overall)

	b.WriteString("\n## Confusion matrix\n\n")
	b.WriteString("Rows are ground truth, columns are predictions. Error and Unknown predictions are not counted.\n\n")
	writeConfusion(&b, report.Overall.Confusion)

	if len(report.ByModel) > 0 {
		b.WriteString("\n## By model\n\n")
		b.WriteString("| Model | Valid | Errors | Exact | Lenient | Binary | Calibration gap | Mean latency |\n")
		b.WriteString("|---|---:|---:|---:|---:|---:|---:|---:|\n")
		for _, key := range score.SortedModelKeys(report.ByModel) {
			m := report.ByModel[key]
			fmt.Fprintf(&b, "| %s | %d | %d | %s | %s | %s | %s | %s |\n",
				key, m.Valid, m.Errors,
				percent(m.ExactAccuracy), percent(m.LenientAccuracy), percent(m.BinaryAccuracy),
				calibrationGap(m.Calibration), latency(m.Latency))
		}
	}

	if r.includeFooter {
		b.WriteString("\n---\n\n")
		b.WriteString("Accuracy denominators exclude Error and Unknown predictions. ")
		b.WriteString("Lenient accuracy treats Supported and Partially supported as interchangeable; ")
		b.WriteString("binary accuracy collapses them into one positive class. ")
		b.WriteString("The calibration gap is mean confidence on correct predictions minus mean confidence on incorrect ones.\n")
	}

	return b.String()
}

func writeMetricsTable(b *strings.Builder, m model.Metrics) {
	b.WriteString("| Metric | Value |\n|---|---:|\n")
	fmt.Fprintf(b, "| Total | %d |\n", m.Total)
	fmt.Fprintf(b, "| Valid | %d |\n", m.Valid)
	fmt.Fprintf(b, "| Errors | %d |\n", m.Errors)
	fmt.Fprintf(b, "| Exact accuracy | %s (%d/%d) |\n", percent(m.ExactAccuracy), m.ExactMatches, m.Valid)
	fmt.Fprintf(b, "| Lenient accuracy | %s (%d/%d) |\n", percent(m.LenientAccuracy), m.ExactMatches+m.LenientOnly, m.Valid)
	fmt.Fprintf(b, "| Binary accuracy | %s (%d/%d) |\n", percent(m.BinaryAccuracy), m.BinaryCorrect, m.Valid)
	fmt.Fprintf(b, "| Calibration gap | %s |\n", calibrationGap(m.Calibration))
	fmt.Fprintf(b, "| Mean latency | %s |\n", latency(m.Latency))
}

func writeConfusion(b *strings.Builder, cm model.ConfusionMatrix) {
	b.WriteString("| Truth \\ Predicted |")
	for _, v := range model.CanonicalVerdicts {
		fmt.Fprintf(b, " %s |", v)
	}
	b.WriteString("\n|---|")
	for range model.CanonicalVerdicts {
		b.WriteString("---:|")
	}
	b.WriteString("\n")

	for _, truth := range model.CanonicalVerdicts {
		fmt.Fprintf(b, "| %s |", truth)
		for _, predicted := range model.CanonicalVerdicts {
			fmt.Fprintf(b, " %d |", cm.Get(truth, predicted))
		}
		b.WriteString("\n")
	}
}

// RenderSummary prints a short console summary
func (r *Renderer) RenderSummary(report *model.Report) {
	m := report.Overall
	fmt.Fprintf(r.out, "\nScored %d records (%d valid, %d errors)\n", m.Total, m.Valid, m.Errors)
	fmt.Fprintf(r.out, "  Exact:    %s\n", percent(m.ExactAccuracy))
	fmt.Fprintf(r.out, "  Lenient:  %s\n", percent(m.LenientAccuracy))
	fmt.Fprintf(r.out, "  Binary:   %s\n", percent(m.BinaryAccuracy))
	fmt.Fprintf(r.out, "  Calib.:   %s\n", calibrationGap(m.Calibration))
	fmt.Fprintf(r.out, "  Latency:  %s\n", latency(m.Latency))

	if len(report.ByModel) > 1 {
		fmt.Fprintln(r.out)
		for _, key := range score.SortedModelKeys(report.ByModel) {
			bm := report.ByModel[key]
			fmt.Fprintf(r.out, "  %-40s exact %s  lenient %s  binary %s  (n=%d)\n",
				key, percent(bm.ExactAccuracy), percent(bm.LenientAccuracy), percent(bm.BinaryAccuracy), bm.Valid)
		}
	}
}

func percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

func calibrationGap(c model.Calibration) string {
	if !c.Defined {
		return "n/a"
	}
	return fmt.Sprintf("%+.1f", c.Gap)
}

func latency(l model.LatencyStats) string {
	if l.Count == 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.0f ms", l.MeanMS)
}
