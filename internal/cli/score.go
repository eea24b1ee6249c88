package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/citecheck/internal/dataset"
	"github.com/ppiankov/citecheck/internal/pipeline"
	"github.com/ppiankov/citecheck/internal/score"
)

var (
	outJSON  string
	outMD    string
	noFooter bool
)

// scoreCmd represents the score command
var scoreCmd = &cobra.Command{
	Use:   "score <results.jsonl>",
	Short: "Score recorded verdicts against ground truth",
	Long: `Score compares each record's predicted verdict with its ground truth and
reports exact, lenient and binary accuracy, a confusion matrix, confidence
calibration and latency, overall and per model.

Example:
  citecheck score results.jsonl
  citecheck score results.jsonl --json report.json --md report.md`,
	Args: cobra.ExactArgs(1),
	RunE: runScore,
}

func init() {
	rootCmd.AddCommand(scoreCmd)

	scoreCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path (optional)")
	scoreCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")
	scoreCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")
}

func runScore(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	records, err := dataset.ReadRecords(args[0])
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no records in %s", args[0])
	}

	report := score.NewScorer().BuildReport(records, args[0], time.Now())
	renderer := pipeline.NewRenderer(cfg.Output.IncludeFooter && !noFooter)

	if outJSON != "" {
		if err := renderer.RenderJSON(report, outJSON); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ JSON report: %s\n", outJSON)
	}
	if outMD != "" {
		if err := renderer.RenderMarkdown(report, outMD); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ Markdown report: %s\n", outMD)
	}

	renderer.RenderSummary(report)
	return nil
}
