package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ppiankov/citecheck/internal/model"
	"github.com/ppiankov/citecheck/internal/pipeline"
)

var (
	sourceURL     string
	claimText     string
	verifyTimeout time.Duration
)

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify <article-url>",
	Short: "Verify one citation against its source with an LLM",
	Long: `Verify extracts the claim for a citation occurrence, fetches the cited
source and asks the configured model for a verdict.

Example:
  citecheck verify https://en.wikipedia.org/wiki/Laksa --index 3 --provider openai --model gpt-4o-mini
  citecheck verify article.html --index 1 --source https://example.com/paper --json`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().IntVar(&citationIndex, "index", 0, "citation number to verify")
	verifyCmd.Flags().IntVar(&occurrence, "occurrence", 1, "1-based occurrence of the citation number")
	verifyCmd.Flags().StringVar(&sourceURL, "source", "", "source URL (resolved from the article when empty)")
	verifyCmd.Flags().StringVar(&claimText, "claim", "", "claim text (extracted from the article when empty)")
	verifyCmd.Flags().BoolVar(&asJSON, "json", false, "print the record as JSON")
	verifyCmd.Flags().DurationVar(&verifyTimeout, "timeout", 3*time.Minute, "overall timeout")
	addLLMFlags(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	if claimText == "" && citationIndex < 1 {
		return fmt.Errorf("--index is required unless --claim is set")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyLLMFlags(cfg)

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	verifier, err := newVerifier(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), verifyTimeout)
	defer cancel()

	p := pipeline.NewPipeline(cfg, verifier, logger).WithRunID(uuid.NewString())
	record := p.VerifyCase(ctx, model.Case{
		ID:         "cli",
		ArticleURL: args[0],
		Index:      citationIndex,
		Occurrence: occurrence,
		SourceURL:  sourceURL,
		Claim:      claimText,
	})

	if asJSON {
		if err := printJSON(record); err != nil {
			return err
		}
	} else {
		printRecord(record)
	}

	if record.Failed() {
		return fmt.Errorf("%s failed: %s", record.Stage, record.Error)
	}
	return nil
}

func printRecord(r *model.Record) {
	fmt.Printf("Claim:      %s\n", r.Claim)
	fmt.Printf("Source:     %s\n", r.SourceURL)
	if r.SourceError != "" {
		fmt.Printf("            unavailable: %s\n", r.SourceError)
	}
	fmt.Printf("Verdict:    %s", r.Predicted)
	if r.RawVerdict != "" && r.RawVerdict != string(r.Predicted) {
		fmt.Printf(" (model said %q)", r.RawVerdict)
	}
	fmt.Println()
	if !r.Failed() {
		fmt.Printf("Confidence: %.0f\n", r.Confidence)
	}
	if r.Comments != "" {
		fmt.Printf("Comments:   %s\n", r.Comments)
	}
	fmt.Fprintf(os.Stderr, "\n%s/%s, %d ms, %d tokens\n", r.Provider, r.Model, r.LatencyMS, r.TokensUsed)
}
