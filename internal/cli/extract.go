package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/citecheck/internal/model"
	"github.com/ppiankov/citecheck/internal/pipeline"
)

var (
	citationIndex int
	occurrence    int
	listAll       bool
	forceMarkdown bool
	asJSON        bool
	timeout       time.Duration
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract <file|url>",
	Short: "Extract the claim a citation marker supports",
	Long: `Extract locates a citation marker such as [3] in an HTML or Markdown
article and prints the text it attributes to that marker:
- the span since the previous marker or sentence boundary in the same block
- the whole block when the span is too short
- an empty result when the block has no text

Example:
  citecheck extract https://en.wikipedia.org/wiki/Laksa --index 3
  citecheck extract article.html --index 2 --occurrence 2 --json
  citecheck extract notes.md --all`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().IntVar(&citationIndex, "index", 0, "citation number to extract")
	extractCmd.Flags().IntVar(&occurrence, "occurrence", 1, "1-based occurrence of the citation number")
	extractCmd.Flags().BoolVar(&listAll, "all", false, "extract every marker in the document")
	extractCmd.Flags().BoolVar(&forceMarkdown, "markdown", false, "parse the input as Markdown")
	extractCmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	extractCmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall timeout")
}

func runExtract(cmd *cobra.Command, args []string) error {
	location := args[0]
	if !listAll && citationIndex < 1 {
		return fmt.Errorf("--index is required unless --all is set")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	p := pipeline.NewPipeline(cfg, nil, logger).WithMarkdown(forceMarkdown)

	if !listAll {
		ac, err := p.ExtractClaim(ctx, location, citationIndex, occurrence)
		if err != nil {
			return fmt.Errorf("extract failed: %w", err)
		}
		if asJSON {
			return printJSON(struct {
				*model.ClaimResult
				Sources []model.Evidence `json:"sources,omitempty"`
			}{ac.Claim, ac.Sources})
		}
		printClaim(ac.Claim)
		if src, ok := ac.Source(); ok {
			fmt.Printf("  source: %s\n", src.URL)
		} else if ac.ResolveErr != nil {
			fmt.Printf("  source: none (%v)\n", ac.ResolveErr)
		}
		return nil
	}

	doc, _, err := p.LoadDocument(ctx, location)
	if err != nil {
		return fmt.Errorf("load failed: %w", err)
	}

	extractor := p.Extractor()
	var results []*model.ClaimResult
	for _, marker := range extractor.Markers(doc.Root()) {
		result, err := extractor.Extract(doc.Root(), marker.Index, marker.Occurrence)
		if err != nil {
			fmt.Fprintf(os.Stderr, "✗ [%d] #%d: %v\n", marker.Index, marker.Occurrence, err)
			continue
		}
		results = append(results, result)
	}

	if asJSON {
		return printJSON(results)
	}
	for _, result := range results {
		printClaim(result)
	}
	fmt.Fprintf(os.Stderr, "\n%d markers\n", len(results))
	return nil
}

func printClaim(c *model.ClaimResult) {
	fmt.Printf("[%d] #%d (%s)", c.Index, c.Occurrence, c.Status)
	if c.Clamped {
		fmt.Printf(" requested #%d, not found", c.Requested)
	}
	fmt.Println()
	fmt.Printf("  %s\n", c.Claim)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
