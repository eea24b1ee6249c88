package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/citecheck/internal/dataset"
	"github.com/ppiankov/citecheck/internal/model"
	"github.com/ppiankov/citecheck/internal/pipeline"
	"github.com/ppiankov/citecheck/internal/worker"
)

var (
	resultsPath  string
	concurrency  int
	batchTimeout time.Duration
	runID        string
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <dataset>",
	Short: "Verify every case of a ground-truth dataset",
	Long: `Batch verifies every case of a dataset (.csv, .xlsx or .jsonl) and
appends one JSON record per case to the results file as it completes.

Re-running with the same results file skips cases already recorded, so an
interrupted run resumes where it stopped.

Example:
  citecheck batch cases.csv --results results.jsonl
  citecheck batch cases.xlsx --results out/gpt.jsonl --provider openai --model gpt-4o-mini --concurrency 8`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringVar(&resultsPath, "results", "results.jsonl", "results file (JSONL, appended)")
	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent workers (default from config)")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 0, "total timeout (0 means none)")
	batchCmd.Flags().StringVar(&runID, "run-id", "", "run identifier stamped on records (default: random)")
	addLLMFlags(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyLLMFlags(cfg)
	if concurrency > 0 {
		cfg.Concurrency.Workers = concurrency
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	verifier, err := newVerifier(cfg)
	if err != nil {
		return err
	}

	cases, err := dataset.LoadCases(args[0])
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}

	completed, err := dataset.CompletedIDs(resultsPath)
	if err != nil {
		return fmt.Errorf("read previous results: %w", err)
	}

	writer, err := dataset.NewResultWriter(resultsPath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := writer.Close(); cerr != nil {
			logger.Error("close results", zap.Error(cerr))
		}
	}()

	if runID == "" {
		runID = uuid.NewString()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if batchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, batchTimeout)
		defer cancel()
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Dataset:   %s (%d cases, %d already done)\n", args[0], len(cases), len(completed))
	fmt.Fprintf(os.Stderr, "  Results:   %s\n", resultsPath)
	fmt.Fprintf(os.Stderr, "  Model:     %s/%s\n", verifier.ProviderName(), verifier.Model())
	fmt.Fprintf(os.Stderr, "  Workers:   %d\n", cfg.Concurrency.Workers)
	fmt.Fprintf(os.Stderr, "  Run:       %s\n\n", runID)

	p := pipeline.NewPipeline(cfg, verifier, logger).WithRunID(runID)
	processor := worker.NewBatchProcessor(p, cfg.Concurrency.Workers, writer.Write, logger)
	processor.OnProgress = func(done, total int, record *model.Record) {
		mark := "✓"
		if record.Failed() {
			mark = "✗"
		}
		fmt.Fprintf(os.Stderr, "%s [%d/%d] %s: %s\n", mark, done, total, record.CaseID, record.Predicted)
	}

	start := time.Now()
	summary, err := processor.Process(ctx, cases, completed)

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Processed: %d\n", summary.Processed)
	fmt.Fprintf(os.Stderr, "  Failed:    %d\n", summary.Failed)
	fmt.Fprintf(os.Stderr, "  Skipped:   %d\n", summary.Skipped)
	if summary.Duplicate > 0 {
		fmt.Fprintf(os.Stderr, "  Duplicate: %d\n", summary.Duplicate)
	}
	fmt.Fprintf(os.Stderr, "  Elapsed:   %s\n\n", time.Since(start).Round(time.Second))

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("batch interrupted, re-run with the same --results to resume: %w", err)
	}
	return err
}
