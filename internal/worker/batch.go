package worker

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/ppiankov/citecheck/internal/model"
)

// CaseVerifier verifies one dataset case. Failures are reported on the
// returned record, never as a missing record.
type CaseVerifier interface {
	VerifyCase(ctx context.Context, c model.Case) *model.Record
}

// Sink receives each record as soon as it completes
type Sink func(*model.Record) error

// CaseJob represents one case verification
type CaseJob struct {
	Case     model.Case
	Verifier CaseVerifier
}

// Execute executes the case job
func (j *CaseJob) Execute(ctx context.Context) Result {
	record := j.Verifier.VerifyCase(ctx, j.Case)
	if record == nil {
		record = &model.Record{
			CaseID:    j.Case.ID,
			Predicted: model.VerdictError,
			Stage:     model.StageVerify,
			Error:     "no record produced",
		}
	}
	return &CaseResult{Record: record}
}

// CaseResult represents the result of a case job
type CaseResult struct {
	Record *model.Record
}

// GetError returns the stage failure recorded on the result, if any
func (r *CaseResult) GetError() error {
	if r.Record == nil || !r.Record.Failed() {
		return nil
	}
	return fmt.Errorf("%s: %s", r.Record.Stage, r.Record.Error)
}

// BatchSummary counts what a batch run did
type BatchSummary struct {
	Total     int
	Skipped   int // Already present in the results file
	Duplicate int // Repeated case IDs within the dataset
	Processed int
	Failed    int
	Records   []*model.Record
}

// BatchProcessor verifies many cases concurrently
type BatchProcessor struct {
	verifier    CaseVerifier
	concurrency int
	sink        Sink
	logger      *zap.Logger

	// OnProgress is called after each completed case, serialized
	OnProgress func(done, total int, record *model.Record)
}

// NewBatchProcessor creates a new batch processor; sink may be nil
func NewBatchProcessor(verifier CaseVerifier, concurrency int, sink Sink, logger *zap.Logger) *BatchProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchProcessor{
		verifier:    verifier,
		concurrency: concurrency,
		sink:        sink,
		logger:      logger,
	}
}

// Process verifies every case whose ID is not in completed. Records reach
// the sink in completion order. The first sink error is returned after the
// run finishes; a cancelled context stops submission and returns ctx.Err().
func (b *BatchProcessor) Process(ctx context.Context, cases []model.Case, completed map[string]bool) (*BatchSummary, error) {
	summary := &BatchSummary{Total: len(cases)}

	pending := make([]model.Case, 0, len(cases))
	seen := make(map[string]bool, len(cases))
	for _, c := range cases {
		switch {
		case completed[c.ID]:
			summary.Skipped++
		case seen[c.ID]:
			summary.Duplicate++
			b.logger.Warn("duplicate case id skipped", zap.String("case_id", c.ID))
		default:
			seen[c.ID] = true
			pending = append(pending, c)
		}
	}

	if len(pending) == 0 {
		return summary, nil
	}

	var (
		mu      sync.Mutex
		sinkErr error
	)

	handle := func(r Result) {
		res, ok := r.(*CaseResult)
		if !ok {
			return
		}

		mu.Lock()
		defer mu.Unlock()

		// A case cut short by cancellation is retried on resume
		if ctx.Err() != nil && res.Record.Failed() {
			return
		}

		summary.Processed++
		summary.Records = append(summary.Records, res.Record)
		if err := res.GetError(); err != nil {
			summary.Failed++
			b.logger.Warn("case failed",
				zap.String("case_id", res.Record.CaseID),
				zap.String("stage", res.Record.Stage),
				zap.String("error", res.Record.Error))
		}

		if b.sink != nil {
			if err := b.sink(res.Record); err != nil && sinkErr == nil {
				sinkErr = fmt.Errorf("write record %s: %w", res.Record.CaseID, err)
			}
		}

		if b.OnProgress != nil {
			b.OnProgress(summary.Processed, len(pending), res.Record)
		}
	}

	pool := NewPool(ctx, b.concurrency, handle)
	pool.Start()

	for _, c := range pending {
		if !pool.Submit(&CaseJob{Case: c, Verifier: b.verifier}) {
			break
		}
	}
	pool.Wait()

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, sinkErr
}
