package worker

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/citecheck/internal/model"
)

// mockVerifier implements CaseVerifier
type mockVerifier struct {
	calls int32
	fail  map[string]bool
}

func (m *mockVerifier) VerifyCase(ctx context.Context, c model.Case) *model.Record {
	atomic.AddInt32(&m.calls, 1)
	record := &model.Record{
		CaseID:      c.ID,
		GroundTruth: model.VerdictSupported,
		Predicted:   model.VerdictSupported,
	}
	if m.fail[c.ID] {
		record.Predicted = model.VerdictError
		record.Stage = model.StageFetch
		record.Error = "HTTP 404"
	}
	return record
}

func cases(ids ...string) []model.Case {
	out := make([]model.Case, len(ids))
	for i, id := range ids {
		out[i] = model.Case{ID: id, Index: 1, Occurrence: 1}
	}
	return out
}

func TestBatchProcessor_Process(t *testing.T) {
	verifier := &mockVerifier{fail: map[string]bool{"c3": true}}

	var mu sync.Mutex
	var sunk []string
	sink := func(r *model.Record) error {
		mu.Lock()
		defer mu.Unlock()
		sunk = append(sunk, r.CaseID)
		return nil
	}

	processor := NewBatchProcessor(verifier, 3, sink, nil)

	var progressCalls int32
	processor.OnProgress = func(done, total int, record *model.Record) {
		atomic.AddInt32(&progressCalls, 1)
		assert.Equal(t, 5, total)
	}

	summary, err := processor.Process(context.Background(), cases("c1", "c2", "c3", "c4", "c5"), nil)
	require.NoError(t, err)

	assert.Equal(t, 5, summary.Total)
	assert.Equal(t, 5, summary.Processed)
	assert.Equal(t, 1, summary.Failed)
	assert.Len(t, summary.Records, 5)
	assert.Equal(t, int32(5), atomic.LoadInt32(&progressCalls))

	sort.Strings(sunk)
	assert.Equal(t, []string{"c1", "c2", "c3", "c4", "c5"}, sunk)
}

func TestBatchProcessor_SkipsCompletedAndDuplicates(t *testing.T) {
	verifier := &mockVerifier{}
	processor := NewBatchProcessor(verifier, 2, nil, nil)

	completed := map[string]bool{"c1": true, "c2": true}
	summary, err := processor.Process(context.Background(), cases("c1", "c2", "c3", "c3", "c4"), completed)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, 1, summary.Duplicate)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, int32(2), atomic.LoadInt32(&verifier.calls))
}

func TestBatchProcessor_AllCompleted(t *testing.T) {
	verifier := &mockVerifier{}
	processor := NewBatchProcessor(verifier, 2, nil, nil)

	summary, err := processor.Process(context.Background(), cases("a"), map[string]bool{"a": true})
	require.NoError(t, err)
	assert.Zero(t, summary.Processed)
	assert.Zero(t, atomic.LoadInt32(&verifier.calls))
}

func TestBatchProcessor_SinkError(t *testing.T) {
	errDisk := errors.New("disk full")
	processor := NewBatchProcessor(&mockVerifier{}, 1, func(*model.Record) error { return errDisk }, nil)

	summary, err := processor.Process(context.Background(), cases("a", "b"), nil)
	require.ErrorIs(t, err, errDisk)
	assert.Equal(t, 2, summary.Processed, "a sink error must not stop the batch")
}

func TestBatchProcessor_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	processor := NewBatchProcessor(&mockVerifier{}, 2, nil, nil)
	_, err := processor.Process(ctx, cases("a", "b", "c"), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCaseJob_NilRecord(t *testing.T) {
	job := &CaseJob{Case: model.Case{ID: "x"}, Verifier: nilVerifier{}}
	res := job.Execute(context.Background()).(*CaseResult)

	assert.Equal(t, "x", res.Record.CaseID)
	assert.Equal(t, model.VerdictError, res.Record.Predicted)
	assert.Error(t, res.GetError())
}

type nilVerifier struct{}

func (nilVerifier) VerifyCase(context.Context, model.Case) *model.Record { return nil }
