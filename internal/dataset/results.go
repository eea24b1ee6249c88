package dataset

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ppiankov/citecheck/internal/model"
)

// ResultWriter appends records to a JSONL file, one record per line.
// Safe for concurrent use.
type ResultWriter struct {
	mu sync.Mutex
	f  *os.File
	w  *bufio.Writer
}

// NewResultWriter opens path for appending, creating it and its directory
func NewResultWriter(path string) (*ResultWriter, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create results dir: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open results: %w", err)
	}
	return &ResultWriter{f: f, w: bufio.NewWriter(f)}, nil
}

// Write appends one record and flushes it
func (rw *ResultWriter) Write(record *model.Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	rw.mu.Lock()
	defer rw.mu.Unlock()

	if _, err := rw.w.Write(append(data, '\n')); err != nil {
		return err
	}
	return rw.w.Flush()
}

// Close flushes and closes the file
func (rw *ResultWriter) Close() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	flushErr := rw.w.Flush()
	return errors.Join(flushErr, rw.f.Close())
}

// ReadRecords reads every record from a results file. A truncated last line
// from an interrupted run is ignored.
func ReadRecords(path string) ([]model.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open results: %w", err)
	}
	defer f.Close()

	return decodeRecords(f)
}

func decodeRecords(r io.Reader) ([]model.Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var (
		records []model.Record
		pending error
		line    int
	)
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if pending != nil {
			return nil, pending
		}

		var record model.Record
		if err := json.Unmarshal([]byte(text), &record); err != nil {
			pending = fmt.Errorf("line %d: %w", line, err)
			continue
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}
	return records, nil
}

// CompletedIDs returns the case IDs already present in a results file.
// A missing file yields an empty set.
func CompletedIDs(path string) (map[string]bool, error) {
	records, err := ReadRecords(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]bool{}, nil
		}
		return nil, err
	}

	ids := make(map[string]bool, len(records))
	for i := range records {
		ids[records[i].CaseID] = true
	}
	return ids, nil
}
