package dataset

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ppiankov/citecheck/internal/model"
)

var (
	// ErrMissingColumn is returned when a dataset has neither a citation
	// index column nor a claim column
	ErrMissingColumn = errors.New("dataset needs a citation_index or claim column")

	// ErrUnsupportedFormat is returned for extensions other than csv, xlsx and jsonl
	ErrUnsupportedFormat = errors.New("unsupported dataset format")
)

// columnAliases maps accepted header names to case fields
var columnAliases = map[string]string{
	"id":              "id",
	"case_id":         "id",
	"article_url":     "article_url",
	"url":             "article_url",
	"article":         "article_url",
	"citation_index":  "index",
	"citation_number": "index",
	"index":           "index",
	"occurrence":      "occurrence",
	"source_url":      "source_url",
	"source":          "source_url",
	"claim":           "claim",
	"claim_text":      "claim",
	"ground_truth":    "ground_truth",
	"verdict":         "ground_truth",
	"label":           "ground_truth",
}

// LoadCases reads a ground-truth dataset. The format follows the file
// extension: .csv, .xlsx (first sheet) or .jsonl.
func LoadCases(path string) ([]model.Case, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open dataset: %w", err)
		}
		defer f.Close()
		return ReadCSV(f)

	case ".xlsx":
		return readXLSX(path)

	case ".jsonl", ".ndjson":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open dataset: %w", err)
		}
		defer f.Close()
		return ReadJSONL(f)

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// ReadCSV reads cases from CSV with a header row
func ReadCSV(r io.Reader) ([]model.Case, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return casesFromRows(rows)
}

func readXLSX(path string) ([]model.Case, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return casesFromRows(rows)
}

// casesFromRows maps a header row plus data rows onto cases
func casesFromRows(rows [][]string) ([]model.Case, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	columns := make(map[string]int)
	for i, name := range rows[0] {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if field, ok := columnAliases[key]; ok {
			if _, dup := columns[field]; !dup {
				columns[field] = i
			}
		}
	}

	_, hasIndex := columns["index"]
	_, hasClaim := columns["claim"]
	if !hasIndex && !hasClaim {
		return nil, ErrMissingColumn
	}

	var cases []model.Case
	for n, row := range rows[1:] {
		if blankRow(row) {
			continue
		}

		values := make(map[string]string, len(columns))
		for field, i := range columns {
			if i < len(row) {
				values[field] = row[i]
			}
		}

		c, err := buildCase(values, n+1)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return cases, nil
}

// ReadJSONL reads one case object per line. Keys accept the same aliases as
// tabular headers.
func ReadJSONL(r io.Reader) ([]model.Case, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var cases []model.Case
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var obj map[string]any
		if err := json.Unmarshal([]byte(text), &obj); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		values := make(map[string]string, len(obj))
		for key, v := range obj {
			field, ok := columnAliases[strings.ToLower(key)]
			if !ok || v == nil {
				continue
			}
			if _, dup := values[field]; !dup {
				values[field] = jsonString(v)
			}
		}

		c, err := buildCase(values, line)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read jsonl: %w", err)
	}
	return cases, nil
}

func buildCase(values map[string]string, row int) (model.Case, error) {
	c := model.Case{
		ID:          strings.TrimSpace(values["id"]),
		ArticleURL:  strings.TrimSpace(values["article_url"]),
		SourceURL:   strings.TrimSpace(values["source_url"]),
		Claim:       strings.TrimSpace(values["claim"]),
		GroundTruth: strings.TrimSpace(values["ground_truth"]),
		Occurrence:  1,
	}
	if c.ID == "" {
		c.ID = fmt.Sprintf("row-%d", row)
	}

	if raw := strings.TrimSpace(values["index"]); raw != "" {
		index, err := parseInt(raw)
		if err != nil || index < 1 {
			return c, fmt.Errorf("row %d: invalid citation index %q", row, raw)
		}
		c.Index = index
	}

	if raw := strings.TrimSpace(values["occurrence"]); raw != "" {
		occurrence, err := parseInt(raw)
		if err != nil || occurrence < 1 {
			return c, fmt.Errorf("row %d: invalid occurrence %q", row, raw)
		}
		c.Occurrence = occurrence
	}

	if c.Claim == "" && (c.ArticleURL == "" || c.Index == 0) {
		return c, fmt.Errorf("row %d: needs claim text or article URL with citation index", row)
	}
	return c, nil
}

// parseInt accepts "3", "[3]" and spreadsheet numbers like "3.0"
func parseInt(s string) (int, error) {
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("not an integer: %q", s)
	}
	return int(f), nil
}

func jsonString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
