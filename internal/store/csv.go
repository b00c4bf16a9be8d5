// Package store persists the observation log of a run as a CSV snapshot
// that a later run can resume from. Writes are atomic (temp file plus
// rename) so a crash mid-checkpoint never leaves a truncated file behind.
package store

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
)

// NotFoundError reports a missing checkpoint file.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return "checkpoint not found: " + e.Path
}

// Row is one evaluated parameter vector in tabular form. Elapsed is in
// seconds; Extras aligns with Table.ExtraNames.
type Row struct {
	Iteration int
	Params    []float64
	Elapsed   float64
	Score     float64
	Extras    []float64
}

// Table is the tabular snapshot of an observation log. The column layout
// is iteration, the parameters in declared order, elapsed, score, then the
// extra metrics.
type Table struct {
	ParamNames []string
	ExtraNames []string
	Rows       []Row
}

// CSVStore reads and writes one checkpoint file.
type CSVStore struct {
	path string
}

// NewCSVStore returns a store bound to the given file path.
func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path}
}

// Path returns the bound checkpoint path.
func (s *CSVStore) Path() string { return s.path }

// Save overwrites the checkpoint with the full table. The write goes to a
// temp file in the same directory first and is renamed into place.
func (s *CSVStore) Save(t *Table) error {
	if t == nil {
		return fmt.Errorf("table cannot be nil")
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create checkpoint directory: %w", err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create temp checkpoint file: %w", err)
	}
	tmpPath := tmp.Name()

	w := csv.NewWriter(tmp)
	header := make([]string, 0, len(t.ParamNames)+len(t.ExtraNames)+3)
	header = append(header, "iteration")
	header = append(header, t.ParamNames...)
	header = append(header, "elapsed", "score")
	header = append(header, t.ExtraNames...)
	if err := w.Write(header); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write checkpoint header: %w", err)
	}

	rec := make([]string, len(header))
	for _, row := range t.Rows {
		if len(row.Params) != len(t.ParamNames) || len(row.Extras) != len(t.ExtraNames) {
			tmp.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("row shape does not match table schema")
		}
		rec = rec[:0]
		rec = append(rec, strconv.Itoa(row.Iteration))
		for _, v := range row.Params {
			rec = append(rec, formatFloat(v))
		}
		rec = append(rec, formatFloat(row.Elapsed), formatFloat(row.Score))
		for _, v := range row.Extras {
			rec = append(rec, formatFloat(v))
		}
		if err := w.Write(rec); err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("failed to write checkpoint row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to flush checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp checkpoint file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename checkpoint file: %w", err)
	}

	slog.Debug("checkpoint saved", "path", s.path, "rows", len(t.Rows))
	return nil
}

// Load reads the checkpoint back into a table. The column layout is
// recovered from the header: everything between "iteration" and "elapsed"
// is a parameter, everything after "score" an extra metric.
func (s *CSVStore) Load() (*Table, error) {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil, &NotFoundError{Path: s.path}
	} else if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("checkpoint file %s is empty", s.path)
	}

	header := records[0]
	if len(header) < 3 || header[0] != "iteration" {
		return nil, fmt.Errorf("checkpoint header must start with an iteration column")
	}
	elapsedIdx := -1
	for i, name := range header {
		if name == "elapsed" {
			elapsedIdx = i
			break
		}
	}
	if elapsedIdx < 1 || elapsedIdx+1 >= len(header) || header[elapsedIdx+1] != "score" {
		return nil, fmt.Errorf("checkpoint header must carry elapsed and score columns after the parameters")
	}

	t := &Table{
		ParamNames: append([]string(nil), header[1:elapsedIdx]...),
		ExtraNames: append([]string(nil), header[elapsedIdx+2:]...),
	}

	for ln, rec := range records[1:] {
		if len(rec) != len(header) {
			return nil, fmt.Errorf("checkpoint row %d has %d fields, header has %d", ln+1, len(rec), len(header))
		}
		row := Row{}
		if row.Iteration, err = strconv.Atoi(rec[0]); err != nil {
			return nil, fmt.Errorf("checkpoint row %d: bad iteration: %w", ln+1, err)
		}
		if row.Params, err = parseFloats(rec[1:elapsedIdx]); err != nil {
			return nil, fmt.Errorf("checkpoint row %d: %w", ln+1, err)
		}
		if row.Elapsed, err = strconv.ParseFloat(rec[elapsedIdx], 64); err != nil {
			return nil, fmt.Errorf("checkpoint row %d: bad elapsed: %w", ln+1, err)
		}
		if row.Score, err = strconv.ParseFloat(rec[elapsedIdx+1], 64); err != nil {
			return nil, fmt.Errorf("checkpoint row %d: bad score: %w", ln+1, err)
		}
		if row.Extras, err = parseFloats(rec[elapsedIdx+2:]); err != nil {
			return nil, fmt.Errorf("checkpoint row %d: %w", ln+1, err)
		}
		t.Rows = append(t.Rows, row)
	}

	slog.Debug("checkpoint loaded", "path", s.path, "rows", len(t.Rows))
	return t, nil
}

func parseFloats(fields []string) ([]float64, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("bad numeric field %q: %w", f, err)
		}
		out[i] = v
	}
	return out, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
