// Package store keeps an append-only JSONL history of claim passes under
// .looter/history.jsonl. Each line is one PassRecord. The runner appends a
// record after every pass; `looter status` reads the most recent ones back.
package store

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/LISSConsulting/LISSTech.LootKing/internal/looter"
)

// FileName is the history file, relative to the state directory.
const FileName = "history.jsonl"

// PassRecord summarises one pass. Individual claim results are not kept.
type PassRecord struct {
	PassID       string         `json:"pass_id,omitempty"`
	Backend      string         `json:"backend"`
	StartedAt    time.Time      `json:"started_at"`
	FinishedAt   time.Time      `json:"finished_at"`
	Passed       bool           `json:"passed"`
	Error        string         `json:"error,omitempty"`
	Categories   map[string]int `json:"categories,omitempty"`
	Outcomes     map[string]int `json:"outcomes,omitempty"`
	CodesWritten int            `json:"codes_written,omitempty"`
}

// Record builds a PassRecord from a pass summary and the error it returned.
// A failed pass may carry a partial summary; its counts are kept as-is.
func Record(sum looter.Summary, err error) PassRecord {
	rec := PassRecord{
		PassID:       sum.PassID,
		Backend:      sum.Backend,
		StartedAt:    sum.StartedAt,
		FinishedAt:   sum.FinishedAt,
		Passed:       err == nil,
		CodesWritten: sum.CodesWritten,
	}
	if err != nil {
		rec.Error = err.Error()
	}
	if rec.FinishedAt.IsZero() {
		rec.FinishedAt = time.Now()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = rec.FinishedAt
	}
	if len(sum.Categories) > 0 {
		rec.Categories = make(map[string]int, len(sum.Categories))
		for c, n := range sum.Categories {
			rec.Categories[c.String()] = n
		}
	}
	if len(sum.Outcomes) > 0 {
		rec.Outcomes = make(map[string]int, len(sum.Outcomes))
		for o, n := range sum.Outcomes {
			rec.Outcomes[o.String()] = n
		}
	}
	return rec
}

// History appends pass records to a JSONL file. It is safe for concurrent use.
type History struct {
	path    string
	maxKeep int

	mu sync.Mutex
}

// NewHistory returns a History writing to <dir>/.looter/history.jsonl.
// When maxKeep is positive, Append trims the file to the newest maxKeep
// records once it grows past twice that size.
func NewHistory(dir string, maxKeep int) *History {
	return &History{path: Path(dir), maxKeep: maxKeep}
}

// Path returns the history file location for dir.
func Path(dir string) string {
	return filepath.Join(dir, ".looter", FileName)
}

// Append writes rec as one line and syncs it to disk.
func (h *History) Append(rec PassRecord) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("store: marshal record: %w", err)
	}
	line = append(line, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(h.path), 0755); err != nil {
		return fmt.Errorf("store: create dir: %w", err)
	}
	f, err := os.OpenFile(h.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("store: open %s: %w", h.path, err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("store: write: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("store: sync: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return h.enforceRetention()
}

// enforceRetention rewrites the file with the newest maxKeep lines when it
// holds more than 2*maxKeep. Called with h.mu held.
func (h *History) enforceRetention() error {
	if h.maxKeep <= 0 {
		return nil
	}
	data, err := os.ReadFile(h.path)
	if err != nil {
		return fmt.Errorf("store: read %s: %w", h.path, err)
	}
	lines := bytes.SplitAfter(data, []byte("\n"))
	if n := len(lines); n > 0 && len(lines[n-1]) == 0 {
		lines = lines[:n-1]
	}
	if len(lines) <= 2*h.maxKeep {
		return nil
	}
	kept := bytes.Join(lines[len(lines)-h.maxKeep:], nil)

	tmp := h.path + ".tmp"
	if err := os.WriteFile(tmp, kept, 0644); err != nil {
		return fmt.Errorf("store: write temp: %w", err)
	}
	if err := os.Rename(tmp, h.path); err != nil {
		return fmt.Errorf("store: rename: %w", err)
	}
	return nil
}

// Recent returns up to n of the newest records in dir's history, oldest
// first. A missing file yields no records. Malformed lines are skipped.
// n <= 0 returns every record.
func Recent(dir string, n int) ([]PassRecord, error) {
	f, err := os.Open(Path(dir))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: open history: %w", err)
	}
	defer f.Close()

	var recs []PassRecord
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec PassRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		recs = append(recs, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("store: read history: %w", err)
	}

	if n > 0 && len(recs) > n {
		recs = recs[len(recs)-n:]
	}
	return recs, nil
}
