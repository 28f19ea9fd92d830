// Package report records the outcome of every entity in an acquisition run.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the terminal state of one entity
type Status string

const (
	StatusSuccess Status = "success"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Entry is one entity's outcome
type Entry struct {
	EntityID  string `json:"entity_id"`
	Status    Status `json:"status"`
	Provider  string `json:"provider,omitempty"`
	Attempts  int    `json:"attempts"`
	Keyword   string `json:"keyword,omitempty"`
	SourceURL string `json:"source_url,omitempty"`
	Bytes     int64  `json:"bytes,omitempty"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Counts summarises a run
type Counts struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// RunReport is append-only: each entity id appears at most once
type RunReport struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	Entries    []Entry   `json:"entries"`
	Counts     Counts    `json:"counts"`

	mu   sync.Mutex
	seen map[string]struct{}
}

// New starts a report with a fresh run id
func New() *RunReport {
	return &RunReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		Entries:   []Entry{},
		seen:      make(map[string]struct{}),
	}
}

// Add appends an entry. A second entry for the same entity is rejected.
func (r *RunReport) Add(e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.seen == nil {
		r.seen = make(map[string]struct{})
	}
	if _, dup := r.seen[e.EntityID]; dup {
		return fmt.Errorf("entity %s already reported", e.EntityID)
	}
	r.seen[e.EntityID] = struct{}{}
	r.Entries = append(r.Entries, e)

	r.Counts.Total++
	switch e.Status {
	case StatusSuccess:
		r.Counts.Success++
	case StatusSkipped:
		r.Counts.Skipped++
	case StatusFailed:
		r.Counts.Failed++
	}
	return nil
}

// Finish stamps the end time and orders entries by entity id so two runs over
// the same catalog produce comparable reports
func (r *RunReport) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FinishedAt = time.Now()
	sort.SliceStable(r.Entries, func(i, j int) bool {
		return r.Entries[i].EntityID < r.Entries[j].EntityID
	})
}

// Summary returns the counts
func (r *RunReport) Summary() Counts {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Counts
}

// Get returns the entry recorded for an entity
func (r *RunReport) Get(entityID string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.Entries {
		if e.EntityID == entityID {
			return e, true
		}
	}
	return Entry{}, false
}

// ByStatus returns the entries with the given status
func (r *RunReport) ByStatus(s Status) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Entry
	for _, e := range r.Entries {
		if e.Status == s {
			out = append(out, e)
		}
	}
	return out
}

// Duration is the wall time of the run, up to now if it has not finished
func (r *RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Save writes the report as indented JSON, replacing path atomically
func (r *RunReport) Save(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	tempPath := path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary report file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(r); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode report: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync report file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close report file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace report file: %w", err)
	}
	return nil
}

// Load reads a report written by Save
func Load(path string) (*RunReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	r := &RunReport{}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	r.seen = make(map[string]struct{}, len(r.Entries))
	for _, e := range r.Entries {
		r.seen[e.EntityID] = struct{}{}
	}
	return r, nil
}
