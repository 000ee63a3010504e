// Package runlog persists a history of solve runs.
package runlog

import (
	"context"
	"time"
)

// RunRecord captures one build and solve of a case.
type RunRecord struct {
	RunID       string            `json:"run_id"`
	Timestamp   time.Time         `json:"timestamp"`
	Case        string            `json:"case"`
	Variant     string            `json:"variant"`
	Options     string            `json:"options,omitempty"`
	Backend     string            `json:"backend"`
	Status      string            `json:"status"`
	Objective   float64           `json:"objective"`
	BestBound   float64           `json:"best_bound"`
	Gap         float64           `json:"gap"`
	Suboptimal  bool              `json:"suboptimal"`
	Nodes       int               `json:"nodes"`
	Variables   int               `json:"variables"`
	Constraints int               `json:"constraints"`
	BuildMS     float64           `json:"build_ms"`
	SolveMS     float64           `json:"solve_ms"`
	Costs       map[string]string `json:"costs,omitempty"`
	OutputDir   string            `json:"output_dir,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// Query defines filters for retrieving records. Zero fields match
// everything.
type Query struct {
	Start  time.Time
	End    time.Time
	Case   string
	Status string
}

// Match reports whether r passes the filters of q.
func (q Query) Match(r RunRecord) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.Case != "" && r.Case != q.Case {
		return false
	}
	if q.Status != "" && r.Status != q.Status {
		return false
	}
	return true
}

// Store persists RunRecords and supports querying.
type Store interface {
	Append(ctx context.Context, rec RunRecord) error
	Query(ctx context.Context, q Query) ([]RunRecord, error)
	Close() error
}

// NopStore discards records.
type NopStore struct{}

func (NopStore) Append(context.Context, RunRecord) error           { return nil }
func (NopStore) Query(context.Context, Query) ([]RunRecord, error) { return nil, nil }
func (NopStore) Close() error                                      { return nil }
