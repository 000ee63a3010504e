package metrics

import (
	"context"
	"time"
)

// SolveEvent summarises one build and solve of a case.
type SolveEvent struct {
	RunID   string
	Case    string
	Variant string
	Backend string
	// Status is the solver status, or a failure kind such as
	// "invalid_data" when the solver was never reached.
	Status      string
	Objective   float64
	BestBound   float64
	Gap         float64
	Nodes       int
	Variables   int
	Constraints int
	BuildTime   time.Duration
	SolveTime   time.Duration
	Time        time.Time
}

// MetricsSink records solve events.
type MetricsSink interface {
	RecordSolve(ev SolveEvent) error
}

// ScheduleEvent is the commitment and output of one generator in one hour.
type ScheduleEvent struct {
	RunID     string
	Case      string
	Generator string
	Hour      int
	Committed bool
	OutputMW  float64
	Time      time.Time
}

// ScheduleRecorder records solved schedules.
type ScheduleRecorder interface {
	RecordSchedule(evs []ScheduleEvent) error
}

// TraceCount is a solver trace event reduced to its labels.
type TraceCount struct {
	Backend string
	Kind    string
}

// TraceRecorder counts solver trace events.
type TraceRecorder interface {
	RecordTrace(ev TraceCount) error
}

// Flusher is implemented by sinks that buffer or push, e.g. to a
// Prometheus Pushgateway at the end of a run.
type Flusher interface {
	Flush(ctx context.Context) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordSolve(SolveEvent) error         { return nil }
func (NopSink) RecordSchedule([]ScheduleEvent) error { return nil }
func (NopSink) RecordTrace(TraceCount) error         { return nil }
