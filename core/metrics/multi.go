package metrics

import (
	"context"
	"errors"
)

// MultiSink fans events out to several sinks. Every sink is called even
// when an earlier one fails; the errors are joined.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordSolve forwards the event to all sinks.
func (m *MultiSink) RecordSolve(ev SolveEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordSolve(ev))
	}
	return errors.Join(errs...)
}

// RecordSchedule forwards schedules to the sinks that record them.
func (m *MultiSink) RecordSchedule(evs []ScheduleEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(ScheduleRecorder); ok {
			errs = append(errs, rec.RecordSchedule(evs))
		}
	}
	return errors.Join(errs...)
}

// RecordTrace forwards trace counts to the sinks that record them.
func (m *MultiSink) RecordTrace(ev TraceCount) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(TraceRecorder); ok {
			errs = append(errs, rec.RecordTrace(ev))
		}
	}
	return errors.Join(errs...)
}

// Flush flushes the sinks that buffer.
func (m *MultiSink) Flush(ctx context.Context) error {
	var errs []error
	for _, s := range m.Sinks {
		if f, ok := s.(Flusher); ok {
			errs = append(errs, f.Flush(ctx))
		}
	}
	return errors.Join(errs...)
}

// Close closes the sinks that hold connections.
func (m *MultiSink) Close() {
	for _, s := range m.Sinks {
		if c, ok := s.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
