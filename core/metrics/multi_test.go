package metrics

import (
	"context"
	"errors"
	"testing"
)

type recordSink struct {
	solves, schedules, flushes int
	fail                       bool
}

func (r *recordSink) RecordSolve(SolveEvent) error {
	r.solves++
	if r.fail {
		return errors.New("down")
	}
	return nil
}

func (r *recordSink) RecordSchedule([]ScheduleEvent) error {
	r.schedules++
	return nil
}

func (r *recordSink) Flush(context.Context) error {
	r.flushes++
	return nil
}

func TestMultiSinkForwards(t *testing.T) {
	s1 := &recordSink{fail: true}
	s2 := &recordSink{}
	m := NewMultiSink(s1, s2, NopSink{})
	if err := m.RecordSolve(SolveEvent{}); err == nil {
		t.Fatal("expected the failing sink error")
	}
	if err := m.RecordSchedule(nil); err != nil {
		t.Fatalf("record schedule: %v", err)
	}
	if err := m.RecordTrace(TraceCount{}); err != nil {
		t.Fatalf("record trace: %v", err)
	}
	if err := m.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if s1.solves != 1 || s2.solves != 1 {
		t.Fatalf("a failing sink must not stop the others")
	}
	if s2.schedules != 1 || s2.flushes != 1 {
		t.Fatalf("optional recorders not forwarded")
	}
}
