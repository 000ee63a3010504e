package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/ucmilp/core/metrics"
)

type lineRecorder struct {
	mu     sync.Mutex
	bodies []string
}

func (l *lineRecorder) handler(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	l.mu.Lock()
	l.bodies = append(l.bodies, strings.TrimSpace(string(b)))
	l.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (l *lineRecorder) lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, b := range l.bodies {
		for _, ln := range strings.Split(b, "\n") {
			if ln = strings.TrimSpace(ln); ln != "" {
				out = append(out, ln)
			}
		}
	}
	return out
}

func TestInfluxSink_RecordSolve(t *testing.T) {
	rec := &lineRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(rec.handler))
	defer srv.Close()

	sink := NewInfluxSink(InfluxConfig{URL: srv.URL, Token: "token", Org: "org", Bucket: "bucket"})
	defer sink.Close()
	now := time.Now()
	ev := coremetrics.SolveEvent{
		RunID: "r1", Case: "toy", Variant: "basic", Backend: "simplex", Status: "optimal",
		Objective: 6000, BestBound: 6000, Nodes: 3, Variables: 12, Constraints: 28,
		BuildTime: 2 * time.Millisecond, SolveTime: 1500 * time.Microsecond, Time: now,
	}
	if err := sink.RecordSolve(ev); err != nil {
		t.Fatalf("record: %v", err)
	}
	p := write.NewPointWithMeasurement("uc_solve").
		AddTag("run_id", "r1").
		AddTag("case", "toy").
		AddTag("variant", "basic").
		AddTag("backend", "simplex").
		AddTag("status", "optimal").
		AddField("objective", 6000.0).
		AddField("best_bound", 6000.0).
		AddField("gap", 0.0).
		AddField("nodes", 3).
		AddField("variables", 12).
		AddField("constraints", 28).
		AddField("build_ms", 2.0).
		AddField("solve_ms", 1.5).
		SetTime(now)
	exp := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	got := rec.lines()
	if len(got) != 1 || got[0] != exp {
		t.Errorf("lines: %#v\nwant %s", got, exp)
	}
}

func TestInfluxSink_RecordSchedule(t *testing.T) {
	rec := &lineRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(rec.handler))
	defer srv.Close()

	sink := NewInfluxSink(InfluxConfig{URL: srv.URL, Token: "token", Org: "org", Bucket: "bucket"})
	defer sink.Close()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	evs := []coremetrics.ScheduleEvent{
		{RunID: "r1", Case: "toy", Generator: "G1", Hour: 1, Committed: true, OutputMW: 100, Time: start},
		{RunID: "r1", Case: "toy", Generator: "G1", Hour: 2, Committed: false, OutputMW: 0, Time: start},
	}
	if err := sink.RecordSchedule(evs); err != nil {
		t.Fatalf("record: %v", err)
	}
	var want []string
	for _, ev := range evs {
		p := write.NewPointWithMeasurement("uc_schedule").
			AddTag("run_id", "r1").
			AddTag("case", "toy").
			AddTag("generator", "G1").
			AddField("hour", ev.Hour).
			AddField("committed", ev.Committed).
			AddField("output_mw", ev.OutputMW).
			SetTime(start.Add(time.Duration(ev.Hour-1) * time.Hour))
		want = append(want, strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond)))
	}
	got := rec.lines()
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("lines: %#v\nwant %#v", got, want)
	}
}

func TestInfluxSink_RecordScheduleEmpty(t *testing.T) {
	rec := &lineRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(rec.handler))
	defer srv.Close()

	sink := NewInfluxSink(InfluxConfig{URL: srv.URL, Org: "org", Bucket: "bucket"})
	defer sink.Close()
	if err := sink.RecordSchedule(nil); err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(rec.lines()) != 0 {
		t.Fatal("no request expected for an empty schedule")
	}
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(InfluxConfig{
		URL:    srv.URL + "/api/v2/write",
		Token:  "tok",
		Org:    "org",
		Bucket: "bucket",
	})
	if _, ok := sink.(*InfluxSink); ok {
		t.Fatalf("expected NopSink on failing health check")
	}
	if !called {
		t.Fatalf("health endpoint not called")
	}
}
