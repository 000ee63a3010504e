package scenarios

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kilianp07/ucmilp/app"
	"github.com/kilianp07/ucmilp/core/formulation"
	"github.com/kilianp07/ucmilp/core/milp"
	"github.com/kilianp07/ucmilp/infra/logger"
	"github.com/kilianp07/ucmilp/infra/metrics"
	"github.com/kilianp07/ucmilp/infra/mqtt"
	"github.com/kilianp07/ucmilp/infra/solver/simplex"
)

const tolerance = 1e-6

func RunScenario(t *testing.T, sc *Scenario) {
	reg := prometheus.NewRegistry()
	sink, err := metrics.NewPromSinkWithRegistry(metrics.PromConfig{}, reg)
	if err != nil {
		t.Fatalf("prom sink: %v", err)
	}
	pub := mqtt.NewMockPublisher()

	ds, err := sc.DataSet()
	if err != nil {
		t.Fatalf("dataset: %v", err)
	}
	opts, err := sc.Options(formulation.DefaultOptions())
	if err != nil {
		t.Fatalf("options: %v", err)
	}

	r := &app.Runner{
		Solver:       simplex.New(logger.NopLogger{}),
		SolveOptions: milp.SolveOptions{TimeLimit: 30 * time.Second},
		Metrics:      sink,
		Publisher:    pub,
		Log:          logger.NopLogger{},
	}
	out, err := r.Run(context.Background(), app.Job{Name: sc.Name, Data: ds, Options: opts})

	if n := testutil.CollectAndCount(reg, "ucmilp_solves_total"); n != 1 {
		t.Errorf("scenario %s expected one solve series, got %d", sc.Name, n)
	}
	var status string
	if err != nil {
		st, ok := milp.FailureStatus(err)
		if !ok {
			t.Fatalf("scenario %s: %v", sc.Name, err)
		}
		status = st.String()
	} else {
		status = out.Results.Status.String()
	}
	if status != sc.Expected.Status {
		t.Fatalf("scenario %s expected status %s, got %s (%v)", sc.Name, sc.Expected.Status, status, err)
	}
	if err != nil {
		if len(pub.Published()) != 0 {
			t.Errorf("scenario %s published a failed schedule", sc.Name)
		}
		return
	}

	res := out.Results
	if want := sc.Expected.Objective; want != nil && math.Abs(res.Objective-*want) > tolerance {
		t.Errorf("scenario %s expected objective %v, got %v", sc.Name, *want, res.Objective)
	}
	for g, want := range sc.Expected.Commitment {
		got := res.Commitment.Column(g)
		if len(got) != len(want) {
			t.Errorf("scenario %s generator %s: expected %d hours, got %d", sc.Name, g, len(want), len(got))
			continue
		}
		for i := range want {
			if math.Round(got[i]) != float64(want[i]) {
				t.Errorf("scenario %s generator %s hour %d: expected u=%d, got %v", sc.Name, g, res.Hours[i], want[i], got[i])
			}
		}
	}
	for g, want := range sc.Expected.Dispatch {
		got := res.Dispatch.Column(g)
		for i := range want {
			if i >= len(got) || math.Abs(got[i]-want[i]) > tolerance {
				t.Errorf("scenario %s generator %s: expected dispatch %v, got %v", sc.Name, g, want, got)
				break
			}
		}
	}
	if got := len(pub.Published()); got != len(res.Generators) {
		t.Errorf("scenario %s expected %d schedule messages, got %d", sc.Name, len(res.Generators), got)
	}
}
