package simplex

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/kilianp07/ucmilp/core/formulation"
	"github.com/kilianp07/ucmilp/core/milp"
	"github.com/kilianp07/ucmilp/core/model"
	"github.com/kilianp07/ucmilp/infra/logger"
	"github.com/kilianp07/ucmilp/internal/eventbus"
)

func unit(id string, pmin, pmax, fuel float64, ut int) model.Generator {
	return model.Generator{ID: id, PMin: pmin, PMax: pmax, FuelCost: fuel, RampUp: pmax, RampDown: pmax, MinUpTime: ut, MinDownTime: 1}
}

func build(t *testing.T, gens []model.Generator, demand []float64, v formulation.Variant) *formulation.Model {
	t.Helper()
	return buildNet(t, gens, demand, nil, v)
}

func buildNet(t *testing.T, gens []model.Generator, demand []float64, net *model.Network, v formulation.Variant) *formulation.Model {
	t.Helper()
	h, err := model.HourlyHorizon(len(demand))
	if err != nil {
		t.Fatalf("horizon: %v", err)
	}
	d := make(map[int]float64)
	for i, x := range demand {
		d[i+1] = x
	}
	ds, err := model.NewDataSet(gens, []model.Bus{{ID: "b1", Demand: d}}, h, net)
	if err != nil {
		t.Fatalf("dataset: %v", err)
	}
	opts, err := formulation.OptionsFor(v)
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	m, err := formulation.Build(ds, opts)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return m
}

func value(t *testing.T, m *formulation.Model, sol *milp.Solution, family, g string, h int) float64 {
	t.Helper()
	v, err := sol.Value(m.Model, family, formulation.GenHour(g, h))
	if err != nil {
		t.Fatalf("value: %v", err)
	}
	return v
}

func solve(t *testing.T, m *formulation.Model, opts milp.SolveOptions) (*milp.Solution, error) {
	t.Helper()
	return New(logger.NopLogger{}).Solve(context.Background(), m.Model, opts)
}

func TestSolveFlatDemand(t *testing.T) {
	m := build(t, []model.Generator{unit("g1", 50, 200, 20, 1)}, []float64{100, 100, 100}, formulation.VariantBasic)
	sol, err := solve(t, m, milp.SolveOptions{TimeLimit: 30 * time.Second})
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if sol.Status != milp.StatusOptimal || sol.ModelID != m.ID {
		t.Fatalf("unexpected solution header %+v", sol)
	}
	if math.Abs(sol.Objective-6000) > 1e-6 {
		t.Fatalf("expected objective 6000 got %v", sol.Objective)
	}
	for h := 1; h <= 3; h++ {
		if u := value(t, m, sol, formulation.FamilyCommitment, "g1", h); u != 1 {
			t.Errorf("hour %d: expected u=1 got %v", h, u)
		}
		if p := value(t, m, sol, formulation.FamilyDispatch, "g1", h); math.Abs(p-100) > 1e-6 {
			t.Errorf("hour %d: expected p=100 got %v", h, p)
		}
	}
	if v := m.Violations(sol.Values, 1e-6); len(v) != 0 {
		t.Fatalf("solution violates %v", v)
	}
}

func TestSolveDefersStartup(t *testing.T) {
	m := build(t, []model.Generator{unit("g1", 50, 200, 20, 2)}, []float64{0, 0, 100}, formulation.VariantStartupShutdownRamp)
	sol, err := solve(t, m, milp.SolveOptions{})
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	want := []float64{0, 0, 1}
	for i, w := range want {
		if u := value(t, m, sol, formulation.FamilyCommitment, "g1", i+1); u != w {
			t.Errorf("hour %d: expected u=%v got %v", i+1, w, u)
		}
	}
	if math.Abs(sol.Objective-2000) > 1e-6 {
		t.Fatalf("expected objective 2000 got %v", sol.Objective)
	}
}

func TestSolveBasicRampBlocksLateStartup(t *testing.T) {
	// the basic ramp allows only p_min in the startup hour, so 100 MW
	// cannot be reached from a cold unit at hour 3
	m := build(t, []model.Generator{unit("g1", 50, 200, 20, 2)}, []float64{0, 0, 100}, formulation.VariantBasic)
	_, err := solve(t, m, milp.SolveOptions{})
	if !milp.IsInfeasible(err) {
		t.Fatalf("expected infeasible, got %v", err)
	}
}

func TestSolveInfeasibleDemand(t *testing.T) {
	m := build(t, []model.Generator{unit("g1", 50, 200, 20, 1)}, []float64{100, 300}, formulation.VariantBasic)
	_, err := solve(t, m, milp.SolveOptions{})
	if !milp.IsInfeasible(err) {
		t.Fatalf("expected infeasible, got %v", err)
	}
}

func TestSolveMeritOrder(t *testing.T) {
	gens := []model.Generator{unit("cheap", 0, 100, 20, 1), unit("peaker", 10, 100, 40, 1)}
	m := build(t, gens, []float64{150, 150}, formulation.VariantBasic)
	sol, err := solve(t, m, milp.SolveOptions{})
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if math.Abs(sol.Objective-8000) > 1e-6 {
		t.Fatalf("expected objective 8000 got %v", sol.Objective)
	}
	if p := value(t, m, sol, formulation.FamilyDispatch, "cheap", 1); math.Abs(p-100) > 1e-6 {
		t.Fatalf("cheap unit must run at capacity, got %v", p)
	}
	if sol.Gap != 0 || sol.BestBound != sol.Objective {
		t.Fatalf("exhausted search must close the gap, got %v bound %v", sol.Gap, sol.BestBound)
	}
}

func TestSolveExpiredDeadline(t *testing.T) {
	m := build(t, []model.Generator{unit("g1", 50, 200, 20, 1)}, []float64{100}, formulation.VariantBasic)
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	_, err := New(nil).Solve(ctx, m.Model, milp.SolveOptions{})
	if s, ok := milp.FailureStatus(err); !ok || s != milp.StatusTimeLimitNoSolution {
		t.Fatalf("expected time limit without solution, got %v", err)
	}
}

func TestSolveRejectsBadOptions(t *testing.T) {
	m := build(t, []model.Generator{unit("g1", 50, 200, 20, 1)}, []float64{100}, formulation.VariantBasic)
	_, err := solve(t, m, milp.SolveOptions{MIPGap: -1})
	if s, ok := milp.FailureStatus(err); !ok || s != milp.StatusError {
		t.Fatalf("expected solver error, got %v", err)
	}
}

func TestSolveTrace(t *testing.T) {
	m := build(t, []model.Generator{unit("g1", 50, 200, 20, 1)}, []float64{100, 100}, formulation.VariantBasic)
	bus := eventbus.NewTyped[milp.TraceEvent](0)
	ch := bus.Subscribe()
	if _, err := solve(t, m, milp.SolveOptions{Verbose: true, Trace: bus}); err != nil {
		t.Fatalf("solve: %v", err)
	}
	bus.Close()
	kinds := map[milp.TraceKind]int{}
	for ev := range ch {
		if ev.Backend != Name {
			t.Fatalf("unexpected backend %s", ev.Backend)
		}
		kinds[ev.Kind]++
	}
	if kinds[milp.TraceRelaxation] != 1 || kinds[milp.TraceIncumbent] == 0 {
		t.Fatalf("unexpected trace %v", kinds)
	}
}

// enumerate fixes every commitment pattern, derives the startup and
// shutdown indicators from it and keeps the cheapest feasible relaxation.
func enumerate(t *testing.T, m *formulation.Model) float64 {
	t.Helper()
	lo, hi := bounds(m.Model)
	nh := len(m.Hours)
	fix := func(l, h []float64, family, g string, hour int, v float64) {
		idx, ok := m.Var(family, formulation.GenHour(g, hour))
		if !ok {
			t.Fatalf("missing %s %s %d", family, g, hour)
		}
		l[idx], h[idx] = v, v
	}
	best := math.Inf(1)
	for mask := 0; mask < 1<<(len(m.Generators)*nh); mask++ {
		l := append([]float64(nil), lo...)
		h := append([]float64(nil), hi...)
		for gi, g := range m.Generators {
			prev := 0.0
			for i, hour := range m.Hours {
				u := float64(mask >> (gi*nh + i) & 1)
				fix(l, h, formulation.FamilyCommitment, g, hour, u)
				fix(l, h, formulation.FamilyStartup, g, hour, math.Max(u-prev, 0))
				fix(l, h, formulation.FamilyShutdown, g, hour, math.Max(prev-u, 0))
				prev = u
			}
		}
		r, err := relax(context.Background(), m.Model, l, h)
		switch {
		case errors.Is(err, errInfeasible):
			continue
		case err != nil:
			t.Fatalf("pattern %b: %v", mask, err)
		}
		best = math.Min(best, r.objective)
	}
	return best
}

func checkEnumerated(t *testing.T, m *formulation.Model) {
	t.Helper()
	want := enumerate(t, m)
	sol, err := solve(t, m, milp.SolveOptions{TimeLimit: time.Minute})
	if math.IsInf(want, 1) {
		if !milp.IsInfeasible(err) {
			t.Fatalf("no pattern is feasible, solver returned %+v %v", sol, err)
		}
		return
	}
	if err != nil {
		t.Fatalf("solve: %v (best pattern costs %v)", err, want)
	}
	if sol.Status != milp.StatusOptimal || sol.Gap != 0 {
		t.Fatalf("expected a closed search, got %s gap %v", sol.Status, sol.Gap)
	}
	if math.Abs(sol.Objective-want) > 1e-6*math.Max(1, math.Abs(want)) {
		t.Fatalf("expected objective %v got %v", want, sol.Objective)
	}
	if v := m.Violations(sol.Values, 1e-5); len(v) != 0 {
		t.Fatalf("solution violates %v", v)
	}
}

func TestSolveExplicitReserveMatchesEnumeration(t *testing.T) {
	gens := []model.Generator{
		{ID: "base", PMin: 20, PMax: 100, FuelCost: 10, NoLoadCost: 50, StartupCost: 100, RampUp: 60, RampDown: 60, MinUpTime: 2, MinDownTime: 2},
		{ID: "peak", PMin: 10, PMax: 80, FuelCost: 25, NoLoadCost: 20, StartupCost: 40, RampUp: 80, RampDown: 80, MinUpTime: 1, MinDownTime: 1},
	}
	m := build(t, gens, []float64{60, 90, 120, 50}, formulation.VariantExplicitReserve)
	checkEnumerated(t, m)
}

func TestSolveNetworkLimitsCheapUnit(t *testing.T) {
	gens := []model.Generator{unit("cheap", 0, 200, 10, 1), unit("dear", 0, 200, 30, 1)}
	net := &model.Network{Lines: []model.Line{{ID: "l1", FlowLimit: 100, PTDF: map[string]float64{"cheap": 1}}}}
	m := buildNet(t, gens, []float64{150, 150}, net, formulation.VariantNetwork)
	sol, err := solve(t, m, milp.SolveOptions{})
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if math.Abs(sol.Objective-5000) > 1e-6 {
		t.Fatalf("expected objective 5000 got %v", sol.Objective)
	}
	for h := 1; h <= 2; h++ {
		if p := value(t, m, sol, formulation.FamilyDispatch, "cheap", h); math.Abs(p-100) > 1e-6 {
			t.Errorf("hour %d: line limit must cap the cheap unit at 100, got %v", h, p)
		}
		f, err := sol.Value(m.Model, formulation.FamilyFlow, milp.Index{"l1", fmt.Sprint(h)})
		if err != nil || math.Abs(f-100) > 1e-6 {
			t.Errorf("hour %d: expected flow 100 got %v (%v)", h, f, err)
		}
	}
	checkEnumerated(t, m)
}

func TestSolveMatchesEnumeration(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	variants := []formulation.Variant{
		formulation.VariantBasic,
		formulation.VariantExplicitReserve,
		formulation.VariantNetwork,
		formulation.VariantStartupShutdownRamp,
	}
	for i := 0; i < 24; i++ {
		v := variants[i%len(variants)]
		gens := make([]model.Generator, 2)
		for g := range gens {
			pmax := math.Round(60 + rng.Float64()*90)
			ramp := math.Round(pmax * (0.4 + 0.6*rng.Float64()))
			gens[g] = model.Generator{
				ID:          fmt.Sprintf("g%d", g+1),
				PMin:        math.Round(rng.Float64() * 0.4 * pmax),
				PMax:        pmax,
				FuelCost:    math.Round(10 + rng.Float64()*30),
				NoLoadCost:  math.Round(rng.Float64() * 100),
				StartupCost: math.Round(rng.Float64() * 300),
				RampUp:      ramp,
				RampDown:    ramp,
				MinUpTime:   1 + rng.Intn(3),
				MinDownTime: 1 + rng.Intn(2),
			}
		}
		demand := make([]float64, 4)
		for h := range demand {
			demand[h] = math.Round(20 + rng.Float64()*150)
		}
		var net *model.Network
		if v == formulation.VariantNetwork {
			net = &model.Network{Lines: []model.Line{{
				ID:        "l1",
				FlowLimit: math.Round(40 + rng.Float64()*80),
				PTDF:      map[string]float64{"g1": 0.8, "g2": -0.3},
			}}}
		}
		t.Run(fmt.Sprintf("%02d_%s", i, v), func(t *testing.T) {
			checkEnumerated(t, buildNet(t, gens, demand, net, v))
		})
	}
}

func TestSearchBranchesWithoutRelaxation(t *testing.T) {
	m := build(t, []model.Generator{unit("g1", 50, 200, 20, 1)}, []float64{100, 100, 100}, formulation.VariantBasic)
	lo, hi := bounds(m.Model)
	se := &search{log: logger.NopLogger{}, m: m.Model, ctx: context.Background(), started: time.Now(), best: math.Inf(1), lost: math.Inf(1)}
	for j, c := range m.Columns() {
		if c.Domain.Integral() {
			se.integral = append(se.integral, j)
		}
	}
	heap.Push(&se.queue, &node{lo: lo, hi: hi, bound: math.Inf(-1)})
	status, err := se.run()
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if status != milp.StatusOptimal || math.Abs(se.best-6000) > 1e-6 {
		t.Fatalf("expected optimal 6000, got %s %v", status, se.best)
	}
}

func TestSearchLostSubtreeDowngradesStatus(t *testing.T) {
	m := build(t, []model.Generator{unit("g1", 50, 200, 20, 1)}, []float64{100}, formulation.VariantBasic)
	newSearch := func(gap float64) *search {
		return &search{
			log: logger.NopLogger{}, m: m.Model, ctx: context.Background(), started: time.Now(),
			opts: milp.SolveOptions{MIPGap: gap},
			best: 100, incumbent: make([]float64, m.NumVars()), solutions: 1,
			lost: 90, dropped: 1,
		}
	}

	se := newSearch(0)
	status, err := se.run()
	if err != nil || status != milp.StatusUnproven {
		t.Fatalf("expected unproven, got %s %v", status, err)
	}
	sol := se.solution(status)
	if sol.BestBound != 90 || sol.Gap <= 0 || !sol.Suboptimal() {
		t.Fatalf("lost subtree must stay in the bound, got %+v", sol)
	}

	// within the requested gap the lost subtree cannot hide a better answer
	if status, _ := newSearch(0.2).run(); status != milp.StatusOptimal {
		t.Fatalf("expected optimal within gap, got %s", status)
	}

	se = newSearch(0)
	se.incumbent, se.best = nil, math.Inf(1)
	_, err = se.run()
	if !errors.Is(err, errNumerical) {
		t.Fatalf("expected numerical failure, got %v", err)
	}
	if s, ok := milp.FailureStatus(se.failure(err)); !ok || s != milp.StatusError {
		t.Fatalf("unproven infeasibility must not read as infeasible, got %v", s)
	}
}
