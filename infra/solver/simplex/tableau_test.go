package simplex

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/kilianp07/ucmilp/core/milp"
)

func lpRow(sense milp.Sense, rhs float64, coefs ...float64) row {
	r := row{sense: sense, rhs: rhs}
	for j, c := range coefs {
		if c != 0 {
			r.cols = append(r.cols, j)
			r.coefs = append(r.coefs, c)
		}
	}
	return r
}

func solveProblem(t *testing.T, p *problem) (*tableau, error) {
	t.Helper()
	tb := newTableau(p)
	return tb, tb.solve(context.Background(), p.cost)
}

func TestTableauSignedArtificials(t *testing.T) {
	// both rows start violated at the origin, one from each side
	p := &problem{
		cost: []float64{1, 2},
		lo:   []float64{0, 0},
		hi:   []float64{5, 5},
		rows: []row{
			lpRow(milp.GE, 3, 1, 1),
			lpRow(milp.EQ, -1, 1, -1),
		},
	}
	tb, err := solveProblem(t, p)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if len(tb.art) != 2 {
		t.Fatalf("expected two artificials, got %d", len(tb.art))
	}
	if math.Abs(tb.x[0]-1) > 1e-9 || math.Abs(tb.x[1]-2) > 1e-9 {
		t.Fatalf("expected (1, 2) got (%v, %v)", tb.x[0], tb.x[1])
	}
}

func TestTableauDegenerateCycle(t *testing.T) {
	// Beale's example cycles under textbook Dantzig pricing.
	p := &problem{
		cost: []float64{-0.75, 150, -0.02, 6},
		lo:   []float64{0, 0, 0, 0},
		hi:   []float64{math.Inf(1), math.Inf(1), math.Inf(1), math.Inf(1)},
		rows: []row{
			lpRow(milp.LE, 0, 0.25, -60, -0.04, 9),
			lpRow(milp.LE, 0, 0.5, -90, -0.02, 3),
			lpRow(milp.LE, 1, 0, 0, 1, 0),
		},
	}
	tb, err := solveProblem(t, p)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	var obj float64
	for j, c := range p.cost {
		obj += c * tb.x[j]
	}
	if math.Abs(obj+0.05) > 1e-9 {
		t.Fatalf("expected objective -0.05 got %v", obj)
	}
	if tb.steps > tb.limit {
		t.Fatalf("step limit reached: %d", tb.steps)
	}
}

func TestTableauInfeasible(t *testing.T) {
	p := &problem{
		cost: []float64{1, 1},
		lo:   []float64{0, 0},
		hi:   []float64{5, 5},
		rows: []row{lpRow(milp.GE, 12, 1, 1)},
	}
	if _, err := solveProblem(t, p); !errors.Is(err, errInfeasible) {
		t.Fatalf("expected infeasible, got %v", err)
	}
}

func TestTableauFreeColumn(t *testing.T) {
	inf := math.Inf(1)
	p := &problem{
		cost: []float64{1},
		lo:   []float64{-inf},
		hi:   []float64{inf},
		rows: []row{lpRow(milp.GE, -3, 1)},
	}
	tb, err := solveProblem(t, p)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if math.Abs(tb.x[0]+3) > 1e-9 {
		t.Fatalf("expected -3 got %v", tb.x[0])
	}
}

func TestTableauUnbounded(t *testing.T) {
	inf := math.Inf(1)
	p := &problem{
		cost: []float64{-1, 0},
		lo:   []float64{0, 0},
		hi:   []float64{inf, inf},
		rows: []row{lpRow(milp.LE, 1, 1, -1)},
	}
	if _, err := solveProblem(t, p); !errors.Is(err, errUnbounded) {
		t.Fatalf("expected unbounded, got %v", err)
	}
}

func TestTableauRefactorKeepsPoint(t *testing.T) {
	p := &problem{
		cost: []float64{1, 2},
		lo:   []float64{0, 0},
		hi:   []float64{5, 5},
		rows: []row{
			lpRow(milp.GE, 3, 1, 1),
			lpRow(milp.EQ, -1, 1, -1),
		},
	}
	tb, err := solveProblem(t, p)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	before := append([]float64(nil), tb.x...)
	if err := tb.refactor(); err != nil {
		t.Fatalf("refactor: %v", err)
	}
	for j := range before {
		if math.Abs(before[j]-tb.x[j]) > 1e-9 {
			t.Fatalf("column %d moved from %v to %v", j, before[j], tb.x[j])
		}
	}
	if q, _ := tb.price(); q >= 0 {
		t.Fatalf("refactored basis must stay optimal, column %d prices out", q)
	}
}
