package simplex

import (
	"context"
	"errors"
	"math"

	"github.com/kilianp07/ucmilp/core/milp"
)

const (
	// fixTol treats a column as fixed when its bounds are this close.
	fixTol = 1e-9
	// rowTol is the feasibility tolerance of rows removed during presolve.
	rowTol = 1e-7
)

var (
	errInfeasible = errors.New("relaxation infeasible")
	errUnbounded  = errors.New("relaxation unbounded")
)

// relaxation is the result of one LP solve in the space of model columns.
type relaxation struct {
	objective float64
	values    []float64
}

// presolved is a node relaxation with fixed and unused columns already
// valued. kept maps problem columns back to model columns.
type presolved struct {
	problem
	kept   []int
	values []float64
}

// relax solves the LP relaxation of m with column bounds lo and hi.
func relax(ctx context.Context, m *milp.Model, lo, hi []float64) (*relaxation, error) {
	p, err := presolve(m, lo, hi)
	if err != nil {
		return nil, err
	}
	values := p.values
	if len(p.rows) > 0 {
		tb := newTableau(&p.problem)
		if err := tb.solve(ctx, p.cost); err != nil {
			return nil, err
		}
		for k, j := range p.kept {
			// pivoting noise can leave values a hair outside the box
			values[j] = math.Min(math.Max(tb.x[k], lo[j]), hi[j])
		}
	}
	return &relaxation{objective: m.Objective().Eval(values), values: values}, nil
}

// presolve substitutes fixed columns, values columns that appear in no
// row and checks rows left without columns.
func presolve(m *milp.Model, lo, hi []float64) (*presolved, error) {
	n := m.NumVars()
	cost := make([]float64, n)
	for _, t := range m.Objective().Terms {
		cost[t.Var] += t.Coef
	}
	rows := m.Constraints()
	used := make([]bool, n)
	for _, c := range rows {
		for _, t := range c.Terms {
			used[t.Var] = true
		}
	}

	p := &presolved{values: make([]float64, n)}
	pos := make([]int, n)
	for j := 0; j < n; j++ {
		l, u := lo[j], hi[j]
		pos[j] = -1
		switch {
		case l > u+fixTol:
			return nil, errInfeasible
		case u-l <= fixTol:
			p.values[j] = l
		case !used[j]:
			v, err := unusedColumn(cost[j], l, u)
			if err != nil {
				return nil, err
			}
			p.values[j] = v
		default:
			pos[j] = len(p.kept)
			p.kept = append(p.kept, j)
			p.cost = append(p.cost, cost[j])
			p.lo = append(p.lo, l)
			p.hi = append(p.hi, u)
		}
	}

	for _, c := range rows {
		r := row{sense: c.Sense, rhs: c.RHS}
		for _, t := range c.Terms {
			if k := pos[t.Var]; k >= 0 {
				r.cols = append(r.cols, k)
				r.coefs = append(r.coefs, t.Coef)
				continue
			}
			r.rhs -= t.Coef * p.values[t.Var]
		}
		if len(r.cols) > 0 {
			p.rows = append(p.rows, r)
			continue
		}
		if !emptyRowFeasible(c.Sense, r.rhs) {
			return nil, errInfeasible
		}
	}
	return p, nil
}

// unusedColumn returns the cheapest value of a column absent from every row.
func unusedColumn(cost, lo, hi float64) (float64, error) {
	switch {
	case cost > 0:
		if math.IsInf(lo, -1) {
			return 0, errUnbounded
		}
		return lo, nil
	case cost < 0:
		if math.IsInf(hi, 1) {
			return 0, errUnbounded
		}
		return hi, nil
	}
	v, _ := start(lo, hi)
	return v, nil
}

func emptyRowFeasible(s milp.Sense, rhs float64) bool {
	switch s {
	case milp.LE:
		return rhs >= -rowTol
	case milp.GE:
		return rhs <= rowTol
	default:
		return math.Abs(rhs) <= rowTol
	}
}
