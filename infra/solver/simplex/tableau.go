package simplex

import (
	"context"
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/kilianp07/ucmilp/core/milp"
)

const (
	// costTol, scaled by the largest cost, is the reduced cost a column
	// needs to enter the basis.
	costTol = 1e-9
	// pivotTol is the smallest tableau entry accepted as a pivot.
	pivotTol = 1e-8
	// tieTol groups ratio test rows that block at the same step.
	tieTol = 1e-12
	// infeasTol, scaled by the largest right-hand side, is the phase one
	// optimum above which the rows are inconsistent.
	infeasTol = 1e-7
	// checkTol, scaled the same way, bounds the row residual and bound
	// violation of a returned point.
	checkTol = 1e-8
	// blandAfter is the run of degenerate steps after which pricing
	// switches to Bland's rule for the rest of the solve.
	blandAfter = 50
	// checkEvery is the step interval between context checks.
	checkEvery = 64
	// refactorEvery is the minimum step interval between refactorizations.
	refactorEvery = 100
)

// errNumerical reports a relaxation the simplex could not settle. It proves
// nothing about the node.
var errNumerical = errors.New("relaxation numerically unstable")

type colState int8

const (
	atLower colState = iota
	atUpper
	// atZero holds a free nonbasic column at zero.
	atZero
	inBasis
)

// row is a presolved constraint over problem columns.
type row struct {
	cols  []int
	coefs []float64
	sense milp.Sense
	rhs   float64
}

// problem is min cost'x over rows with lo <= x <= hi.
type problem struct {
	cost   []float64
	lo, hi []float64
	rows   []row
}

// tableau runs a bounded variable primal simplex on a x + s = b. Every
// row owns a logical column s whose bounds encode the row sense. A row
// whose logical cannot absorb the starting residual also gets an
// artificial column, and phase one drives the artificials to zero.
type tableau struct {
	m, n int
	a    *mat.Dense // original columns
	b    []float64
	t    *mat.Dense // basis inverse times a
	d    []float64  // reduced costs of the current phase
	cost []float64
	dtol float64

	lo, hi []float64
	x      []float64
	head   []int // basic column of each row
	state  []colState
	art    []int
	ratios []float64

	steps, factored int
	degenerate      int
	bland           bool
	limit           int
}

func start(lo, hi float64) (float64, colState) {
	switch {
	case !math.IsInf(lo, -1):
		return lo, atLower
	case !math.IsInf(hi, 1):
		return hi, atUpper
	default:
		return 0, atZero
	}
}

func logicalBounds(s milp.Sense) (float64, float64) {
	switch s {
	case milp.LE:
		return 0, math.Inf(1)
	case milp.GE:
		return math.Inf(-1), 0
	default:
		return 0, 0
	}
}

// newTableau builds the starting basis: logicals where the residual fits
// their bounds, artificials elsewhere. p must have at least one row.
func newTableau(p *problem) *tableau {
	m, ns := len(p.rows), len(p.cost)
	tb := &tableau{m: m, head: make([]int, m), b: make([]float64, m), ratios: make([]float64, m)}
	tb.lo = append(make([]float64, 0, ns+2*m), p.lo...)
	tb.hi = append(make([]float64, 0, ns+2*m), p.hi...)
	tb.x = make([]float64, ns, ns+2*m)
	tb.state = make([]colState, ns, ns+2*m)
	for j := 0; j < ns; j++ {
		tb.x[j], tb.state[j] = start(tb.lo[j], tb.hi[j])
	}

	resid := make([]float64, m)
	for i, r := range p.rows {
		tb.b[i] = r.rhs
		resid[i] = r.rhs
		for k, j := range r.cols {
			resid[i] -= r.coefs[k] * tb.x[j]
		}
		l, u := logicalBounds(r.sense)
		tb.lo, tb.hi = append(tb.lo, l), append(tb.hi, u)
		v := math.Min(math.Max(resid[i], l), u)
		tb.x = append(tb.x, v)
		if v == resid[i] {
			tb.head[i] = ns + i
			tb.state = append(tb.state, inBasis)
			continue
		}
		tb.head[i] = -1
		if v == l {
			tb.state = append(tb.state, atLower)
		} else {
			tb.state = append(tb.state, atUpper)
		}
	}
	sign := make([]float64, m)
	var artRows []int
	for i := range sign {
		sign[i] = 1
		if tb.head[i] >= 0 {
			continue
		}
		r := resid[i] - tb.x[ns+i]
		if r < 0 {
			sign[i] = -1
		}
		k := len(tb.x)
		tb.x = append(tb.x, math.Abs(r))
		tb.lo, tb.hi = append(tb.lo, 0), append(tb.hi, math.Inf(1))
		tb.state = append(tb.state, inBasis)
		tb.head[i] = k
		tb.art = append(tb.art, k)
		artRows = append(artRows, i)
	}

	tb.n = len(tb.x)
	tb.a = mat.NewDense(m, tb.n, nil)
	for i, r := range p.rows {
		for k, j := range r.cols {
			tb.a.Set(i, j, tb.a.At(i, j)+r.coefs[k])
		}
		tb.a.Set(i, ns+i, 1)
	}
	for idx, k := range tb.art {
		i := artRows[idx]
		tb.a.Set(i, k, sign[i])
	}
	tb.t = mat.DenseCopyOf(tb.a)
	for i, s := range sign {
		if s < 0 {
			floats.Scale(-1, tb.t.RawRowView(i))
		}
	}
	tb.d = make([]float64, tb.n)
	tb.limit = 50*(m+tb.n) + 1000
	return tb
}

// solve runs both phases with the structural costs c and leaves the
// optimal point in tb.x. It returns errInfeasible only when phase one
// ends above zero on a fresh factorization.
func (tb *tableau) solve(ctx context.Context, c []float64) error {
	if len(tb.art) > 0 {
		if err := tb.phaseOne(ctx); err != nil {
			return err
		}
	}
	cost := make([]float64, tb.n)
	copy(cost, c)
	tb.setCost(cost)
	if err := tb.iterate(ctx); err != nil {
		return err
	}
	if tb.violation() <= tb.scaled(checkTol) {
		return nil
	}
	if err := tb.refactor(); err != nil {
		return err
	}
	if err := tb.iterate(ctx); err != nil {
		return err
	}
	if tb.violation() > tb.scaled(checkTol) {
		return errNumerical
	}
	return nil
}

func (tb *tableau) phaseOne(ctx context.Context) error {
	cost := make([]float64, tb.n)
	for _, k := range tb.art {
		cost[k] = 1
	}
	tb.setCost(cost)
	run := func() error {
		err := tb.iterate(ctx)
		if errors.Is(err, errUnbounded) {
			// the phase one objective is bounded below by zero
			return errNumerical
		}
		return err
	}
	if err := run(); err != nil {
		return err
	}
	tol := tb.scaled(infeasTol)
	if tb.artificial() > tol {
		// confirm on a fresh factorization before the node is pruned
		if err := tb.refactor(); err != nil {
			return err
		}
		if err := run(); err != nil {
			return err
		}
		if tb.artificial() > tol {
			return errInfeasible
		}
	}
	for _, k := range tb.art {
		tb.hi[k] = 0
		if tb.state[k] != inBasis {
			tb.x[k], tb.state[k] = 0, atLower
		}
	}
	return nil
}

func (tb *tableau) scaled(tol float64) float64 {
	return tol * math.Max(1, floats.Norm(tb.b, math.Inf(1)))
}

func (tb *tableau) artificial() float64 {
	var sum float64
	for _, k := range tb.art {
		sum += math.Max(tb.x[k], 0)
	}
	return sum
}

// violation is the largest row residual or bound excess of tb.x.
func (tb *tableau) violation() float64 {
	var worst float64
	for i := 0; i < tb.m; i++ {
		worst = math.Max(worst, math.Abs(floats.Dot(tb.a.RawRowView(i), tb.x)-tb.b[i]))
	}
	for j, v := range tb.x {
		worst = math.Max(worst, math.Max(tb.lo[j]-v, v-tb.hi[j]))
	}
	return worst
}

func (tb *tableau) setCost(c []float64) {
	tb.cost = c
	copy(tb.d, c)
	for i, k := range tb.head {
		if ck := c[k]; ck != 0 {
			floats.AddScaled(tb.d, -ck, tb.t.RawRowView(i))
		}
	}
	for _, k := range tb.head {
		tb.d[k] = 0
	}
	tb.dtol = costTol * math.Max(1, floats.Norm(c, math.Inf(1)))
}

func (tb *tableau) iterate(ctx context.Context) error {
	for {
		if tb.steps%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if tb.steps > tb.limit {
			return errNumerical
		}
		if tb.steps-tb.factored >= max(refactorEvery, tb.m) {
			if err := tb.refactor(); err != nil {
				return err
			}
		}
		q, dir := tb.price()
		if q < 0 {
			return nil
		}
		if err := tb.move(q, dir); err != nil {
			return err
		}
		tb.steps++
	}
}

// price picks the entering column and its direction, or -1 at optimality.
// Dantzig's rule is used until degeneracy persists, then Bland's.
func (tb *tableau) price() (int, float64) {
	q, dir, best := -1, 0.0, tb.dtol
	for j := 0; j < tb.n; j++ {
		if tb.state[j] == inBasis || tb.hi[j]-tb.lo[j] <= fixTol {
			continue
		}
		dj := tb.d[j]
		var s float64
		switch tb.state[j] {
		case atLower:
			if dj < -tb.dtol {
				s = 1
			}
		case atUpper:
			if dj > tb.dtol {
				s = -1
			}
		case atZero:
			if dj < -tb.dtol {
				s = 1
			} else if dj > tb.dtol {
				s = -1
			}
		}
		if s == 0 {
			continue
		}
		if tb.bland {
			return j, s
		}
		if math.Abs(dj) > best {
			q, dir, best = j, s, math.Abs(dj)
		}
	}
	return q, dir
}

// move steps column q in direction dir until a basic column or q itself
// reaches a bound.
func (tb *tableau) move(q int, dir float64) error {
	span := math.Inf(1)
	if !math.IsInf(tb.lo[q], -1) && !math.IsInf(tb.hi[q], 1) {
		span = tb.hi[q] - tb.lo[q]
	}
	ratio := math.Inf(1)
	for i := 0; i < tb.m; i++ {
		tb.ratios[i] = math.Inf(1)
		alpha := dir * tb.t.At(i, q)
		k := tb.head[i]
		switch {
		case alpha > pivotTol && !math.IsInf(tb.lo[k], -1):
			tb.ratios[i] = math.Max(tb.x[k]-tb.lo[k], 0) / alpha
		case alpha < -pivotTol && !math.IsInf(tb.hi[k], 1):
			tb.ratios[i] = math.Max(tb.hi[k]-tb.x[k], 0) / -alpha
		}
		ratio = math.Min(ratio, tb.ratios[i])
	}
	if math.IsInf(ratio, 1) && math.IsInf(span, 1) {
		return errUnbounded
	}

	if span <= ratio {
		tb.shift(q, dir, span)
		if dir > 0 {
			tb.x[q], tb.state[q] = tb.hi[q], atUpper
		} else {
			tb.x[q], tb.state[q] = tb.lo[q], atLower
		}
		tb.track(span)
		return nil
	}

	r := -1
	for i := 0; i < tb.m; i++ {
		if tb.ratios[i] > ratio+tieTol {
			continue
		}
		switch {
		case r < 0:
			r = i
		case tb.bland:
			if tb.head[i] < tb.head[r] {
				r = i
			}
		case math.Abs(tb.t.At(i, q)) > math.Abs(tb.t.At(r, q)):
			r = i
		}
	}
	theta := tb.ratios[r]
	tb.shift(q, dir, theta)
	k := tb.head[r]
	if dir*tb.t.At(r, q) > 0 {
		tb.x[k], tb.state[k] = tb.lo[k], atLower
	} else {
		tb.x[k], tb.state[k] = tb.hi[k], atUpper
	}
	tb.pivot(r, q)
	tb.head[r], tb.state[q] = q, inBasis
	tb.track(theta)
	return nil
}

func (tb *tableau) shift(q int, dir, theta float64) {
	if theta == 0 {
		return
	}
	for i, k := range tb.head {
		tb.x[k] -= dir * theta * tb.t.At(i, q)
	}
	tb.x[q] += dir * theta
}

func (tb *tableau) track(theta float64) {
	if theta > tieTol {
		tb.degenerate = 0
		return
	}
	tb.degenerate++
	if tb.degenerate > blandAfter {
		tb.bland = true
	}
}

func (tb *tableau) pivot(r, q int) {
	pr := tb.t.RawRowView(r)
	floats.Scale(1/pr[q], pr)
	pr[q] = 1
	for i := 0; i < tb.m; i++ {
		if i == r {
			continue
		}
		ri := tb.t.RawRowView(i)
		if f := ri[q]; f != 0 {
			floats.AddScaled(ri, -f, pr)
			ri[q] = 0
		}
	}
	if f := tb.d[q]; f != 0 {
		floats.AddScaled(tb.d, -f, pr)
	}
	tb.d[q] = 0
}

// refactor rebuilds the tableau, the basic values and the reduced costs
// from the original columns, discarding the drift of past pivots.
func (tb *tableau) refactor() error {
	basis := mat.NewDense(tb.m, tb.m, nil)
	for i, k := range tb.head {
		for r := 0; r < tb.m; r++ {
			basis.Set(r, i, tb.a.At(r, k))
		}
	}
	var lu mat.LU
	lu.Factorize(basis)
	if err := lu.SolveTo(tb.t, false, tb.a); err != nil {
		return errNumerical
	}
	rhs := mat.NewVecDense(tb.m, append([]float64(nil), tb.b...))
	for j := 0; j < tb.n; j++ {
		if tb.state[j] == inBasis || tb.x[j] == 0 {
			continue
		}
		rhs.AddScaledVec(rhs, -tb.x[j], tb.a.ColView(j))
	}
	var xb mat.VecDense
	if err := lu.SolveVecTo(&xb, false, rhs); err != nil {
		return errNumerical
	}
	for i, k := range tb.head {
		tb.x[k] = xb.AtVec(i)
	}
	tb.setCost(tb.cost)
	tb.factored = tb.steps
	return nil
}
