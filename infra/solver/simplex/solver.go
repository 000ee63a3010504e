// Package simplex is a pure Go MILP backend: best-first branch and bound
// over LP relaxations solved with a bounded variable primal simplex kept in
// gonum dense matrices. It needs no external solver and is meant for small
// and medium unit commitment cases.
package simplex

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/kilianp07/ucmilp/core/logger"
	"github.com/kilianp07/ucmilp/core/milp"
	infralogger "github.com/kilianp07/ucmilp/infra/logger"
)

// Name is the registry name of the backend.
const Name = "simplex"

const (
	// intTol is the distance from an integer below which a value counts as
	// integral.
	intTol = 1e-6
	// progressEvery is the node interval between progress trace events.
	progressEvery = 50
)

// Solver implements milp.Solver.
type Solver struct {
	log logger.Logger
}

// New returns a solver logging to log.
func New(log logger.Logger) *Solver {
	if log == nil {
		log = infralogger.NopLogger{}
	}
	return &Solver{log: log}
}

// Name implements milp.Solver.
func (s *Solver) Name() string { return Name }

// node is an open subproblem. values is nil when its relaxation could not
// be solved; bound is then inherited from the parent.
type node struct {
	lo, hi []float64
	bound  float64
	values []float64
	depth  int
	seq    int
}

// nodeQueue orders open nodes by relaxation bound, deeper nodes first on
// ties so that the search dives towards incumbents.
type nodeQueue []*node

func (q nodeQueue) Len() int { return len(q) }
func (q nodeQueue) Less(i, j int) bool {
	if q[i].bound != q[j].bound {
		return q[i].bound < q[j].bound
	}
	if q[i].depth != q[j].depth {
		return q[i].depth > q[j].depth
	}
	return q[i].seq < q[j].seq
}
func (q nodeQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *nodeQueue) Push(x any)   { *q = append(*q, x.(*node)) }
func (q *nodeQueue) Pop() any {
	old := *q
	n := old[len(old)-1]
	*q = old[:len(old)-1]
	return n
}

type search struct {
	log     logger.Logger
	m       *milp.Model
	opts    milp.SolveOptions
	ctx     context.Context
	started time.Time

	integral []int
	queue    nodeQueue
	seq      int
	nodes    int

	incumbent []float64
	best      float64
	solutions int

	// lost is the lowest bound among subtrees dropped because their
	// relaxation failed with every integral column fixed.
	lost    float64
	dropped int
}

// Solve implements milp.Solver.
func (s *Solver) Solve(ctx context.Context, m *milp.Model, opts milp.SolveOptions) (*milp.Solution, error) {
	if err := opts.Validate(); err != nil {
		return nil, &milp.SolverFailure{Status: milp.StatusError, Backend: Name, Message: "invalid options", Err: err}
	}
	if m == nil {
		return nil, &milp.SolverFailure{Status: milp.StatusError, Backend: Name, Message: "nil model"}
	}
	if opts.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.TimeLimit)
		defer cancel()
	}
	se := &search{log: s.log, m: m, opts: opts, ctx: ctx, started: time.Now(), best: math.Inf(1), lost: math.Inf(1)}
	cols := m.Columns()
	lo, hi := make([]float64, len(cols)), make([]float64, len(cols))
	for j, c := range cols {
		lo[j], hi[j] = c.Lower, c.Upper
		if c.Domain.Integral() {
			se.integral = append(se.integral, j)
			lo[j], hi[j] = math.Ceil(c.Lower-intTol), math.Floor(c.Upper+intTol)
		}
	}
	s.log.Debugf("simplex: %d columns (%d integral), %d rows", len(cols), len(se.integral), m.NumConstraints())

	root, err := se.solveNode(lo, hi, 0, math.Inf(-1))
	if err != nil {
		return nil, se.failure(err)
	}
	if root == nil {
		return nil, &milp.SolverFailure{Status: milp.StatusInfeasible, Backend: Name, Message: "LP relaxation is infeasible"}
	}
	if root.values != nil {
		se.emit(milp.TraceRelaxation, root.bound, "root relaxation")
	}
	heap.Push(&se.queue, root)

	status, err := se.run()
	if errors.Is(err, context.DeadlineExceeded) && se.incumbent != nil {
		status, err = milp.StatusTimeLimit, nil
	}
	if err != nil {
		return nil, se.failure(err)
	}
	if status == milp.StatusInfeasible {
		return nil, &milp.SolverFailure{Status: milp.StatusInfeasible, Backend: Name, Message: fmt.Sprintf("no integral solution after %d nodes", se.nodes)}
	}
	s.log.Debugf("simplex: %s after %d nodes, objective %g", status, se.nodes, se.best)
	return se.solution(status), nil
}

// run explores the tree until it is exhausted or a stopping rule fires.
func (se *search) run() (milp.Status, error) {
	for se.queue.Len() > 0 {
		if err := se.ctx.Err(); err != nil {
			return 0, err
		}
		if se.incumbent != nil && milp.RelativeGap(se.best, se.bound()) <= se.opts.MIPGap {
			return milp.StatusOptimal, nil
		}
		n := heap.Pop(&se.queue).(*node)
		if se.prunable(n.bound) {
			continue
		}
		var j int
		var split [2]struct{ lo, hi float64 }
		if n.values == nil {
			if j = unfixed(se.integral, n); j < 0 {
				se.lost = math.Min(se.lost, n.bound)
				se.dropped++
				continue
			}
			mid := math.Floor((n.lo[j] + n.hi[j]) / 2)
			split[0].lo, split[0].hi = n.lo[j], mid
			split[1].lo, split[1].hi = mid+1, n.hi[j]
		} else {
			if j = se.branchVar(n.values); j < 0 {
				if se.accept(n) && se.opts.MaxSolutions > 0 && se.solutions >= se.opts.MaxSolutions {
					return milp.StatusSolutionLimit, nil
				}
				continue
			}
			v := n.values[j]
			split[0].lo, split[0].hi = n.lo[j], math.Floor(v)
			split[1].lo, split[1].hi = math.Ceil(v), n.hi[j]
		}
		for _, child := range split {
			lo := append([]float64(nil), n.lo...)
			hi := append([]float64(nil), n.hi...)
			lo[j], hi[j] = child.lo, child.hi
			c, err := se.solveNode(lo, hi, n.depth+1, n.bound)
			if err != nil {
				return 0, err
			}
			if c != nil && !se.prunable(c.bound) {
				heap.Push(&se.queue, c)
			}
		}
		if se.nodes%progressEvery == 0 {
			se.emit(milp.TraceProgress, se.best, fmt.Sprintf("%d open nodes", se.queue.Len()))
		}
	}
	switch {
	case se.incumbent != nil && milp.RelativeGap(se.best, se.bound()) <= se.opts.MIPGap:
		return milp.StatusOptimal, nil
	case se.incumbent != nil:
		return milp.StatusUnproven, nil
	case se.dropped > 0:
		return 0, fmt.Errorf("%d subtrees left unexplored: %w", se.dropped, errNumerical)
	}
	return milp.StatusInfeasible, nil
}

// unfixed returns the first integral column n can still branch on, or -1.
func unfixed(integral []int, n *node) int {
	for _, j := range integral {
		if n.hi[j]-n.lo[j] >= 1 {
			return j
		}
	}
	return -1
}

// solveNode solves the relaxation for the given bounds. It returns nil
// without error only when the node is proven infeasible. A relaxation
// that fails numerically yields a node without values that keeps the
// parent bound.
func (se *search) solveNode(lo, hi []float64, depth int, parent float64) (*node, error) {
	if err := se.ctx.Err(); err != nil {
		return nil, err
	}
	r, err := relax(se.ctx, se.m, lo, hi)
	se.nodes++
	se.seq++
	n := &node{lo: lo, hi: hi, bound: parent, depth: depth, seq: se.seq}
	switch {
	case err == nil:
		n.bound, n.values = r.objective, r.values
	case errors.Is(err, errInfeasible):
		return nil, nil
	case errors.Is(err, errNumerical):
		se.log.Debugf("simplex: node %d relaxation unstable, branching on bounds", se.nodes)
	default:
		return nil, err
	}
	return n, nil
}

// bound is the best objective any open node can still reach.
func (se *search) bound() float64 {
	b := math.Min(se.best, se.lost)
	if se.queue.Len() == 0 {
		return b
	}
	return math.Min(se.queue[0].bound, b)
}

func (se *search) prunable(obj float64) bool {
	if se.incumbent == nil {
		return false
	}
	tol := math.Max(1e-9, se.opts.MIPGap*math.Abs(se.best))
	return obj >= se.best-tol
}

// branchVar returns the most fractional integral column, or -1.
func (se *search) branchVar(x []float64) int {
	best, dist := -1, intTol
	for _, j := range se.integral {
		f := math.Abs(x[j] - math.Round(x[j]))
		if f > dist {
			best, dist = j, f
		}
	}
	return best
}

// accept rounds an integral relaxation and keeps it when it improves the
// incumbent. The continuous columns are re-solved with the integral ones
// fixed so that rounding leaves no row residual behind.
func (se *search) accept(n *node) bool {
	cand := append([]float64(nil), n.values...)
	lo := append([]float64(nil), n.lo...)
	hi := append([]float64(nil), n.hi...)
	for _, j := range se.integral {
		cand[j] = math.Round(cand[j])
		lo[j], hi[j] = cand[j], cand[j]
	}
	if r, err := relax(se.ctx, se.m, lo, hi); err == nil {
		cand = r.values
	}
	obj := se.m.Objective().Eval(cand)
	if obj >= se.best {
		return false
	}
	se.incumbent, se.best = cand, obj
	se.solutions++
	se.emit(milp.TraceIncumbent, obj, fmt.Sprintf("solution %d", se.solutions))
	return true
}

func (se *search) emit(kind milp.TraceKind, obj float64, msg string) {
	se.opts.Emit(milp.TraceEvent{
		Backend:   Name,
		Kind:      kind,
		Nodes:     se.nodes,
		Objective: obj,
		Bound:     se.bound(),
		Message:   msg,
	})
}

func (se *search) solution(status milp.Status) *milp.Solution {
	bound := se.bound()
	return &milp.Solution{
		ModelID:   se.m.ID,
		Status:    status,
		Objective: se.best,
		BestBound: bound,
		Gap:       milp.RelativeGap(se.best, bound),
		Values:    se.incumbent,
		Nodes:     se.nodes,
		Solutions: se.solutions,
		Elapsed:   time.Since(se.started),
	}
}

// failure converts a search error into a *milp.SolverFailure.
func (se *search) failure(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &milp.SolverFailure{Status: milp.StatusTimeLimitNoSolution, Backend: Name, BestBound: se.bound(), Err: err}
	case errors.Is(err, errUnbounded):
		return &milp.SolverFailure{Status: milp.StatusError, Backend: Name, Message: "LP relaxation is unbounded", Err: err}
	case errors.Is(err, errNumerical):
		return &milp.SolverFailure{Status: milp.StatusError, Backend: Name, Message: "infeasibility not proven", BestBound: se.bound(), Err: err}
	default:
		return &milp.SolverFailure{Status: milp.StatusError, Backend: Name, Err: err}
	}
}
