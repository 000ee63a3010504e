package milp

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// Status is the outcome reported by a solver backend.
type Status int

const (
	// StatusOptimal means the incumbent is proven within the requested gap.
	StatusOptimal Status = iota
	// StatusTimeLimit means the time budget ran out with a feasible incumbent.
	StatusTimeLimit
	// StatusSolutionLimit means the solver stopped after the solution cap.
	StatusSolutionLimit
	// StatusInfeasible means no assignment satisfies the constraints.
	StatusInfeasible
	// StatusTimeLimitNoSolution means the budget ran out before any
	// feasible assignment was found.
	StatusTimeLimitNoSolution
	// StatusError covers solver crashes and unexpected backend errors.
	StatusError
	// StatusUnproven means the search ended with an incumbent but left
	// subtrees it could not evaluate, so the gap is not closed.
	StatusUnproven
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusTimeLimit:
		return "time_limit"
	case StatusSolutionLimit:
		return "solution_limit"
	case StatusInfeasible:
		return "infeasible"
	case StatusTimeLimitNoSolution:
		return "time_limit_no_solution"
	case StatusError:
		return "error"
	case StatusUnproven:
		return "unproven"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// HasSolution reports whether a status carries a feasible assignment.
func (s Status) HasSolution() bool {
	return s == StatusOptimal || s == StatusTimeLimit || s == StatusSolutionLimit || s == StatusUnproven
}

// Solution holds the values found by a backend. Values is indexed by
// variable handle and has one entry per column of the model it was solved
// from.
type Solution struct {
	ModelID   string
	Status    Status
	Objective float64
	// BestBound is the best proven lower bound on the objective.
	BestBound float64
	// Gap is the relative distance between Objective and BestBound.
	Gap       float64
	Values    []float64
	Nodes     int
	Solutions int
	Elapsed   time.Duration
}

// Suboptimal reports whether the solver stopped before proving the
// requested gap.
func (s *Solution) Suboptimal() bool { return s.Status != StatusOptimal }

// Value returns the value of family[idx] within m.
func (s *Solution) Value(m *Model, family string, idx Index) (float64, error) {
	v, ok := m.Var(family, idx)
	if !ok {
		return 0, fmt.Errorf("unknown variable %s%s", family, idx)
	}
	if int(v) >= len(s.Values) {
		return 0, fmt.Errorf("solution has no value for %s%s", family, idx)
	}
	return s.Values[v], nil
}

// RelativeGap computes |incumbent-bound| / |incumbent| with the same
// convention as CBC's ratioGap.
func RelativeGap(incumbent, bound float64) float64 {
	if math.IsInf(bound, -1) || math.IsNaN(bound) {
		return math.Inf(1)
	}
	diff := math.Abs(incumbent - bound)
	den := math.Abs(incumbent)
	if den < 1e-10 {
		if diff < 1e-9 {
			return 0
		}
		return math.Inf(1)
	}
	return diff / den
}

// SolverFailure is returned by backends when no usable solution exists.
type SolverFailure struct {
	Status  Status
	Backend string
	Message string
	// BestBound is reported when the backend proved a bound before failing.
	BestBound float64
	Err       error
}

func (f *SolverFailure) Error() string {
	msg := fmt.Sprintf("%s solver: %s", f.Backend, f.Status)
	if f.Message != "" {
		msg += ": " + f.Message
	}
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

func (f *SolverFailure) Unwrap() error { return f.Err }

// FailureStatus extracts the status of a *SolverFailure in err's chain.
func FailureStatus(err error) (Status, bool) {
	var f *SolverFailure
	if errors.As(err, &f) {
		return f.Status, true
	}
	return 0, false
}

// IsInfeasible reports whether err is an infeasibility failure.
func IsInfeasible(err error) bool {
	s, ok := FailureStatus(err)
	return ok && s == StatusInfeasible
}

// SolveOptions are the backend-independent solve controls.
type SolveOptions struct {
	// TimeLimit is the hard wall-clock budget; zero disables it.
	TimeLimit time.Duration
	// MIPGap is the relative optimality gap at which the search stops.
	MIPGap float64
	// MaxSolutions stops after this many improving solutions; zero means
	// no cap.
	MaxSolutions int
	// Verbose enables the solver trace.
	Verbose bool
	// Trace receives trace events when Verbose is set.
	Trace TraceSink
}

// Validate checks option ranges.
func (o SolveOptions) Validate() error {
	if o.TimeLimit < 0 {
		return fmt.Errorf("time limit must not be negative")
	}
	if o.MIPGap < 0 || math.IsNaN(o.MIPGap) {
		return fmt.Errorf("mip gap must be non-negative")
	}
	if o.MaxSolutions < 0 {
		return fmt.Errorf("max solutions must not be negative")
	}
	return nil
}

// Emit publishes ev when tracing is enabled.
func (o SolveOptions) Emit(ev TraceEvent) {
	if o.Verbose && o.Trace != nil {
		if ev.Time.IsZero() {
			ev.Time = time.Now()
		}
		o.Trace.Publish(ev)
	}
}

// TraceKind classifies solver trace events.
type TraceKind string

const (
	TraceRelaxation TraceKind = "relaxation"
	TraceIncumbent  TraceKind = "incumbent"
	TraceProgress   TraceKind = "progress"
	TraceLog        TraceKind = "log"
)

// TraceEvent is one line of the verbose solver trace.
type TraceEvent struct {
	Backend   string
	Kind      TraceKind
	Nodes     int
	Objective float64
	Bound     float64
	Message   string
	Time      time.Time
}

// TraceSink receives trace events. It is satisfied by
// *eventbus.TypedBus[TraceEvent].
type TraceSink interface {
	Publish(TraceEvent)
}

// Solver is the contract every MILP backend implements. Solve blocks until
// the model is solved, the time limit expires or ctx is cancelled. It
// returns a *SolverFailure when no feasible solution is available.
type Solver interface {
	Name() string
	Solve(ctx context.Context, m *Model, opts SolveOptions) (*Solution, error)
}
