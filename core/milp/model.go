package milp

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
)

// Domain is the value domain of a variable family.
type Domain int

const (
	// Binary variables take values in {0, 1}.
	Binary Domain = iota
	// NonNegative variables are continuous and >= 0.
	NonNegative
	// Continuous variables are real valued within explicit bounds.
	Continuous
)

func (d Domain) String() string {
	switch d {
	case Binary:
		return "binary"
	case NonNegative:
		return "non-negative"
	case Continuous:
		return "continuous"
	default:
		return fmt.Sprintf("domain(%d)", int(d))
	}
}

// Integral reports whether the domain requires integer values.
func (d Domain) Integral() bool { return d == Binary }

// Dimension names one axis of a variable index.
type Dimension string

const (
	DimGenerator Dimension = "generator"
	DimHour      Dimension = "hour"
	DimLine      Dimension = "line"
)

// Shape is the ordered list of dimensions indexing a family.
type Shape []Dimension

// Is reports whether the shape matches dims exactly.
func (s Shape) Is(dims ...Dimension) bool {
	if len(s) != len(dims) {
		return false
	}
	for i := range s {
		if s[i] != dims[i] {
			return false
		}
	}
	return true
}

// Index addresses a member of a family. Each element is the key along the
// matching Shape dimension; hours are stored in decimal form.
type Index []string

func (i Index) key() string { return strings.Join(i, "\x1f") }

func (i Index) String() string { return "[" + strings.Join(i, ",") + "]" }

// Var is a handle to one column of a model.
type Var int

// Column describes one declared decision variable.
type Column struct {
	Family string
	Index  Index
	Domain Domain
	Lower  float64
	Upper  float64
}

// Name returns a readable identifier such as u[g1,3].
func (c Column) Name() string { return c.Family + c.Index.String() }

// Family is a named group of variables sharing a shape and a domain.
type Family struct {
	Name   string
	Shape  Shape
	Domain Domain
	Lower  float64
	Upper  float64

	model *Model
	cols  map[string]Var
	order []Var
}

// Add declares the member at idx and returns its handle. Declaring the same
// index twice returns the existing handle.
func (f *Family) Add(idx Index) (Var, error) {
	if len(idx) != len(f.Shape) {
		return -1, fmt.Errorf("family %s: index %s does not match shape of %d dimensions", f.Name, idx, len(f.Shape))
	}
	k := idx.key()
	if v, ok := f.cols[k]; ok {
		return v, nil
	}
	cp := make(Index, len(idx))
	copy(cp, idx)
	v := Var(len(f.model.cols))
	f.model.cols = append(f.model.cols, Column{Family: f.Name, Index: cp, Domain: f.Domain, Lower: f.Lower, Upper: f.Upper})
	f.cols[k] = v
	f.order = append(f.order, v)
	return v, nil
}

// Lookup returns the handle of the member at idx.
func (f *Family) Lookup(idx Index) (Var, bool) {
	v, ok := f.cols[idx.key()]
	return v, ok
}

// Vars returns the handles of the family in declaration order.
func (f *Family) Vars() []Var {
	cp := make([]Var, len(f.order))
	copy(cp, f.order)
	return cp
}

// Len returns the number of declared members.
func (f *Family) Len() int { return len(f.order) }

// Column returns the column of handle v.
func (f *Family) Column(v Var) Column { return f.model.cols[v] }

// Model is a mixed-integer linear program. A Model is built once per solve
// and must not be shared between concurrent solves.
type Model struct {
	ID   string
	Name string

	families    []*Family
	byName      map[string]*Family
	cols        []Column
	constraints []Constraint
	objective   LinExpr
}

// NewModel returns an empty minimisation model with a fresh identifier.
func NewModel(name string) *Model {
	return &Model{ID: uuid.NewString(), Name: name, byName: make(map[string]*Family)}
}

// AddFamily declares a variable family. Binary families are bounded to
// [0,1] and non-negative families to [0,+inf) regardless of lower/upper.
func (m *Model) AddFamily(name string, shape Shape, domain Domain, lower, upper float64) (*Family, error) {
	if name == "" {
		return nil, fmt.Errorf("family name required")
	}
	if _, ok := m.byName[name]; ok {
		return nil, fmt.Errorf("family %s already declared", name)
	}
	switch domain {
	case Binary:
		lower, upper = 0, 1
	case NonNegative:
		lower, upper = 0, math.Inf(1)
	}
	if lower > upper {
		return nil, fmt.Errorf("family %s: lower bound %g above upper bound %g", name, lower, upper)
	}
	f := &Family{Name: name, Shape: shape, Domain: domain, Lower: lower, Upper: upper, model: m, cols: make(map[string]Var)}
	m.families = append(m.families, f)
	m.byName[name] = f
	return f, nil
}

// SetBounds overrides the bounds of a single column.
func (m *Model) SetBounds(v Var, lower, upper float64) error {
	if int(v) < 0 || int(v) >= len(m.cols) {
		return fmt.Errorf("unknown variable %d", v)
	}
	if lower > upper {
		return fmt.Errorf("%s: lower bound %g above upper bound %g", m.cols[v].Name(), lower, upper)
	}
	m.cols[v].Lower, m.cols[v].Upper = lower, upper
	return nil
}

// Family returns the family called name.
func (m *Model) Family(name string) (*Family, bool) {
	f, ok := m.byName[name]
	return f, ok
}

// Families returns the families in declaration order.
func (m *Model) Families() []*Family {
	cp := make([]*Family, len(m.families))
	copy(cp, m.families)
	return cp
}

// Var returns the handle of family[idx].
func (m *Model) Var(family string, idx Index) (Var, bool) {
	f, ok := m.byName[family]
	if !ok {
		return -1, false
	}
	return f.Lookup(idx)
}

// Column returns the description of v.
func (m *Model) Column(v Var) Column { return m.cols[v] }

// Columns returns a copy of all column descriptions ordered by handle.
func (m *Model) Columns() []Column {
	cp := make([]Column, len(m.cols))
	copy(cp, m.cols)
	return cp
}

// NumVars returns the number of declared columns.
func (m *Model) NumVars() int { return len(m.cols) }

// SetObjective sets the expression to minimise.
func (m *Model) SetObjective(e LinExpr) { m.objective = e.Compact() }

// Objective returns the expression being minimised.
func (m *Model) Objective() LinExpr { return m.objective }

// AddConstraint appends "expr sense rhs" to the constraint family. Constant
// terms of expr are moved to the right-hand side.
func (m *Model) AddConstraint(family string, expr LinExpr, sense Sense, rhs float64) error {
	for _, t := range expr.Terms {
		if int(t.Var) < 0 || int(t.Var) >= len(m.cols) {
			return fmt.Errorf("constraint %s references unknown variable %d", family, t.Var)
		}
	}
	c := expr.Compact()
	m.constraints = append(m.constraints, Constraint{
		Family: family,
		Terms:  c.Terms,
		Sense:  sense,
		RHS:    rhs - c.Const,
	})
	return nil
}

// Constraints returns the constraints in insertion order.
func (m *Model) Constraints() []Constraint {
	cp := make([]Constraint, len(m.constraints))
	copy(cp, m.constraints)
	return cp
}

// NumConstraints returns the number of constraints.
func (m *Model) NumConstraints() int { return len(m.constraints) }

// ConstraintCounts returns the number of constraints per family.
func (m *Model) ConstraintCounts() map[string]int {
	out := make(map[string]int)
	for _, c := range m.constraints {
		out[c.Family]++
	}
	return out
}
