package milp

import (
	"fmt"
	"math"
)

// Sense is the relation of a constraint.
type Sense int

const (
	LE Sense = iota
	GE
	EQ
)

func (s Sense) String() string {
	switch s {
	case LE:
		return "<="
	case GE:
		return ">="
	case EQ:
		return "="
	default:
		return fmt.Sprintf("sense(%d)", int(s))
	}
}

// Constraint is sum(terms) sense RHS.
type Constraint struct {
	Family string
	Terms  []Term
	Sense  Sense
	RHS    float64
}

// Activity returns the left-hand side at values.
func (c Constraint) Activity(values []float64) float64 {
	var sum float64
	for _, t := range c.Terms {
		sum += t.Coef * values[t.Var]
	}
	return sum
}

// Violation returns how much values violate the constraint, 0 when satisfied.
func (c Constraint) Violation(values []float64) float64 {
	lhs := c.Activity(values)
	switch c.Sense {
	case LE:
		return math.Max(0, lhs-c.RHS)
	case GE:
		return math.Max(0, c.RHS-lhs)
	default:
		return math.Abs(lhs - c.RHS)
	}
}

// Violation describes a constraint or bound that an assignment breaks.
type Violation struct {
	Family string
	Row    int
	Amount float64
}

// Violations checks values against every bound, integrality requirement and
// constraint of the model and returns those exceeding tol.
func (m *Model) Violations(values []float64, tol float64) []Violation {
	var out []Violation
	if len(values) != len(m.cols) {
		return []Violation{{Family: "columns", Row: -1, Amount: math.Abs(float64(len(values) - len(m.cols)))}}
	}
	for j, col := range m.cols {
		v := values[j]
		if v < col.Lower-tol || v > col.Upper+tol {
			out = append(out, Violation{Family: col.Family, Row: -1 - j, Amount: math.Max(col.Lower-v, v-col.Upper)})
		}
		if col.Domain.Integral() && math.Abs(v-math.Round(v)) > tol {
			out = append(out, Violation{Family: col.Family, Row: -1 - j, Amount: math.Abs(v - math.Round(v))})
		}
	}
	for i, c := range m.constraints {
		if amt := c.Violation(values); amt > tol {
			out = append(out, Violation{Family: c.Family, Row: i, Amount: amt})
		}
	}
	return out
}
