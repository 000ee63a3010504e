package milp

import "sort"

// Term is coef * variable.
type Term struct {
	Var  Var
	Coef float64
}

// LinExpr is a linear expression sum(coef*var) + Const.
type LinExpr struct {
	Terms []Term
	Const float64
}

// Expr builds an expression from terms.
func Expr(terms ...Term) LinExpr { return LinExpr{Terms: terms} }

// T is shorthand for Term{v, coef}.
func T(v Var, coef float64) Term { return Term{Var: v, Coef: coef} }

// Add appends coef * v.
func (e *LinExpr) Add(v Var, coef float64) *LinExpr {
	e.Terms = append(e.Terms, Term{Var: v, Coef: coef})
	return e
}

// AddConst adds a constant.
func (e *LinExpr) AddConst(c float64) *LinExpr {
	e.Const += c
	return e
}

// Compact merges duplicate variables and drops zero coefficients. Terms are
// ordered by variable handle.
func (e LinExpr) Compact() LinExpr {
	acc := make(map[Var]float64, len(e.Terms))
	for _, t := range e.Terms {
		acc[t.Var] += t.Coef
	}
	out := LinExpr{Const: e.Const, Terms: make([]Term, 0, len(acc))}
	for v, c := range acc {
		if c != 0 {
			out.Terms = append(out.Terms, Term{Var: v, Coef: c})
		}
	}
	sort.Slice(out.Terms, func(i, j int) bool { return out.Terms[i].Var < out.Terms[j].Var })
	return out
}

// Eval evaluates the expression at values indexed by variable handle.
func (e LinExpr) Eval(values []float64) float64 {
	sum := e.Const
	for _, t := range e.Terms {
		sum += t.Coef * values[t.Var]
	}
	return sum
}
