package cbc

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/kilianp07/ucmilp/core/milp"
)

// termsPerLine keeps LP file lines short; some readers reject long lines.
const termsPerLine = 8

// colName is the LP file name of column j. Model names contain brackets
// and commas, which the LP format does not allow.
func colName(j int) string { return "x" + strconv.Itoa(j) }

func rowName(i int) string { return "c" + strconv.Itoa(i) }

// WriteLP writes m in CPLEX LP format. The objective constant is not
// written; callers add it back after the solve.
func WriteLP(w io.Writer, m *milp.Model) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "\\ %s (%s)\n", m.Name, m.ID)
	fmt.Fprintln(bw, "Minimize")
	obj := m.Objective().Terms
	if len(obj) == 0 && m.NumVars() > 0 {
		obj = []milp.Term{{Var: 0, Coef: 0}}
	}
	writeTerms(bw, " obj:", obj)

	fmt.Fprintln(bw, "Subject To")
	for i, c := range m.Constraints() {
		terms := c.Terms
		if len(terms) == 0 {
			terms = []milp.Term{{Var: 0, Coef: 0}}
		}
		writeTerms(bw, " "+rowName(i)+":", terms)
		fmt.Fprintf(bw, "   %s %s\n", sense(c.Sense), num(c.RHS))
	}

	fmt.Fprintln(bw, "Bounds")
	var binaries []int
	for j, col := range m.Columns() {
		if col.Domain == milp.Binary {
			binaries = append(binaries, j)
		}
		lo, up := col.Lower, col.Upper
		switch {
		case math.IsInf(lo, -1) && math.IsInf(up, 1):
			fmt.Fprintf(bw, " %s free\n", colName(j))
		case math.IsInf(up, 1):
			fmt.Fprintf(bw, " %s >= %s\n", colName(j), num(lo))
		case math.IsInf(lo, -1):
			fmt.Fprintf(bw, " -inf <= %s <= %s\n", colName(j), num(up))
		default:
			fmt.Fprintf(bw, " %s <= %s <= %s\n", num(lo), colName(j), num(up))
		}
	}
	if len(binaries) > 0 {
		fmt.Fprintln(bw, "Binaries")
		for k, j := range binaries {
			sep := " "
			if k > 0 && k%termsPerLine == 0 {
				sep = "\n "
			}
			fmt.Fprint(bw, sep, colName(j))
		}
		fmt.Fprintln(bw)
	}
	fmt.Fprintln(bw, "End")
	return bw.Flush()
}

func writeTerms(w *bufio.Writer, label string, terms []milp.Term) {
	w.WriteString(label)
	for k, t := range terms {
		if k > 0 && k%termsPerLine == 0 {
			w.WriteString("\n   ")
		}
		sign := "+"
		c := t.Coef
		if c < 0 {
			sign, c = "-", -c
		}
		fmt.Fprintf(w, " %s %s %s", sign, num(c), colName(int(t.Var)))
	}
	w.WriteString("\n")
}

func sense(s milp.Sense) string {
	switch s {
	case milp.LE:
		return "<="
	case milp.GE:
		return ">="
	default:
		return "="
	}
}

func num(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
