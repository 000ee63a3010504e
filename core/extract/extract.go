// Package extract turns a solved unit commitment model into result tables.
package extract

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/kilianp07/ucmilp/core/formulation"
	"github.com/kilianp07/ucmilp/core/milp"
)

// Results are the in-memory tables produced from a solution.
type Results struct {
	ModelID   string
	Variant   string
	Status    milp.Status
	Objective float64
	BestBound float64
	Gap       float64
	// Suboptimal is set when the solver stopped before proving the gap.
	Suboptimal bool

	Hours      []int
	Generators []string

	// Commitment holds u rounded to 0 or 1.
	Commitment *WideTable
	// Dispatch holds p as returned by the solver.
	Dispatch *WideTable
	// Wide holds every other family indexed by (generator, hour).
	Wide map[string]*WideTable
	// Long holds the families with any other index shape.
	Long map[string]*LongTable

	Costs CostBreakdown
}

// WideFamilies returns the names of the extra wide tables, sorted.
func (r *Results) WideFamilies() []string { return sortedKeys(r.Wide) }

// LongFamilies returns the names of the long tables, sorted.
func (r *Results) LongFamilies() []string { return sortedKeys(r.Long) }

// Extract reads sol against m. Binary families are rounded to the nearest
// integer; continuous families are copied as is.
func Extract(m *formulation.Model, sol *milp.Solution) (*Results, error) {
	if m == nil || m.Model == nil {
		return nil, &ExtractionError{Reason: "nil model"}
	}
	if sol == nil {
		return nil, &ExtractionError{Reason: "nil solution"}
	}
	if sol.ModelID != m.ID {
		return nil, &ExtractionError{Reason: fmt.Sprintf("solution belongs to model %s, not %s", sol.ModelID, m.ID)}
	}
	if !sol.Status.HasSolution() {
		return nil, &ExtractionError{Reason: fmt.Sprintf("status %s carries no solution", sol.Status)}
	}
	if len(sol.Values) != m.NumVars() {
		return nil, &ExtractionError{Reason: fmt.Sprintf("solution has %d values for %d variables", len(sol.Values), m.NumVars())}
	}

	gens := append([]string(nil), m.Generators...)
	sort.Strings(gens)
	hours := append([]int(nil), m.Hours...)
	sort.Ints(hours)

	res := &Results{
		ModelID:    m.ID,
		Variant:    m.Options.Label(),
		Status:     sol.Status,
		Objective:  sol.Objective,
		BestBound:  sol.BestBound,
		Gap:        sol.Gap,
		Suboptimal: sol.Suboptimal(),
		Hours:      hours,
		Generators: gens,
		Wide:       make(map[string]*WideTable),
		Long:       make(map[string]*LongTable),
	}

	for _, f := range m.Families() {
		if f.Shape.Is(milp.DimGenerator, milp.DimHour) {
			t, err := wide(f, sol.Values, hours, gens)
			if err != nil {
				return nil, err
			}
			switch f.Name {
			case formulation.FamilyCommitment:
				res.Commitment = t
			case formulation.FamilyDispatch:
				res.Dispatch = t
			default:
				res.Wide[f.Name] = t
			}
			continue
		}
		t, err := long(f, sol.Values)
		if err != nil {
			return nil, err
		}
		res.Long[f.Name] = t
	}
	if res.Commitment == nil {
		return nil, &ExtractionError{Family: formulation.FamilyCommitment, Reason: "family not declared"}
	}
	if res.Dispatch == nil {
		return nil, &ExtractionError{Family: formulation.FamilyDispatch, Reason: "family not declared"}
	}

	fuel := res.Dispatch
	if m.FuelFamily != formulation.FamilyDispatch {
		t, ok := res.Wide[m.FuelFamily]
		if !ok {
			return nil, &ExtractionError{Family: m.FuelFamily, Reason: "fuel family not declared"}
		}
		fuel = t
	}
	if m.Data != nil {
		res.Costs = costs(m.Data.Generators, fuel, res.Commitment, res.Wide[formulation.FamilyStartup])
	}
	return res, nil
}

func wide(f *milp.Family, values []float64, hours []int, gens []string) (*WideTable, error) {
	t := newWideTable(f.Name, hours, gens)
	hpos := make(map[int]int, len(hours))
	for i, h := range hours {
		hpos[h] = i
	}
	gpos := make(map[string]int, len(gens))
	for j, g := range gens {
		gpos[g] = j
	}
	seen := 0
	for _, v := range f.Vars() {
		col, val, err := read(f, v, values)
		if err != nil {
			return nil, err
		}
		j, ok := gpos[col.Index[0]]
		if !ok {
			return nil, &ExtractionError{Family: f.Name, Index: col.Index.String(), Reason: "unknown generator"}
		}
		h, err := strconv.Atoi(col.Index[1])
		if err != nil {
			return nil, &ExtractionError{Family: f.Name, Index: col.Index.String(), Reason: "hour is not an integer"}
		}
		i, ok := hpos[h]
		if !ok {
			return nil, &ExtractionError{Family: f.Name, Index: col.Index.String(), Reason: "hour outside the horizon"}
		}
		t.Values[i][j] = val
		seen++
	}
	if seen != len(hours)*len(gens) {
		return nil, &ExtractionError{Family: f.Name, Reason: fmt.Sprintf("expected %d members, found %d", len(hours)*len(gens), seen)}
	}
	return t, nil
}

func long(f *milp.Family, values []float64) (*LongTable, error) {
	t := &LongTable{Family: f.Name, Shape: f.Shape, Rows: make([]LongRow, 0, f.Len())}
	for _, v := range f.Vars() {
		col, val, err := read(f, v, values)
		if err != nil {
			return nil, err
		}
		t.Rows = append(t.Rows, LongRow{Index: append(milp.Index(nil), col.Index...), Value: val})
	}
	return t, nil
}

func read(f *milp.Family, v milp.Var, values []float64) (milp.Column, float64, error) {
	if int(v) < 0 || int(v) >= len(values) {
		return milp.Column{}, 0, &ExtractionError{Family: f.Name, Reason: fmt.Sprintf("variable %d has no value", v)}
	}
	col := f.Column(v)
	val := values[v]
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return col, 0, &ExtractionError{Family: f.Name, Index: col.Index.String(), Reason: "value is not finite"}
	}
	if col.Domain.Integral() {
		val = math.Round(val)
	}
	if val == 0 {
		// rounding -1e-12 yields -0, which prints with its sign
		val = 0
	}
	return col, val, nil
}

func sortedKeys[T any](m map[string]T) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
