package extract

import (
	"github.com/kilianp07/ucmilp/core/milp"
)

// WideTable holds a (generator, hour) family with one row per hour and one
// column per generator.
type WideTable struct {
	Family     string
	Hours      []int
	Generators []string
	// Values[i][j] is the value at Hours[i] for Generators[j].
	Values [][]float64
}

func newWideTable(family string, hours []int, gens []string) *WideTable {
	vals := make([][]float64, len(hours))
	for i := range vals {
		vals[i] = make([]float64, len(gens))
	}
	return &WideTable{Family: family, Hours: hours, Generators: gens, Values: vals}
}

// At returns the cell for generator g at hour h.
func (t *WideTable) At(h int, g string) (float64, bool) {
	for i, hh := range t.Hours {
		if hh != h {
			continue
		}
		for j, gg := range t.Generators {
			if gg == g {
				return t.Values[i][j], true
			}
		}
	}
	return 0, false
}

// Column returns the values of generator g in hour order.
func (t *WideTable) Column(g string) []float64 {
	for j, gg := range t.Generators {
		if gg != g {
			continue
		}
		out := make([]float64, len(t.Hours))
		for i := range t.Hours {
			out[i] = t.Values[i][j]
		}
		return out
	}
	return nil
}

// LongRow is one member of a family.
type LongRow struct {
	Index milp.Index
	Value float64
}

// LongTable holds any family in long form, one row per index tuple.
type LongTable struct {
	Family string
	Shape  milp.Shape
	Rows   []LongRow
}
