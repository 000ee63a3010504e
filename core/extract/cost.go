package extract

import (
	"github.com/shopspring/decimal"

	"github.com/kilianp07/ucmilp/core/model"
)

// CostBreakdown splits the objective into its components, rounded to cents.
type CostBreakdown struct {
	Fuel         decimal.Decimal            `json:"fuel"`
	NoLoad       decimal.Decimal            `json:"no_load"`
	Startup      decimal.Decimal            `json:"startup"`
	Total        decimal.Decimal            `json:"total"`
	PerGenerator map[string]decimal.Decimal `json:"per_generator"`
}

const costPlaces = 2

// costs prices the schedule. fuel holds the output the fuel cost applies to,
// which is p_bar when the explicit reserve form is used.
func costs(gens []model.Generator, fuel, commit, startup *WideTable) CostBreakdown {
	cb := CostBreakdown{
		Fuel:         decimal.Zero,
		NoLoad:       decimal.Zero,
		Startup:      decimal.Zero,
		PerGenerator: make(map[string]decimal.Decimal, len(gens)),
	}
	for _, g := range gens {
		f := decimal.NewFromFloat(sum(fuel.Column(g.ID))).Mul(decimal.NewFromFloat(g.FuelCost))
		n := decimal.NewFromFloat(sum(commit.Column(g.ID))).Mul(decimal.NewFromFloat(g.NoLoadCost))
		s := decimal.Zero
		if startup != nil {
			s = decimal.NewFromFloat(sum(startup.Column(g.ID))).Mul(decimal.NewFromFloat(g.StartupCost))
		}
		cb.Fuel = cb.Fuel.Add(f)
		cb.NoLoad = cb.NoLoad.Add(n)
		cb.Startup = cb.Startup.Add(s)
		cb.PerGenerator[g.ID] = f.Add(n).Add(s).Round(costPlaces)
	}
	cb.Total = cb.Fuel.Add(cb.NoLoad).Add(cb.Startup).Round(costPlaces)
	cb.Fuel = cb.Fuel.Round(costPlaces)
	cb.NoLoad = cb.NoLoad.Round(costPlaces)
	cb.Startup = cb.Startup.Round(costPlaces)
	return cb
}

func sum(vs []float64) float64 {
	var t float64
	for _, v := range vs {
		t += v
	}
	return t
}
