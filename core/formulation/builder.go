// Package formulation translates a unit commitment data set into a MILP.
//
// A single builder covers every variant: the reserve form, the network
// limits and the startup/shutdown ramp allowances are switched by Options.
package formulation

import (
	"fmt"
	"strconv"

	"github.com/kilianp07/ucmilp/core/milp"
	"github.com/kilianp07/ucmilp/core/model"
)

// Variable families declared by Build, all indexed by (generator, hour)
// except FamilyFlow which is indexed by (line, hour).
const (
	FamilyCommitment = "u"
	FamilyStartup    = "y"
	FamilyShutdown   = "z"
	FamilyDispatch   = "p"
	FamilyMaxOutput  = "p_bar"
	FamilyReserve    = "r"
	FamilyFlow       = "f"
)

// Constraint families added by Build.
const (
	RowLogic       = "logic"
	RowColdStart   = "cold_start"
	RowGenLimits   = "gen_limits"
	RowDemand      = "demand_balance"
	RowReserve     = "reserve"
	RowReserveLink = "reserve_link"
	RowRamp        = "ramp"
	RowUpDown      = "updown"
	RowLineFlow    = "line_flow"
)

// Model is a unit commitment MILP together with the sets and derived
// parameters it was built from.
type Model struct {
	*milp.Model

	Options Options
	Data    *model.DataSet

	Generators []string
	Hours      []int
	Buses      []string
	Lines      []string

	// Demand is the aggregate demand per hour.
	Demand map[int]float64
	// ReserveRequirement is ReserveFraction * Demand per hour.
	ReserveRequirement map[int]float64
	// FuelFamily is the family priced at the fuel cost in the objective.
	FuelFamily string
}

// GenHour returns the index of generator g at hour h.
func GenHour(g string, h int) milp.Index { return milp.Index{g, strconv.Itoa(h)} }

type builder struct {
	m    *Model
	ds   *model.DataSet
	opts Options

	// per family, generator id -> handles by hour position
	vars map[string]map[string][]milp.Var
}

// Build validates ds and opts and returns the formulated model.
func Build(ds *model.DataSet, opts Options) (*Model, error) {
	if ds == nil {
		return nil, &model.ValidationError{Entity: "dataset", Reason: "missing"}
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Network {
		if err := checkNetwork(ds); err != nil {
			return nil, err
		}
	}

	m := &Model{
		Model:              milp.NewModel("unit_commitment_" + opts.Label()),
		Options:            opts,
		Data:               ds,
		Hours:              ds.Horizon.Hours(),
		Demand:             make(map[int]float64, ds.Horizon.Len()),
		ReserveRequirement: make(map[int]float64, ds.Horizon.Len()),
		FuelFamily:         FamilyDispatch,
	}
	for _, g := range ds.Generators {
		m.Generators = append(m.Generators, g.ID)
	}
	for _, b := range ds.Buses {
		m.Buses = append(m.Buses, b.ID)
	}
	if opts.Network {
		for _, l := range ds.Network.Lines {
			m.Lines = append(m.Lines, l.ID)
		}
	}
	for _, h := range m.Hours {
		d := ds.TotalDemand(h)
		m.Demand[h] = d
		m.ReserveRequirement[h] = opts.ReserveFraction * d
	}
	if opts.Reserve == ReserveExplicit {
		m.FuelFamily = FamilyMaxOutput
	}

	b := &builder{m: m, ds: ds, opts: opts, vars: make(map[string]map[string][]milp.Var)}
	steps := []struct {
		name string
		fn   func() error
	}{
		{"variables", b.declare},
		{"objective", b.objective},
		{RowLogic, b.commitmentLogic},
		{RowGenLimits, b.generationLimits},
		{RowDemand, b.demandBalance},
		{RowReserve, b.reserve},
		{RowRamp, b.ramping},
		{RowUpDown, b.minUpDown},
		{RowLineFlow, b.network},
	}
	for _, s := range steps {
		if err := s.fn(); err != nil {
			return nil, fmt.Errorf("build %s: %w", s.name, err)
		}
	}
	return m, nil
}

func checkNetwork(ds *model.DataSet) error {
	if ds.Network == nil {
		return &FormulationError{Reason: "network constraints requested without transmission line data"}
	}
	for _, l := range ds.Network.Lines {
		for gid := range l.PTDF {
			if _, ok := ds.Generator(gid); !ok {
				return &FormulationError{Reason: fmt.Sprintf("line %s: PTDF references unknown generator %q", l.ID, gid)}
			}
		}
	}
	return nil
}

func (b *builder) family(name string, shape milp.Shape, domain milp.Domain) error {
	f, err := b.m.AddFamily(name, shape, domain, 0, 0)
	if err != nil {
		return err
	}
	per := make(map[string][]milp.Var, len(b.m.Generators))
	for _, g := range b.m.Generators {
		vs := make([]milp.Var, len(b.m.Hours))
		for i, h := range b.m.Hours {
			v, err := f.Add(GenHour(g, h))
			if err != nil {
				return err
			}
			vs[i] = v
		}
		per[g] = vs
	}
	b.vars[name] = per
	return nil
}

func (b *builder) v(family, g string, pos int) milp.Var { return b.vars[family][g][pos] }

func (b *builder) declare() error {
	type decl struct {
		name   string
		domain milp.Domain
	}
	fams := []decl{
		{FamilyCommitment, milp.Binary},
		{FamilyStartup, milp.Binary},
		{FamilyShutdown, milp.Binary},
		{FamilyDispatch, milp.NonNegative},
	}
	if b.opts.Reserve == ReserveExplicit {
		fams = append(fams, decl{FamilyMaxOutput, milp.NonNegative}, decl{FamilyReserve, milp.NonNegative})
	}
	gh := milp.Shape{milp.DimGenerator, milp.DimHour}
	for _, f := range fams {
		if err := b.family(f.name, gh, f.domain); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) objective() error {
	var obj milp.LinExpr
	for _, g := range b.ds.Generators {
		for i := range b.m.Hours {
			obj.Add(b.v(b.m.FuelFamily, g.ID, i), g.FuelCost)
			obj.Add(b.v(FamilyCommitment, g.ID, i), g.NoLoadCost)
			obj.Add(b.v(FamilyStartup, g.ID, i), g.StartupCost)
		}
	}
	b.m.SetObjective(obj)
	return nil
}

// commitmentLogic links u, y and z. Hour 1 follows the cold-start
// convention y = u: every unit is assumed off before the horizon.
func (b *builder) commitmentLogic() error {
	for _, g := range b.m.Generators {
		for i := range b.m.Hours {
			u, y, z := b.v(FamilyCommitment, g, i), b.v(FamilyStartup, g, i), b.v(FamilyShutdown, g, i)
			if i == 0 {
				if err := b.m.AddConstraint(RowColdStart, milp.Expr(milp.T(y, 1), milp.T(u, -1)), milp.EQ, 0); err != nil {
					return err
				}
			} else {
				prev := b.v(FamilyCommitment, g, i-1)
				e := milp.Expr(milp.T(u, 1), milp.T(prev, -1), milp.T(y, -1), milp.T(z, 1))
				if err := b.m.AddConstraint(RowLogic, e, milp.EQ, 0); err != nil {
					return err
				}
			}
			if err := b.m.AddConstraint(RowLogic, milp.Expr(milp.T(y, 1), milp.T(z, 1)), milp.LE, 1); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *builder) generationLimits() error {
	explicit := b.opts.Reserve == ReserveExplicit
	for _, g := range b.ds.Generators {
		for i := range b.m.Hours {
			u, p := b.v(FamilyCommitment, g.ID, i), b.v(FamilyDispatch, g.ID, i)
			if err := b.m.AddConstraint(RowGenLimits, milp.Expr(milp.T(p, 1), milp.T(u, -g.PMin)), milp.GE, 0); err != nil {
				return err
			}
			if !explicit {
				if err := b.m.AddConstraint(RowGenLimits, milp.Expr(milp.T(p, 1), milp.T(u, -g.PMax)), milp.LE, 0); err != nil {
					return err
				}
				continue
			}
			pbar, r := b.v(FamilyMaxOutput, g.ID, i), b.v(FamilyReserve, g.ID, i)
			rows := []struct {
				family string
				e      milp.LinExpr
				sense  milp.Sense
			}{
				{RowGenLimits, milp.Expr(milp.T(p, 1), milp.T(pbar, -1)), milp.LE},
				{RowGenLimits, milp.Expr(milp.T(pbar, 1), milp.T(u, -g.PMax)), milp.LE},
				{RowReserveLink, milp.Expr(milp.T(pbar, 1), milp.T(p, -1), milp.T(r, -1)), milp.EQ},
			}
			for _, row := range rows {
				if err := b.m.AddConstraint(row.family, row.e, row.sense, 0); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// demandBalance enforces sum(p) == demand every hour; no load shedding.
func (b *builder) demandBalance() error {
	for i, h := range b.m.Hours {
		var e milp.LinExpr
		for _, g := range b.m.Generators {
			e.Add(b.v(FamilyDispatch, g, i), 1)
		}
		if err := b.m.AddConstraint(RowDemand, e, milp.EQ, b.m.Demand[h]); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) reserve() error {
	for i, h := range b.m.Hours {
		var e milp.LinExpr
		rhs := b.m.ReserveRequirement[h]
		if b.opts.Reserve == ReserveExplicit {
			for _, g := range b.m.Generators {
				e.Add(b.v(FamilyReserve, g, i), 1)
			}
		} else {
			for _, g := range b.ds.Generators {
				e.Add(b.v(FamilyCommitment, g.ID, i), g.PMax)
			}
			rhs += b.m.Demand[h]
		}
		if err := b.m.AddConstraint(RowReserve, e, milp.GE, rhs); err != nil {
			return err
		}
	}
	return nil
}

// ramping limits hour-to-hour output changes. The startup (shutdown) term
// relaxes the limit in the hour a unit starts (stops).
func (b *builder) ramping() error {
	for _, g := range b.ds.Generators {
		su, sd := g.PMin, g.PMin
		if b.opts.StartupShutdownRamp {
			su, sd = g.StartupRamp(), g.ShutdownRamp()
		}
		for i := 1; i < len(b.m.Hours); i++ {
			p, prevP := b.v(FamilyDispatch, g.ID, i), b.v(FamilyDispatch, g.ID, i-1)
			u, prevU := b.v(FamilyCommitment, g.ID, i), b.v(FamilyCommitment, g.ID, i-1)
			y, z := b.v(FamilyStartup, g.ID, i), b.v(FamilyShutdown, g.ID, i)
			up := milp.Expr(milp.T(p, 1), milp.T(prevP, -1), milp.T(prevU, -g.RampUp), milp.T(y, -su))
			if err := b.m.AddConstraint(RowRamp, up, milp.LE, 0); err != nil {
				return err
			}
			down := milp.Expr(milp.T(prevP, 1), milp.T(p, -1), milp.T(u, -g.RampDown), milp.T(z, -sd))
			if err := b.m.AddConstraint(RowRamp, down, milp.LE, 0); err != nil {
				return err
			}
		}
	}
	return nil
}

// minUpDown adds the rolling windows. A window is only enforced while it
// fits in the horizon, so events close to the end are not constrained.
func (b *builder) minUpDown() error {
	n := len(b.m.Hours)
	for _, g := range b.ds.Generators {
		for i := 0; i < n; i++ {
			if i+g.MinUpTime <= n {
				var e milp.LinExpr
				for k := i; k < i+g.MinUpTime; k++ {
					e.Add(b.v(FamilyCommitment, g.ID, k), 1)
				}
				e.Add(b.v(FamilyStartup, g.ID, i), -float64(g.MinUpTime))
				if err := b.m.AddConstraint(RowUpDown, e, milp.GE, 0); err != nil {
					return err
				}
			}
			if i+g.MinDownTime <= n {
				// sum(1-u) >= DT*z  <=>  -sum(u) - DT*z >= -DT
				var e milp.LinExpr
				for k := i; k < i+g.MinDownTime; k++ {
					e.Add(b.v(FamilyCommitment, g.ID, k), -1)
				}
				e.Add(b.v(FamilyShutdown, g.ID, i), -float64(g.MinDownTime))
				if err := b.m.AddConstraint(RowUpDown, e, milp.GE, -float64(g.MinDownTime)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// network declares f[l,t] = sum(PTDF[l,g]*p[g,t]) bounded by +/- f_max.
func (b *builder) network() error {
	if !b.opts.Network {
		return nil
	}
	f, err := b.m.AddFamily(FamilyFlow, milp.Shape{milp.DimLine, milp.DimHour}, milp.Continuous, 0, 0)
	if err != nil {
		return err
	}
	for _, l := range b.ds.Network.Lines {
		for i, h := range b.m.Hours {
			fv, err := f.Add(milp.Index{l.ID, strconv.Itoa(h)})
			if err != nil {
				return err
			}
			if err := b.m.SetBounds(fv, -l.FlowLimit, l.FlowLimit); err != nil {
				return err
			}
			e := milp.Expr(milp.T(fv, 1))
			for _, g := range b.m.Generators {
				if k := l.Factor(g); k != 0 {
					e.Add(b.v(FamilyDispatch, g, i), -k)
				}
			}
			if err := b.m.AddConstraint(RowLineFlow, e, milp.EQ, 0); err != nil {
				return err
			}
		}
	}
	return nil
}
