package model

// Generator describes one dispatchable unit of the fleet.
type Generator struct {
	ID string
	// PMin and PMax bound the output in MW while the unit is committed.
	PMin float64
	PMax float64
	// FuelCost is the variable cost per MW produced in one hour.
	FuelCost float64
	// NoLoadCost is charged for every hour the unit is committed.
	NoLoadCost float64
	// StartupCost is charged once per startup event.
	StartupCost float64
	// RampUp and RampDown are hourly ramping limits in MW/h.
	RampUp   float64
	RampDown float64
	// RampStartup and RampShutdown optionally override the ramp allowance
	// during the hour of a startup or shutdown. Nil falls back to the
	// hourly ramp limit.
	RampStartup  *float64
	RampShutdown *float64
	// MinUpTime and MinDownTime are expressed in hours.
	MinUpTime   int
	MinDownTime int
}

// StartupRamp returns the ramp allowance applied in the hour of a startup.
func (g Generator) StartupRamp() float64 {
	if g.RampStartup != nil {
		return *g.RampStartup
	}
	return g.RampUp
}

// ShutdownRamp returns the ramp allowance applied in the hour of a shutdown.
func (g Generator) ShutdownRamp() float64 {
	if g.RampShutdown != nil {
		return *g.RampShutdown
	}
	return g.RampDown
}

// Validate checks the invariants of a single generator record.
func (g Generator) Validate() error {
	if g.ID == "" {
		return &ValidationError{Entity: "generator", Field: "id", Reason: "must not be empty"}
	}
	nonNeg := []struct {
		field string
		v     float64
	}{
		{"p_min", g.PMin},
		{"p_max", g.PMax},
		{"c_fuel", g.FuelCost},
		{"c_noload", g.NoLoadCost},
		{"c_startup", g.StartupCost},
		{"ramp_up", g.RampUp},
		{"ramp_down", g.RampDown},
	}
	if g.RampStartup != nil {
		nonNeg = append(nonNeg, struct {
			field string
			v     float64
		}{"ramp_startup", *g.RampStartup})
	}
	if g.RampShutdown != nil {
		nonNeg = append(nonNeg, struct {
			field string
			v     float64
		}{"ramp_shutdown", *g.RampShutdown})
	}
	for _, f := range nonNeg {
		if err := checkNonNegative("generator", g.ID, f.field, f.v); err != nil {
			return err
		}
	}
	if g.PMin > g.PMax {
		return &ValidationError{Entity: "generator", ID: g.ID, Field: "p_min", Reason: "exceeds p_max"}
	}
	if g.MinUpTime < 1 {
		return &ValidationError{Entity: "generator", ID: g.ID, Field: "min_up_time", Reason: "must be at least 1 hour"}
	}
	if g.MinDownTime < 1 {
		return &ValidationError{Entity: "generator", ID: g.ID, Field: "min_down_time", Reason: "must be at least 1 hour"}
	}
	return nil
}
