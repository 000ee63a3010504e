package config

import (
	"fmt"
	"time"

	"github.com/kilianp07/ucmilp/core/factory"
	"github.com/kilianp07/ucmilp/core/milp"
)

// Solve defaults, matching the usual 2 minute budget and 1% gap.
const (
	DefaultTimeLimitSeconds = 120
	DefaultMIPGap           = 0.01
)

// SolverConfig selects the backend and the backend-independent controls.
type SolverConfig struct {
	// Backend is a registered solver name such as "simplex" or "cbc".
	Backend string `json:"backend"`
	// Options is decoded by the backend.
	Options map[string]any `json:"options"`
	// TimeLimitSeconds of zero selects DefaultTimeLimitSeconds.
	TimeLimitSeconds float64 `json:"time_limit_seconds"`
	// MIPGap is a pointer so an explicit 0 is kept.
	MIPGap       *float64 `json:"mip_gap"`
	MaxSolutions int      `json:"max_solutions"`
	Verbose      bool     `json:"verbose"`
	// VerifyTolerance bounds the violation accepted from a backend.
	VerifyTolerance float64 `json:"verify_tolerance"`
}

// SetDefaults applies sane defaults.
func (c *SolverConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "simplex"
	}
	if c.TimeLimitSeconds == 0 {
		c.TimeLimitSeconds = DefaultTimeLimitSeconds
	}
	if c.MIPGap == nil {
		gap := DefaultMIPGap
		c.MIPGap = &gap
	}
	if c.VerifyTolerance == 0 {
		c.VerifyTolerance = 1e-5
	}
}

// Module returns the registry entry for the backend.
func (c SolverConfig) Module() factory.ModuleConfig {
	return factory.ModuleConfig{Type: c.Backend, Conf: c.Options}
}

// SolveOptions converts the controls.
func (c SolverConfig) SolveOptions() milp.SolveOptions {
	opts := milp.SolveOptions{
		TimeLimit:    time.Duration(c.TimeLimitSeconds * float64(time.Second)),
		MaxSolutions: c.MaxSolutions,
		Verbose:      c.Verbose,
	}
	if c.MIPGap != nil {
		opts.MIPGap = *c.MIPGap
	}
	return opts
}

// Validate checks option ranges.
func (c SolverConfig) Validate() error {
	if c.Backend == "" {
		return fmt.Errorf("solver: backend is required")
	}
	if c.VerifyTolerance < 0 {
		return fmt.Errorf("solver: verify tolerance must not be negative")
	}
	if err := c.SolveOptions().Validate(); err != nil {
		return fmt.Errorf("solver: %w", err)
	}
	return nil
}
