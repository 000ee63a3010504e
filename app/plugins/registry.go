// Package plugins holds the registries that map configuration names to
// solver backends.
package plugins

import (
	"github.com/kilianp07/ucmilp/core/factory"
	"github.com/kilianp07/ucmilp/core/milp"
)

// Solvers maps backend names to their factories.
var Solvers = factory.NewRegistry[milp.Solver]("solver")

// RegisterSolver adds a solver backend factory.
func RegisterSolver(name string, f factory.Factory[milp.Solver]) error {
	return Solvers.Register(name, f)
}

// NewSolver builds the backend called name from its raw settings.
func NewSolver(name string, conf map[string]any) (milp.Solver, error) {
	return Solvers.Create(factory.ModuleConfig{Type: name, Conf: conf})
}
