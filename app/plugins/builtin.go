package plugins

import (
	"github.com/kilianp07/ucmilp/core/factory"
	"github.com/kilianp07/ucmilp/core/milp"
	"github.com/kilianp07/ucmilp/infra/logger"
	_ "github.com/kilianp07/ucmilp/infra/metrics"
	"github.com/kilianp07/ucmilp/infra/solver/cbc"
	"github.com/kilianp07/ucmilp/infra/solver/simplex"
)

func init() {
	Solvers.MustRegister(simplex.Name, func(map[string]any) (milp.Solver, error) {
		return simplex.New(logger.New("simplex")), nil
	})
	Solvers.MustRegister(cbc.Name, func(conf map[string]any) (milp.Solver, error) {
		var c cbc.Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return cbc.New(c, logger.New("cbc")), nil
	})
}
