// Package factory provides a small generic registry used to instantiate
// modules from configuration. A module is described by a type string and a
// map of raw settings; factories decode the settings into typed structs and
// return the concrete implementation.
//
// Example usage:
//
//	solvers := factory.NewRegistry[milp.Solver]("solver")
//	solvers.MustRegister("cbc", func(conf map[string]any) (milp.Solver, error) {
//	    var c struct{ Path string `json:"path"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return cbc.New(c.Path), nil
//	})
//	s, err := solvers.Create(factory.ModuleConfig{Type: "cbc", Conf: map[string]any{"path": "cbc"}})
package factory
