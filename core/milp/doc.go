// Package milp describes mixed-integer linear programs independently of any
// solver backend.
//
// A Model owns variable families, each declaring its index shape and
// domain, a list of named constraint families and a linear objective. Solver
// backends implement the Solver interface and return a Solution holding one
// value per declared column, or a *SolverFailure describing why no usable
// solution exists.
package milp
