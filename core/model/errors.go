package model

import (
	"fmt"
	"math"
)

// ValidationError reports malformed or inconsistent input data. It is
// returned before any model is built.
type ValidationError struct {
	Entity string
	ID     string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	switch {
	case e.ID != "" && e.Field != "":
		return fmt.Sprintf("validation: %s %s: %s %s", e.Entity, e.ID, e.Field, e.Reason)
	case e.Field != "":
		return fmt.Sprintf("validation: %s: %s %s", e.Entity, e.Field, e.Reason)
	default:
		return fmt.Sprintf("validation: %s: %s", e.Entity, e.Reason)
	}
}

func checkNonNegative(entity, id, field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &ValidationError{Entity: entity, ID: id, Field: field, Reason: "must be finite"}
	}
	if v < 0 {
		return &ValidationError{Entity: entity, ID: id, Field: field, Reason: fmt.Sprintf("must be non-negative, got %g", v)}
	}
	return nil
}
