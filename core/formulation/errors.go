package formulation

import "fmt"

// FormulationError reports options that are incompatible with the data.
type FormulationError struct {
	Reason string
	Err    error
}

func (e *FormulationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("formulation: %s: %v", e.Reason, e.Err)
	}
	return "formulation: " + e.Reason
}

func (e *FormulationError) Unwrap() error { return e.Err }
