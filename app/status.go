package app

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/kilianp07/ucmilp/core/extract"
	"github.com/kilianp07/ucmilp/core/formulation"
	"github.com/kilianp07/ucmilp/core/milp"
	"github.com/kilianp07/ucmilp/core/model"
)

// Run log statuses for attempts that did not reach a solver status.
const (
	StatusInvalid         = "invalid_data"
	StatusFormulation     = "formulation_error"
	StatusExtractionError = "extraction_error"
	StatusExportError     = "export_error"
	StatusCancelled       = "cancelled"
)

func statusOf(rn *run, err error) string {
	if err == nil {
		return rn.sol.Status.String()
	}
	var (
		ve *model.ValidationError
		fe *formulation.FormulationError
		ee *extract.ExtractionError
	)
	switch {
	case errors.As(err, &ve):
		return StatusInvalid
	case errors.As(err, &fe):
		return StatusFormulation
	case errors.As(err, &ee):
		return StatusExtractionError
	}
	if st, ok := milp.FailureStatus(err); ok {
		return st.String()
	}
	if errors.Is(err, context.Canceled) {
		return StatusCancelled
	}
	if rn.res != nil {
		return StatusExportError
	}
	return milp.StatusError.String()
}

func describe(o formulation.Options) string {
	return fmt.Sprintf("reserve=%s fraction=%g network=%t startup_shutdown_ramp=%t",
		o.Reserve, o.ReserveFraction, o.Network, o.StartupShutdownRamp)
}

func finiteOr(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}
