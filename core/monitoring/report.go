package monitoring

import (
	"errors"

	"github.com/kilianp07/ucmilp/core/extract"
	"github.com/kilianp07/ucmilp/core/milp"
)

// Classify returns the monitoring kind of a pipeline error and whether it
// should be reported. Extraction errors and solver crashes indicate a
// defect; infeasible models, exhausted budgets and bad input data are
// outcomes the caller handles.
func Classify(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	var ee *extract.ExtractionError
	if errors.As(err, &ee) {
		return "extraction", true
	}
	if st, ok := milp.FailureStatus(err); ok {
		return "solver", st == milp.StatusError
	}
	return "", false
}

// Report captures err on the current monitor when Classify selects it.
// The kind is added to tags.
func Report(err error, tags map[string]string) bool {
	kind, ok := Classify(err)
	if !ok {
		return false
	}
	t := make(map[string]string, len(tags)+1)
	for k, v := range tags {
		t[k] = v
	}
	t["kind"] = kind
	CaptureException(err, t)
	return true
}
