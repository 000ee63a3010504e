package extract

import "fmt"

// ExtractionError means a solution does not match the model it is read
// against. It signals a programming error rather than a bad input.
type ExtractionError struct {
	Family string
	Index  string
	Reason string
}

func (e *ExtractionError) Error() string {
	switch {
	case e.Family != "" && e.Index != "":
		return fmt.Sprintf("extract %s%s: %s", e.Family, e.Index, e.Reason)
	case e.Family != "":
		return fmt.Sprintf("extract %s: %s", e.Family, e.Reason)
	default:
		return "extract: " + e.Reason
	}
}
