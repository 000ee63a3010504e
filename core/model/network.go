package model

// Line is a transmission line monitored by the DC power-flow proxy.
type Line struct {
	ID string
	// PTDF maps a generator id to its power transfer distribution factor on
	// this line. Missing generators have a factor of 0.
	PTDF map[string]float64
	// FlowLimit is the symmetric flow limit in MW.
	FlowLimit float64
}

// Factor returns the PTDF coefficient of generator on the line.
func (l Line) Factor(generator string) float64 {
	return l.PTDF[generator]
}

// Network groups the transmission lines of a data set. A nil network means
// no network data was supplied; an empty one is valid.
type Network struct {
	Lines []Line
}

// Validate checks line identifiers and limits. References to generators are
// checked when the network constraints are formulated.
func (n *Network) Validate() error {
	seen := make(map[string]struct{}, len(n.Lines))
	for _, l := range n.Lines {
		if l.ID == "" {
			return &ValidationError{Entity: "line", Field: "id", Reason: "must not be empty"}
		}
		if _, dup := seen[l.ID]; dup {
			return &ValidationError{Entity: "line", ID: l.ID, Reason: "duplicate id"}
		}
		seen[l.ID] = struct{}{}
		if err := checkNonNegative("line", l.ID, "f_max", l.FlowLimit); err != nil {
			return err
		}
	}
	return nil
}
