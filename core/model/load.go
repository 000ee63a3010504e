package model

import "strconv"

// Bus is a demand point with an hourly load profile in MW. Hours absent
// from Demand carry no load.
type Bus struct {
	ID     string
	Demand map[int]float64
}

// Validate checks the bus demand values.
func (b Bus) Validate() error {
	if b.ID == "" {
		return &ValidationError{Entity: "bus", Field: "id", Reason: "must not be empty"}
	}
	for h, d := range b.Demand {
		if err := checkNonNegative("bus", b.ID, "demand["+strconv.Itoa(h)+"]", d); err != nil {
			return err
		}
	}
	return nil
}
