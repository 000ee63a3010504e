// Package model holds the validated input data of a unit commitment run:
// generators, demand buses, the hourly horizon and the optional network.
package model

import "strconv"

// DataSet is the validated collection of generators, buses and horizon used
// to formulate a unit commitment model.
type DataSet struct {
	Generators []Generator
	Buses      []Bus
	Horizon    TimeHorizon
	Network    *Network
}

// NewDataSet validates the records and returns the data set.
func NewDataSet(gens []Generator, buses []Bus, horizon TimeHorizon, network *Network) (*DataSet, error) {
	ds := &DataSet{Generators: gens, Buses: buses, Horizon: horizon, Network: network}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}

// Validate checks every record and the cross references between loads and
// the horizon.
func (d *DataSet) Validate() error {
	if d.Horizon.Len() == 0 {
		return &ValidationError{Entity: "horizon", Reason: "must contain at least one hour"}
	}
	if len(d.Generators) == 0 {
		return &ValidationError{Entity: "generator", Reason: "at least one generator is required"}
	}
	seen := make(map[string]struct{}, len(d.Generators))
	for _, g := range d.Generators {
		if err := g.Validate(); err != nil {
			return err
		}
		if _, dup := seen[g.ID]; dup {
			return &ValidationError{Entity: "generator", ID: g.ID, Reason: "duplicate id"}
		}
		seen[g.ID] = struct{}{}
	}
	buses := make(map[string]struct{}, len(d.Buses))
	for _, b := range d.Buses {
		if err := b.Validate(); err != nil {
			return err
		}
		if _, dup := buses[b.ID]; dup {
			return &ValidationError{Entity: "bus", ID: b.ID, Reason: "duplicate id"}
		}
		buses[b.ID] = struct{}{}
		for h := range b.Demand {
			if !d.Horizon.Contains(h) {
				return &ValidationError{Entity: "bus", ID: b.ID, Field: "demand[" + strconv.Itoa(h) + "]", Reason: "references an hour outside the horizon"}
			}
		}
	}
	if d.Network != nil {
		if err := d.Network.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// TotalDemand returns the aggregate demand over all buses at hour.
func (d *DataSet) TotalDemand(hour int) float64 {
	var sum float64
	for _, b := range d.Buses {
		sum += b.Demand[hour]
	}
	return sum
}

// Generator looks up a generator by id.
func (d *DataSet) Generator(id string) (Generator, bool) {
	for _, g := range d.Generators {
		if g.ID == id {
			return g, true
		}
	}
	return Generator{}, false
}

// Capacity returns the sum of p_max over the fleet.
func (d *DataSet) Capacity() float64 {
	var sum float64
	for _, g := range d.Generators {
		sum += g.PMax
	}
	return sum
}
