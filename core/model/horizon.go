package model

import "fmt"

// TimeHorizon is the ordered list of hour indices covered by a schedule.
// The order defines the previous hour and the rolling windows used for
// minimum up and down times.
type TimeHorizon struct {
	hours []int
	pos   map[int]int
}

// NewTimeHorizon validates hours and returns the horizon. Hours must be
// non-empty and consecutive: ramping and the up/down windows treat the
// previous entry as the previous hour, so gaps are rejected.
func NewTimeHorizon(hours ...int) (TimeHorizon, error) {
	if len(hours) == 0 {
		return TimeHorizon{}, &ValidationError{Entity: "horizon", Reason: "must contain at least one hour"}
	}
	pos := make(map[int]int, len(hours))
	for i, h := range hours {
		if i > 0 && h <= hours[i-1] {
			return TimeHorizon{}, &ValidationError{Entity: "horizon", Reason: fmt.Sprintf("hours not strictly increasing at %d", h)}
		}
		if i > 0 && h != hours[i-1]+1 {
			return TimeHorizon{}, &ValidationError{Entity: "horizon", Reason: fmt.Sprintf("hour %d does not follow %d", h, hours[i-1])}
		}
		pos[h] = i
	}
	cp := make([]int, len(hours))
	copy(cp, hours)
	return TimeHorizon{hours: cp, pos: pos}, nil
}

// HourlyHorizon returns the horizon 1..n.
func HourlyHorizon(n int) (TimeHorizon, error) {
	hours := make([]int, n)
	for i := range hours {
		hours[i] = i + 1
	}
	return NewTimeHorizon(hours...)
}

// Hours returns a copy of the ordered hours.
func (h TimeHorizon) Hours() []int {
	cp := make([]int, len(h.hours))
	copy(cp, h.hours)
	return cp
}

// Len returns the number of hours.
func (h TimeHorizon) Len() int { return len(h.hours) }

// Contains reports whether hour belongs to the horizon.
func (h TimeHorizon) Contains(hour int) bool {
	_, ok := h.pos[hour]
	return ok
}

// Position returns the zero-based position of hour in the horizon.
func (h TimeHorizon) Position(hour int) (int, bool) {
	p, ok := h.pos[hour]
	return p, ok
}

// Previous returns the hour preceding hour, if any.
func (h TimeHorizon) Previous(hour int) (int, bool) {
	p, ok := h.pos[hour]
	if !ok || p == 0 {
		return 0, false
	}
	return h.hours[p-1], true
}
