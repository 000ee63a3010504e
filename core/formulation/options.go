package formulation

import (
	"fmt"
	"math"
	"strings"
)

// Variant names a preset formulation.
type Variant string

const (
	VariantBasic               Variant = "basic"
	VariantExplicitReserve     Variant = "explicit-reserve"
	VariantNetwork             Variant = "network-constrained"
	VariantStartupShutdownRamp Variant = "startup-shutdown-ramp"
)

// Variants lists the known presets.
func Variants() []Variant {
	return []Variant{VariantBasic, VariantExplicitReserve, VariantNetwork, VariantStartupShutdownRamp}
}

// ReserveMode selects how the hourly reserve requirement is modelled.
type ReserveMode int

const (
	// ReserveHeadroom requires committed capacity to cover demand plus the
	// requirement: sum(p_max*u) >= D + R. This linearises the headroom
	// expression sum((p_max - p)*u) and lets a unit count idle capacity even
	// when dispatched close to p_max.
	ReserveHeadroom ReserveMode = iota
	// ReserveExplicit declares p_bar and r per unit with p_bar = p + r,
	// p <= p_bar <= p_max*u and sum(r) >= R.
	ReserveExplicit
)

func (r ReserveMode) String() string {
	switch r {
	case ReserveHeadroom:
		return "headroom"
	case ReserveExplicit:
		return "explicit"
	default:
		return fmt.Sprintf("reserve(%d)", int(r))
	}
}

// ParseReserveMode converts the configuration spelling of a reserve mode.
func ParseReserveMode(s string) (ReserveMode, error) {
	switch strings.ToLower(s) {
	case "", "headroom":
		return ReserveHeadroom, nil
	case "explicit":
		return ReserveExplicit, nil
	default:
		return 0, &FormulationError{Reason: fmt.Sprintf("unknown reserve mode %q", s)}
	}
}

// DefaultReserveFraction is the share of hourly demand held as reserve.
const DefaultReserveFraction = 0.10

// Options select the formulation built for a data set.
type Options struct {
	// Variant is the preset the options were derived from. It only labels
	// the model; the flags below drive the formulation.
	Variant Variant
	Reserve ReserveMode
	// Network adds the PTDF line flow limits.
	Network bool
	// StartupShutdownRamp uses the per-unit startup and shutdown ramp
	// allowances instead of p_min in the ramping constraints.
	StartupShutdownRamp bool
	// ReserveFraction is the reserve requirement as a fraction of total
	// hourly demand.
	ReserveFraction float64
}

// DefaultOptions returns the basic formulation.
func DefaultOptions() Options {
	o, _ := OptionsFor(VariantBasic)
	return o
}

// OptionsFor returns the options of a preset variant.
func OptionsFor(v Variant) (Options, error) {
	o := Options{Variant: v, Reserve: ReserveHeadroom, ReserveFraction: DefaultReserveFraction}
	switch v {
	case VariantBasic:
	case VariantExplicitReserve:
		o.Reserve = ReserveExplicit
	case VariantNetwork:
		o.Network = true
	case VariantStartupShutdownRamp:
		o.StartupShutdownRamp = true
	default:
		return Options{}, &FormulationError{Reason: fmt.Sprintf("unknown variant %q", v)}
	}
	return o, nil
}

// Validate checks option ranges.
func (o Options) Validate() error {
	if o.Reserve != ReserveHeadroom && o.Reserve != ReserveExplicit {
		return &FormulationError{Reason: fmt.Sprintf("unknown reserve mode %d", int(o.Reserve))}
	}
	if math.IsNaN(o.ReserveFraction) || o.ReserveFraction < 0 || o.ReserveFraction > 1 {
		return &FormulationError{Reason: fmt.Sprintf("reserve fraction %g outside [0,1]", o.ReserveFraction)}
	}
	return nil
}

// Label returns the variant name or a description of the flags.
func (o Options) Label() string {
	if o.Variant != "" {
		return string(o.Variant)
	}
	parts := []string{"reserve=" + o.Reserve.String()}
	if o.Network {
		parts = append(parts, "network")
	}
	if o.StartupShutdownRamp {
		parts = append(parts, "su-sd-ramp")
	}
	return strings.Join(parts, ",")
}
