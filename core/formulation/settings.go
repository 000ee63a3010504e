package formulation

// Settings is the configuration spelling of Options. Unset pointer fields
// keep the value of the variant preset.
type Settings struct {
	Variant             string   `json:"variant" yaml:"variant,omitempty"`
	ReserveMode         string   `json:"reserve_mode" yaml:"reserve_mode,omitempty"`
	ReserveFraction     *float64 `json:"reserve_fraction" yaml:"reserve_fraction,omitempty"`
	Network             *bool    `json:"network" yaml:"network,omitempty"`
	StartupShutdownRamp *bool    `json:"startup_shutdown_ramp" yaml:"startup_shutdown_ramp,omitempty"`
}

// Options resolves s against its variant preset, basic when empty.
func (s Settings) Options() (Options, error) {
	v := Variant(s.Variant)
	if v == "" {
		v = VariantBasic
	}
	o, err := OptionsFor(v)
	if err != nil {
		return Options{}, err
	}
	return s.Apply(o)
}

// Apply overlays the fields set in s on o. A variant in s replaces o
// entirely before the remaining fields are applied.
func (s Settings) Apply(o Options) (Options, error) {
	if s.Variant != "" && Variant(s.Variant) != o.Variant {
		p, err := OptionsFor(Variant(s.Variant))
		if err != nil {
			return Options{}, err
		}
		p.ReserveFraction = o.ReserveFraction
		o = p
	}
	custom := false
	if s.ReserveMode != "" {
		r, err := ParseReserveMode(s.ReserveMode)
		if err != nil {
			return Options{}, err
		}
		custom = custom || r != o.Reserve
		o.Reserve = r
	}
	if s.ReserveFraction != nil {
		o.ReserveFraction = *s.ReserveFraction
	}
	if s.Network != nil {
		custom = custom || *s.Network != o.Network
		o.Network = *s.Network
	}
	if s.StartupShutdownRamp != nil {
		custom = custom || *s.StartupShutdownRamp != o.StartupShutdownRamp
		o.StartupShutdownRamp = *s.StartupShutdownRamp
	}
	// Flags that differ from the preset make the variant name misleading.
	if custom {
		o.Variant = ""
	}
	return o, o.Validate()
}
