package dataset

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/ucmilp/core/formulation"
	"github.com/kilianp07/ucmilp/core/model"
)

// GeneratorDef is a generator written inline in a case file.
type GeneratorDef struct {
	ID           string   `yaml:"id"`
	PMin         float64  `yaml:"p_min"`
	PMax         float64  `yaml:"p_max"`
	FuelCost     float64  `yaml:"c_fuel"`
	NoLoadCost   float64  `yaml:"c_noload"`
	StartupCost  float64  `yaml:"c_startup"`
	RampUp       float64  `yaml:"ramp_up"`
	RampDown     *float64 `yaml:"ramp_down,omitempty"`
	RampStartup  *float64 `yaml:"ramp_startup,omitempty"`
	RampShutdown *float64 `yaml:"ramp_shutdown,omitempty"`
	MinUpTime    int      `yaml:"min_up_time"`
	MinDownTime  int      `yaml:"min_down_time"`
}

// ToModel converts the definition. ramp_down defaults to ramp_up.
func (g GeneratorDef) ToModel() model.Generator {
	down := g.RampUp
	if g.RampDown != nil {
		down = *g.RampDown
	}
	return model.Generator{
		ID:           g.ID,
		PMin:         g.PMin,
		PMax:         g.PMax,
		FuelCost:     g.FuelCost,
		NoLoadCost:   g.NoLoadCost,
		StartupCost:  g.StartupCost,
		RampUp:       g.RampUp,
		RampDown:     down,
		RampStartup:  g.RampStartup,
		RampShutdown: g.RampShutdown,
		MinUpTime:    g.MinUpTime,
		MinDownTime:  g.MinDownTime,
	}
}

// LoadDef is a bus demand profile; Demand[i] is the demand of hour i+1.
type LoadDef struct {
	ID     string    `yaml:"id"`
	Demand []float64 `yaml:"demand"`
}

// LineDef is a transmission line written inline in a case file.
type LineDef struct {
	ID   string             `yaml:"id"`
	FMax float64            `yaml:"f_max"`
	PTDF map[string]float64 `yaml:"ptdf"`
}

// Case describes a unit commitment instance. Data comes either from CSV
// tables referenced by Files, resolved relative to the case file, or from
// the inline generators, loads and lines.
type Case struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	Files       *Files         `yaml:"files,omitempty"`
	Generators  []GeneratorDef `yaml:"generators,omitempty"`
	Loads       []LoadDef      `yaml:"loads,omitempty"`
	Lines       []LineDef      `yaml:"lines,omitempty"`
	// Network marks inline data as networked even without lines.
	Network     bool                  `yaml:"network,omitempty"`
	Formulation *formulation.Settings `yaml:"formulation,omitempty"`

	dir string
}

// LoadCase reads a YAML case file. A missing name defaults to the file
// name without extension.
func LoadCase(path string) (*Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Case
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c.dir = filepath.Dir(path)
	if c.Name == "" {
		base := filepath.Base(path)
		c.Name = base[:len(base)-len(filepath.Ext(base))]
	}
	return &c, nil
}

// DataSet builds and validates the data set of the case.
func (c *Case) DataSet() (*model.DataSet, error) {
	if c.Files != nil {
		if len(c.Generators) > 0 || len(c.Loads) > 0 {
			return nil, fmt.Errorf("case %s: files and inline data are exclusive", c.Name)
		}
		f := Files{
			Generators: c.resolve(c.Files.Generators),
			Loads:      c.resolve(c.Files.Loads),
			Lines:      c.resolve(c.Files.Lines),
		}
		return f.Load()
	}
	gens := make([]model.Generator, len(c.Generators))
	for i, g := range c.Generators {
		gens[i] = g.ToModel()
	}
	hours := 0
	for _, l := range c.Loads {
		hours = max(hours, len(l.Demand))
	}
	horizon, err := model.HourlyHorizon(hours)
	if err != nil {
		return nil, err
	}
	buses := make([]model.Bus, len(c.Loads))
	for i, l := range c.Loads {
		if len(l.Demand) != hours {
			return nil, &model.ValidationError{Entity: "bus", ID: l.ID, Field: "demand",
				Reason: fmt.Sprintf("has %d hours, horizon has %d", len(l.Demand), hours)}
		}
		b := model.Bus{ID: l.ID, Demand: make(map[int]float64, hours)}
		for h, d := range l.Demand {
			b.Demand[h+1] = d
		}
		buses[i] = b
	}
	var net *model.Network
	if c.Network || len(c.Lines) > 0 {
		net = &model.Network{}
		for _, l := range c.Lines {
			ptdf := make(map[string]float64, len(l.PTDF))
			for g, v := range l.PTDF {
				ptdf[g] = v
			}
			net.Lines = append(net.Lines, model.Line{ID: l.ID, PTDF: ptdf, FlowLimit: l.FMax})
		}
	}
	return model.NewDataSet(gens, buses, horizon, net)
}

// Options applies the case formulation settings on top of base.
func (c *Case) Options(base formulation.Options) (formulation.Options, error) {
	if c.Formulation == nil {
		return base, nil
	}
	return c.Formulation.Apply(base)
}

func (c *Case) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.dir, p)
}
