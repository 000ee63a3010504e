package scenarios

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/ucmilp/infra/dataset"
)

// Expected is the outcome a scenario must reproduce. Unset fields are not
// checked.
type Expected struct {
	Status     string               `yaml:"status"`
	Objective  *float64             `yaml:"objective,omitempty"`
	Commitment map[string][]int     `yaml:"commitment,omitempty"`
	Dispatch   map[string][]float64 `yaml:"dispatch,omitempty"`
}

// Scenario is an inline case together with its expected outcome.
type Scenario struct {
	dataset.Case `yaml:",inline"`
	Expected     Expected `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}
