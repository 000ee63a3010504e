package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/ucmilp/core/formulation"
	"github.com/kilianp07/ucmilp/core/metrics"
	"github.com/kilianp07/ucmilp/core/runlog"
	"github.com/kilianp07/ucmilp/infra/dataset"
	"github.com/kilianp07/ucmilp/infra/mqtt"
	"github.com/kilianp07/ucmilp/pkg/export"
)

type Config struct {
	Data        DataConfig           `json:"data"`
	Formulation formulation.Settings `json:"formulation"`
	Solver      SolverConfig         `json:"solver"`
	Export      ExportConfig         `json:"export"`
	Batch       BatchConfig          `json:"batch"`
	Metrics     metrics.Config       `json:"metrics"`
	Runlog      runlog.Config        `json:"runlog"`
	// MQTT publishing is disabled when no broker is set.
	MQTT    mqtt.Config   `json:"mqtt"`
	Sentry  SentryConfig  `json:"sentry"`
	Logging LoggingConfig `json:"logging"`
}

// DataConfig names the instance to solve: either a case file or a set of
// CSV tables.
type DataConfig struct {
	Case  string        `json:"case"`
	Files dataset.Files `json:"files"`
}

// Empty reports whether no data source is configured.
func (d DataConfig) Empty() bool {
	return d.Case == "" && d.Files.Generators == "" && d.Files.Loads == ""
}

// Validate checks that at most one source is set.
func (d DataConfig) Validate() error {
	if d.Case != "" && (d.Files.Generators != "" || d.Files.Loads != "") {
		return fmt.Errorf("data: case and files are mutually exclusive")
	}
	return nil
}

// ExportConfig selects where and how result tables are written.
type ExportConfig struct {
	Dir    string `json:"dir"`
	Format string `json:"format"`
}

// BatchConfig controls the batch command.
type BatchConfig struct {
	// Parallel bounds the concurrent solves; non-positive means one per CPU.
	Parallel int `json:"parallel"`
}

// Load reads the configuration file at path, applies K_ environment
// overrides, defaults and validation. An empty path loads defaults and
// environment overrides only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	c.Solver.SetDefaults()
	c.Runlog.SetDefaults()
	c.Logging.SetDefaults()
	if c.Export.Format == "" {
		c.Export.Format = "csv"
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Data.Validate(); err != nil {
		return err
	}
	if _, err := c.Formulation.Options(); err != nil {
		return fmt.Errorf("formulation: %w", err)
	}
	if err := c.Solver.Validate(); err != nil {
		return err
	}
	if _, err := export.ParseFormat(c.Export.Format); err != nil {
		return err
	}
	if err := c.Runlog.Validate(); err != nil {
		return err
	}
	if c.MQTT.Broker != "" {
		if err := c.MQTT.Validate(); err != nil {
			return err
		}
	}
	if err := c.Sentry.Validate(); err != nil {
		return err
	}
	return c.Logging.Validate()
}
