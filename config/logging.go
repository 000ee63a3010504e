package config

import (
	"fmt"

	"github.com/rs/zerolog"
)

// LoggingConfig sets the process log level. LOG_LEVEL still wins when set.
type LoggingConfig struct {
	Level string `json:"level"`
}

// SetDefaults applies sane defaults.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
}

// Validate checks the level name.
func (c LoggingConfig) Validate() error {
	if _, err := zerolog.ParseLevel(c.Level); err != nil {
		return fmt.Errorf("logging: unknown level %q", c.Level)
	}
	return nil
}
