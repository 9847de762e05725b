package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePresets(); err != nil {
		return err
	}
	if err := c.validateBrowse(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePresets() error {
	for _, preset := range []struct {
		name string
		kbps int
	}{
		{"low", c.Presets.Low},
		{"medium", c.Presets.Medium},
		{"high", c.Presets.High},
	} {
		if preset.kbps <= 0 {
			return fmt.Errorf("presets.%s must be a positive kbps value, got %d", preset.name, preset.kbps)
		}
	}
	return nil
}

func (c *Config) validateBrowse() error {
	if len(c.Browse.VisibleExtensions) == 0 {
		return errors.New("browse.visible_extensions must list at least one extension")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
		return nil
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
}
