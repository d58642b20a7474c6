// Package config provides the configuration loader for forge.
package config

import (
	"errors"
	"io/fs"
	"os"

	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// Load reads the configuration file at path, filling unset fields from the
// defaults. A missing file yields the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path) //nolint:gosec // path is provided by user
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, zerr.Wrap(err, "failed to read config file")
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, zerr.Wrap(err, "failed to parse config file")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the scheduler could not operate under.
func (c *Config) Validate() error {
	if c.MaxParallel < 1 {
		return zerr.With(zerr.New("max_parallel must be at least 1"), "max_parallel", c.MaxParallel)
	}
	if c.PollInterval.Std() <= 0 {
		return zerr.New("poll_interval must be positive")
	}
	if c.Resources.RAMMB < 1 || c.Resources.CPUCores < 1 {
		return zerr.New("resource ceilings must be positive")
	}
	if c.Defaults.RAMMB > c.Resources.RAMMB || c.Defaults.CPUCores > c.Resources.CPUCores {
		return zerr.New("build_defaults exceed the configured resource ceilings")
	}
	if len(c.RecipeCommand) == 0 {
		return zerr.New("recipe_command must not be empty")
	}
	if c.CycleDepth < 1 {
		return zerr.With(zerr.New("cycle_depth must be at least 1"), "cycle_depth", c.CycleDepth)
	}
	return nil
}
