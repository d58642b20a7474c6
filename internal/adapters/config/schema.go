package config

import (
	"runtime"
	"time"
)

// Config is the orchestrator configuration loaded from forge.yaml.
type Config struct {
	// StatePath is the SQLite database holding all durable state.
	StatePath string `yaml:"state_path"`

	// CheckpointDir is the root directory for build-state snapshots.
	CheckpointDir string `yaml:"checkpoint_dir"`

	// BuildRoot holds one working directory per package build.
	BuildRoot string `yaml:"build_root"`

	// RecipeCommand is invoked per build phase as
	// `cmd... <phase> <package> <version>` in the package working directory.
	RecipeCommand []string `yaml:"recipe_command"`

	// MaxParallel caps concurrent builds.
	MaxParallel int `yaml:"max_parallel"`

	// PollInterval is the dispatch re-poll period when nothing is eligible.
	PollInterval Duration `yaml:"poll_interval"`

	// SkipTests drops the optional test phase for every build.
	SkipTests bool `yaml:"skip_tests"`

	// CycleDepth bounds the transitive walk used for cycle detection.
	CycleDepth int `yaml:"cycle_depth"`

	Resources Budget    `yaml:"resources"`
	Defaults  Budget    `yaml:"build_defaults"`
	Retention Retention `yaml:"retention"`
}

// Budget is a RAM/CPU pair, used both for the system ceiling and for the
// per-build default reservation.
type Budget struct {
	RAMMB    int `yaml:"ram_mb"`
	CPUCores int `yaml:"cpu_cores"`
}

// Retention controls checkpoint pruning.
type Retention struct {
	MaxAge        Duration `yaml:"max_age"`
	MaxPerPackage int      `yaml:"max_per_package"`
}

// Duration wraps time.Duration so YAML values like "30s" parse directly.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns the configuration used when no forge.yaml exists.
func Default() *Config {
	return &Config{
		StatePath:     "forge.db",
		CheckpointDir: "checkpoints",
		BuildRoot:     "build",
		RecipeCommand: []string{"forge-recipe"},
		MaxParallel:   runtime.NumCPU(),
		PollInterval:  Duration(30 * time.Second),
		CycleDepth:    50,
		Resources: Budget{
			RAMMB:    8192,
			CPUCores: runtime.NumCPU(),
		},
		Defaults: Budget{
			RAMMB:    1024,
			CPUCores: 1,
		},
		Retention: Retention{
			MaxAge:        Duration(7 * 24 * time.Hour),
			MaxPerPackage: 5,
		},
	}
}
