// Package config handles configuration for simrun.
//
// Settings are layered, later layers winning: built-in defaults, the YAML
// config file, SIMRUN_ environment variables and finally command-line flags.
// Nested keys are reached from the environment with a double underscore,
// e.g. SIMRUN_BOOT__ATTEMPTS sets boot.attempts.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/devicelab-dev/simrun/pkg/core"
	"github.com/devicelab-dev/simrun/pkg/simulator"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/sirupsen/logrus"
	yamlv3 "gopkg.in/yaml.v3"
)

// Config is the effective simrun configuration.
type Config struct {
	// Simulator selection
	MinimumOS string `koanf:"minimum_os" yaml:"minimum_os"` // Minimum iOS version the app supports
	Device    string `koanf:"device" yaml:"device"`         // Device type name, or substring of one
	OSVersion string `koanf:"os_version" yaml:"os_version"` // Exact iOS runtime version
	Ephemeral bool   `koanf:"ephemeral" yaml:"ephemeral"`   // Create and delete a simulator for the run

	DeveloperDir  string `koanf:"developer_dir" yaml:"developer_dir"` // Defaults to `xcode-select -p`
	EphemeralName string `koanf:"ephemeral_name" yaml:"ephemeral_name"`

	Boot   BootConfig   `koanf:"boot" yaml:"boot"`
	Log    LogConfig    `koanf:"log" yaml:"log"`
	Launch LaunchConfig `koanf:"launch" yaml:"launch"`

	// File is the config file that was loaded, if any.
	File string `koanf:"-" yaml:"-"`
}

// BootConfig bounds the wait for a simulator to boot.
type BootConfig struct {
	Attempts int           `koanf:"attempts" yaml:"attempts"`
	Interval time.Duration `koanf:"interval" yaml:"interval"`
}

type LogConfig struct {
	Level string `koanf:"level" yaml:"level"`
	File  string `koanf:"file" yaml:"file"`
}

type LaunchConfig struct {
	ConsolePty bool   `koanf:"console_pty" yaml:"console_pty"`
	EnvPrefix  string `koanf:"env_prefix" yaml:"env_prefix"`
}

// envKey maps SIMRUN_BOOT__ATTEMPTS to boot.attempts.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// Load builds the configuration. path names the config file; when empty the
// home directory's simrun.yaml is used if present. overrides holds
// command-line values keyed like the config file (e.g. "boot.attempts").
func Load(path string, overrides map[string]interface{}) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(NewDefaultProvider(), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, core.ErrInvalidConfig.WithMessage("config file not found: " + path).WithCause(err)
		}
	} else {
		path = DefaultFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, core.ErrInvalidConfig.WithMessage("failed to load config file " + path).WithCause(err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, core.ErrInvalidConfig.WithMessage("failed to decode configuration").WithCause(err)
	}
	cfg.File = path

	return &cfg, nil
}

// Validate checks the settings a run depends on.
func (c *Config) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return core.ErrInvalidConfig.WithMessage(fmt.Sprintf(format, args...))
	}

	// Ephemeral simulators skip discovery, so only they may omit minimum_os.
	if c.MinimumOS == "" && !c.Ephemeral {
		return invalid("minimum_os is required")
	}
	if c.MinimumOS != "" {
		if _, err := simulator.VersionKey(c.MinimumOS); err != nil {
			return err
		}
	}
	if err := c.Request().Validate(); err != nil {
		return err
	}
	if c.Boot.Attempts <= 0 {
		return invalid("boot.attempts must be positive, got %d", c.Boot.Attempts)
	}
	if c.Boot.Interval < 0 {
		return invalid("boot.interval must not be negative, got %s", c.Boot.Interval)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level: %v", err)
	}
	if c.Launch.EnvPrefix == "" {
		return invalid("launch.env_prefix must not be empty")
	}
	return nil
}

// Constraints returns the simulator selection constraints.
func (c *Config) Constraints() simulator.Constraints {
	return simulator.Constraints{
		MinimumOS:  c.MinimumOS,
		DeviceName: c.Device,
		OSVersion:  c.OSVersion,
	}
}

// Request returns the simulator request for a run.
func (c *Config) Request() simulator.Request {
	return simulator.Request{Constraints: c.Constraints(), Ephemeral: c.Ephemeral}
}

// ManagerOptions returns the simulator manager settings for developerDir.
func (c *Config) ManagerOptions(developerDir string) simulator.Options {
	opts := simulator.DefaultOptions(developerDir)
	opts.BootInterval = c.Boot.Interval
	if c.Boot.Attempts > 0 {
		opts.BootAttempts = c.Boot.Attempts
	}
	if c.EphemeralName != "" {
		opts.EphemeralName = c.EphemeralName
	}
	return opts
}

// WriteYAML writes the configuration as YAML.
func (c *Config) WriteYAML(w io.Writer) error {
	enc := yamlv3.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}
