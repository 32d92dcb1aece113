// Package config holds lazymod configuration: where modules live, which
// installer to shell out to, and how chatty to be.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all lazymod configuration.
type Config struct {
	// ModulePaths are the directories searched for plugin modules, in order.
	ModulePaths []string `yaml:"module_paths"`

	// Installer configures the external installer subprocess.
	Installer InstallerConfig `yaml:"installer"`

	// Logging configures log output.
	Logging LoggingConfig `yaml:"logging"`
}

// InstallerConfig configures the external installer invocation.
type InstallerConfig struct {
	// Command is the installer binary, "pip" if empty.
	Command string `yaml:"command"`

	// ExtraArgs are appended to every installer invocation (e.g. --quiet).
	ExtraArgs []string `yaml:"extra_args"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		ModulePaths: []string{"modules"},
		Installer: InstallerConfig{
			Command:   "pip",
			ExtraArgs: []string{"--quiet"},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads a config file, falling back to defaults when the file does not
// exist. Environment variables override file values either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if cmd := os.Getenv("LAZYMOD_INSTALLER"); cmd != "" {
		c.Installer.Command = cmd
	}
	if args := os.Getenv("LAZYMOD_INSTALLER_ARGS"); args != "" {
		c.Installer.ExtraArgs = strings.Fields(args)
	}
	if paths := os.Getenv("LAZYMOD_MODULE_PATH"); paths != "" {
		c.ModulePaths = strings.Split(paths, string(os.PathListSeparator))
	}
	if level := os.Getenv("LAZYMOD_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}
