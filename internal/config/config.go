// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fabriq Contributors

// Package config loads the daemon configuration from a YAML file with
// command-line flag overrides.
package config

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/fabriq/fabriq/internal/xdg"
)

// Config is the daemon configuration.
type Config struct {
	Log     Log     `koanf:"log"`
	Metrics Metrics `koanf:"metrics"`
	Plugins Plugins `koanf:"plugins"`
}

// Log configures the default logger.
type Log struct {
	// Format is "json" or "text".
	Format string `koanf:"format"`
	// Level is "debug", "info", "warn" or "error".
	Level string `koanf:"level"`
}

// Metrics configures the observability server.
type Metrics struct {
	// Addr is the listen address; empty disables the server.
	Addr string `koanf:"addr"`
}

// Plugins configures discovery, activation and plugin settings.
type Plugins struct {
	// Dir is the installed-plugins directory scanned for manifests.
	Dir string `koanf:"dir"`
	// Ignore lists glob patterns of plugin directories to skip.
	Ignore []string `koanf:"ignore"`
	// Activate lists "category:name" keys started at boot, in any
	// order; the registry orders them by declared dependencies.
	Activate []string `koanf:"activate"`
	// Settings maps "category:name" keys to settings payloads applied
	// before activation.
	Settings map[string]map[string]any `koanf:"settings"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Log: Log{
			Format: "json",
			Level:  "info",
		},
		Metrics: Metrics{
			Addr: "127.0.0.1:9100",
		},
		Plugins: Plugins{
			Dir: xdg.PluginsDir(),
		},
	}
}

// Load reads configuration from path (optional) and applies flag
// overrides (optional). Flag names mirror config keys ("plugins.dir",
// "log.format", ...).
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}
	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, fmt.Errorf("failed to apply flag overrides: %w", err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks constraints flag parsing cannot.
func (c *Config) Validate() error {
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	return nil
}
