// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fabriq Contributors

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabriq/fabriq/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fabriq.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/custom/data")

	cfg := config.Default()
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "127.0.0.1:9100", cfg.Metrics.Addr)
	assert.Equal(t, "/custom/data/fabriq/plugins", cfg.Plugins.Dir)
}

func TestLoad_NoFileNoFlags(t *testing.T) {
	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, `
log:
  format: text
  level: debug
metrics:
  addr: ":9200"
plugins:
  dir: /opt/fabriq/plugins
  ignore:
    - "*.disabled"
  activate:
    - storage:localfs
    - catalog:memcatalog
  settings:
    catalog:memcatalog:
      namespace: analytics
      max-entries: 4096
`)

	cfg, err := config.Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ":9200", cfg.Metrics.Addr)
	assert.Equal(t, "/opt/fabriq/plugins", cfg.Plugins.Dir)
	assert.Equal(t, []string{"*.disabled"}, cfg.Plugins.Ignore)
	assert.Equal(t, []string{"storage:localfs", "catalog:memcatalog"}, cfg.Plugins.Activate)

	settings, ok := cfg.Plugins.Settings["catalog:memcatalog"]
	require.True(t, ok)
	assert.Equal(t, "analytics", settings["namespace"])
}

func TestLoad_FlagOverrides(t *testing.T) {
	path := writeConfig(t, "log:\n  level: debug\n")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log.level", "", "")
	flags.String("plugins.dir", "", "")
	require.NoError(t, flags.Set("log.level", "warn"))
	require.NoError(t, flags.Set("plugins.dir", "/from/flag"))

	cfg, err := config.Load(path, flags)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level, "flags override the file")
	assert.Equal(t, "/from/flag", cfg.Plugins.Dir)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad format", "log:\n  format: xml\n"},
		{"bad level", "log:\n  level: loud\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.content), nil)
			assert.Error(t, err)
		})
	}
}
