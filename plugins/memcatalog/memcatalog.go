// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fabriq Contributors

// Package memcatalog provides an in-memory catalog capability plugin.
// It is the reference implementation used in development and tests;
// production deployments install a real catalog backend instead.
//
// Importing the package registers the plugin with the builtin factory
// table:
//
//	import _ "github.com/fabriq/fabriq/plugins/memcatalog"
package memcatalog

import (
	"context"
	"sync"

	"github.com/fabriq/fabriq/internal/capability"
	"github.com/fabriq/fabriq/internal/plugin"
)

func init() {
	plugin.MustRegister(capability.Catalog, "memcatalog", New)
}

// Catalog is an in-memory table catalog.
type Catalog struct {
	capability.Base

	mu      sync.RWMutex
	started bool
	tables  map[string]string
}

// New creates a memcatalog plugin instance.
func New() capability.Plugin {
	return &Catalog{
		Base: capability.Base{
			PluginName: "memcatalog",
			Kind:       capability.Catalog,
			SemVer:     "0.3.0",
			Requires:   "1.0",
			Summary:    "In-memory table catalog for development and tests",
		},
	}
}

// ConfigSchema implements capability.Configurable.
func (c *Catalog) ConfigSchema() *capability.Schema {
	minEntries := float64(1)
	return &capability.Schema{
		Fields: map[string]capability.Field{
			"namespace": {
				Type:    capability.StringField,
				Default: "default",
				Pattern: `^[a-z][a-z0-9_]*$`,
			},
			"max-entries": {
				Type:    capability.IntField,
				Default: 1024,
				Min:     &minEntries,
			},
			"case-sensitive": {
				Type:    capability.BoolField,
				Default: false,
			},
		},
	}
}

// Start implements capability.Starter.
func (c *Catalog) Start(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables = make(map[string]string)
	c.started = true
	return nil
}

// Stop implements capability.Stopper.
func (c *Catalog) Stop(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables = nil
	c.started = false
	return nil
}

// HealthCheck implements capability.HealthChecker.
func (c *Catalog) HealthCheck(_ context.Context) capability.HealthReport {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.started {
		return capability.HealthReport{
			State:   capability.Degraded,
			Message: "catalog not started",
		}
	}
	return capability.HealthReport{
		State:   capability.Healthy,
		Details: map[string]any{"tables": len(c.tables)},
	}
}
