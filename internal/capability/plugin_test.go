// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fabriq Contributors

package capability_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fabriq/fabriq/internal/capability"
)

// bare implements only the mandatory identity contract.
type bare struct{}

func (bare) Name() string                  { return "bare" }
func (bare) Category() capability.Category { return capability.Compute }
func (bare) Version() string               { return "1.0.0" }
func (bare) PlatformVersion() string       { return "1.0" }

func TestBase_Identity(t *testing.T) {
	b := capability.Base{
		PluginName: "duckdb",
		Kind:       capability.Compute,
		SemVer:     "2.1.0",
		Requires:   "1.2",
		Summary:    "Embedded analytics engine",
		DependsOn:  []string{"localfs"},
	}

	var p capability.Plugin = b
	assert.Equal(t, "duckdb", p.Name())
	assert.Equal(t, capability.Compute, p.Category())
	assert.Equal(t, "2.1.0", p.Version())
	assert.Equal(t, "1.2", p.PlatformVersion())
}

func TestBase_OptionalInterfaces(t *testing.T) {
	b := capability.Base{
		PluginName: "duckdb",
		Kind:       capability.Compute,
		SemVer:     "2.1.0",
		Requires:   "1.2",
		Summary:    "Embedded analytics engine",
		DependsOn:  []string{"localfs", "memcatalog"},
	}

	assert.Equal(t, "Embedded analytics engine", capability.DescriptionOf(b))
	assert.Equal(t, []string{"localfs", "memcatalog"}, capability.DependenciesOf(b))
}

func TestHelpers_BarePlugin(t *testing.T) {
	p := bare{}

	assert.Empty(t, capability.DescriptionOf(p))
	assert.Nil(t, capability.DependenciesOf(p))
	assert.Nil(t, capability.SchemaOf(p))
}

func TestHealthReport_OK(t *testing.T) {
	assert.True(t, capability.HealthReport{State: capability.Healthy}.OK())
	assert.False(t, capability.HealthReport{State: capability.Degraded}.OK())
	assert.False(t, capability.HealthReport{State: capability.Unhealthy}.OK())
}
