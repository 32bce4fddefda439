// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fabriq Contributors

package registry

import (
	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"

	"github.com/fabriq/fabriq/internal/capability"
	"github.com/fabriq/fabriq/internal/plugin"
)

// LoadedPlugin is an instantiated, contract-conforming plugin. Identity
// is captured and validated once at load time; the underlying instance
// is reachable through Impl.
type LoadedPlugin struct {
	key          capability.Key
	impl         capability.Plugin
	version      *semver.Version
	requires     *semver.Version
	description  string
	dependencies []string
}

// newLoadedPlugin validates p's identity and captures its metadata.
func newLoadedPlugin(p capability.Plugin) (*LoadedPlugin, error) {
	if p == nil {
		return nil, oops.Code("PLUGIN_IDENTITY_INVALID").Errorf("plugin is nil")
	}
	if !plugin.ValidName(p.Name()) {
		return nil, oops.Code("PLUGIN_IDENTITY_INVALID").
			With("name", p.Name()).
			Errorf("plugin name %q is not a valid lowercase token", p.Name())
	}
	if !p.Category().Valid() {
		return nil, oops.Code("PLUGIN_IDENTITY_INVALID").
			With("name", p.Name()).
			Errorf("category %q is not a known capability category", p.Category())
	}

	version, err := semver.NewVersion(p.Version())
	if err != nil {
		return nil, oops.Code("PLUGIN_IDENTITY_INVALID").
			With("name", p.Name()).
			Wrapf(err, "plugin version %q is not semver", p.Version())
	}
	requires, err := semver.NewVersion(p.PlatformVersion())
	if err != nil {
		return nil, oops.Code("PLUGIN_IDENTITY_INVALID").
			With("name", p.Name()).
			Wrapf(err, "required platform version %q is not semver", p.PlatformVersion())
	}

	deps := capability.DependenciesOf(p)
	owned := make([]string, len(deps))
	copy(owned, deps)

	return &LoadedPlugin{
		key:          capability.Key{Category: p.Category(), Name: p.Name()},
		impl:         p,
		version:      version,
		requires:     requires,
		description:  capability.DescriptionOf(p),
		dependencies: owned,
	}, nil
}

// Key returns the plugin's registry key.
func (p *LoadedPlugin) Key() capability.Key { return p.key }

// Name returns the plugin name.
func (p *LoadedPlugin) Name() string { return p.key.Name }

// Impl returns the underlying plugin instance.
func (p *LoadedPlugin) Impl() capability.Plugin { return p.impl }

// Version returns the plugin's semantic version.
func (p *LoadedPlugin) Version() string { return p.version.String() }

// Description returns the plugin's description, if any.
func (p *LoadedPlugin) Description() string { return p.description }

// Dependencies returns the plugin's declared dependency names. The
// returned slice is a copy.
func (p *LoadedPlugin) Dependencies() []string {
	out := make([]string, len(p.dependencies))
	copy(out, p.dependencies)
	return out
}

// Configuration is a validated settings payload bound to a loaded
// plugin. Configurations are immutable once created; re-configuring a
// plugin replaces the stored configuration wholesale.
type Configuration struct {
	key    capability.Key
	values map[string]any
}

// Key returns the owning plugin key.
func (c *Configuration) Key() capability.Key { return c.key }

// Values returns a copy of the validated, defaulted field map.
func (c *Configuration) Values() map[string]any {
	out := make(map[string]any, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// Value returns one validated field.
func (c *Configuration) Value(name string) (any, bool) {
	v, ok := c.values[name]
	return v, ok
}
