// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fabriq Contributors

package capability

import "context"

// Plugin is the contract every capability implementation satisfies.
// Only identity is mandatory; everything else is expressed through the
// optional interfaces below, discovered by type assertion.
type Plugin interface {
	// Name returns the plugin's unique name (lowercase token).
	Name() string

	// Category returns the capability category the plugin implements.
	Category() Category

	// Version returns the plugin's own semantic version (X.Y.Z).
	Version() string

	// PlatformVersion returns the platform version the plugin requires
	// (X.Y). Compatibility is decided by the registry's version checker.
	PlatformVersion() string
}

// Describer is implemented by plugins that carry a human-readable
// description.
type Describer interface {
	Description() string
}

// Dependent is implemented by plugins that must be activated after
// other plugins. Dependencies are referenced by plugin name.
type Dependent interface {
	Dependencies() []string
}

// Configurable is implemented by plugins that accept settings. The
// returned schema drives validation; a nil schema means the plugin
// accepts no settings.
type Configurable interface {
	ConfigSchema() *Schema
}

// Starter is implemented by plugins with a startup hook. Start is
// invoked during activation, in dependency order, under a time budget.
type Starter interface {
	Start(ctx context.Context) error
}

// Stopper is implemented by plugins with a shutdown hook. Stop is
// invoked in reverse activation order, under a time budget.
type Stopper interface {
	Stop(ctx context.Context) error
}

// HealthChecker is implemented by plugins with a health probe.
type HealthChecker interface {
	HealthCheck(ctx context.Context) HealthReport
}

// Base provides the identity portion of the Plugin contract from plain
// struct fields, so concrete plugins only implement the optional hooks
// they need. Embed it by value.
type Base struct {
	PluginName string
	Kind       Category
	SemVer     string
	Requires   string
	Summary    string
	DependsOn  []string
}

// Name implements Plugin.
func (b Base) Name() string { return b.PluginName }

// Category implements Plugin.
func (b Base) Category() Category { return b.Kind }

// Version implements Plugin.
func (b Base) Version() string { return b.SemVer }

// PlatformVersion implements Plugin.
func (b Base) PlatformVersion() string { return b.Requires }

// Description implements Describer.
func (b Base) Description() string { return b.Summary }

// Dependencies implements Dependent.
func (b Base) Dependencies() []string { return b.DependsOn }

// DescriptionOf returns p's description, or "" when p does not
// describe itself.
func DescriptionOf(p Plugin) string {
	if d, ok := p.(Describer); ok {
		return d.Description()
	}
	return ""
}

// DependenciesOf returns p's declared dependency names, or nil when p
// declares none.
func DependenciesOf(p Plugin) []string {
	if d, ok := p.(Dependent); ok {
		return d.Dependencies()
	}
	return nil
}

// SchemaOf returns p's configuration schema, or nil when p accepts no
// settings.
func SchemaOf(p Plugin) *Schema {
	if c, ok := p.(Configurable); ok {
		return c.ConfigSchema()
	}
	return nil
}
