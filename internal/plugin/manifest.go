// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fabriq Contributors

// Package plugin provides capability plugin discovery: extension
// sources, descriptors, and manifest handling.
package plugin

import (
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/fabriq/fabriq/internal/capability"
)

// Manifest represents a plugin.yaml file describing an installed
// capability plugin.
type Manifest struct {
	Name         string   `yaml:"name" json:"name"`
	Category     string   `yaml:"category" json:"category"`
	Version      string   `yaml:"version" json:"version"`
	Platform     string   `yaml:"platform" json:"platform"`
	Description  string   `yaml:"description,omitempty" json:"description,omitempty"`
	Dependencies []string `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	// Binding names the registered factory that provides the concrete
	// implementation. Defaults to Name when empty.
	Binding string `yaml:"binding,omitempty" json:"binding,omitempty"`
}

// maxNameLength is the maximum allowed length for plugin names.
const maxNameLength = 64

// namePattern validates plugin names: must start with a lowercase
// letter, followed by lowercase letters, digits, or hyphens. Cannot end
// with a hyphen. Single character names are allowed.
var namePattern = regexp.MustCompile(`^[a-z]([a-z0-9-]*[a-z0-9])?$`)

// versionPattern validates plugin versions: plain X.Y.Z semver, no
// leading "v", no pre-release or build suffix.
var versionPattern = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

// platformPattern validates required platform versions: MAJOR.MINOR
// only, patch level is never considered.
var platformPattern = regexp.MustCompile(`^\d+\.\d+$`)

// ValidName reports whether s is a valid plugin name.
func ValidName(s string) bool {
	return len(s) <= maxNameLength && namePattern.MatchString(s)
}

// ParseManifest parses and validates a plugin.yaml file.
func ParseManifest(data []byte) (*Manifest, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("manifest data is empty")
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// Validate checks manifest constraints.
func (m *Manifest) Validate() error {
	if m.Name == "" || !namePattern.MatchString(m.Name) {
		return fmt.Errorf("name %q must start with a-z, contain only a-z, 0-9, hyphens, and not end with a hyphen", m.Name)
	}
	if len(m.Name) > maxNameLength {
		return fmt.Errorf("name must be %d characters or less, got %d", maxNameLength, len(m.Name))
	}

	if !capability.Category(m.Category).Valid() {
		return fmt.Errorf("category %q is not a known capability category", m.Category)
	}

	if m.Version == "" || !versionPattern.MatchString(m.Version) {
		return fmt.Errorf("version %q must be X.Y.Z", m.Version)
	}

	if m.Platform == "" || !platformPattern.MatchString(m.Platform) {
		return fmt.Errorf("platform %q must be MAJOR.MINOR", m.Platform)
	}

	for _, dep := range m.Dependencies {
		if !namePattern.MatchString(dep) {
			return fmt.Errorf("dependency %q is not a valid plugin name", dep)
		}
		if dep == m.Name {
			return fmt.Errorf("plugin cannot depend on itself")
		}
	}

	if m.Binding != "" && !namePattern.MatchString(m.Binding) {
		return fmt.Errorf("binding %q is not a valid factory name", m.Binding)
	}

	return nil
}

// BindingName returns the factory name the manifest resolves against.
func (m *Manifest) BindingName() string {
	if m.Binding != "" {
		return m.Binding
	}
	return m.Name
}

// Key returns the registry key declared by the manifest.
func (m *Manifest) Key() capability.Key {
	return capability.Key{Category: capability.Category(m.Category), Name: m.Name}
}
