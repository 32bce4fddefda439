// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fabriq Contributors

// Package capability defines the contract every Fabriq capability plugin
// implements: identity, optional dependencies, optional configuration
// schema, and optional lifecycle and health hooks.
package capability

import (
	"fmt"
	"strings"
)

// Category identifies one of the fixed platform capability kinds.
type Category string

// The eleven capability categories. The set is fixed at compile time;
// plugins extend categories, they never add new ones.
const (
	Compute      Category = "compute"
	Orchestrator Category = "orchestrator"
	Catalog      Category = "catalog"
	Storage      Category = "storage"
	Telemetry    Category = "telemetry"
	Lineage      Category = "lineage"
	Transform    Category = "transform"
	Semantic     Category = "semantic"
	Ingestion    Category = "ingestion"
	Secrets      Category = "secrets"
	Identity     Category = "identity"
)

// categories holds every category in canonical order.
var categories = []Category{
	Compute,
	Orchestrator,
	Catalog,
	Storage,
	Telemetry,
	Lineage,
	Transform,
	Semantic,
	Ingestion,
	Secrets,
	Identity,
}

// Categories returns all capability categories in canonical order.
// The returned slice is a copy and may be modified by the caller.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// Valid reports whether c is one of the fixed categories.
func (c Category) Valid() bool {
	for _, known := range categories {
		if c == known {
			return true
		}
	}
	return false
}

// ExtensionPoint returns the identifier under which implementations of
// this category register themselves.
func (c Category) ExtensionPoint() string {
	return "fabriq.capability." + string(c)
}

// Key identifies a plugin within the registry.
type Key struct {
	Category Category
	Name     string
}

// String renders the key as "category:name", the form used in
// health-check result maps and log output.
func (k Key) String() string {
	return fmt.Sprintf("%s:%s", k.Category, k.Name)
}

// ParseKey parses a "category:name" string into a Key.
func ParseKey(s string) (Key, error) {
	cat, name, ok := strings.Cut(s, ":")
	if !ok || name == "" {
		return Key{}, fmt.Errorf("key %q must be category:name", s)
	}
	if !Category(cat).Valid() {
		return Key{}, fmt.Errorf("category %q is not a known capability category", cat)
	}
	return Key{Category: Category(cat), Name: name}, nil
}
