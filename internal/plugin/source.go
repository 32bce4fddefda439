// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fabriq Contributors

package plugin

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/fabriq/fabriq/internal/capability"
)

// ExtensionSource enumerates installable plugin candidates for a
// capability category without instantiating them. Implementations must
// be safe for concurrent use.
type ExtensionSource interface {
	Candidates(ctx context.Context, cat capability.Category) ([]*Descriptor, error)
}

// Factory constructs a plugin instance. Factories must return a fresh
// or shared instance whose identity matches the key it was registered
// under.
type Factory func() capability.Plugin

// FactoryTable holds named plugin factories. The zero value is not
// usable; create tables with NewFactoryTable.
type FactoryTable struct {
	mu        sync.RWMutex
	factories map[capability.Key]Factory
}

// NewFactoryTable creates an empty factory table.
func NewFactoryTable() *FactoryTable {
	return &FactoryTable{factories: make(map[capability.Key]Factory)}
}

// Register adds a factory under (cat, name). Registering the same key
// twice is an error.
func (t *FactoryTable) Register(cat capability.Category, name string, f Factory) error {
	if f == nil {
		return fmt.Errorf("factory for %s:%s is nil", cat, name)
	}
	if !cat.Valid() {
		return fmt.Errorf("category %q is not a known capability category", cat)
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("factory name %q is not a valid plugin name", name)
	}

	key := capability.Key{Category: cat, Name: name}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.factories[key]; exists {
		return fmt.Errorf("factory %s already registered", key)
	}
	t.factories[key] = f
	return nil
}

// Lookup returns the factory registered under key, if any.
func (t *FactoryTable) Lookup(key capability.Key) (Factory, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	f, ok := t.factories[key]
	return f, ok
}

// Keys returns the registered keys for a category, sorted by name.
func (t *FactoryTable) Keys(cat capability.Category) []capability.Key {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var keys []capability.Key
	for key := range t.factories {
		if key.Category == cat {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Name < keys[j].Name })
	return keys
}

// builtins is the process-wide factory table populated by compiled-in
// capability implementations at init time.
var builtins = NewFactoryTable()

// Builtins returns the process-wide factory table.
func Builtins() *FactoryTable {
	return builtins
}

// Register adds a factory to the process-wide table. Intended for use
// from implementation package init functions, in the manner of
// database/sql driver registration.
func Register(cat capability.Category, name string, f Factory) error {
	return builtins.Register(cat, name, f)
}

// MustRegister is Register that panics on error. Use only from init
// functions where a duplicate registration is a programming mistake.
func MustRegister(cat capability.Category, name string, f Factory) {
	if err := builtins.Register(cat, name, f); err != nil {
		panic(err)
	}
}

// BuiltinSource exposes a factory table as an extension source.
type BuiltinSource struct {
	table *FactoryTable
}

// NewBuiltinSource creates a source over table. Pass Builtins() for the
// process-wide table.
func NewBuiltinSource(table *FactoryTable) *BuiltinSource {
	return &BuiltinSource{table: table}
}

// Candidates implements ExtensionSource. Builtin candidates never fail
// to enumerate.
func (s *BuiltinSource) Candidates(_ context.Context, cat capability.Category) ([]*Descriptor, error) {
	keys := s.table.Keys(cat)
	descriptors := make([]*Descriptor, 0, len(keys))
	for _, key := range keys {
		key := key
		descriptors = append(descriptors, NewDescriptor(key, "builtin:"+key.Name, func(context.Context) (capability.Plugin, error) {
			f, ok := s.table.Lookup(key)
			if !ok {
				return nil, fmt.Errorf("factory %s no longer registered", key)
			}
			return f(), nil
		}))
	}
	return descriptors, nil
}
