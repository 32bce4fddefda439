// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fabriq Contributors

package plugin

import (
	"context"
	"fmt"

	"github.com/fabriq/fabriq/internal/capability"
)

// LoadFunc instantiates the concrete plugin behind a descriptor.
type LoadFunc func(ctx context.Context) (capability.Plugin, error)

// Descriptor is a discoverable-but-not-yet-instantiated plugin
// candidate. Descriptors are created during discovery and never
// mutated.
type Descriptor struct {
	key    capability.Key
	origin string
	load   LoadFunc
}

// NewDescriptor creates a descriptor for key. origin is a human-readable
// provenance string (factory name or manifest directory) used in logs.
func NewDescriptor(key capability.Key, origin string, load LoadFunc) *Descriptor {
	return &Descriptor{key: key, origin: origin, load: load}
}

// Key returns the (category, name) key the descriptor was discovered
// under.
func (d *Descriptor) Key() capability.Key { return d.key }

// Origin returns where the descriptor came from.
func (d *Descriptor) Origin() string { return d.origin }

// Load instantiates the plugin and verifies the instance identifies
// itself under the discovered key. A mismatch means a factory was bound
// to the wrong manifest and is a load error, not a discovery error.
func (d *Descriptor) Load(ctx context.Context) (capability.Plugin, error) {
	p, err := d.load(ctx)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("loader for %s returned nil plugin", d.key)
	}

	got := capability.Key{Category: p.Category(), Name: p.Name()}
	if got != d.key {
		return nil, fmt.Errorf("loaded plugin identifies as %s, descriptor is %s", got, d.key)
	}
	return p, nil
}
