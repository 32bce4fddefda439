// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fabriq Contributors

package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fabriq/fabriq/internal/capability"
)

// hookedPlugin is a test plugin with injectable lifecycle and health
// hooks. Nil hooks behave as immediate no-ops.
type hookedPlugin struct {
	capability.Base
	start  func(ctx context.Context) error
	stop   func(ctx context.Context) error
	health func(ctx context.Context) capability.HealthReport
}

func (p *hookedPlugin) Start(ctx context.Context) error {
	if p.start == nil {
		return nil
	}
	return p.start(ctx)
}

func (p *hookedPlugin) Stop(ctx context.Context) error {
	if p.stop == nil {
		return nil
	}
	return p.stop(ctx)
}

func (p *hookedPlugin) HealthCheck(ctx context.Context) capability.HealthReport {
	if p.health == nil {
		return capability.HealthReport{State: capability.Healthy}
	}
	return p.health(ctx)
}

// newTestPlugin builds a compute plugin with the given name and
// dependency names, compatible with the default platform.
func newTestPlugin(name string, deps ...string) *hookedPlugin {
	return &hookedPlugin{
		Base: capability.Base{
			PluginName: name,
			Kind:       capability.Compute,
			SemVer:     "1.0.0",
			Requires:   "1.0",
			DependsOn:  deps,
		},
	}
}

// mustLoad wraps newLoadedPlugin for tests that only exercise ordering
// or lifecycle.
func mustLoad(t *testing.T, p capability.Plugin) *LoadedPlugin {
	t.Helper()
	lp, err := newLoadedPlugin(p)
	require.NoError(t, err)
	return lp
}

// orderNames extracts plugin names from a resolved order.
func orderNames(ordered []*LoadedPlugin) []string {
	names := make([]string, 0, len(ordered))
	for _, p := range ordered {
		names = append(names, p.Name())
	}
	return names
}
