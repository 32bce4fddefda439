// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fabriq Contributors

package plugin_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabriq/fabriq/internal/capability"
	"github.com/fabriq/fabriq/internal/plugin"
)

// writeManifest creates a plugin directory with a plugin.yaml under root.
func writeManifest(t *testing.T, root, dir, content string) {
	t.Helper()
	pluginDir := filepath.Join(root, dir)
	require.NoError(t, os.MkdirAll(pluginDir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(pluginDir, plugin.ManifestFileName), []byte(content), 0o600))
}

func manifestYAML(name, category string) string {
	return fmt.Sprintf("name: %s\ncategory: %s\nversion: 1.0.0\nplatform: \"1.0\"\n", name, category)
}

func TestManifestSource_Candidates(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "localfs", manifestYAML("localfs", "storage"))
	writeManifest(t, root, "s3", manifestYAML("s3", "storage"))
	writeManifest(t, root, "duckdb", manifestYAML("duckdb", "compute"))

	src := plugin.NewManifestSource(root, plugin.NewFactoryTable())
	ctx := context.Background()

	storage, err := src.Candidates(ctx, capability.Storage)
	require.NoError(t, err)
	require.Len(t, storage, 2)

	compute, err := src.Candidates(ctx, capability.Compute)
	require.NoError(t, err)
	require.Len(t, compute, 1)
	assert.Equal(t, "duckdb", compute[0].Key().Name)

	empty, err := src.Candidates(ctx, capability.Secrets)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestManifestSource_MissingDirectory(t *testing.T) {
	src := plugin.NewManifestSource(filepath.Join(t.TempDir(), "nope"), plugin.NewFactoryTable())

	descriptors, err := src.Candidates(context.Background(), capability.Storage)
	require.NoError(t, err, "a missing plugins directory is not an error")
	assert.Empty(t, descriptors)
}

func TestManifestSource_MalformedSkipped(t *testing.T) {
	// Ten installed plugins, three broken in different ways. Discovery
	// must surface the seven healthy ones.
	root := t.TempDir()
	for i := range 7 {
		writeManifest(t, root, fmt.Sprintf("good-%d", i), manifestYAML(fmt.Sprintf("good-%d", i), "transform"))
	}
	writeManifest(t, root, "bad-yaml", "name: [unclosed")
	writeManifest(t, root, "bad-category", manifestYAML("bad-category", "warehouse"))
	// Missing manifest entirely
	require.NoError(t, os.MkdirAll(filepath.Join(root, "no-manifest"), 0o750))

	src := plugin.NewManifestSource(root, plugin.NewFactoryTable())

	descriptors, err := src.Candidates(context.Background(), capability.Transform)
	require.NoError(t, err)
	assert.Len(t, descriptors, 7)
}

func TestManifestSource_NonDirectoriesSkipped(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "stray.txt"), []byte("not a plugin"), 0o600))
	writeManifest(t, root, "localfs", manifestYAML("localfs", "storage"))

	src := plugin.NewManifestSource(root, plugin.NewFactoryTable())

	descriptors, err := src.Candidates(context.Background(), capability.Storage)
	require.NoError(t, err)
	assert.Len(t, descriptors, 1)
}

func TestManifestSource_IgnorePatterns(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "localfs", manifestYAML("localfs", "storage"))
	writeManifest(t, root, "s3.disabled", manifestYAML("s3", "storage"))

	src := plugin.NewManifestSource(root, plugin.NewFactoryTable(),
		plugin.WithIgnorePatterns("*.disabled"))

	descriptors, err := src.Candidates(context.Background(), capability.Storage)
	require.NoError(t, err)
	require.Len(t, descriptors, 1)
	assert.Equal(t, "localfs", descriptors[0].Key().Name)
}

func TestManifestSource_InvalidIgnorePatternSkipped(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "localfs", manifestYAML("localfs", "storage"))

	src := plugin.NewManifestSource(root, plugin.NewFactoryTable(),
		plugin.WithIgnorePatterns("[unclosed"))

	descriptors, err := src.Candidates(context.Background(), capability.Storage)
	require.NoError(t, err)
	assert.Len(t, descriptors, 1)
}

// startProbe records whether its Start hook ran.
type startProbe struct {
	capability.Base
	started bool
}

func (p *startProbe) Start(context.Context) error {
	p.started = true
	return nil
}

func TestManifestSource_BindingResolution(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "iceberg", `
name: iceberg
category: catalog
version: 0.9.0
platform: "1.2"
description: Iceberg REST catalog
dependencies: [localfs]
binding: iceberg-rest
`)

	impl := &startProbe{
		Base: capability.Base{
			PluginName: "iceberg-rest",
			Kind:       capability.Catalog,
			SemVer:     "0.0.1",
			Requires:   "1.0",
		},
	}
	table := plugin.NewFactoryTable()
	require.NoError(t, table.Register(capability.Catalog, "iceberg-rest", func() capability.Plugin {
		return impl
	}))

	src := plugin.NewManifestSource(root, table)
	ctx := context.Background()

	descriptors, err := src.Candidates(ctx, capability.Catalog)
	require.NoError(t, err)
	require.Len(t, descriptors, 1)

	p, err := descriptors[0].Load(ctx)
	require.NoError(t, err)

	// Identity comes from the manifest, not the bound implementation
	assert.Equal(t, "iceberg", p.Name())
	assert.Equal(t, capability.Catalog, p.Category())
	assert.Equal(t, "0.9.0", p.Version())
	assert.Equal(t, "1.2", p.PlatformVersion())
	assert.Equal(t, "Iceberg REST catalog", capability.DescriptionOf(p))
	assert.Equal(t, []string{"localfs"}, capability.DependenciesOf(p))

	// Hooks delegate to the implementation
	starter, ok := p.(capability.Starter)
	require.True(t, ok)
	require.NoError(t, starter.Start(ctx))
	assert.True(t, impl.started)

	// A hook the implementation lacks falls back to a no-op
	checker, ok := p.(capability.HealthChecker)
	require.True(t, ok)
	report := checker.HealthCheck(ctx)
	assert.Equal(t, capability.Healthy, report.State)
	assert.Equal(t, "no health probe", report.Message)
}

func TestManifestSource_UnregisteredBinding(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "iceberg", manifestYAML("iceberg", "catalog"))

	src := plugin.NewManifestSource(root, plugin.NewFactoryTable())
	ctx := context.Background()

	descriptors, err := src.Candidates(ctx, capability.Catalog)
	require.NoError(t, err)
	require.Len(t, descriptors, 1, "discovery never instantiates; the descriptor still appears")

	_, err = descriptors[0].Load(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no factory registered")
}
