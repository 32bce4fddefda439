// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fabriq Contributors

package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gobwas/glob"

	"github.com/fabriq/fabriq/internal/capability"
)

// ManifestFileName is the manifest file looked for in each plugin
// directory.
const ManifestFileName = "plugin.yaml"

// ManifestSource discovers installed plugins by scanning a directory of
// plugin subdirectories, each carrying a plugin.yaml manifest. The
// concrete implementation behind a manifest is resolved through a
// factory table at load time, so discovery never instantiates plugins.
//
// Malformed entries are logged and skipped: a platform with one broken
// installed plugin must still start.
type ManifestSource struct {
	dir    string
	table  *FactoryTable
	ignore []glob.Glob

	mu     sync.Mutex
	warned map[string]bool
}

// ManifestOption configures a ManifestSource.
type ManifestOption func(*ManifestSource)

// WithIgnorePatterns skips plugin directories whose base name matches
// any of the glob patterns (e.g. "*.disabled"). Invalid patterns are
// logged and ignored.
func WithIgnorePatterns(patterns ...string) ManifestOption {
	return func(s *ManifestSource) {
		for _, p := range patterns {
			g, err := glob.Compile(p)
			if err != nil {
				slog.Warn("ignoring invalid plugin ignore pattern",
					"pattern", p,
					"error", err)
				continue
			}
			s.ignore = append(s.ignore, g)
		}
	}
}

// NewManifestSource creates a source scanning dir against table.
func NewManifestSource(dir string, table *FactoryTable, opts ...ManifestOption) *ManifestSource {
	s := &ManifestSource{
		dir:    dir,
		table:  table,
		warned: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Candidates implements ExtensionSource. A missing plugins directory is
// not an error; it simply yields no candidates.
func (s *ManifestSource) Candidates(_ context.Context, cat capability.Category) ([]*Descriptor, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read plugins directory: %w", err)
	}

	var descriptors []*Descriptor
	for _, entry := range entries {
		if !entry.IsDir() || s.ignored(entry.Name()) {
			continue
		}

		pluginDir := filepath.Join(s.dir, entry.Name())
		manifest, ok := s.readManifest(pluginDir, entry.Name())
		if !ok || manifest.Category != string(cat) {
			continue
		}

		descriptors = append(descriptors, s.descriptor(manifest, pluginDir))
	}
	return descriptors, nil
}

// descriptor builds a lazy-loading descriptor for a parsed manifest.
func (s *ManifestSource) descriptor(manifest *Manifest, pluginDir string) *Descriptor {
	return NewDescriptor(manifest.Key(), pluginDir, func(context.Context) (capability.Plugin, error) {
		binding := capability.Key{
			Category: capability.Category(manifest.Category),
			Name:     manifest.BindingName(),
		}
		factory, ok := s.table.Lookup(binding)
		if !ok {
			return nil, fmt.Errorf("no factory registered for binding %s", binding)
		}
		impl := factory()
		if impl == nil {
			return nil, fmt.Errorf("factory %s returned nil plugin", binding)
		}
		return &manifestPlugin{manifest: manifest, impl: impl}, nil
	})
}

// readManifest reads, schema-checks, and parses one plugin.yaml. All
// failure modes are logged once per directory and reported as !ok.
func (s *ManifestSource) readManifest(pluginDir, name string) (*Manifest, bool) {
	manifestPath := filepath.Join(pluginDir, ManifestFileName)

	data, err := os.ReadFile(manifestPath) //nolint:gosec // manifestPath is constructed from ReadDir entries
	if err != nil {
		s.warnOnce(pluginDir, "skipping plugin without manifest", name, err)
		return nil, false
	}

	if err := ValidateManifestSchema(data); err != nil {
		s.warnOnce(pluginDir, "skipping plugin with invalid manifest", name, err)
		return nil, false
	}

	manifest, err := ParseManifest(data)
	if err != nil {
		s.warnOnce(pluginDir, "skipping plugin with invalid manifest", name, err)
		return nil, false
	}
	return manifest, true
}

// ignored reports whether a plugin directory name matches an ignore
// pattern.
func (s *ManifestSource) ignored(name string) bool {
	for _, g := range s.ignore {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// warnOnce logs a skip warning the first time a directory fails.
// Candidates runs once per category, so without deduplication every
// broken manifest would be reported eleven times per discovery pass.
func (s *ManifestSource) warnOnce(dir, msg, name string, err error) {
	s.mu.Lock()
	seen := s.warned[dir]
	s.warned[dir] = true
	s.mu.Unlock()

	if seen {
		return
	}
	slog.Warn(msg, "dir", name, "error", err)
}

// manifestPlugin binds manifest-declared identity to a factory-provided
// implementation. Identity, description and dependencies come from the
// manifest; behavior hooks come from the implementation.
type manifestPlugin struct {
	manifest *Manifest
	impl     capability.Plugin
}

func (p *manifestPlugin) Name() string                  { return p.manifest.Name }
func (p *manifestPlugin) Category() capability.Category { return capability.Category(p.manifest.Category) }
func (p *manifestPlugin) Version() string               { return p.manifest.Version }
func (p *manifestPlugin) PlatformVersion() string       { return p.manifest.Platform }
func (p *manifestPlugin) Description() string           { return p.manifest.Description }
func (p *manifestPlugin) Dependencies() []string        { return p.manifest.Dependencies }

func (p *manifestPlugin) ConfigSchema() *capability.Schema {
	return capability.SchemaOf(p.impl)
}

func (p *manifestPlugin) Start(ctx context.Context) error {
	if s, ok := p.impl.(capability.Starter); ok {
		return s.Start(ctx)
	}
	return nil
}

func (p *manifestPlugin) Stop(ctx context.Context) error {
	if s, ok := p.impl.(capability.Stopper); ok {
		return s.Stop(ctx)
	}
	return nil
}

func (p *manifestPlugin) HealthCheck(ctx context.Context) capability.HealthReport {
	if h, ok := p.impl.(capability.HealthChecker); ok {
		return h.HealthCheck(ctx)
	}
	return capability.HealthReport{State: capability.Healthy, Message: "no health probe"}
}
