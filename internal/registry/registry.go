// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fabriq Contributors

package registry

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"

	"github.com/fabriq/fabriq/internal/capability"
	"github.com/fabriq/fabriq/internal/plugin"
)

// Registry is the capability plugin registry façade: discovery, lazy
// loading, version gating, configuration, activation and health
// monitoring behind one long-lived, concurrently accessed object.
type Registry struct {
	platform  *semver.Version
	sources   []plugin.ExtensionSource
	lifecycle *lifecycle
	monitor   *monitor

	// discoverMu serializes discovery passes so exactly one implicit
	// pass runs even under concurrent first access.
	discoverMu sync.Mutex
	discovered bool

	// activateMu serializes activation runs so a key cannot pass the
	// already-active check in two concurrent calls and start twice.
	activateMu sync.Mutex

	mu          sync.RWMutex
	descriptors map[capability.Key]*plugin.Descriptor
	loaded      map[capability.Key]*LoadedPlugin
	configs     map[capability.Key]*Configuration
	loadLocks   map[capability.Key]*sync.Mutex
	active      []capability.Key
	activeSet   map[capability.Key]bool
	activeNames map[string]bool
}

// Option configures a Registry.
type Option func(*options)

type options struct {
	platform      string
	sources       []plugin.ExtensionSource
	startTimeout  time.Duration
	stopTimeout   time.Duration
	healthTimeout time.Duration
}

// WithSources sets the extension sources discovery enumerates.
func WithSources(sources ...plugin.ExtensionSource) Option {
	return func(o *options) { o.sources = append(o.sources, sources...) }
}

// WithPlatformVersion overrides the running platform version. Intended
// for tests; production uses PlatformVersion.
func WithPlatformVersion(v string) Option {
	return func(o *options) { o.platform = v }
}

// WithStartTimeout overrides the startup hook budget.
func WithStartTimeout(d time.Duration) Option {
	return func(o *options) { o.startTimeout = d }
}

// WithStopTimeout overrides the shutdown hook budget.
func WithStopTimeout(d time.Duration) Option {
	return func(o *options) { o.stopTimeout = d }
}

// WithHealthTimeout overrides the health probe budget.
func WithHealthTimeout(d time.Duration) Option {
	return func(o *options) { o.healthTimeout = d }
}

// New creates a registry.
func New(opts ...Option) (*Registry, error) {
	o := &options{
		platform:      PlatformVersion,
		startTimeout:  DefaultStartTimeout,
		stopTimeout:   DefaultStopTimeout,
		healthTimeout: DefaultHealthTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}

	platform, err := semver.NewVersion(o.platform)
	if err != nil {
		return nil, oops.With("version", o.platform).Wrapf(err, "invalid platform version")
	}

	return &Registry{
		platform:    platform,
		sources:     o.sources,
		lifecycle:   &lifecycle{startTimeout: o.startTimeout, stopTimeout: o.stopTimeout},
		monitor:     &monitor{timeout: o.healthTimeout},
		descriptors: make(map[capability.Key]*plugin.Descriptor),
		loaded:      make(map[capability.Key]*LoadedPlugin),
		configs:     make(map[capability.Key]*Configuration),
		loadLocks:   make(map[capability.Key]*sync.Mutex),
		activeSet:   make(map[capability.Key]bool),
		activeNames: make(map[string]bool),
	}, nil
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide registry backed by the builtin
// factory table. Prefer constructing registries with New and passing
// them explicitly; Default exists for hosts with a single composition
// point.
func Default() *Registry {
	defaultOnce.Do(func() {
		r, err := New(WithSources(plugin.NewBuiltinSource(plugin.Builtins())))
		if err != nil {
			// Unreachable: the default platform version is a constant.
			panic(err)
		}
		defaultRegistry = r
	})
	return defaultRegistry
}

// DiscoverAll runs a discovery pass over every extension source and
// category, populating the descriptor catalog. It is idempotent and
// safe to re-run: later passes may add newly installed descriptors but
// never duplicate or replace existing keys. Individual malformed or
// failing entries are logged and skipped; a platform with one broken
// installed extension must still start.
func (r *Registry) DiscoverAll(ctx context.Context) error {
	r.discoverMu.Lock()
	defer r.discoverMu.Unlock()
	return r.scanLocked(ctx)
}

// ensureDiscovered runs the implicit one-time discovery pass.
func (r *Registry) ensureDiscovered(ctx context.Context) error {
	r.discoverMu.Lock()
	defer r.discoverMu.Unlock()
	if r.discovered {
		return nil
	}
	return r.scanLocked(ctx)
}

// scanLocked enumerates all sources. Caller holds discoverMu.
func (r *Registry) scanLocked(ctx context.Context) error {
	added := 0
	for _, src := range r.sources {
		for _, cat := range capability.Categories() {
			if err := ctx.Err(); err != nil {
				return err
			}

			candidates, err := src.Candidates(ctx, cat)
			if err != nil {
				slog.Error("extension source failed, continuing discovery",
					"category", cat,
					"error", err)
				continue
			}

			for _, d := range candidates {
				if r.addDescriptor(cat, d) {
					added++
				}
			}
		}
	}

	r.discovered = true

	r.mu.RLock()
	total := len(r.descriptors)
	r.mu.RUnlock()
	slog.Info("plugin discovery complete", "added", added, "descriptors", total)
	return nil
}

// addDescriptor catalogs one candidate, rejecting malformed keys and
// ignoring duplicates.
func (r *Registry) addDescriptor(cat capability.Category, d *plugin.Descriptor) bool {
	key := d.Key()
	if key.Category != cat || !plugin.ValidName(key.Name) {
		slog.Warn("skipping descriptor with malformed key",
			"key", key.String(),
			"origin", d.Origin())
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.descriptors[key]; exists {
		slog.Debug("ignoring duplicate descriptor",
			"key", key.String(),
			"origin", d.Origin())
		return false
	}
	r.descriptors[key] = d
	return true
}

// Register adds an in-memory plugin instance directly, bypassing
// discovery. The plugin is version-checked and stored as loaded; a
// matching descriptor is catalogued so List and Get see it.
func (r *Registry) Register(p capability.Plugin) error {
	lp, err := newLoadedPlugin(p)
	if err != nil {
		return err
	}

	if err := checkCompatibility(lp.Name(), lp.requires, r.platform); err != nil {
		return oops.Code("PLUGIN_INCOMPATIBLE").
			With("plugin", lp.Key().String()).
			Wrap(err)
	}

	key := lp.Key()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.loaded[key]; exists {
		return oops.Code("PLUGIN_DUPLICATE").
			With("plugin", key.String()).
			Wrapf(ErrDuplicate, "plugin %s is already registered", key)
	}
	r.loaded[key] = lp
	if _, exists := r.descriptors[key]; !exists {
		r.descriptors[key] = plugin.NewDescriptor(key, "registered", func(context.Context) (capability.Plugin, error) {
			return p, nil
		})
	}

	slog.Info("registered plugin",
		"plugin", key.String(),
		"version", lp.Version())
	return nil
}

// Get returns the loaded plugin for (cat, name), lazily loading it
// behind its descriptor on first use. Repeat calls return the identical
// cached instance. Two concurrent calls for the same key load at most
// once; calls for different keys proceed in parallel.
func (r *Registry) Get(ctx context.Context, cat capability.Category, name string) (*LoadedPlugin, error) {
	if err := r.ensureDiscovered(ctx); err != nil {
		return nil, err
	}

	key := capability.Key{Category: cat, Name: name}
	r.mu.RLock()
	lp := r.loaded[key]
	r.mu.RUnlock()
	if lp != nil {
		return lp, nil
	}

	lock := r.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	r.mu.RLock()
	lp = r.loaded[key]
	d := r.descriptors[key]
	r.mu.RUnlock()
	if lp != nil {
		return lp, nil
	}
	if d == nil {
		return nil, oops.Code("PLUGIN_NOT_FOUND").
			With("plugin", key.String()).
			Wrapf(ErrNotFound, "no descriptor for %s", key)
	}

	impl, err := d.Load(ctx)
	if err != nil {
		return nil, oops.Code("PLUGIN_LOAD_FAILED").
			With("plugin", key.String()).
			With("origin", d.Origin()).
			Wrap(err)
	}

	lp, err = newLoadedPlugin(impl)
	if err != nil {
		return nil, err
	}
	if err := checkCompatibility(lp.Name(), lp.requires, r.platform); err != nil {
		return nil, oops.Code("PLUGIN_INCOMPATIBLE").
			With("plugin", key.String()).
			Wrap(err)
	}

	r.mu.Lock()
	r.loaded[key] = lp
	r.mu.Unlock()

	slog.Info("loaded plugin",
		"plugin", key.String(),
		"version", lp.Version(),
		"origin", d.Origin())
	return lp, nil
}

// List returns the discovered plugin names for a category, sorted,
// without loading them. It never fails; an unknown or empty category
// yields an empty list.
func (r *Registry) List(cat capability.Category) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0)
	for key := range r.descriptors {
		if key.Category == cat {
			names = append(names, key.Name)
		}
	}
	sort.Strings(names)
	return names
}

// ListAll returns discovered plugin names per category. Every category
// is present in the result, even when empty.
func (r *Registry) ListAll() map[capability.Category][]string {
	out := make(map[capability.Category][]string, len(capability.Categories()))
	for _, cat := range capability.Categories() {
		out[cat] = r.List(cat)
	}
	return out
}

// Configure validates settings against the plugin's declared schema and
// stores the result, loading the plugin first if necessary. Partial or
// invalid configuration is never stored; re-configuring replaces the
// previous configuration wholesale.
func (r *Registry) Configure(ctx context.Context, cat capability.Category, name string, settings map[string]any) (*Configuration, error) {
	lp, err := r.Get(ctx, cat, name)
	if err != nil {
		return nil, err
	}

	key := lp.Key()
	lock := r.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	values, err := validateConfig(capability.SchemaOf(lp.Impl()), settings)
	if err != nil {
		return nil, oops.Code("PLUGIN_CONFIG_INVALID").
			With("plugin", key.String()).
			Wrap(err)
	}

	cfg := &Configuration{key: key, values: values}
	r.mu.Lock()
	r.configs[key] = cfg
	r.mu.Unlock()

	slog.Info("configured plugin", "plugin", key.String())
	return cfg, nil
}

// Config returns the stored configuration for a plugin, if one exists.
func (r *Registry) Config(cat capability.Category, name string) (*Configuration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[capability.Key{Category: cat, Name: name}]
	return cfg, ok
}

// Activate loads the requested plugins, orders them by declared
// dependencies, and runs their startup hooks strictly in that order.
// Already-active keys are skipped. On any startup failure the run
// continues fail-forward: plugins that do not depend on the failure
// still start, dependents are skipped, and nothing already started is
// rolled back. The returned result always describes the full run.
// Concurrent Activate calls are serialized.
func (r *Registry) Activate(ctx context.Context, keys ...capability.Key) (*ActivationResult, error) {
	if err := r.ensureDiscovered(ctx); err != nil {
		return nil, err
	}

	r.activateMu.Lock()
	defer r.activateMu.Unlock()

	set := make([]*LoadedPlugin, 0, len(keys))
	seen := make(map[capability.Key]bool, len(keys))
	for _, key := range keys {
		if seen[key] {
			continue
		}
		seen[key] = true

		r.mu.RLock()
		alreadyActive := r.activeSet[key]
		r.mu.RUnlock()
		if alreadyActive {
			continue
		}

		lp, err := r.Get(ctx, key.Category, key.Name)
		if err != nil {
			return nil, err
		}
		set = append(set, lp)
	}

	ordered, err := resolveOrder(set, r.isActiveName)
	if err != nil {
		var cycle *CycleError
		if errors.As(err, &cycle) {
			return nil, oops.Code("PLUGIN_DEPENDENCY_CYCLE").
				With("cycle", cycle.Path).
				Wrap(err)
		}
		return nil, oops.Code("PLUGIN_DEPENDENCY_MISSING").Wrap(err)
	}

	result := r.lifecycle.activate(ctx, ordered)

	r.mu.Lock()
	for _, key := range result.Started {
		r.active = append(r.active, key)
		r.activeSet[key] = true
		r.activeNames[key.Name] = true
	}
	r.mu.Unlock()

	if !result.OK() {
		// Errorf, not Wrap: wrapping an oops error would let the inner
		// hook failure's code shadow the summary code.
		return result, oops.Code("PLUGIN_ACTIVATION_FAILED").
			With("run_id", result.RunID).
			With("started", len(result.Started)).
			With("failed", len(result.Failed)).
			With("skipped", len(result.Skipped)).
			Errorf("plugin activation failed: %v", firstFailure(ordered, result))
	}
	return result, nil
}

// isActiveName reports whether an active plugin carries the given name.
func (r *Registry) isActiveName(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeNames[name]
}

// firstFailure returns the error of the earliest failed plugin in
// activation order, so the summary error is deterministic.
func firstFailure(ordered []*LoadedPlugin, result *ActivationResult) error {
	for _, p := range ordered {
		if err, failed := result.Failed[p.Key()]; failed {
			return err
		}
	}
	// Only skips occurred; every skip traces back to a failure in a
	// previous run, so report the first skip reason.
	for _, p := range ordered {
		if reason, skipped := result.Skipped[p.Key()]; skipped {
			return oops.Errorf("plugin %s skipped: %s", p.Key(), reason)
		}
	}
	return nil
}

// HealthCheckAll probes every loaded plugin concurrently, each under
// its own budget. It never fails: probe errors, panics and timeouts
// surface as unhealthy entries. Keys are "category:name".
func (r *Registry) HealthCheckAll(ctx context.Context) map[string]capability.HealthReport {
	r.mu.RLock()
	snapshot := make([]*LoadedPlugin, 0, len(r.loaded))
	for _, lp := range r.loaded {
		snapshot = append(snapshot, lp)
	}
	r.mu.RUnlock()

	out := make(map[string]capability.HealthReport, len(snapshot))
	var outMu sync.Mutex
	var wg sync.WaitGroup
	for _, lp := range snapshot {
		wg.Add(1)
		go func(lp *LoadedPlugin) {
			defer wg.Done()
			report := r.monitor.check(ctx, lp.Impl())
			outMu.Lock()
			out[lp.Key().String()] = report
			outMu.Unlock()
		}(lp)
	}
	wg.Wait()
	return out
}

// ShutdownAll stops active plugins in the reverse of activation order,
// each under the stop budget. Teardown is best-effort: a failed hook is
// logged and does not prevent shutting down the rest. The joined error,
// if any, is informational.
func (r *Registry) ShutdownAll(ctx context.Context) error {
	r.mu.Lock()
	order := r.active
	r.active = nil
	r.activeSet = make(map[capability.Key]bool)
	r.activeNames = make(map[string]bool)
	plugins := make(map[capability.Key]*LoadedPlugin, len(order))
	for _, key := range order {
		plugins[key] = r.loaded[key]
	}
	r.mu.Unlock()

	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		key := order[i]
		lp := plugins[key]
		if lp == nil {
			continue
		}
		if err := r.lifecycle.stopOne(ctx, lp); err != nil {
			slog.Error("plugin shutdown failed, continuing",
				"plugin", key.String(),
				"error", err)
			errs = append(errs, err)
			continue
		}
		slog.Info("plugin stopped", "plugin", key.String())
	}
	return errors.Join(errs...)
}

// Unregister stops the plugin if active and destroys the loaded
// instance and its configuration. The descriptor stays catalogued: the
// plugin remains installed and may be loaded again.
func (r *Registry) Unregister(ctx context.Context, cat capability.Category, name string) error {
	key := capability.Key{Category: cat, Name: name}
	lock := r.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	lp := r.loaded[key]
	if lp == nil {
		r.mu.Unlock()
		return oops.Code("PLUGIN_NOT_FOUND").
			With("plugin", key.String()).
			Wrapf(ErrNotFound, "plugin %s is not loaded", key)
	}
	wasActive := r.activeSet[key]
	if wasActive {
		delete(r.activeSet, key)
		delete(r.activeNames, key.Name)
		for i, active := range r.active {
			if active == key {
				r.active = append(r.active[:i], r.active[i+1:]...)
				break
			}
		}
	}
	delete(r.loaded, key)
	delete(r.configs, key)
	r.mu.Unlock()

	if wasActive {
		if err := r.lifecycle.stopOne(ctx, lp); err != nil {
			slog.Warn("shutdown hook failed during unregister",
				"plugin", key.String(),
				"error", err)
		}
	}

	slog.Info("unregistered plugin", "plugin", key.String())
	return nil
}

// keyLock returns the per-key mutex serializing load and configure for
// one (category, name). Operations on different keys proceed fully in
// parallel.
func (r *Registry) keyLock(key capability.Key) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.loadLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		r.loadLocks[key] = lock
	}
	return lock
}
