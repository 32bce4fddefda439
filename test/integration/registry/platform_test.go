// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fabriq Contributors

//go:build integration

package registry_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/fabriq/fabriq/internal/capability"
	"github.com/fabriq/fabriq/internal/plugin"
	"github.com/fabriq/fabriq/internal/registry"
)

// stackPlugin is a full-featured test plugin recording lifecycle events
// into a shared journal.
type stackPlugin struct {
	capability.Base
	journal *journal
	schema  *capability.Schema
	failOn  string

	mu      sync.Mutex
	running bool
}

type journal struct {
	mu     sync.Mutex
	events []string
}

func (j *journal) record(event string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, event)
}

func (j *journal) all() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, len(j.events))
	copy(out, j.events)
	return out
}

func (p *stackPlugin) ConfigSchema() *capability.Schema { return p.schema }

func (p *stackPlugin) Start(context.Context) error {
	if p.failOn == "start" {
		return errors.New("induced start failure")
	}
	p.mu.Lock()
	p.running = true
	p.mu.Unlock()
	p.journal.record("start " + p.Name())
	return nil
}

func (p *stackPlugin) Stop(context.Context) error {
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	p.journal.record("stop " + p.Name())
	return nil
}

func (p *stackPlugin) HealthCheck(context.Context) capability.HealthReport {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return capability.HealthReport{State: capability.Degraded, Message: "not running"}
	}
	return capability.HealthReport{State: capability.Healthy}
}

var _ = Describe("Platform bring-up", func() {
	var (
		ctx        context.Context
		j          *journal
		table      *plugin.FactoryTable
		pluginsDir string
	)

	newStack := func(cat capability.Category, name string, deps ...string) *stackPlugin {
		return &stackPlugin{
			Base: capability.Base{
				PluginName: name,
				Kind:       cat,
				SemVer:     "1.0.0",
				Requires:   "1.0",
				DependsOn:  deps,
			},
			journal: j,
		}
	}

	writeManifest := func(dir, content string) {
		pluginDir := filepath.Join(pluginsDir, dir)
		Expect(os.MkdirAll(pluginDir, 0o750)).To(Succeed())
		manifestPath := filepath.Join(pluginDir, plugin.ManifestFileName)
		Expect(os.WriteFile(manifestPath, []byte(content), 0o600)).To(Succeed())
	}

	BeforeEach(func() {
		ctx = context.Background()
		j = &journal{}
		table = plugin.NewFactoryTable()
		pluginsDir = GinkgoT().TempDir()
	})

	newRegistry := func() *registry.Registry {
		r, err := registry.New(registry.WithSources(
			plugin.NewBuiltinSource(table),
			plugin.NewManifestSource(pluginsDir, table),
		))
		Expect(err).NotTo(HaveOccurred())
		return r
	}

	It("discovers, configures, activates in order, and shuts down in reverse", func() {
		store := newStack(capability.Storage, "localfs")
		store.schema = &capability.Schema{
			Fields: map[string]capability.Field{
				"root": {Type: capability.StringField, Required: true},
			},
		}
		cat := newStack(capability.Catalog, "memcatalog", "localfs")
		engine := newStack(capability.Compute, "duckdb", "memcatalog")

		Expect(table.Register(capability.Storage, "localfs", func() capability.Plugin { return store })).To(Succeed())
		Expect(table.Register(capability.Catalog, "memcatalog", func() capability.Plugin { return cat })).To(Succeed())
		Expect(table.Register(capability.Compute, "duckdb", func() capability.Plugin { return engine })).To(Succeed())

		r := newRegistry()
		Expect(r.DiscoverAll(ctx)).To(Succeed())

		all := r.ListAll()
		Expect(all).To(HaveLen(11))
		Expect(all[capability.Storage]).To(ConsistOf("localfs"))

		cfg, err := r.Configure(ctx, capability.Storage, "localfs", map[string]any{"root": "/srv/data"})
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Values()).To(HaveKeyWithValue("root", "/srv/data"))

		result, err := r.Activate(ctx,
			capability.Key{Category: capability.Compute, Name: "duckdb"},
			capability.Key{Category: capability.Catalog, Name: "memcatalog"},
			capability.Key{Category: capability.Storage, Name: "localfs"},
		)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.OK()).To(BeTrue())

		reports := r.HealthCheckAll(ctx)
		Expect(reports).To(HaveLen(3))
		for key, report := range reports {
			Expect(report.State).To(Equal(capability.Healthy), "plugin %s", key)
		}

		Expect(r.ShutdownAll(ctx)).To(Succeed())

		Expect(j.all()).To(Equal([]string{
			"start localfs", "start memcatalog", "start duckdb",
			"stop duckdb", "stop memcatalog", "stop localfs",
		}))
	})

	It("starts the platform despite broken installed plugins", func() {
		writeManifest("good", "name: transformer\ncategory: transform\nversion: 1.0.0\nplatform: \"1.0\"\n")
		writeManifest("broken", "category: [not yaml")
		writeManifest("wrong-category", "name: odd\ncategory: warehouse\nversion: 1.0.0\nplatform: \"1.0\"\n")

		good := newStack(capability.Transform, "transformer")
		Expect(table.Register(capability.Transform, "transformer", func() capability.Plugin { return good })).To(Succeed())

		r := newRegistry()
		Expect(r.DiscoverAll(ctx)).To(Succeed())

		Expect(r.List(capability.Transform)).To(ConsistOf("transformer"))

		lp, err := r.Get(ctx, capability.Transform, "transformer")
		Expect(err).NotTo(HaveOccurred())
		Expect(lp.Name()).To(Equal("transformer"))
	})

	It("activates fail-forward when one plugin in the set fails", func() {
		store := newStack(capability.Storage, "localfs")
		store.failOn = "start"
		cat := newStack(capability.Catalog, "memcatalog", "localfs")
		tel := newStack(capability.Telemetry, "otel-export")

		Expect(table.Register(capability.Storage, "localfs", func() capability.Plugin { return store })).To(Succeed())
		Expect(table.Register(capability.Catalog, "memcatalog", func() capability.Plugin { return cat })).To(Succeed())
		Expect(table.Register(capability.Telemetry, "otel-export", func() capability.Plugin { return tel })).To(Succeed())

		result, err := newRegistry().Activate(ctx,
			capability.Key{Category: capability.Storage, Name: "localfs"},
			capability.Key{Category: capability.Catalog, Name: "memcatalog"},
			capability.Key{Category: capability.Telemetry, Name: "otel-export"},
		)
		Expect(err).To(HaveOccurred())
		Expect(result).NotTo(BeNil())
		Expect(result.Started).To(ConsistOf(capability.Key{Category: capability.Telemetry, Name: "otel-export"}))
		Expect(result.Failed).To(HaveKey(capability.Key{Category: capability.Storage, Name: "localfs"}))
		Expect(result.Skipped).To(HaveKey(capability.Key{Category: capability.Catalog, Name: "memcatalog"}))
	})

	It("loads manifest plugins through their factory binding", func() {
		writeManifest("iceberg", fmt.Sprintf(
			"name: iceberg\ncategory: catalog\nversion: 0.9.0\nplatform: \"1.2\"\nbinding: %s\n",
			"iceberg-rest"))

		impl := newStack(capability.Catalog, "iceberg-rest")
		Expect(table.Register(capability.Catalog, "iceberg-rest", func() capability.Plugin { return impl })).To(Succeed())

		r := newRegistry()
		lp, err := r.Get(ctx, capability.Catalog, "iceberg")
		Expect(err).NotTo(HaveOccurred())
		Expect(lp.Name()).To(Equal("iceberg"))
		Expect(lp.Version()).To(Equal("0.9.0"))

		result, err := r.Activate(ctx, capability.Key{Category: capability.Catalog, Name: "iceberg"})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.OK()).To(BeTrue())
		Expect(j.all()).To(ContainElement("start iceberg-rest"))
	})
})
