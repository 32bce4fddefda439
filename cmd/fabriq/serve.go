// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fabriq Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fabriq/fabriq/internal/capability"
	"github.com/fabriq/fabriq/internal/config"
	"github.com/fabriq/fabriq/internal/logging"
	"github.com/fabriq/fabriq/internal/observability"
	"github.com/fabriq/fabriq/internal/plugin"
	"github.com/fabriq/fabriq/internal/registry"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the platform daemon",
		Long: `Start the platform daemon: discover installed capability plugins,
apply their configuration, activate the configured set in dependency
order, and serve metrics and health endpoints until shut down.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	// Flag names mirror config keys so posflag overrides line up.
	cmd.Flags().String("plugins.dir", "", "installed plugins directory")
	cmd.Flags().String("metrics.addr", "", "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("log.format", "", "log format (json or text)")
	cmd.Flags().String("log.level", "", "log level (debug, info, warn, error)")

	return cmd
}

// runServe runs the daemon until a shutdown signal arrives.
func runServe(ctx context.Context, cfg *config.Config) error {
	logging.SetDefault("fabriq", version, cfg.Log.Format, logging.ParseLevel(cfg.Log.Level))

	slog.Info("starting fabriq",
		"platform_version", registry.PlatformVersion,
		"plugins_dir", cfg.Plugins.Dir)

	sources := []plugin.ExtensionSource{
		plugin.NewBuiltinSource(plugin.Builtins()),
		plugin.NewManifestSource(cfg.Plugins.Dir, plugin.Builtins(),
			plugin.WithIgnorePatterns(cfg.Plugins.Ignore...)),
	}
	reg, err := registry.New(registry.WithSources(sources...))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := reg.DiscoverAll(ctx); err != nil {
		return err
	}

	var ready atomic.Bool
	var obsServer *observability.Server
	if cfg.Metrics.Addr != "" {
		obsServer = observability.NewServer(cfg.Metrics.Addr, ready.Load, reg.HealthCheckAll)
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return err
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")

		for cat, names := range reg.ListAll() {
			obsServer.Metrics().PluginsDiscovered.WithLabelValues(string(cat)).Set(float64(len(names)))
		}
	}

	// Invalid configuration is a startup error: activating a plugin
	// with settings the operator got wrong helps no one.
	for keyStr, settings := range cfg.Plugins.Settings {
		key, err := capability.ParseKey(keyStr)
		if err != nil {
			return err
		}
		if _, err := reg.Configure(ctx, key.Category, key.Name, settings); err != nil {
			return err
		}
	}

	if len(cfg.Plugins.Activate) > 0 {
		keys := make([]capability.Key, 0, len(cfg.Plugins.Activate))
		for _, keyStr := range cfg.Plugins.Activate {
			key, err := capability.ParseKey(keyStr)
			if err != nil {
				return err
			}
			keys = append(keys, key)
		}

		// Fail-forward: a failed plugin keeps its dependents down but
		// the platform still starts with whatever did activate.
		result, err := reg.Activate(ctx, keys...)
		if obsServer != nil {
			outcome := "success"
			if err != nil {
				outcome = "failure"
			}
			obsServer.Metrics().ActivationsTotal.WithLabelValues(outcome).Inc()
		}
		switch {
		case err != nil && result == nil:
			// Resolution failed outright (missing dependency or cycle);
			// nothing was started.
			slog.Error("plugin activation failed", "error", err)
		case err != nil:
			slog.Error("partial plugin activation",
				"started", len(result.Started),
				"failed", len(result.Failed),
				"skipped", len(result.Skipped),
				"error", err)
		}
	}

	ready.Store(true)
	slog.Info("fabriq ready")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*registry.DefaultStopTimeout)
	defer shutdownCancel()

	if err := reg.ShutdownAll(shutdownCtx); err != nil {
		slog.Warn("errors during plugin shutdown", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			slog.Warn("error stopping observability server", "error", err)
		}
	}

	slog.Info("shutdown complete")
	return nil
}

// monitorServerErrors cancels the context when a server reports an
// error, so server failures trigger graceful shutdown of the process.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}
