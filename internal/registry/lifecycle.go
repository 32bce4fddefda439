// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fabriq Contributors

package registry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/fabriq/fabriq/internal/capability"
)

// Default time budgets for lifecycle hooks.
const (
	DefaultStartTimeout = 30 * time.Second
	DefaultStopTimeout  = 30 * time.Second
)

// lifecycle sequences startup and shutdown hooks under time budgets.
// Sequencing is strictly ordered and never parallelized: activation
// order encodes a correctness dependency.
type lifecycle struct {
	startTimeout time.Duration
	stopTimeout  time.Duration
}

// ActivationResult records the outcome of one activation run.
type ActivationResult struct {
	// RunID correlates the run's log lines.
	RunID string
	// Started lists keys whose startup hook completed, in activation
	// order.
	Started []capability.Key
	// Failed maps keys whose startup hook returned an error, panicked,
	// or exceeded its budget.
	Failed map[capability.Key]error
	// Skipped maps keys that were not attempted because a plugin they
	// depend on (directly or transitively) failed or was skipped.
	Skipped map[capability.Key]string
}

// OK reports whether every plugin in the run started.
func (r *ActivationResult) OK() bool {
	return len(r.Failed) == 0 && len(r.Skipped) == 0
}

// activate invokes startup hooks strictly in the given order. A failed
// plugin does not roll back plugins already started, but poisons its
// dependents: nothing that depends on a failed or skipped plugin is
// attempted (fail-forward, don't cascade).
func (l *lifecycle) activate(ctx context.Context, ordered []*LoadedPlugin) *ActivationResult {
	result := &ActivationResult{
		RunID:   ulid.Make().String(),
		Failed:  make(map[capability.Key]error),
		Skipped: make(map[capability.Key]string),
	}

	poisoned := make(map[string]string) // plugin name -> cause description
	for _, p := range ordered {
		if cause := poisonedBy(p, poisoned); cause != "" {
			reason := "depends on " + cause
			result.Skipped[p.Key()] = reason
			poisoned[p.Name()] = cause
			slog.Warn("skipping plugin activation",
				"run_id", result.RunID,
				"plugin", p.Key().String(),
				"reason", reason)
			continue
		}

		if err := l.startOne(ctx, p); err != nil {
			result.Failed[p.Key()] = err
			poisoned[p.Name()] = p.Name() + " (failed)"
			slog.Error("plugin startup failed",
				"run_id", result.RunID,
				"plugin", p.Key().String(),
				"error", err)
			continue
		}

		result.Started = append(result.Started, p.Key())
		slog.Info("plugin activated",
			"run_id", result.RunID,
			"plugin", p.Key().String(),
			"version", p.Version())
	}
	return result
}

// poisonedBy returns the cause description when any of p's declared
// dependencies failed or was skipped earlier in the run.
func poisonedBy(p *LoadedPlugin, poisoned map[string]string) string {
	for _, dep := range p.Dependencies() {
		if cause, bad := poisoned[dep]; bad {
			return cause
		}
	}
	return ""
}

// startOne runs a plugin's startup hook under the start budget. Plugins
// without a hook activate immediately.
func (l *lifecycle) startOne(ctx context.Context, p *LoadedPlugin) error {
	starter, ok := p.Impl().(capability.Starter)
	if !ok {
		return nil
	}
	return l.runHook(ctx, l.startTimeout, "start", p.Key(), starter.Start)
}

// stopOne runs a plugin's shutdown hook under the stop budget.
func (l *lifecycle) stopOne(ctx context.Context, p *LoadedPlugin) error {
	stopper, ok := p.Impl().(capability.Stopper)
	if !ok {
		return nil
	}
	return l.runHook(ctx, l.stopTimeout, "stop", p.Key(), stopper.Stop)
}

// runHook invokes hook with a deadline. On timeout the caller gives up
// waiting and the hook goroutine is left to finish in the background;
// Go cannot forcibly preempt it. Panics inside the hook are converted
// to errors rather than taking down the registry.
func (l *lifecycle) runHook(ctx context.Context, budget time.Duration, op string, key capability.Key, hook func(context.Context) error) error {
	hookCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("%s hook panicked: %v", op, r)
			}
		}()
		done <- hook(hookCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			return oops.Code("PLUGIN_HOOK_FAILED").
				With("plugin", key.String()).
				With("operation", op).
				Wrap(err)
		}
		return nil
	case <-hookCtx.Done():
		if ctx.Err() != nil {
			// Caller cancellation, not a budget overrun.
			return oops.Code("PLUGIN_HOOK_FAILED").
				With("plugin", key.String()).
				With("operation", op).
				Wrap(ctx.Err())
		}
		return oops.Code("PLUGIN_TIMEOUT").
			With("plugin", key.String()).
			With("operation", op).
			With("budget", budget.String()).
			Wrapf(ErrTimeout, "%s hook exceeded %s", op, budget)
	}
}
