// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fabriq Contributors

package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/fabriq/fabriq/internal/capability"
)

// DefaultHealthTimeout bounds a single health probe.
const DefaultHealthTimeout = 5 * time.Second

// monitor invokes health probes under a time budget and normalizes
// every failure mode into a report. It never raises: a probe that
// times out, errors, or panics becomes an unhealthy report.
type monitor struct {
	timeout time.Duration
}

// check probes one plugin. Plugins without a probe are reported healthy
// with an explanatory message. A plugin-reported state passes through
// verbatim; a plugin may legitimately report itself degraded.
func (m *monitor) check(ctx context.Context, p capability.Plugin) capability.HealthReport {
	checker, ok := p.(capability.HealthChecker)
	if !ok {
		return capability.HealthReport{State: capability.Healthy, Message: "no health probe"}
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	done := make(chan capability.HealthReport, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- capability.HealthReport{
					State:   capability.Unhealthy,
					Message: fmt.Sprintf("health probe panicked: %v", r),
				}
			}
		}()
		done <- checker.HealthCheck(probeCtx)
	}()

	select {
	case report := <-done:
		return report
	case <-probeCtx.Done():
		if ctx.Err() != nil {
			// Caller cancellation, not a budget overrun.
			return capability.HealthReport{
				State:   capability.Unhealthy,
				Message: fmt.Sprintf("health probe cancelled: %v", ctx.Err()),
			}
		}
		// The probe goroutine may keep running; the caller stops
		// waiting after the budget.
		return capability.HealthReport{
			State:   capability.Unhealthy,
			Message: fmt.Sprintf("health probe exceeded %s", m.timeout),
		}
	}
}
