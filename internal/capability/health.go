// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fabriq Contributors

package capability

// HealthState classifies the outcome of a health probe.
type HealthState string

// Health states reported by plugins or synthesized by the monitor.
const (
	Healthy   HealthState = "healthy"
	Degraded  HealthState = "degraded"
	Unhealthy HealthState = "unhealthy"
)

// HealthReport is the result of one health probe. Reports are generated
// fresh per request and never cached.
type HealthReport struct {
	State   HealthState    `json:"state"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// OK reports whether the state is Healthy.
func (r HealthReport) OK() bool {
	return r.State == Healthy
}
