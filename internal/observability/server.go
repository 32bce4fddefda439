// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fabriq Contributors

// Package observability provides HTTP endpoints for metrics and health
// checks over the plugin registry.
package observability

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"

	"github.com/fabriq/fabriq/internal/capability"
)

// ReadinessChecker returns whether the service is ready to accept
// traffic (discovery complete, activation attempted).
type ReadinessChecker func() bool

// HealthSource produces fresh per-plugin health reports, keyed
// "category:name". Typically Registry.HealthCheckAll.
type HealthSource func(ctx context.Context) map[string]capability.HealthReport

// Metrics contains custom Prometheus metrics for the plugin registry.
type Metrics struct {
	PluginsDiscovered *prometheus.GaugeVec
	PluginsLoaded     *prometheus.GaugeVec
	ActivationsTotal  *prometheus.CounterVec
	HealthChecksTotal *prometheus.CounterVec
}

// NewMetrics creates and registers the registry metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PluginsDiscovered: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fabriq_plugins_discovered",
				Help: "Number of discovered plugin descriptors by category",
			},
			[]string{"category"},
		),
		PluginsLoaded: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fabriq_plugins_loaded",
				Help: "Number of loaded plugins by category",
			},
			[]string{"category"},
		),
		ActivationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fabriq_plugin_activations_total",
				Help: "Total plugin activation attempts by result",
			},
			[]string{"result"},
		),
		HealthChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fabriq_plugin_health_checks_total",
				Help: "Total plugin health probes by reported state",
			},
			[]string{"state"},
		),
	}

	reg.MustRegister(m.PluginsDiscovered)
	reg.MustRegister(m.PluginsLoaded)
	reg.MustRegister(m.ActivationsTotal)
	reg.MustRegister(m.HealthChecksTotal)

	return m
}

// RecordHealthReports feeds a health-check result map into the health
// state counter.
func (m *Metrics) RecordHealthReports(reports map[string]capability.HealthReport) {
	for _, report := range reports {
		m.HealthChecksTotal.WithLabelValues(string(report.State)).Inc()
	}
}

// Server provides HTTP endpoints for observability: Prometheus metrics,
// liveness/readiness probes, and per-plugin health.
type Server struct {
	addr       string
	listener   net.Listener
	httpServer *http.Server
	registry   *prometheus.Registry
	metrics    *Metrics
	isReady    ReadinessChecker
	health     HealthSource
	running    atomic.Bool
}

// NewServer creates a new observability server.
// addr: listen address in "host:port" format (":9100" for all
// interfaces). health may be nil, disabling the plugin health endpoint.
func NewServer(addr string, readinessChecker ReadinessChecker, health HealthSource) *Server {
	// Dedicated registry to avoid polluting the global one
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	metrics := NewMetrics(registry)

	return &Server{
		addr:     addr,
		registry: registry,
		metrics:  metrics,
		isReady:  readinessChecker,
		health:   health,
	}
}

// Metrics returns the custom metrics for recording registry events.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Start begins serving observability endpoints. It returns an error
// channel that receives any error from the HTTP server after it starts;
// the channel is closed when the server stops gracefully.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("observability server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	mux.HandleFunc("/healthz/liveness", s.handleLiveness)
	mux.HandleFunc("/healthz/readiness", s.handleReadiness)
	mux.HandleFunc("/healthz/plugins", s.handlePluginHealth)

	httpSrv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		// Use local httpSrv to avoid race with subsequent Start() calls
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			slog.Error("observability server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	slog.Info("observability server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the observability server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			// Restore running state on failure so the server can be stopped again
			s.running.Store(true)
			return oops.With("operation", "shutdown_observability_server").Wrap(err)
		}
	}

	slog.Info("observability server stopped")
	return nil
}

// Addr returns the address the server is listening on, or "" when not
// running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// handleLiveness returns 200 if the process is running.
func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // health check write error is acceptable, client may disconnect
	w.Write([]byte("ok\n"))
}

// handleReadiness returns 200 when ready, 503 otherwise.
func (s *Server) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if s.isReady == nil || s.isReady() {
		w.WriteHeader(http.StatusOK)
		//nolint:errcheck // health check write error is acceptable, client may disconnect
		w.Write([]byte("ok\n"))
		return
	}

	w.WriteHeader(http.StatusServiceUnavailable)
	//nolint:errcheck // health check write error is acceptable, client may disconnect
	w.Write([]byte("not ready\n"))
}

// handlePluginHealth runs the health source and returns the per-plugin
// reports as JSON. 200 when every plugin is healthy or degraded, 503
// when any is unhealthy.
func (s *Server) handlePluginHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if s.health == nil {
		w.WriteHeader(http.StatusNotFound)
		//nolint:errcheck // health check write error is acceptable, client may disconnect
		w.Write([]byte(`{"error":"plugin health not configured"}`))
		return
	}

	reports := s.health(r.Context())
	s.metrics.RecordHealthReports(reports)

	status := http.StatusOK
	for _, report := range reports {
		if report.State == capability.Unhealthy {
			status = http.StatusServiceUnavailable
			break
		}
	}

	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(reports); err != nil {
		slog.Debug("failed to write plugin health response", "error", err)
	}
}
