// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package metrics exposes Prometheus collectors for the content API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/olegiv/sitecms/internal/cache"
	"github.com/olegiv/sitecms/internal/docstore"
)

const namespace = "sitecms"

// Metrics holds the collectors registered on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	reads        *prometheus.CounterVec
	writes       *prometheus.CounterVec
	requests     *prometheus.CounterVec
	requestDur   *prometheus.HistogramVec
	warmFailures *prometheus.CounterVec
	logEvents    *prometheus.CounterVec
}

// New creates and registers the collectors, including the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_reads_total",
			Help:      "Collection list reads by source (cache or repository)",
		}, []string{"collection", "source"}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_writes_total",
			Help:      "Collection writes by action and outcome",
		}, []string{"collection", "action", "outcome"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		requestDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"method", "route"}),
		warmFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_warm_failures_total",
			Help:      "Failed scheduled cache warm-ups by collection",
		}, []string{"collection"}),
		logEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_events_total",
			Help:      "Warning and error log records by level and category",
		}, []string{"level", "category"}),
	}

	m.registry.MustRegister(
		m.reads, m.writes, m.requests, m.requestDur, m.warmFailures, m.logEvents,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveRead implements docstore.Observer.
func (m *Metrics) ObserveRead(collection, source string) {
	m.reads.WithLabelValues(collection, source).Inc()
}

// ObserveWrite implements docstore.Observer.
func (m *Metrics) ObserveWrite(collection string, action docstore.Action, outcome string) {
	m.writes.WithLabelValues(collection, string(action), outcome).Inc()
}

// WarmFailed counts a failed cache warm-up.
func (m *Metrics) WarmFailed(collection string) {
	m.warmFailures.WithLabelValues(collection).Inc()
}

// LogEvent implements logging.Sink.
func (m *Metrics) LogEvent(level, category string) {
	m.logEvents.WithLabelValues(level, category).Inc()
}

// RegisterCacheStats exports the counters of a cache backend.
func (m *Metrics) RegisterCacheStats(backend string, sp cache.StatsProvider) {
	labels := prometheus.Labels{"backend": backend}
	m.registry.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "cache_hits_total",
			Help:        "Cache hits",
			ConstLabels: labels,
		}, func() float64 { return float64(sp.Stats().Hits) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "cache_misses_total",
			Help:        "Cache misses",
			ConstLabels: labels,
		}, func() float64 { return float64(sp.Stats().Misses) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "cache_items",
			Help:        "Entries currently cached",
			ConstLabels: labels,
		}, func() float64 { return float64(sp.Stats().Items) }),
	)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware counts requests by their chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.requestDur.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

var _ docstore.Observer = (*Metrics)(nil)
