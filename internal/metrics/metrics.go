// Package metrics provides Prometheus metrics for the listings server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "listings"

// Metrics holds the application's collectors and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	// HTTPRequestsTotal counts requests.
	// Labels: method, route, status
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPRequestDuration tracks request latency by route.
	HTTPRequestDuration *prometheus.HistogramVec

	// UpsertsTotal counts listing creates and updates.
	// Labels: op (create, update), outcome (ok, geocode_failed, persist_failed, ...)
	UpsertsTotal *prometheus.CounterVec

	// GeocodeLookupsTotal counts forward geocoding calls.
	// Labels: outcome (matched, no_match, error, skipped)
	GeocodeLookupsTotal *prometheus.CounterVec
}

// New creates a private registry with Go runtime and process collectors plus
// the application metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		UpsertsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upserts_total",
				Help:      "Total number of listing create and update attempts by outcome",
			},
			[]string{"op", "outcome"},
		),
		GeocodeLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "geocode_lookups_total",
				Help:      "Total number of forward geocoding lookups by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// ObserveUpsert records a listing workflow outcome.
func (m *Metrics) ObserveUpsert(op, outcome string) {
	m.UpsertsTotal.WithLabelValues(op, outcome).Inc()
}

// ObserveGeocode records a geocoder outcome.
func (m *Metrics) ObserveGeocode(outcome string) {
	m.GeocodeLookupsTotal.WithLabelValues(outcome).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
