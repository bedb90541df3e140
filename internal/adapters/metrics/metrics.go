// Package metrics implements the loader metrics port on Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.trai.ch/depot/internal/core/ports"
)

// Collector implements ports.Metrics with Prometheus collectors registered
// on its own registry, so tests and multiple loaders don't collide on the
// default registry.
type Collector struct {
	registry *prometheus.Registry

	loadsTotal    *prometheus.CounterVec
	loadDuration  prometheus.Histogram
	loadsInFlight prometheus.Gauge
	objectsLoaded prometheus.Gauge
	parseFailures *prometheus.CounterVec
	staleFiles    prometheus.Gauge
}

// New creates a Collector with a fresh registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		loadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "depot_loads_total",
			Help: "Finished object loads by outcome.",
		}, []string{"outcome"}),
		loadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "depot_load_duration_seconds",
			Help:    "Duration of finished object loads.",
			Buckets: prometheus.DefBuckets,
		}),
		loadsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "depot_loads_in_flight",
			Help: "Object loads currently running.",
		}),
		objectsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "depot_objects_loaded",
			Help: "Objects currently in service.",
		}),
		parseFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "depot_config_parse_failures_total",
			Help: "Config files that failed to parse, by path.",
		}, []string{"path"}),
		staleFiles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "depot_config_stale_files",
			Help: "Config files served from their last good contents after a failed rescan.",
		}),
	}
	c.registry.MustRegister(
		c.loadsTotal,
		c.loadDuration,
		c.loadsInFlight,
		c.objectsLoaded,
		c.parseFailures,
		c.staleFiles,
	)
	return c
}

// LoadSucceeded records one finished successful load.
func (c *Collector) LoadSucceeded(_ string, d time.Duration) {
	c.loadsTotal.WithLabelValues("success").Inc()
	c.loadDuration.Observe(d.Seconds())
}

// LoadFailed records one finished failed load.
func (c *Collector) LoadFailed(_ string, d time.Duration) {
	c.loadsTotal.WithLabelValues("failure").Inc()
	c.loadDuration.Observe(d.Seconds())
}

// LoadsInFlight adjusts the in-flight gauge.
func (c *Collector) LoadsInFlight(delta int) {
	c.loadsInFlight.Add(float64(delta))
}

// ObjectsLoaded sets the in-service gauge.
func (c *Collector) ObjectsLoaded(n int) {
	c.objectsLoaded.Set(float64(n))
}

// ConfigParseFailure records one config file that failed to parse.
func (c *Collector) ConfigParseFailure(path string) {
	c.parseFailures.WithLabelValues(path).Inc()
}

// StaleFilesRetained sets the stale-file gauge.
func (c *Collector) StaleFilesRetained(n int) {
	c.staleFiles.Set(float64(n))
}

// Handler returns the HTTP handler exposing the registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Gather exposes the registry for tests.
func (c *Collector) Gather() prometheus.Gatherer { return c.registry }

var _ ports.Metrics = (*Collector)(nil)
