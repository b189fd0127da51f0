// Package metrics tracks pipeline state: the latest reading per device and
// Prometheus counters for each stage.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"brewble/internal/model"
)

const namespace = "brewble"

// Collectors are the pipeline's Prometheus instruments. A nil *Collectors is
// valid and records nothing.
type Collectors struct {
	registry *prometheus.Registry

	adverts    *prometheus.CounterVec
	decoded    *prometheus.CounterVec
	dispatches *prometheus.CounterVec
	suppressed *prometheus.CounterVec
	cacheErr   prometheus.Counter
	dropped    prometheus.Counter
	latency    *prometheus.HistogramVec
}

func NewCollectors() *Collectors {
	c := &Collectors{
		registry: prometheus.NewRegistry(),
		adverts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "advertisements_total",
			Help:      "Advertisements received, by source.",
		}, []string{"source"}),
		decoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decoded_total",
			Help:      "Advertisements decoded into readings, by format.",
		}, []string{"format"}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_total",
			Help:      "Forward attempts to the ingestion endpoints.",
		}, []string{"kind", "status"}),
		suppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "suppressed_total",
			Help:      "Readings not forwarded because of the debounce interval.",
		}, []string{"kind"}),
		cacheErr: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_errors_total",
			Help:      "Failed status cache writes.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_dropped_total",
			Help:      "Readings dropped because the worker queue was full.",
		}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Latency of forward attempts.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"kind"}),
	}
	c.registry.MustRegister(c.adverts, c.decoded, c.dispatches, c.suppressed, c.cacheErr, c.dropped, c.latency)
	return c
}

func (c *Collectors) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

func (c *Collectors) Advertisement(source string) {
	if c == nil {
		return
	}
	if source == "" {
		source = "unknown"
	}
	c.adverts.WithLabelValues(source).Inc()
}

func (c *Collectors) Decoded(format model.Format) {
	if c == nil {
		return
	}
	c.decoded.WithLabelValues(string(format)).Inc()
}

func (c *Collectors) Dispatched(kind model.Kind, rec model.DispatchRecord) {
	if c == nil {
		return
	}
	c.dispatches.WithLabelValues(string(kind), string(rec.Status)).Inc()
	if rec.Duration > 0 {
		c.latency.WithLabelValues(string(kind)).Observe(rec.Duration.Seconds())
	}
}

func (c *Collectors) Suppressed(kind model.Kind) {
	if c == nil {
		return
	}
	c.suppressed.WithLabelValues(string(kind)).Inc()
}

func (c *Collectors) CacheError() {
	if c == nil {
		return
	}
	c.cacheErr.Inc()
}

func (c *Collectors) QueueDropped() {
	if c == nil {
		return
	}
	c.dropped.Inc()
}
