// Package metrics exposes Prometheus collectors for the canvas server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reasons reported by RejectedUpdate.
const (
	ReasonMalformed    = "malformed"
	ReasonInvalidColor = "invalid_color"
	ReasonOutOfBounds  = "out_of_bounds"
)

// Config configures the collectors.
type Config struct {
	// Namespace is the metrics namespace (default: "canvas").
	Namespace string

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

type Option func(*Config)

func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	online          prometheus.Gauge
	pixelsPainted   prometheus.Counter
	updatesRejected *prometheus.CounterVec
	sendFailures    prometheus.Counter
	snapshotBytes   prometheus.Histogram
}

func New(opts ...Option) *Metrics {
	config := Config{
		Namespace: "canvas",
		Registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)

	return &Metrics{
		online: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Name:      "connections_online",
			Help:      "Number of registered client connections",
		}),

		pixelsPainted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "pixels_painted_total",
			Help:      "Total number of accepted pixel updates",
		}),

		updatesRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "updates_rejected_total",
			Help:      "Total number of dropped pixel updates by reason",
		}, []string{"reason"}),

		sendFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "send_failures_total",
			Help:      "Total number of messages that could not be queued for a connection",
		}),

		snapshotBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "snapshot_bytes",
			Help:      "Size of full-state messages sent to new connections",
			Buckets:   prometheus.ExponentialBuckets(1<<10, 4, 8),
		}),
	}
}

func (m *Metrics) SetOnline(n int) {
	if m == nil {
		return
	}
	m.online.Set(float64(n))
}

func (m *Metrics) PixelPainted() {
	if m == nil {
		return
	}
	m.pixelsPainted.Inc()
}

func (m *Metrics) RejectedUpdate(reason string) {
	if m == nil {
		return
	}
	m.updatesRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) SendFailed() {
	if m == nil {
		return
	}
	m.sendFailures.Inc()
}

func (m *Metrics) SnapshotSent(size int) {
	if m == nil {
		return
	}
	m.snapshotBytes.Observe(float64(size))
}
