// Package metrics exposes the server's Prometheus instrumentation.
//
// Metrics are optional: nothing is registered until Enable is called, and
// every Record function is a no-op before that. The serve command enables
// them and mounts promhttp on the ops endpoint.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures metric registration.
type Config struct {
	// Namespace is the metrics namespace (default: "telcine").
	Namespace string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for session duration in seconds.
	// The defaults cover shorts through feature length.
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
}

// Option configures metric registration.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) { c.Namespace = namespace }
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) { c.ConstLabels = labels }
}

// WithBuckets sets the session duration histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) { c.Buckets = buckets }
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) { c.Registry = registry }
}

func defaultConfig() Config {
	return Config{
		Namespace: "telcine",
		Buckets:   []float64{1, 5, 15, 60, 300, 900, 3600},
		Registry:  prometheus.DefaultRegisterer,
	}
}

// metrics holds the registered collectors.
type metrics struct {
	sessionsTotal   *prometheus.CounterVec
	sessionsClosed  *prometheus.CounterVec
	sessionsRefused prometheus.Counter
	activeSessions  prometheus.Gauge
	framesSent      prometheus.Counter
	bytesSent       prometheus.Counter
	negotiations    *prometheus.CounterVec
	sessionSeconds  prometheus.Histogram
	acceptErrors    prometheus.Counter
}

var (
	global *metrics
	mu     sync.Mutex
)

// Enable registers the collectors. Safe to call more than once; only the
// first call registers.
func Enable(opts ...Option) {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	mu.Lock()
	defer mu.Unlock()
	if global == nil {
		global = register(config)
	}
}

func register(config Config) *metrics {
	factory := promauto.With(config.Registry)

	return &metrics{
		sessionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "sessions_total",
			Help:        "Total playback sessions started, by transport",
			ConstLabels: config.ConstLabels,
		}, []string{"transport"}),

		sessionsClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "sessions_closed_total",
			Help:        "Total sessions closed, by reason",
			ConstLabels: config.ConstLabels,
		}, []string{"reason"}),

		sessionsRefused: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "sessions_refused_total",
			Help:        "Connections turned away at the session limit",
			ConstLabels: config.ConstLabels,
		}),

		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "active_sessions",
			Help:        "Sessions currently watching",
			ConstLabels: config.ConstLabels,
		}),

		framesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "frames_sent_total",
			Help:        "Movie frames written to clients",
			ConstLabels: config.ConstLabels,
		}),

		bytesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "bytes_sent_total",
			Help:        "Payload bytes written to clients",
			ConstLabels: config.ConstLabels,
		}),

		negotiations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "negotiations_total",
			Help:        "Telnet option negotiations, by outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"outcome"}),

		sessionSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Name:        "session_duration_seconds",
			Help:        "Session lifetime from accept to close",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		acceptErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "accept_errors_total",
			Help:        "Accept loop errors that were logged and retried",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// RecordSessionStart records a session starting on the given transport.
func RecordSessionStart(transport string) {
	if global != nil {
		global.sessionsTotal.WithLabelValues(transport).Inc()
		global.activeSessions.Inc()
	}
}

// RecordSessionEnd records a session closing with its reason and lifetime.
func RecordSessionEnd(reason string, seconds float64) {
	if global != nil {
		global.sessionsClosed.WithLabelValues(reason).Inc()
		global.activeSessions.Dec()
		global.sessionSeconds.Observe(seconds)
	}
}

// RecordSessionRefused records a connection refused at the session limit.
func RecordSessionRefused() {
	if global != nil {
		global.sessionsRefused.Inc()
	}
}

// RecordFrame records one frame reaching a client.
func RecordFrame() {
	if global != nil {
		global.framesSent.Inc()
	}
}

// RecordBytes records payload bytes written to a client.
func RecordBytes(n int) {
	if global != nil {
		global.bytesSent.Add(float64(n))
	}
}

// RecordNegotiation records a negotiation outcome: "complete", "partial",
// or "failed".
func RecordNegotiation(outcome string) {
	if global != nil {
		global.negotiations.WithLabelValues(outcome).Inc()
	}
}

// RecordAcceptError records a recovered accept-loop error.
func RecordAcceptError() {
	if global != nil {
		global.acceptErrors.Inc()
	}
}
