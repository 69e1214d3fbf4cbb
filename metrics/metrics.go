// Package metrics records socket and server activity.
//
// Sockets and servers report through the Recorder interface. Nop is the
// default; Prometheus exports the same figures through client_golang.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Direction labels a connection as accepted by a server or dialed.
type Direction string

const (
	Inbound  Direction = "inbound"
	Outbound Direction = "outbound"
)

// Recorder receives connection lifecycle and traffic figures. Implementations
// must be safe for concurrent use.
type Recorder interface {
	ConnectionOpened(dir Direction)
	ConnectionClosed(dir Direction, hadError bool)
	ConnectionDropped(reason string)
	ConnectLatency(d time.Duration)
	BytesRead(n int)
	BytesWritten(n int)
	TransportError(phase string)
}

// Nop discards everything.
type Nop struct{}

func (Nop) ConnectionOpened(Direction)       {}
func (Nop) ConnectionClosed(Direction, bool) {}
func (Nop) ConnectionDropped(string)         {}
func (Nop) ConnectLatency(time.Duration)     {}
func (Nop) BytesRead(int)                    {}
func (Nop) BytesWritten(int)                 {}
func (Nop) TransportError(string)            {}

// OrNop returns r, or Nop when r is nil.
func OrNop(r Recorder) Recorder {
	if r == nil {
		return Nop{}
	}
	return r
}

// Config configures the Prometheus recorder.
type Config struct {
	// Namespace is the metrics namespace (default: "tcpnet").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for connect latency.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures the Prometheus recorder.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the connect latency histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "tcpnet",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Prometheus is a Recorder backed by Prometheus collectors.
type Prometheus struct {
	opened         *prometheus.CounterVec
	closed         *prometheus.CounterVec
	active         *prometheus.GaugeVec
	dropped        *prometheus.CounterVec
	connectLatency prometheus.Histogram
	bytesRead      prometheus.Counter
	bytesWritten   prometheus.Counter
	errors         *prometheus.CounterVec
}

// NewPrometheus registers the tcpnet collectors. Registering twice against
// the same registry panics, as promauto does.
func NewPrometheus(opts ...Option) *Prometheus {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Prometheus{
		opened: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "connections_opened_total",
			Help:        "Total number of established connections",
			ConstLabels: config.ConstLabels,
		}, []string{"direction"}),

		closed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "connections_closed_total",
			Help:        "Total number of closed connections",
			ConstLabels: config.ConstLabels,
		}, []string{"direction", "had_error"}),

		active: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "connections_active",
			Help:        "Number of open connections",
			ConstLabels: config.ConstLabels,
		}, []string{"direction"}),

		dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "connections_dropped_total",
			Help:        "Total number of inbound connections dropped by a server",
			ConstLabels: config.ConstLabels,
		}, []string{"reason"}),

		connectLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "connect_duration_seconds",
			Help:        "Outbound connect duration in seconds, lookup included",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		bytesRead: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "bytes_read_total",
			Help:        "Total bytes received",
			ConstLabels: config.ConstLabels,
		}),

		bytesWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "bytes_written_total",
			Help:        "Total bytes handed to the transport",
			ConstLabels: config.ConstLabels,
		}),

		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "transport_errors_total",
			Help:        "Total number of transport errors",
			ConstLabels: config.ConstLabels,
		}, []string{"phase"}),
	}
}

func (p *Prometheus) ConnectionOpened(dir Direction) {
	p.opened.WithLabelValues(string(dir)).Inc()
	p.active.WithLabelValues(string(dir)).Inc()
}

func (p *Prometheus) ConnectionClosed(dir Direction, hadError bool) {
	p.closed.WithLabelValues(string(dir), strconv.FormatBool(hadError)).Inc()
	p.active.WithLabelValues(string(dir)).Dec()
}

func (p *Prometheus) ConnectionDropped(reason string) {
	p.dropped.WithLabelValues(reason).Inc()
}

func (p *Prometheus) ConnectLatency(d time.Duration) {
	p.connectLatency.Observe(d.Seconds())
}

func (p *Prometheus) BytesRead(n int) {
	p.bytesRead.Add(float64(n))
}

func (p *Prometheus) BytesWritten(n int) {
	p.bytesWritten.Add(float64(n))
}

func (p *Prometheus) TransportError(phase string) {
	p.errors.WithLabelValues(phase).Inc()
}
