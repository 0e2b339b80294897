// Package telemetry exports Prometheus metrics for fetch attempts, refresh
// cycles, sensors and readiness flags.
package telemetry

import (
	"math"
	"net/http"

	"codeberg.org/mutker/tempstation/internal/errors"
	"codeberg.org/mutker/tempstation/internal/scheduler"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns its registry so several instances can coexist in tests.
type Collector struct {
	cfg       Config
	registry  *prometheus.Registry
	attempts  *prometheus.CounterVec
	cycles    *prometheus.CounterVec
	truncated prometheus.Counter
	duration  prometheus.Histogram
	light     prometheus.Gauge
}

func New(cfg Config) (*Collector, error) {
	errFactory := errors.New()

	if cfg.Namespace == "" {
		cfg.Namespace = defaultNamespace
	}
	if len(cfg.DurationBuckets) == 0 {
		cfg.DurationBuckets = DefaultConfig().DurationBuckets
	}
	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		cfg:      cfg,
		registry: reg,
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "weather",
			Name:      "attempts_total",
			Help:      "Fetch attempts by outcome.",
		}, []string{"outcome"}),
		cycles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "weather",
			Name:      "cycles_total",
			Help:      "Refresh cycles by result.",
		}, []string{"result"}),
		truncated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "weather",
			Name:      "truncated_bytes_total",
			Help:      "Body bytes dropped beyond the receive buffer capacity.",
		}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: "weather",
			Name:      "attempt_duration_seconds",
			Help:      "Duration of fetch attempts.",
			Buckets:   cfg.DurationBuckets,
		}),
		light: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: "sensor",
			Name:      "light_level",
			Help:      "Current light level index.",
		}),
	}, nil
}

func (c *Collector) RecordAttempt(a scheduler.Attempt) {
	c.attempts.WithLabelValues(a.Outcome.Kind.String()).Inc()
	c.duration.Observe(a.Outcome.Duration.Seconds())
	if a.Outcome.Dropped > 0 {
		c.truncated.Add(float64(a.Outcome.Dropped))
	}
}

func (c *Collector) RecordCycle(cy scheduler.Cycle) {
	result := "exhausted"
	if cy.Success {
		result = "success"
	}
	c.cycles.WithLabelValues(result).Inc()
}

// SetLightLevel records the light level index.
func (c *Collector) SetLightLevel(level int) {
	c.light.Set(float64(level))
}

// BindFlag exports f as <namespace>_ready{flag="name"}.
func (c *Collector) BindFlag(f Flag) error {
	gauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   c.cfg.Namespace,
		Name:        "ready",
		Help:        "Readiness flags, 1 when set.",
		ConstLabels: prometheus.Labels{"flag": f.Name()},
	}, func() float64 {
		if f.IsSet() {
			return 1
		}
		return 0
	})
	return c.register(gauge)
}

// BindReading exports r as <namespace>_temperature_celsius{source="name"}.
func (c *Collector) BindReading(source string, r Reading) error {
	gauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   c.cfg.Namespace,
		Name:        "temperature_celsius",
		Help:        "Published temperatures, NaN before the first valid reading.",
		ConstLabels: prometheus.Labels{"source": source},
	}, func() float64 {
		v, ok := r.Load()
		if !ok {
			return math.NaN()
		}
		return v
	})
	return c.register(gauge)
}

func (c *Collector) register(col prometheus.Collector) error {
	if err := c.registry.Register(col); err != nil {
		return errors.New().Wrap(ErrRegister, err)
	}
	return nil
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
