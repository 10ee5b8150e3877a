// Package metrics exports kernel resolution metrics to Prometheus.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/xraph/keel"
)

// Collector holds the Prometheus metrics for one or more kernels.
type Collector struct {
	Resolutions *prometheus.CounterVec
	Duration    *prometheus.HistogramVec
	Activations *prometheus.CounterVec
}

// NewCollector creates the metrics and registers them with reg.
func NewCollector(namespace string, reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		Resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resolutions_total",
				Help:      "Total number of top-level resolutions",
			},
			[]string{"outcome"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "resolution_duration_seconds",
				Help:      "Top-level resolution duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		Activations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "activations_total",
				Help:      "Total number of component activations",
			},
			[]string{"component", "outcome"},
		),
	}

	for _, col := range []prometheus.Collector{c.Resolutions, c.Duration, c.Activations} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Middleware returns the kernel middleware feeding the collector.
func (c *Collector) Middleware() keel.Middleware {
	return &keel.FuncMiddleware{
		AfterResolveFunc: func(ctx context.Context, _ keel.Request, _ any, err error) error {
			result := outcome(err)
			c.Resolutions.WithLabelValues(result).Inc()

			if r, ok := keel.ResolutionFrom(ctx); ok {
				c.Duration.WithLabelValues(result).Observe(time.Since(r.Started).Seconds())
			}

			return nil
		},
		AfterActivateFunc: func(_ context.Context, key string, _ any, err error) error {
			c.Activations.WithLabelValues(key, outcome(err)).Inc()

			return nil
		},
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}

	return "success"
}
