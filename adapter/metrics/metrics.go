// Package metrics contains [domain.Metrics] implementations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vinicius-lino-figueiredo/docengine/domain"
)

// Prometheus implements [domain.Metrics] with a counter and a latency
// histogram per collection and operation.
type Prometheus struct {
	Operations *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
}

// NewPrometheus returns metrics registered on reg. A nil reg leaves the
// collectors unregistered.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docengine",
			Subsystem: "collection",
			Name:      "operations",
		}, []string{"collection", "operation", "status"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docengine",
			Subsystem: "collection",
			Name:      "operation_duration_seconds",
			Buckets:   []float64{.00001, .0001, .001, .01, .1, 1},
		}, []string{"collection", "operation"}),
	}
	if reg == nil {
		return p, nil
	}
	for _, c := range []prometheus.Collector{p.Operations, p.Duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Observe implements [domain.Metrics].
func (p *Prometheus) Observe(collection, operation string, started time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	p.Operations.WithLabelValues(collection, operation, status).Inc()
	p.Duration.WithLabelValues(collection, operation).Observe(time.Since(started).Seconds())
}

// Nop implements [domain.Metrics] and records nothing.
type Nop struct{}

// NewNop returns metrics that record nothing.
func NewNop() domain.Metrics { return Nop{} }

// Observe implements [domain.Metrics].
func (Nop) Observe(string, string, time.Time, error) {}
