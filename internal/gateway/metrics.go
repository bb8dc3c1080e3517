package gateway

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_gateway_requests_total",
			Help: "Catalog API calls by method, route and status code.",
		}, []string{"method", "route", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "catalog_gateway_request_duration_seconds",
			Help:    "Catalog API call latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	if reg == nil {
		return m, nil
	}
	if err := reg.Register(m.requests); err != nil {
		existing, err := reuse[*prometheus.CounterVec](err)
		if err != nil {
			return nil, err
		}
		m.requests = existing
	}
	if err := reg.Register(m.duration); err != nil {
		existing, err := reuse[*prometheus.HistogramVec](err)
		if err != nil {
			return nil, err
		}
		m.duration = existing
	}
	return m, nil
}

// reuse returns the collector already registered under the same name.
func reuse[T prometheus.Collector](err error) (T, error) {
	var zero T
	var already prometheus.AlreadyRegisteredError
	if !errors.As(err, &already) {
		return zero, err
	}
	existing, ok := already.ExistingCollector.(T)
	if !ok {
		return zero, err
	}
	return existing, nil
}

func (m *metrics) observe(method, route, code string, elapsed time.Duration) {
	m.requests.WithLabelValues(method, route, code).Inc()
	m.duration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
