package errorhandler

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tbourn/go-api-errors/internal/apierror"
)

type metrics struct {
	errors   *prometheus.CounterVec
	failures prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "api_errors_total",
				Help: "Classified API errors by kind and code.",
			},
			[]string{"kind", "code"},
		),
		failures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "api_error_handler_failures_total",
				Help: "Times the error handler itself faulted and fell back.",
			},
		),
	}
	reg.MustRegister(m.errors, m.failures)
	return m
}

func (m *metrics) observe(e *apierror.Error) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(e.Kind().String(), e.Details().Code).Inc()
}

func (m *metrics) degraded() {
	if m == nil {
		return
	}
	m.failures.Inc()
}
