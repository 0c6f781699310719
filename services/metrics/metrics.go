package metricsvc

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/darasa/core/course"
)

const namespace = "darasa"

// Metrics holds the Prometheus metrics of the API.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	EnrollmentImportsTotal *prometheus.CounterVec
	EnrollmentRowsTotal    *prometheus.CounterVec
}

// NewMetrics creates the metrics and registers them on a new registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		EnrollmentImportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "enrollment_imports_total",
				Help:      "Total number of enrollment imports",
			},
			[]string{"status"},
		),
		EnrollmentRowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "enrollment_import_rows_total",
				Help:      "Rows of the enrollment imports, by outcome",
			},
			[]string{"outcome"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.EnrollmentImportsTotal,
		m.EnrollmentRowsTotal,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one served request. path is the route pattern, not the raw URL.
func (m *Metrics) ObserveRequest(method, path string, status int, seconds float64) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(seconds)
}

// ObserveImport records the outcome of an enrollment import.
func (m *Metrics) ObserveImport(summary course.ImportSummary, err error) {
	if err != nil {
		m.EnrollmentImportsTotal.WithLabelValues("failed").Inc()
		return
	}
	m.EnrollmentImportsTotal.WithLabelValues("succeeded").Inc()

	add := func(outcome string, n int) {
		if n > 0 {
			m.EnrollmentRowsTotal.WithLabelValues(outcome).Add(float64(n))
		}
	}
	add("new_enrollment", summary.NewEnrollmentsCount)
	add("pending_enrollment", summary.PendingEnrollmentsCount)
	add("existing_enrollment", summary.ExistingEnrollmentsCount)
	add("invalid", len(summary.InvalidRows))
	add("duplicate", len(summary.DuplicateEmailSet))
}
