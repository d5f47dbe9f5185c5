// Package metrics exposes Prometheus counters and histograms for the store, the upload
// service, HTTP requests and live admin connections.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cellule/internal/domain/errs"
)

// Metrics holds every collector registered by the server.
type Metrics struct {
	registry *prometheus.Registry

	StoreOps       *prometheus.CounterVec
	StoreDuration  *prometheus.HistogramVec
	UploadOps      *prometheus.CounterVec
	UploadDuration *prometheus.HistogramVec
	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
	AdminSessions  prometheus.Gauge
	LiveClients    prometheus.Gauge
	Registrations  prometheus.Counter
}

// New registers the collectors on a fresh registry, with the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		StoreOps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cellule_store_operations_total",
			Help: "Store operations by operation and result",
		}, []string{"operation", "result"}),
		StoreDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cellule_store_operation_duration_seconds",
			Help:    "Duration of store operations in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		UploadOps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cellule_upload_operations_total",
			Help: "Media upload and removal operations by result",
		}, []string{"operation", "result"}),
		UploadDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cellule_upload_duration_seconds",
			Help:    "Duration of media uploads and removals in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"operation"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cellule_http_requests_total",
			Help: "HTTP requests by method, route and status code",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cellule_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		AdminSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "cellule_admin_sessions",
			Help: "Open admin sessions",
		}),
		LiveClients: f.NewGauge(prometheus.GaugeOpts{
			Name: "cellule_live_clients",
			Help: "Connected live dashboard websocket clients",
		}),
		Registrations: f.NewCounter(prometheus.CounterOpts{
			Name: "cellule_registrations_submitted_total",
			Help: "Registrations accepted from the public form",
		}),
	}
}

// Registry returns the registry backing Handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveStore records one store operation. Its signature matches storage.Observer.
func (m *Metrics) ObserveStore(op string, elapsed time.Duration, err error) {
	m.StoreOps.WithLabelValues(op, Result(err)).Inc()
	m.StoreDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObserveUpload records one upload operation. Its signature matches upload.Observer.
func (m *Metrics) ObserveUpload(op string, elapsed time.Duration, err error) {
	m.UploadOps.WithLabelValues(op, Result(err)).Inc()
	m.UploadDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObserveRequest records one HTTP request under its route pattern.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// Result classifies an error into a low-cardinality label value.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, errs.ErrConnectivity):
		return "unreachable"
	case errors.Is(err, errs.ErrValidation):
		return "invalid"
	case errors.Is(err, errs.ErrNotFound):
		return "not_found"
	case errors.Is(err, errs.ErrUpload):
		return "rejected"
	default:
		return "error"
	}
}
