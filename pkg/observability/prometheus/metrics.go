package prometheus

import (
	"database/sql"
	"sync"
	"time"

	"github.com/fluxorio/todoapi/pkg/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DefaultRegistry is the registry served on /metrics
	DefaultRegistry = prometheus.NewRegistry()

	// DefaultRegisterer labels every metric with the service name
	DefaultRegisterer = prometheus.WrapRegistererWith(prometheus.Labels{"service": "todoapi"}, DefaultRegistry)

	metricsOnce sync.Once
	metrics     *Metrics
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registerer prometheus.Registerer

	// HTTP request metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Server metrics
	ServerInFlightRequests prometheus.Gauge
	ServerRejectedRequests prometheus.Counter
	ServerNormalCCU        prometheus.Gauge
	ServerCCUUtilization   prometheus.Gauge

	// Business metrics
	AuthEventsTotal     *prometheus.CounterVec
	TodoOperationsTotal *prometheus.CounterVec
	BlacklistPurged     prometheus.Counter

	mu           sync.Mutex
	lastRejected int64
}

// GetMetrics returns the process-wide metrics registered on DefaultRegisterer
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = NewMetrics(DefaultRegisterer)
	})
	return metrics
}

// NewMetrics creates a metrics collection on registerer
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &Metrics{
		registerer: registerer,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "todoapi_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "todoapi_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "todoapi_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 5), // 100B to 1MB
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "todoapi_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 5),
			},
			[]string{"method", "path", "status"},
		),

		ServerInFlightRequests: factory.NewGauge(prometheus.GaugeOpts{
			Name: "todoapi_server_in_flight_requests",
			Help: "Requests currently holding a backpressure slot",
		}),
		ServerRejectedRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "todoapi_server_rejected_requests_total",
			Help: "Total number of requests rejected with 503",
		}),
		ServerNormalCCU: factory.NewGauge(prometheus.GaugeOpts{
			Name: "todoapi_server_normal_ccu",
			Help: "Normal capacity (queue plus workers)",
		}),
		ServerCCUUtilization: factory.NewGauge(prometheus.GaugeOpts{
			Name: "todoapi_server_ccu_utilization",
			Help: "Capacity utilization percentage (0-100)",
		}),

		AuthEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "todoapi_auth_events_total",
				Help: "Authentication events by kind and outcome",
			},
			[]string{"event", "outcome"}, // event: register, login, refresh, logout, delete_account
		),
		TodoOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "todoapi_todo_operations_total",
				Help: "Successful todo mutations by operation",
			},
			[]string{"operation"}, // operation: create, update, delete, toggle
		),
		BlacklistPurged: factory.NewCounter(prometheus.CounterOpts{
			Name: "todoapi_token_blacklist_purged_total",
			Help: "Expired blacklist entries removed",
		}),
	}
}

// RecordHTTPRequest records an HTTP request metric
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, requestSize, responseSize int64) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
	m.HTTPRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	m.HTTPResponseSize.WithLabelValues(method, path, status).Observe(float64(responseSize))
}

// RecordAuthEvent counts an auth operation; err == nil is a success
func (m *Metrics) RecordAuthEvent(event string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.AuthEventsTotal.WithLabelValues(event, outcome).Inc()
}

// RecordTodoOperation counts a successful todo mutation
func (m *Metrics) RecordTodoOperation(operation string) {
	m.TodoOperationsTotal.WithLabelValues(operation).Inc()
}

// RecordBlacklistPurge counts purged blacklist rows
func (m *Metrics) RecordBlacklistPurge(n int64) {
	if n > 0 {
		m.BlacklistPurged.Add(float64(n))
	}
}

// UpdateServerMetrics copies a server snapshot into the gauges. The server's
// rejected count is cumulative, so only the delta since the last call is added.
func (m *Metrics) UpdateServerMetrics(s web.ServerMetrics) {
	m.ServerInFlightRequests.Set(float64(s.InFlight))
	m.ServerNormalCCU.Set(float64(s.NormalCCU))
	m.ServerCCUUtilization.Set(s.CCUUtilization)

	m.mu.Lock()
	delta := s.RejectedRequests - m.lastRejected
	if delta > 0 {
		m.lastRejected = s.RejectedRequests
	}
	m.mu.Unlock()
	if delta > 0 {
		m.ServerRejectedRequests.Add(float64(delta))
	}
}

// RegisterDBStats exports database/sql pool statistics for sqlDB
func (m *Metrics) RegisterDBStats(sqlDB *sql.DB, name string) error {
	return m.registerer.Register(collectors.NewDBStatsCollector(sqlDB, name))
}
