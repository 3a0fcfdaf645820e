// Package metrics provides Prometheus metrics for the content fragment mock repository
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for cfmock
type Metrics struct {
	// gRPC request metrics
	GrpcRequestsTotal    *prometheus.CounterVec
	GrpcRequestDuration  *prometheus.HistogramVec
	GrpcRequestsInFlight prometheus.Gauge

	// Repository metrics
	RepoOperationsTotal   *prometheus.CounterVec
	RepoOperationDuration *prometheus.HistogramVec
	RepoNodesTotal        prometheus.Gauge

	// Loader metrics
	FixturesLoadedTotal prometheus.Counter

	// Server metrics
	ServerUptimeSeconds prometheus.Gauge
	ServerStartTime     time.Time
}

// New creates all metrics and registers them with reg.
// A nil reg registers with the default Prometheus registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{
		ServerStartTime: time.Now(),
	}

	// gRPC request metrics
	m.GrpcRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cfmock_grpc_requests_total",
			Help: "Total number of gRPC requests",
		},
		[]string{"method", "status"},
	)

	m.GrpcRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cfmock_grpc_request_duration_seconds",
			Help:    "Duration of gRPC requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	m.GrpcRequestsInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "cfmock_grpc_requests_in_flight",
			Help: "Number of gRPC requests currently being processed",
		},
	)

	// Repository metrics
	m.RepoOperationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cfmock_repository_operations_total",
			Help: "Total number of repository write operations",
		},
		[]string{"operation", "status"},
	)

	m.RepoOperationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cfmock_repository_operation_duration_seconds",
			Help:    "Duration of repository write operations in seconds",
			Buckets: []float64{.00001, .0001, .001, .005, .01, .05, .1},
		},
		[]string{"operation"},
	)

	m.RepoNodesTotal = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "cfmock_repository_nodes_total",
			Help: "Current number of nodes in the repository",
		},
	)

	m.FixturesLoadedTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "cfmock_fixtures_loaded_total",
			Help: "Total number of fixture documents loaded into the repository",
		},
	)

	// Server metrics
	m.ServerUptimeSeconds = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "cfmock_server_uptime_seconds",
			Help: "Server uptime in seconds",
		},
	)

	return m
}

// RunUptime periodically updates the server uptime metric until ctx is done
func (m *Metrics) RunUptime(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.ServerUptimeSeconds.Set(time.Since(m.ServerStartTime).Seconds())
		}
	}
}

// RecordGrpcRequest records a gRPC request with its status
func (m *Metrics) RecordGrpcRequest(method string, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.GrpcRequestsTotal.WithLabelValues(method, status).Inc()
	m.GrpcRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordRepoOperation records a repository write operation
func (m *Metrics) RecordRepoOperation(operation string, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RepoOperationsTotal.WithLabelValues(operation, status).Inc()
	m.RepoOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetRepoNodes updates the repository node count
func (m *Metrics) SetRepoNodes(count int) {
	if m == nil {
		return
	}
	m.RepoNodesTotal.Set(float64(count))
}

// IncFixturesLoaded counts one loaded fixture document
func (m *Metrics) IncFixturesLoaded() {
	if m == nil {
		return
	}
	m.FixturesLoadedTotal.Inc()
}
