package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "safeyatra"

// Metrics 指标管理器
//
// Each instance owns its registry so tests and multiple servers in one
// process never collide on registration.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP请求指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// 业务指标
	locationsRecorded *prometheus.CounterVec
	highRiskWarnings  prometheus.Counter
	sosCreated        *prometheus.CounterVec
	sosTransitions    *prometheus.CounterVec
	notifications     *prometheus.CounterVec
	realtimeDelivered *prometheus.CounterVec
	realtimeSessions  prometheus.Gauge
	snapshotDuration  prometheus.Histogram
	snapshotFailures  prometheus.Counter

	// 系统指标
	systemMemoryUsage *prometheus.GaugeVec
	systemCPUUsage    prometheus.Gauge
	systemGoroutines  prometheus.Gauge
}

// NewMetrics 创建指标管理器
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		httpRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		httpResponseSize: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
		}, []string{"method", "path"}),

		locationsRecorded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "locations_recorded_total",
			Help:      "Location samples stored, by zone classification",
		}, []string{"zone_type"}),
		highRiskWarnings: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "high_risk_warnings_total",
			Help:      "High-risk zone warnings issued to tourists",
		}),
		sosCreated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sos_alerts_created_total",
			Help:      "SOS alerts raised, by alert type",
		}, []string{"alert_type"}),
		sosTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sos_transitions_total",
			Help:      "SOS lifecycle transitions",
		}, []string{"from", "to"}),
		notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_created_total",
			Help:      "Notifications persisted, by type",
		}, []string{"type"}),
		realtimeDelivered: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_events_total",
			Help:      "Realtime events queued to sessions, by event name",
		}, []string{"event"}),
		realtimeSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "realtime_sessions",
			Help:      "Currently registered realtime sessions",
		}),
		snapshotDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "snapshot_flush_duration_seconds",
			Help:      "Time spent writing the durable snapshot",
			Buckets:   prometheus.DefBuckets,
		}),
		snapshotFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_flush_failures_total",
			Help:      "Snapshot flushes that returned an error",
		}),

		systemMemoryUsage: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "system_memory_usage_bytes",
			Help:      "System memory usage in bytes",
		}, []string{"type"}),
		systemCPUUsage: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "system_cpu_usage_percent",
			Help:      "System CPU usage percentage",
		}),
		systemGoroutines: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "system_goroutines",
			Help:      "Number of goroutines",
		}),
	}
}

// Registry exposes the underlying registry for extra collectors such as
// the rate limiter.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest 记录HTTP请求指标
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, responseSize int64) {
	m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

func (m *Metrics) RecordLocation(zoneType string) {
	m.locationsRecorded.WithLabelValues(zoneType).Inc()
}

func (m *Metrics) RecordHighRiskWarning() { m.highRiskWarnings.Inc() }

func (m *Metrics) RecordSOSCreated(alertType string) {
	m.sosCreated.WithLabelValues(alertType).Inc()
}

func (m *Metrics) RecordSOSTransition(from, to string) {
	m.sosTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) RecordNotification(kind string) {
	m.notifications.WithLabelValues(kind).Inc()
}

// RecordRealtime counts one event queued to n sessions.
func (m *Metrics) RecordRealtime(event string, n int) {
	if n > 0 {
		m.realtimeDelivered.WithLabelValues(event).Add(float64(n))
	}
}

func (m *Metrics) SetRealtimeSessions(n int64) { m.realtimeSessions.Set(float64(n)) }

func (m *Metrics) RecordSnapshot(duration time.Duration, err error) {
	m.snapshotDuration.Observe(duration.Seconds())
	if err != nil {
		m.snapshotFailures.Inc()
	}
}

// SetSystemMemoryUsage 设置系统内存使用量
func (m *Metrics) SetSystemMemoryUsage(memoryType string, bytes uint64) {
	m.systemMemoryUsage.WithLabelValues(memoryType).Set(float64(bytes))
}

// SetSystemCPUUsage 设置系统CPU使用率
func (m *Metrics) SetSystemCPUUsage(percentage float64) {
	m.systemCPUUsage.Set(percentage)
}

// SetSystemGoroutines 设置goroutine数量
func (m *Metrics) SetSystemGoroutines(count int) {
	m.systemGoroutines.Set(float64(count))
}
