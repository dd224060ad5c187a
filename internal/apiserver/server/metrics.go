// Package server Prometheus 指标导出
package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 包含所有 API Server 指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// 路由指标
	SwitchesTotal   *prometheus.CounterVec
	QueriesTotal    *prometheus.CounterVec
	QueryDuration   *prometheus.HistogramVec
	SessionsActive  prometheus.Gauge
	MemoriesStored  prometheus.Counter
	MemoriesSwept   prometheus.Counter

	// WebSocket 指标
	WSConnectionsActive prometheus.Gauge
	WSMessagesTotal     *prometheus.CounterVec
}

// NewMetrics 创建指标实例
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),
		SwitchesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "role_switches_total",
				Help:      "Total role switches by trigger mode",
			},
			[]string{"automatic"},
		),
		QueriesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queries_total",
				Help:      "Total processed queries by role and outcome",
			},
			[]string{"role", "status"},
		),
		QueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_duration_seconds",
				Help:      "Query processing duration in seconds (routing + completion)",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"role"},
		),
		SessionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sessions_active",
				Help:      "Current number of open sessions",
			},
		),
		MemoriesStored: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "memories_stored_total",
				Help:      "Total memories written to the store",
			},
		),
		MemoriesSwept: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "memories_swept_total",
				Help:      "Total expired memories removed by maintenance",
			},
		),
		WSConnectionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "websocket_connections_active",
				Help:      "Active WebSocket connections",
			},
		),
		WSMessagesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "websocket_messages_total",
				Help:      "Total WebSocket messages",
			},
			[]string{"direction", "type"},
		),
	}
}

// MetricsMiddleware 创建 HTTP 指标中间件
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		// 包装 ResponseWriter 以捕获状态码
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)
		status := strconv.Itoa(wrapped.statusCode)

		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// responseWriter 包装 http.ResponseWriter 以捕获状态码
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizePath 规范化路径，将 ID 替换为占位符，避免高基数
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/v1/context/sessions/"):
		if strings.HasSuffix(path, "/history") {
			return "/api/v1/context/sessions/{id}/history"
		}
		return "/api/v1/context/sessions/{id}"
	case strings.HasPrefix(path, "/api/v1/context/triggers/"):
		return "/api/v1/context/triggers/{roleId}"
	case strings.HasPrefix(path, "/api/v1/roles/") && path != "/api/v1/roles/tones":
		if strings.HasSuffix(path, "/parent") {
			return "/api/v1/roles/{id}/parent"
		}
		return "/api/v1/roles/{id}"
	case strings.HasPrefix(path, "/api/v1/memories/"):
		switch {
		case path == "/api/v1/memories/search":
			return path
		case strings.HasSuffix(path, "/share"):
			return "/api/v1/memories/{id}/share"
		case strings.HasSuffix(path, "/stats"):
			return "/api/v1/memories/{roleId}/stats"
		default:
			return "/api/v1/memories/{roleId}"
		}
	default:
		return path
	}
}

// MetricsHandler 返回 Prometheus HTTP Handler
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordSwitch 记录一次角色切换
func (m *Metrics) RecordSwitch(automatic bool) {
	m.SwitchesTotal.WithLabelValues(strconv.FormatBool(automatic)).Inc()
}

// RecordQuery 记录一次问答处理
func (m *Metrics) RecordQuery(role, status string, duration time.Duration) {
	m.QueriesTotal.WithLabelValues(role, status).Inc()
	if status == "ok" {
		m.QueryDuration.WithLabelValues(role).Observe(duration.Seconds())
	}
}

// RecordWSMessage 记录 WebSocket 消息
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessagesTotal.WithLabelValues(direction, msgType).Inc()
}

// WSConnectionOpened WebSocket 连接打开
func (m *Metrics) WSConnectionOpened() {
	m.WSConnectionsActive.Inc()
}

// WSConnectionClosed WebSocket 连接关闭
func (m *Metrics) WSConnectionClosed() {
	m.WSConnectionsActive.Dec()
}
