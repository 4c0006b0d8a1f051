package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP 请求
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faena_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "faena_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// 物化：created | existing | conflict | orphaned
	materializedInstances = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faena_materialized_instances_total",
			Help: "Task instances touched by the materialization engine, by outcome",
		},
		[]string{"outcome"},
	)

	// 同步条目：kind = task_instance | field_response
	syncItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faena_sync_items_total",
			Help: "Batch sync items processed, by kind and result status",
		},
		[]string{"kind", "status"},
	)

	syncBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "faena_sync_batch_size",
			Help:    "Number of items per batch sync request",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		},
	)
)

// RecordHTTPRequest 记录一次 HTTP 请求
func RecordHTTPRequest(method, route string, statusCode int, durationSeconds float64) {
	status := strconv.Itoa(statusCode/100) + "xx"
	if statusCode <= 0 {
		status = "unknown"
	}
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(durationSeconds)
}

// RecordMaterialization 记录物化结果计数
func RecordMaterialization(outcome string, n int) {
	if n <= 0 {
		return
	}
	materializedInstances.WithLabelValues(outcome).Add(float64(n))
}

// RecordSyncItem 记录单个同步条目结果
func RecordSyncItem(kind, status string) {
	syncItems.WithLabelValues(kind, status).Inc()
}

// ObserveSyncBatch 记录批次大小
func ObserveSyncBatch(items int) {
	syncBatchSize.Observe(float64(items))
}

// Handler 返回 Prometheus 指标处理器
func Handler() http.Handler {
	return promhttp.Handler()
}
