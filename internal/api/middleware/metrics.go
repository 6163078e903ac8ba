// metrics.go — Prometheus HTTP метрики.
// Регистрирует метрики: ss_http_requests_total, ss_http_request_duration_seconds.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ss_http_requests_total",
			Help: "Общее количество HTTP-запросов к Sheetstore",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ss_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к Sheetstore в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Записывает количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Нормализуем путь для лейблов метрик
			// (заменяем имена файлов и ID на плейсхолдеры
			// для предотвращения кардинальности)
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration)
		})
	}
}

// metricsResponseWriter — обёртка для перехвата статус-кода.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// normalizePath заменяет динамические сегменты пути на плейсхолдеры
// для предотвращения взрывного роста кардинальности метрик.
// /api/excel/data/report.xlsx → /api/excel/data/{fileName}
func normalizePath(path string) string {
	// Статические пути — возвращаем как есть
	switch path {
	case "/health/live", "/health/ready", "/metrics",
		"/api/files",
		"/api/excel/upload",
		"/api/excel/data",
		"/api/excel/data/bulk",
		"/api/excel/export",
		"/api/comparison/files",
		"/api/comparison/versions",
		"/api/etl/executions":
		return path
	}

	// Динамические пути с именем файла или ID
	prefixes := []struct {
		prefix string
		result string
	}{
		{"/api/excel/read/", "/api/excel/read/{fileName}"},
		{"/api/excel/sheets/", "/api/excel/sheets/{fileName}"},
		{"/api/excel/files/", "/api/excel/files/{fileName}"},
		{"/api/excel/data/", "/api/excel/data/{fileName}"},
		{"/api/comparison/changes/", "/api/comparison/changes/{fileName}"},
		{"/api/comparison/history/", "/api/comparison/history/{fileName}"},
		{"/api/comparison/row-history/", "/api/comparison/row-history/{rowId}"},
		{"/api/audit/row/", "/api/audit/row/{rowId}"},
		{"/api/audit/", "/api/audit/{fileName}"},
		{"/api/etl/execute/", "/api/etl/execute/{packageName}"},
		{"/api/etl/status/", "/api/etl/status/{executionId}"},
		{"/api/etl/cancel/", "/api/etl/cancel/{executionId}"},
	}

	for _, p := range prefixes {
		if strings.HasPrefix(path, p.prefix) && len(path) > len(p.prefix) {
			// /api/excel/data/{fileName}/all сохраняет суффикс
			if p.prefix == "/api/excel/data/" && strings.HasSuffix(path, "/all") {
				return p.result + "/all"
			}
			return p.result
		}
	}

	return path
}
