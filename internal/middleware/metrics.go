package middleware

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// Metrics stores application metrics
type Metrics struct {
	RequestsTotal      uint64
	RequestsInProgress uint64
	RequestsSuccess    uint64
	RequestsFailed     uint64
	UploadSlotsTotal   uint64
	RecognitionsTotal  uint64
	RecognitionsFailed uint64
	HistoryQueries     uint64
	StartTime          time.Time
}

var globalMetrics = &Metrics{
	StartTime: time.Now(),
}

// IncrementUploadSlots counts issued upload credentials
func IncrementUploadSlots() {
	atomic.AddUint64(&globalMetrics.UploadSlotsTotal, 1)
}

// IncrementRecognitions counts recognition pipeline runs
func IncrementRecognitions() {
	atomic.AddUint64(&globalMetrics.RecognitionsTotal, 1)
}

// IncrementRecognitionsFailed counts failed pipeline runs
func IncrementRecognitionsFailed() {
	atomic.AddUint64(&globalMetrics.RecognitionsFailed, 1)
}

// IncrementHistoryQueries counts history listings
func IncrementHistoryQueries() {
	atomic.AddUint64(&globalMetrics.HistoryQueries, 1)
}

// GetMetrics returns current metrics
func GetMetrics() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]interface{}{
		"requests_total":       atomic.LoadUint64(&globalMetrics.RequestsTotal),
		"requests_in_progress": atomic.LoadUint64(&globalMetrics.RequestsInProgress),
		"requests_success":     atomic.LoadUint64(&globalMetrics.RequestsSuccess),
		"requests_failed":      atomic.LoadUint64(&globalMetrics.RequestsFailed),
		"upload_slots_total":   atomic.LoadUint64(&globalMetrics.UploadSlotsTotal),
		"recognitions_total":   atomic.LoadUint64(&globalMetrics.RecognitionsTotal),
		"recognitions_failed":  atomic.LoadUint64(&globalMetrics.RecognitionsFailed),
		"history_queries":      atomic.LoadUint64(&globalMetrics.HistoryQueries),
		"uptime_seconds":       time.Since(globalMetrics.StartTime).Seconds(),
		"memory": map[string]interface{}{
			"alloc_bytes":       m.Alloc,
			"total_alloc_bytes": m.TotalAlloc,
			"sys_bytes":         m.Sys,
			"num_gc":            m.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// MetricsMiddleware tracks request metrics
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddUint64(&globalMetrics.RequestsTotal, 1)
		atomic.AddUint64(&globalMetrics.RequestsInProgress, 1)
		defer atomic.AddUint64(&globalMetrics.RequestsInProgress, ^uint64(0))

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode >= 200 && wrapped.statusCode < 400 {
			atomic.AddUint64(&globalMetrics.RequestsSuccess, 1)
		} else {
			atomic.AddUint64(&globalMetrics.RequestsFailed, 1)
		}
	})
}

// MetricsHandler returns metrics as JSON
func MetricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(GetMetrics())
}
