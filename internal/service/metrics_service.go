package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsSnapshot is a JSON-friendly summary of the collectors.
type MetricsSnapshot struct {
	RequestsTotal            uint64    `json:"requestsTotal"`
	AverageRequestDurationMs float64   `json:"averageRequestDurationMs"`
	CacheHits                uint64    `json:"cacheHits"`
	CacheMisses              uint64    `json:"cacheMisses"`
	CacheHitRatio            float64   `json:"cacheHitRatio"`
	RunsTotal                uint64    `json:"runsTotal"`
	RunsFailed               uint64    `json:"runsFailed"`
	ForecastFallbacks        uint64    `json:"forecastFallbacks"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generatedAt"`
}

// MetricsService encapsulates Prometheus instrumentation for HTTP, cache and allocation runs.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	runTotal          *prometheus.CounterVec
	runDuration       *prometheus.HistogramVec
	runStudents       *prometheus.GaugeVec
	solverTotal       *prometheus.CounterVec
	solverDuration    prometheus.Observer
	searchBestFitness *prometheus.GaugeVec
	searchDuration    *prometheus.HistogramVec
	forecastFallback  prometheus.Counter
	queueJobs         *prometheus.CounterVec

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	runCount             uint64
	runFailedCount       uint64
	fallbackCount        uint64
}

// NewMetricsService registers the Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	runTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "allocation_runs_total",
		Help: "Allocation runs by mode and outcome",
	}, []string{"mode", "status"})

	runDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "allocation_run_duration_seconds",
		Help:    "End-to-end duration of allocation runs",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"mode"})

	runStudents := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "allocation_run_students",
		Help: "Students in the last run by outcome",
	}, []string{"mode", "outcome"})

	solverTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "allocation_solver_results_total",
		Help: "Repair solver results by status",
	}, []string{"status"})

	solverDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "allocation_solver_duration_seconds",
		Help:    "Repair solver wall time",
		Buckets: prometheus.DefBuckets,
	})

	searchBestFitness := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "allocation_search_best_fitness",
		Help: "Best fitness reached by the last genetic search",
	}, []string{"mode"})

	searchDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "allocation_search_duration_seconds",
		Help:    "Genetic search wall time",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})

	forecastFallback := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "allocation_forecast_fallbacks_total",
		Help: "Runs that fell back to zero demand because the forecaster failed",
	})

	queueJobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "allocation_queue_jobs_total",
		Help: "Background reoptimization jobs by outcome",
	}, []string{"outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		runTotal, runDuration, runStudents, solverTotal, solverDuration, searchBestFitness, searchDuration,
		forecastFallback, queueJobs, goroutines)

	return &MetricsService{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		cacheLatency:      cacheLatency,
		cacheWrite:        cacheWrite,
		cacheHitRatio:     cacheHitRatio,
		cacheHits:         cacheHits,
		cacheMisses:       cacheMisses,
		runTotal:          runTotal,
		runDuration:       runDuration,
		runStudents:       runStudents,
		solverTotal:       solverTotal,
		solverDuration:    solverDuration,
		searchBestFitness: searchBestFitness,
		searchDuration:    searchDuration,
		forecastFallback:  forecastFallback,
		queueJobs:         queueJobs,
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordRun records the outcome of one allocation run. status is a run status or "failed".
func (m *MetricsService) RecordRun(mode, status string, duration time.Duration, assigned, unassigned int) {
	if m == nil {
		return
	}
	m.runTotal.WithLabelValues(mode, status).Inc()
	m.runDuration.WithLabelValues(mode).Observe(duration.Seconds())
	atomic.AddUint64(&m.runCount, 1)
	if status == "failed" {
		atomic.AddUint64(&m.runFailedCount, 1)
		return
	}
	m.runStudents.WithLabelValues(mode, "assigned").Set(float64(assigned))
	m.runStudents.WithLabelValues(mode, "not_assigned").Set(float64(unassigned))
}

// ObserveSearch records the genetic search outcome.
func (m *MetricsService) ObserveSearch(mode string, bestFitness float64, duration time.Duration) {
	if m == nil {
		return
	}
	m.searchBestFitness.WithLabelValues(mode).Set(bestFitness)
	m.searchDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// ObserveSolver records the repair solver outcome.
func (m *MetricsService) ObserveSolver(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.solverTotal.WithLabelValues(status).Inc()
	m.solverDuration.Observe(duration.Seconds())
}

// RecordForecastFallback counts runs that used zero demand.
func (m *MetricsService) RecordForecastFallback() {
	if m == nil {
		return
	}
	m.forecastFallback.Inc()
	atomic.AddUint64(&m.fallbackCount, 1)
}

// RecordQueueJob counts background job outcomes.
func (m *MetricsService) RecordQueueJob(outcome string) {
	if m == nil {
		return
	}
	m.queueJobs.WithLabelValues(outcome).Inc()
}

// Snapshot returns aggregated metrics for the summary endpoint.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var cacheRatio float64
	if total := hits + misses; total > 0 {
		cacheRatio = float64(hits) / float64(total)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return MetricsSnapshot{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		CacheHits:                hits,
		CacheMisses:              misses,
		CacheHitRatio:            cacheRatio,
		RunsTotal:                atomic.LoadUint64(&m.runCount),
		RunsFailed:               atomic.LoadUint64(&m.runFailedCount),
		ForecastFallbacks:        atomic.LoadUint64(&m.fallbackCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
