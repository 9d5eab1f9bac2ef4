// Package metrics exposes Prometheus collectors for the crawler service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	crawlPagesTotal      prometheus.Counter
	crawlPageBytesTotal  prometheus.Counter
	crawlRecordsTotal    prometheus.Counter
	crawlRunsTotal       *prometheus.CounterVec
	crawlBatchSize       prometheus.Histogram
	crawlActiveRuns      prometheus.Gauge
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDurations *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call multiple times.
func Init() {
	once.Do(func() {
		crawlPagesTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "listings_pages_fetched_total",
			Help: "Total number of result pages fetched.",
		})

		crawlPageBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "listings_page_bytes_total",
			Help: "Total bytes of page bodies fetched.",
		})

		crawlRecordsTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "listings_records_ingested_total",
			Help: "Total number of canonical records flushed to the store.",
		})

		crawlRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "listings_runs_total",
			Help: "Total crawl runs, labeled by terminal outcome.",
		}, []string{"outcome"})

		crawlBatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "listings_batch_flush_size",
			Help:    "Histogram of record counts per persistence batch.",
			Buckets: []float64{1, 5, 10, 25, 50, 100},
		})

		crawlActiveRuns = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "listings_active_runs",
			Help: "Number of crawl runs currently executing.",
		})

		httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		}, []string{"method", "code"})

		httpRequestDurations = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"method", "route"})
	})
}

// Handler returns an http.Handler exposing the Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage records one fetched page and its body size.
func ObservePage(bytesFetched int) {
	if crawlPagesTotal == nil {
		return
	}
	crawlPagesTotal.Inc()
	if bytesFetched > 0 {
		crawlPageBytesTotal.Add(float64(bytesFetched))
	}
}

// ObserveBatch records one flushed persistence batch.
func ObserveBatch(records int) {
	if crawlBatchSize == nil {
		return
	}
	crawlBatchSize.Observe(float64(records))
	crawlRecordsTotal.Add(float64(records))
}

// ObserveRun increments the run counter for the given terminal outcome.
func ObserveRun(outcome string) {
	if crawlRunsTotal == nil {
		return
	}
	crawlRunsTotal.WithLabelValues(outcome).Inc()
}

// IncActiveRuns increments the active runs gauge.
func IncActiveRuns() {
	if crawlActiveRuns != nil {
		crawlActiveRuns.Inc()
	}
}

// DecActiveRuns decrements the active runs gauge.
func DecActiveRuns() {
	if crawlActiveRuns != nil {
		crawlActiveRuns.Dec()
	}
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurations.WithLabelValues(method, route).Observe(duration.Seconds())
}
