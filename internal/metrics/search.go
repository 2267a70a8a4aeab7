package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quotedex",
			Name:      "search_requests_total",
			Help:      "Total number of search requests",
		},
		[]string{"status"},
	)

	SearchResultsReturned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "quotedex",
			Name:      "search_results_returned",
			Help:      "Number of results returned per search after filtering",
			Buckets:   prometheus.LinearBuckets(0, 2, 11),
		},
	)

	IndexedDocuments = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "quotedex",
			Name:      "indexed_documents",
			Help:      "Number of quotes currently indexed",
		},
	)

	InitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "quotedex",
			Name:      "init_duration_seconds",
			Help:      "Corpus initialization duration in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers Prometheus search metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(SearchResultsReturned)
	prometheus.MustRegister(IndexedDocuments)
	prometheus.MustRegister(InitDuration)
	searchMetricsRegistered = true
}
