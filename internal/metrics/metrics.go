package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bazar_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bazar_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bazar_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Document store metrics
	StoreOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bazar_store_operations_total",
			Help: "Total number of document store operations",
		},
		[]string{"operation", "status"},
	)

	StoreCacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bazar_store_cache_hits_total",
			Help: "Total number of document cache hits",
		},
	)

	StoreCacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bazar_store_cache_misses_total",
			Help: "Total number of document cache misses",
		},
	)

	StoreCachedDocuments = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bazar_store_cached_documents",
			Help: "Number of documents currently cached",
		},
	)

	StoreBackupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bazar_store_backups_total",
			Help: "Total number of collection file backups",
		},
		[]string{"status"},
	)

	// Geo query metrics
	GeoQueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bazar_geo_query_duration_seconds",
			Help:    "Geo query latencies in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		},
	)

	GeoQueryResultsCount = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bazar_geo_query_results_count",
			Help:    "Number of records returned by geo queries",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	// Marketplace entity metrics
	UserOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bazar_user_operations_total",
			Help: "Total number of user operations",
		},
		[]string{"operation", "status"},
	)

	ListingOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bazar_listing_operations_total",
			Help: "Total number of listing operations",
		},
		[]string{"operation", "status"},
	)

	OrderOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bazar_order_operations_total",
			Help: "Total number of order operations",
		},
		[]string{"operation", "status"},
	)

	ActiveListings = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bazar_active_listings",
			Help: "Number of active listings by type",
		},
		[]string{"type"},
	)

	// Rate limiting metrics
	RateLimitExceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bazar_rate_limit_exceeded_total",
			Help: "Total number of requests that exceeded rate limits",
		},
		[]string{"limiter"},
	)

	// System metrics
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bazar_build_info",
			Help: "Build information about bazar",
		},
		[]string{"version", "go_version"},
	)
)
