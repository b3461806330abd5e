package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "traveltime",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "traveltime",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "traveltime",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Query engine metrics
	QueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "traveltime",
		Subsystem: "engine",
		Name:      "queries_total",
		Help:      "Total travel-time queries by outcome",
	}, []string{"mode", "geography", "outcome"})

	QueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "traveltime",
		Subsystem: "engine",
		Name:      "query_duration_seconds",
		Help:      "End-to-end travel-time query latency",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"mode", "geography"})

	QueriesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "traveltime",
		Subsystem: "engine",
		Name:      "queries_dropped_total",
		Help:      "Queries dropped because another query was in progress",
	})

	RowGroupsPlanned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "traveltime",
		Subsystem: "engine",
		Name:      "row_groups_planned_total",
		Help:      "Row groups selected by statistics pruning",
	})

	RowGroupsPruned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "traveltime",
		Subsystem: "engine",
		Name:      "row_groups_pruned_total",
		Help:      "Row groups skipped by statistics pruning",
	})

	RowGroupsFetched = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "traveltime",
		Subsystem: "engine",
		Name:      "row_groups_fetched_total",
		Help:      "Row groups fetched and decoded",
	})

	RemoteRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "traveltime",
		Subsystem: "remote",
		Name:      "requests_total",
		Help:      "Requests to the remote dataset store",
	}, []string{"op", "status"})

	RemoteBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "traveltime",
		Subsystem: "remote",
		Name:      "bytes_total",
		Help:      "Bytes fetched from the remote dataset store by range requests",
	})

	ActiveMapSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "traveltime",
		Subsystem: "ws",
		Name:      "active_map_sessions",
		Help:      "Current number of connected map sessions",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "traveltime",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "traveltime",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "traveltime",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "traveltime",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "traveltime",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

// UpdateDBPoolMetrics copies pool statistics into the db gauges. It
// accepts any value with pgxpool.Stat's connection counters so this
// package does not depend on pgx.
func UpdateDBPoolMetrics(stat interface{}) {
	type poolStat interface {
		AcquiredConns() int32
		IdleConns() int32
		TotalConns() int32
	}

	if s, ok := stat.(poolStat); ok {
		DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
		DBPoolConnsIdle.Set(float64(s.IdleConns()))
		DBPoolConnsOpen.Set(float64(s.TotalConns()))
	}
}
