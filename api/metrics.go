package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikifacts_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wikifacts_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
	scrapeRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikifacts_scrape_refresh_total",
			Help: "Total scheduled archive refreshes",
		},
		[]string{"language", "result"},
	)
	scrapeFactsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikifacts_scrape_facts_total",
			Help: "Total facts collected by scheduled refreshes",
		},
		[]string{"language"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		scrapeRefreshTotal,
		scrapeFactsTotal,
	)
}

func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// Route template, not the raw URL, to keep label cardinality down.
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
