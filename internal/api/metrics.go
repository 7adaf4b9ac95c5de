package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// httpRequestsTotal counts requests by route, method and status
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "goal_api_requests_total",
		Help: "Total API requests by route, method and status",
	}, []string{"route", "method", "status"})

	// httpRequestDuration tracks request latency per route
	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "goal_api_request_duration_seconds",
		Help:    "API request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
)

func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
