package middleware

import (
	"strconv"
	"time"

	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/infra/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records request count, latency and in-flight requests. A nil m
// yields a pass-through handler.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		start := time.Now()
		m.HTTPInFlight.Inc()
		defer m.HTTPInFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		labels := prometheus.Labels{
			"method": c.Request.Method,
			"route":  route,
			"status": strconv.Itoa(c.Writer.Status()),
		}
		m.HTTPRequests.With(labels).Inc()
		m.HTTPDuration.With(labels).Observe(time.Since(start).Seconds())
	}
}
