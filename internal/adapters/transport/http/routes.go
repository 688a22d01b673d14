package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes mounts the API on r. admin guards the write endpoints.
func RegisterRoutes(r gin.IRouter, h *Handler, admin gin.HandlerFunc) {
	r.GET("/revocations", h.Query)
	r.GET("/health", h.Health)

	write := r.Group("/revocations", admin)
	write.POST("", h.Submit)
	write.POST("/batch", h.SubmitBatch)
}

// RegisterMetrics exposes g on GET /metrics.
func RegisterMetrics(r gin.IRouter, g prometheus.Gatherer) {
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(g, promhttp.HandlerOpts{})))
}
