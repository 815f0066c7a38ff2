package handlers

import (
	"time"

	"hydroponics_controller/internal/metrics"

	"github.com/gin-gonic/gin"
)

// requestLatency observes the handling time of every matched route.
// Unmatched paths are folded into one label to keep cardinality bounded.
func (h *Handler) requestLatency(c *gin.Context) {
	start := time.Now()
	c.Next()

	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	metrics.HttpRequestLatencySeconds.
		WithLabelValues(c.Request.Method, route).
		Observe(time.Since(start).Seconds())
}
