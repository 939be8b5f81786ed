package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/persistorai/spacestore/internal/metrics"
)

// Prometheus records HTTP request duration and count per route pattern.
// Scrapes of the metrics endpoint itself are not counted.
func Prometheus(metricsPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == metricsPath {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		labels := []string{c.Request.Method, route, strconv.Itoa(c.Writer.Status())}
		metrics.RequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
		metrics.RequestsTotal.WithLabelValues(labels...).Inc()
	}
}
