package middleware

import (
	"strconv"
	"time"

	"github.com/apascualco/cinemesh/internal/infrastructure/observability"
	"github.com/gin-gonic/gin"
)

// Metrics counts requests and records latency per matched route template,
// so path parameters do not explode label cardinality.
func Metrics(metrics observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		tags := map[string]string{
			"method": c.Request.Method,
			"route":  routeOf(c),
			"status": strconv.Itoa(c.Writer.Status()),
		}
		metrics.Incr(observability.HTTPRequests, tags)
		metrics.Observe(observability.HTTPRequestDuration, time.Since(start).Seconds(), tags)
	}
}

func routeOf(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}
