package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/adpulse/pkg/metrics"
)

// unmatchedRoute labels requests that hit no registered route, keeping arbitrary
// paths out of the label set.
const unmatchedRoute = "unmatched"

// Metrics observes latency per route template and tracks requests in flight.
// Requests under any of the skipped prefixes (probes, the scrape endpoint) are not observed.
func Metrics(skip ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, prefix := range skip {
			if prefix != "" && strings.HasPrefix(c.Request.URL.Path, prefix) {
				c.Next()
				return
			}
		}

		metrics.APIInFlight.Inc()
		defer metrics.APIInFlight.Dec()

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		metrics.APILatency.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
