package health

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler serves the aggregated report as JSON. Healthy and degraded reports
// return 200; unhealthy returns 503.
func Handler(agg *Aggregator) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := agg.CheckHealth(c.Request.Context())

		status := http.StatusOK
		if report.Status == StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, report)
	}
}
