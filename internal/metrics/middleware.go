package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// GinMiddleware records latency and status for every API request. Routes
// are labelled by their pattern so path parameters stay out of the labels.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		duration := float64(time.Since(start).Microseconds()) / 1000.0
		RecordAPIRequest(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), duration)
	}
}
