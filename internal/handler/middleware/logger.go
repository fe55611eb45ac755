package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nghiemng0310/nail/internal/metrics"
	"github.com/wb-go/wbf/zlog"
)

// LoggerMiddleware logs every request and, when m is set, records it as a metric
// labelled with the route pattern rather than the raw path.
func LoggerMiddleware(m *metrics.GalleryMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RecordHTTPRequest(method, route, status, duration.Seconds())

		zlog.Logger.Info().
			Str("method", method).
			Str("path", path).
			Int("status", status).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Msg("http request")
	}
}
