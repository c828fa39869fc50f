package webhook

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mxdgroup/pracsuit-script/internal/metrics"
)

// requestLogger logs one line per request and records request metrics
// labelled by route template.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := metrics.NewTimer()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		duration := timer.Duration()
		metrics.RecordHTTPRequest(route, c.Request.Method, strconv.Itoa(status), duration)

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("duration", duration),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case status >= 500:
			logger.Error("Request failed", fields...)
		case route == "/metrics" || route == "/health":
			logger.Debug("Request handled", fields...)
		default:
			logger.Info("Request handled", fields...)
		}
	}
}
