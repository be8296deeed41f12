package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Sahaj33-op/msm/internal/logging"
)

// requestLogger logs one structured line per request. Health probes are
// skipped outside debug mode to keep the log readable.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		if raw != "" {
			path = path + "?" + raw
		}

		if path != "/health" || gin.Mode() == gin.DebugMode {
			logging.L().Info("http_request",
				"method", c.Request.Method,
				"path", path,
				"status", c.Writer.Status(),
				"latency", latency.String(),
				"client_ip", c.ClientIP(),
			)
		}
	}
}
