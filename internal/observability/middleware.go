package observability

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// routeLabel keeps metric cardinality bounded: requests that matched no
// route share one label instead of carrying their raw path.
func routeLabel(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return "unmatched"
}

// RequestLogger logs one line per request. Scene WebSocket upgrades are
// logged when the viewer disconnects, with the session length.
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		upgrade := c.IsWebsocket()
		c.Next()

		status := c.Writer.Status()
		if upgrade && status < 400 {
			logger.Info().
				Str("path", routeLabel(c)).
				Str("remote", c.ClientIP()).
				Dur("connected", time.Since(start)).
				Msg("viewer disconnected")
			return
		}

		event := logger.Debug()
		switch {
		case status >= 500:
			event = logger.Error()
		case status >= 400:
			event = logger.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	}
}

// RequestMetricsMiddleware records request counts and latency. Upgraded
// viewer connections are left out; their lifetime is not a latency.
func RequestMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.IsWebsocket() {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		RecordHTTPRequest(c.Request.Method, routeLabel(c), c.Writer.Status(), time.Since(start))
	}
}
