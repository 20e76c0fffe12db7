package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/OldStager01/press-downtime/internal/logger"
	"github.com/OldStager01/press-downtime/internal/metrics"
)

// quietRoutes are polled by probes and scrapers and log at debug level.
var quietRoutes = map[string]bool{
	"/health/live":  true,
	"/health/ready": true,
	"/metrics":      true,
}

// RequestLogger writes one access log line per request and observes it in m
// when m is non-nil. Requests are labeled by route pattern, not raw path.
func RequestLogger(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		if m != nil {
			m.ObserveRequest(c.Request.Method, route, status, elapsed)
		}

		entry := logger.WithTrace(c.Request.Context()).WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"route":      route,
			"status":     status,
			"latency_ms": elapsed.Milliseconds(),
			"client_ip":  c.ClientIP(),
		})
		if q := c.Request.URL.RawQuery; q != "" {
			entry = entry.WithField("query", q)
		}
		if subject := GetSubject(c); subject != "" {
			entry = entry.WithField("subject", subject)
		}
		if len(c.Errors) > 0 {
			entry = entry.WithField("errors", c.Errors.String())
		}

		entry.Log(accessLevel(route, status), c.Request.Method+" "+c.Request.URL.Path)
	}
}

func accessLevel(route string, status int) logrus.Level {
	switch {
	case status >= 500:
		return logrus.ErrorLevel
	case status >= 400:
		return logrus.WarnLevel
	case quietRoutes[route]:
		return logrus.DebugLevel
	default:
		return logrus.InfoLevel
	}
}
