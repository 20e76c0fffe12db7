package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/OldStager01/press-downtime/internal/logger"
	"github.com/OldStager01/press-downtime/pkg/models"
)

const (
	TraceIDHeader = "X-Trace-ID"
	traceIDKey    = "trace_id"
)

// TraceID propagates or assigns a trace id and stores it on both the gin
// context and the request context used by services.
func TraceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceIDHeader)
		if traceID == "" || len(traceID) > 128 {
			traceID = models.NewUUID()
		}

		c.Set(traceIDKey, traceID)
		c.Header(TraceIDHeader, traceID)
		c.Request = c.Request.WithContext(logger.WithTraceID(c.Request.Context(), traceID))

		c.Next()
	}
}

func GetTraceID(c *gin.Context) string {
	return c.GetString(traceIDKey)
}
