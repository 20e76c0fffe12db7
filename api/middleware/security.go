package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

var apiHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Referrer-Policy", "no-referrer"},
	{"Cache-Control", "no-store"},
	{"Content-Security-Policy", "default-src 'none'; connect-src 'self' ws: wss:; frame-ancestors 'none'"},
}

// SecurityHeaders marks every response as uncacheable, unframeable JSON.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		for _, kv := range apiHeaders {
			h.Set(kv[0], kv[1])
		}
		c.Next()
	}
}

// RequestSizeLimit rejects declared bodies over maxBytes up front and caps
// streamed ones while they are read.
func RequestSizeLimit(maxBytes int64) gin.HandlerFunc {
	tooLarge := gin.H{
		"success": false,
		"error":   "request body exceeds " + strconv.FormatInt(maxBytes, 10) + " bytes",
	}
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, tooLarge)
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
