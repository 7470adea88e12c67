package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/imrishuroy/go-refundflow/internal/logger"
)

const RequestIDHeader = "X-Request-ID"

// RequestLogger tags each request with an id, stores a request-scoped logger
// in the context and logs the outcome.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()[:8]
		}
		reqLogger := logger.WithRequestID(requestID)
		c.Request = c.Request.WithContext(logger.NewContext(c.Request.Context(), &reqLogger))
		c.Header(RequestIDHeader, requestID)

		c.Next()

		status := c.Writer.Status()
		logEvent := reqLogger.Info()
		if status >= 500 {
			logEvent = reqLogger.Error()
		} else if status >= 400 {
			logEvent = reqLogger.Warn()
		}

		principalID := ""
		if p, ok := PrincipalFrom(c); ok {
			principalID = p.ID
		}

		logEvent.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("query", c.Request.URL.RawQuery).
			Int("status", status).
			Dur("duration_ms", time.Since(start)).
			Str("ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Str("principal_id", principalID).
			Msg("HTTP")
	}
}
