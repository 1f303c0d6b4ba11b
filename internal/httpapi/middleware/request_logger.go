package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hearthline/hearthline/pkg/logger"
)

const RequestIDHeader = "X-Request-ID"

// RequestLogger attaches a request-scoped logrus entry to the request context
// and logs each completed request
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)

		entry := logger.Logger(c.Request.Context()).WithField("requestId", requestID)
		c.Request = c.Request.WithContext(logger.WithLogger(c.Request.Context(), entry))

		start := time.Now()
		c.Next()

		fields := logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}
		if len(c.Errors) > 0 {
			entry.WithFields(fields).WithError(c.Errors.Last()).Warn("request failed")
			return
		}
		entry.WithFields(fields).Debug("request completed")
	}
}
