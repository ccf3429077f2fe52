package middleware

import (
	"log/slog"
	"time"

	"spotprice/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-ID"

// Logger stamps every request with an id (reusing a client supplied
// X-Request-ID) and logs one line when it completes.
func Logger(l *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), id))

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"query", c.Request.URL.RawQuery,
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
			"bytes", c.Writer.Size(),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}

		rl := logger.FromContext(c.Request.Context(), l)
		switch {
		case status >= 500:
			rl.Error("request", attrs...)
		case status >= 400:
			rl.Warn("request", attrs...)
		default:
			rl.Info("request", attrs...)
		}
	}
}
