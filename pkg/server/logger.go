package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const requestIDHeader = "X-Request-ID"

// requestLogger tags every request with an id and logs it once it completes.
// SSE and WebSocket requests complete when the client goes away, so their
// elapsed time is the stream lifetime.
func requestLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)

		// handlers may rewrite the path
		path := c.Request.URL.Path
		start := time.Now()
		c.Next()

		code := c.Writer.Status()
		entry := logger.WithFields(logrus.Fields{
			"requestID": id,
			"status":    code,
			"method":    c.Request.Method,
			"path":      path,
			"remote":    c.ClientIP(),
			"bytes":     max(c.Writer.Size(), 0),
			"elapsed":   time.Since(start),
		})

		if len(c.Errors) > 0 {
			entry.Error(c.Errors.ByType(gin.ErrorTypePrivate).String())
			return
		}

		msg := fmt.Sprintf("%s %s %d", c.Request.Method, path, code)
		switch {
		case code >= http.StatusInternalServerError:
			entry.Error(msg)
		case code >= http.StatusBadRequest:
			entry.Warn(msg)
		case path == "/healthz":
			entry.Trace(msg)
		default:
			entry.Debug(msg)
		}
	}
}
