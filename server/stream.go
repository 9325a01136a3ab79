package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/resilkit/logger"
)

// DefaultKeepAlive is below the idle timeout of common proxies.
const DefaultKeepAlive = 30 * time.Second

// Stream writes every value received on ch as a server-sent event named
// event until ch closes or the client goes away. A comment line is sent
// every keepAlive so idle streams survive proxies; zero uses
// DefaultKeepAlive.
func Stream[T any](c *gin.Context, event string, ch <-chan T, keepAlive time.Duration) {
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}

	// Streams outlive the server's WriteTimeout.
	rc := http.NewResponseController(c.Writer)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		logger.Debug("write deadline not cleared", logger.Fields(logger.FieldError, err.Error()))
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-ch:
			if !ok {
				return
			}
			c.SSEvent(event, v)
			c.Writer.Flush()
		case now := <-ticker.C:
			_, _ = fmt.Fprintf(c.Writer, ": keepalive %d\n\n", now.Unix())
			c.Writer.Flush()
		}
	}
}
