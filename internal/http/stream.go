package http

import (
	"io"

	"github.com/gin-gonic/gin"
)

// streamEvents writes every value received from ch as a server-sent event
// until ch closes or the client goes away.
func streamEvents[T any](c *gin.Context, event string, ch <-chan T) {
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case v, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(event, v)
			return true
		}
	})
}
