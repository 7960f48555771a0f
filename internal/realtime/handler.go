package realtime

import (
	"context"
	"encoding/json"

	"tradelink_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// SSEHandler returns the Gin handler for the event stream. The auth
// middleware has already resolved the identity; EventSource clients pass the
// token as a query parameter.
func SSEHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := httpkit.MustGetIdentity(c)
		if identity == nil {
			return
		}

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("X-Accel-Buffering", "no")

		conn, err := svc.Connect(c.Request.Context(), identity.UserID())
		if httpkit.HandleError(c, err) {
			return
		}
		// The request context is already canceled by the time the stream
		// closes; presence rebroadcast still needs a usable context.
		defer svc.Disconnect(context.WithoutCancel(c.Request.Context()), conn)

		c.SSEvent(EventConnected, gin.H{"userId": identity.UserID()})
		c.Writer.Flush()

		clientGone := c.Request.Context().Done()
		for {
			select {
			case <-clientGone:
				return
			case event, ok := <-conn.Events:
				if !ok {
					return
				}
				data, _ := json.Marshal(event.Payload)
				c.SSEvent(event.Name, string(data))
				c.Writer.Flush()
			}
		}
	}
}
