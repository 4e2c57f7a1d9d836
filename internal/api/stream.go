package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

var keepAliveInterval = 15 * time.Second

// stream pushes events to the client as Server-Sent Events until the client
// goes away or the broadcaster shuts down. institution_id narrows the stream
// to one institution.
func (h *Handler) stream(c *gin.Context) {
	id, ch := h.broadcaster.Subscribe(c.Query("institution_id"))
	defer h.broadcaster.Unsubscribe(id)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			c.SSEvent(string(e.Type), e)
			c.Writer.Flush()
		case <-ticker.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
			c.Writer.Flush()
		}
	}
}
