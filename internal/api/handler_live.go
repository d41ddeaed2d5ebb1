package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Live handles GET /api/live and upgrades it to a websocket.
func (h *Handler) Live(c *gin.Context) {
	if h.hub == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "live updates are not available"})
		return
	}
	h.hub.ServeWS(c.Writer, c.Request)
}
