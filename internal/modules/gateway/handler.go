package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/slidecast/core/internal/modules/presence"
	"github.com/slidecast/core/internal/transport"
)

// RegisterRoutes mounts socket.io plus the live stats and room presence
// endpoints.
func RegisterRoutes(rg *gin.RouterGroup, hub *Hub) {
	handler := gin.WrapH(hub.Handler())
	rg.Any("/socket.io", handler)
	rg.Any("/socket.io/*any", handler)

	rg.GET("/live/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"total": hub.ClientCount(""),
			"rooms": hub.Rooms(),
		})
	})

	rg.GET("/live/rooms/:key/presence", func(c *gin.Context) {
		room := c.Param("key")
		raws := hub.broker.PresenceSnapshot(transport.PresenceTopic(room))
		members := presence.Snapshot(raws, hub.heartbeat, hub.staleGrace)
		c.JSON(http.StatusOK, gin.H{"room": room, "members": members})
	})
}
