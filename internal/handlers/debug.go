package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RoomStats reports open websocket connections per chat.
type RoomStats interface {
	RoomStats() map[int]int
}

// RegisterDebugRoutes wires debug-only endpoints. They are not registered
// at all unless enabled.
func RegisterDebugRoutes(router gin.IRouter, rooms RoomStats, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/rooms", func(c *gin.Context) {
		stats := rooms.RoomStats()
		total := 0
		for _, n := range stats {
			total += n
		}
		c.JSON(http.StatusOK, gin.H{"rooms": stats, "clients": total})
	})
}
