package handlers

import (
	"context"
	"net/http"
	"time"

	ws "SafeYatra/pkg/websocket"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HealthCheck 健康检查接口
func (h *Handlers) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	body := gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "SafeYatra API",
	}
	if h.Hub != nil {
		body["realtime"] = gin.H{
			"running":     h.Hub.Running(),
			"connections": h.Hub.GetConnectionCount(),
		}
		if h.Stream != nil {
			body["realtime"].(gin.H)["streams"] = h.Stream.Count()
		}
	}
	if h.Monitor != nil {
		body["system"] = h.Monitor.GetSystemSummary()
	}

	// 检查数据库连接
	if err := h.Store.Ping(ctx); err != nil {
		body["status"] = "unhealthy"
		body["error"] = "database ping failed"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	c.JSON(http.StatusOK, body)
}

// handleEventStream is the server-sent events fallback for clients that
// cannot hold a websocket. It carries the same events as the socket rooms.
func (h *Handlers) handleEventStream(c *gin.Context) {
	id := actor(c)
	h.Stream.Serve(c, "sse_"+uuid.NewString(), ws.RoomsFor(id)...)
}
