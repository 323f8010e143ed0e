package websocket

import (
	"net/http"
	"time"

	"SafeYatra/internal/models"

	"github.com/gin-gonic/gin"
)

// IdentityFunc extracts the verified caller set by the auth middleware.
type IdentityFunc func(c *gin.Context) (models.Identity, bool)

// Handler WebSocket HTTP处理器
type Handler struct {
	hub      *Hub
	identify IdentityFunc
}

// NewHandler 创建新的WebSocket处理器
func NewHandler(hub *Hub, identify IdentityFunc) *Handler {
	return &Handler{hub: hub, identify: identify}
}

// RegisterRoutes mounts the upgrade endpoint behind auth and the public
// stats and health endpoints.
func RegisterRoutes(r gin.IRouter, handler *Handler, auth ...gin.HandlerFunc) {
	guarded := func(h gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, auth...), h)
	}
	r.GET(RouteWebSocket, guarded(handler.HandleWebSocket)...)
	r.GET(RouteWebSocketUser, guarded(handler.GetUserStats)...)
	r.GET(RouteWebSocketStats, handler.GetStats)
	r.GET(RouteWebSocketHealth, handler.HealthCheck)
}

// HandleWebSocket 处理WebSocket连接请求
func (h *Handler) HandleWebSocket(c *gin.Context) {
	identity, ok := h.identify(c)
	if !ok || identity.UserID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required", "code": "UNAUTHORIZED"})
		return
	}
	ServeWS(h.hub, c.Writer, c.Request, identity)
}

// GetStats 获取WebSocket统计信息
func (h *Handler) GetStats(c *gin.Context) {
	stats := gin.H{
		"total_connections":     h.hub.GetConnectionCount(),
		"authority_connections": h.hub.GetRoomConnections(RoomAuthorities),
		"admin_connections":     h.hub.GetRoomConnections(RoomAdmin),
		"queue":                 h.hub.Stats(),
		"config":                GetConfigSummary(h.hub.config),
	}
	c.JSON(http.StatusOK, stats)
}

// GetUserStats 获取特定用户的连接统计
func (h *Handler) GetUserStats(c *gin.Context) {
	userID := c.Param("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required", "code": "VALIDATION_ERROR"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":          userID,
		"connection_count": h.hub.GetUserConnections(userID),
	})
}

// HealthCheck WebSocket健康检查
func (h *Handler) HealthCheck(c *gin.Context) {
	if !h.hub.Running() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  "websocket hub closed",
		})
		return
	}

	total := h.hub.GetConnectionCount()
	limit := h.hub.config.MaxConnections
	status := "healthy"
	if total >= limit*9/10 {
		status = "warning"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":            status,
		"total_connections": total,
		"max_connections":   limit,
		"connection_usage":  float64(total) / float64(limit) * 100,
		"hub_running":       true,
		"timestamp":         time.Now().Unix(),
	})
}
