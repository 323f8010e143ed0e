package handlers

import (
	"time"

	"SafeYatra/internal/models"
	"SafeYatra/internal/service"
	"SafeYatra/internal/store"
	apperrors "SafeYatra/pkg/errors"
	"SafeYatra/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
)

func (h *Handlers) handleListNotifications(c *gin.Context) {
	page, limit := pageParams(c)
	f := store.NotificationFilter{
		UnreadOnly: cast.ToBool(c.Query("unreadOnly")),
		Type:       filterValue(c, "type"),
		Page:       page,
		Limit:      limit,
	}
	result, err := h.Notifications.List(c.Request.Context(), actor(c), f)
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	response.Success(c, "ok", result)
}

func (h *Handlers) handleCreateNotification(c *gin.Context) {
	var in service.NotificationInput
	if !bindJSON(c, &in) {
		return
	}
	note, err := h.Notifications.Create(c.Request.Context(), actor(c), in)
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	response.Created(c, "Notification created", gin.H{"notification": note})
}

func (h *Handlers) handleUnreadCount(c *gin.Context) {
	n, err := h.Notifications.UnreadCount(c.Request.Context(), actor(c))
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	response.Success(c, "ok", gin.H{"count": n})
}

// handleNotificationsSince serves reconnect catch-up: everything after
// ?since, oldest first.
func (h *Handlers) handleNotificationsSince(c *gin.Context) {
	since, err := optionalTimestamp(c, "since")
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	if since == nil {
		response.AbortWithError(c, apperrors.Validation("since is required"))
		return
	}
	items, err := h.Notifications.Since(c.Request.Context(), actor(c), *since, cast.ToInt(c.Query("limit")))
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	response.Success(c, "ok", gin.H{
		"notifications": items,
		"serverTime":    models.NewTimestamp(time.Now()),
	})
}

func (h *Handlers) handleMarkRead(c *gin.Context) {
	note, err := h.Notifications.MarkRead(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	response.Success(c, "Notification marked as read", gin.H{"notification": note})
}

func (h *Handlers) handleMarkAllRead(c *gin.Context) {
	n, err := h.Notifications.MarkAllRead(c.Request.Context(), actor(c))
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	response.Success(c, "All notifications marked as read", gin.H{"updated": n})
}

func (h *Handlers) handleDeleteNotification(c *gin.Context) {
	if err := h.Notifications.Delete(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		response.AbortWithError(c, err)
		return
	}
	response.Success(c, "Notification deleted", nil)
}

func (h *Handlers) handleClearNotifications(c *gin.Context) {
	n, err := h.Notifications.Clear(c.Request.Context(), actor(c))
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	response.Success(c, "All notifications cleared", gin.H{"deleted": n})
}
