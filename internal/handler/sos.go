package handlers

import (
	"SafeYatra/internal/service"
	"SafeYatra/internal/store"
	"SafeYatra/pkg/response"

	"github.com/gin-gonic/gin"
)

func (h *Handlers) handleCreateSOS(c *gin.Context) {
	var in service.SOSInput
	if !bindJSON(c, &in) {
		return
	}
	alert, err := h.SOS.Create(c.Request.Context(), actor(c), in)
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	response.Created(c, "SOS alert sent successfully", gin.H{
		"alertId": alert.ID,
		"status":  alert.Status,
		"alert":   alert,
	})
}

func (h *Handlers) handleListSOS(c *gin.Context) {
	page, limit := pageParams(c)
	f := store.AlertFilter{
		Status:    filterValue(c, "status"),
		AlertType: filterValue(c, "type"),
		Page:      page,
		Limit:     limit,
	}
	alerts, pagination, err := h.SOS.List(c.Request.Context(), actor(c), f)
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	response.Success(c, "ok", gin.H{"alerts": alerts, "pagination": pagination})
}

func (h *Handlers) handleMySOS(c *gin.Context) {
	alerts, err := h.SOS.ListMine(c.Request.Context(), actor(c))
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	response.Success(c, "ok", gin.H{"alerts": alerts})
}

func (h *Handlers) handleActiveCount(c *gin.Context) {
	counts, err := h.SOS.ActiveCounts(c.Request.Context())
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	response.Success(c, "ok", counts)
}

func (h *Handlers) handleGetSOS(c *gin.Context) {
	alert, err := h.SOS.Get(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	response.Success(c, "ok", gin.H{"alert": alert})
}

func (h *Handlers) handleUpdateSOSStatus(c *gin.Context) {
	var in service.StatusInput
	if !bindJSON(c, &in) {
		return
	}
	alert, err := h.SOS.UpdateStatus(c.Request.Context(), actor(c), c.Param("id"), in)
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	response.Success(c, "Alert status updated", gin.H{"status": alert.Status, "alert": alert})
}

func (h *Handlers) handleCancelSOS(c *gin.Context) {
	if _, err := h.SOS.Cancel(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		response.AbortWithError(c, err)
		return
	}
	response.Success(c, "SOS alert cancelled", nil)
}
