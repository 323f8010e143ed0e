package handlers

import (
	"SafeYatra/internal/service"
	"SafeYatra/internal/store"
	"SafeYatra/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
)

// handleListZones lists active zones unless ?active=false.
func (h *Handlers) handleListZones(c *gin.Context) {
	f := store.ZoneFilter{Type: filterValue(c, "type")}
	if c.DefaultQuery("active", "true") == "true" {
		active := true
		f.Active = &active
	}
	zones, err := h.Zones.List(c.Request.Context(), f)
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	response.Success(c, "ok", gin.H{"zones": zones})
}

func (h *Handlers) handleSearchZones(c *gin.Context) {
	zones, err := h.Zones.Search(c.Request.Context(), c.Query("q"), filterValue(c, "type"), cast.ToInt(c.DefaultQuery("limit", "20")))
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	response.Success(c, "ok", gin.H{"zones": zones})
}

func (h *Handlers) handleGetZone(c *gin.Context) {
	zone, err := h.Zones.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	response.Success(c, "ok", gin.H{"zone": zone})
}

func (h *Handlers) handleZoneStats(c *gin.Context) {
	stats, err := h.Zones.Stats(c.Request.Context())
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	response.Success(c, "ok", stats)
}

func (h *Handlers) handleCreateZone(c *gin.Context) {
	var in service.ZoneInput
	if !bindJSON(c, &in) {
		return
	}
	zone, err := h.Zones.Create(c.Request.Context(), actor(c), in)
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	response.Created(c, "Zone created", gin.H{"zone": zone})
}

func (h *Handlers) handleUpdateZone(c *gin.Context) {
	var p service.ZonePatch
	if !bindJSON(c, &p) {
		return
	}
	zone, err := h.Zones.Update(c.Request.Context(), actor(c), c.Param("id"), p)
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	response.Success(c, "Zone updated", gin.H{"zone": zone})
}

func (h *Handlers) handleDeleteZone(c *gin.Context) {
	if err := h.Zones.Delete(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		response.AbortWithError(c, err)
		return
	}
	response.Success(c, "Zone deleted", nil)
}
