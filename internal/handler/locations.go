package handlers

import (
	"SafeYatra/internal/service"
	apperrors "SafeYatra/pkg/errors"
	"SafeYatra/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
)

func (h *Handlers) handleRecordLocation(c *gin.Context) {
	var in service.LocationInput
	if !bindJSON(c, &in) {
		return
	}
	sample, err := h.Locations.Record(c.Request.Context(), actor(c), in)
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	response.Success(c, "Location updated", gin.H{
		"locationId": sample.ID,
		"zoneType":   sample.ZoneType,
	})
}

// subject resolves whose locations are read. Authorities may name any
// user through ?userId; everyone else reads their own.
func subject(c *gin.Context) (string, error) {
	me := actor(c)
	target := c.Query("userId")
	if target == "" || target == me.UserID {
		return me.UserID, nil
	}
	if !me.Role.IsAuthority() {
		return "", apperrors.Forbidden("only authorities can view another user's locations")
	}
	return target, nil
}

func (h *Handlers) handleLocationHistory(c *gin.Context) {
	userID, err := subject(c)
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	since, err := optionalTimestamp(c, "startDate", "since")
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	until, err := optionalTimestamp(c, "endDate", "until")
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	locations, err := h.Locations.History(c.Request.Context(), userID, since, until, cast.ToInt(c.Query("limit")))
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	response.Success(c, "ok", gin.H{"locations": locations})
}

func (h *Handlers) handleCurrentLocation(c *gin.Context) {
	userID, err := subject(c)
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	location, err := h.Locations.Current(c.Request.Context(), userID)
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	response.Success(c, "ok", gin.H{"location": location})
}

func (h *Handlers) handleNearby(c *gin.Context) {
	tourists, err := h.Locations.Nearby(c.Request.Context(), actor(c))
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	response.Success(c, "ok", gin.H{"tourists": tourists})
}

func (h *Handlers) handleHeatmap(c *gin.Context) {
	cells, err := h.Locations.Heatmap(c.Request.Context(), cast.ToInt(c.DefaultQuery("hours", "24")))
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	response.Success(c, "ok", gin.H{"heatmap": cells})
}
