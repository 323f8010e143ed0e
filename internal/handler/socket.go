package handlers

import (
	"context"

	"SafeYatra/internal/models"
	"SafeYatra/internal/service"
	apperrors "SafeYatra/pkg/errors"
	ws "SafeYatra/pkg/websocket"

	"github.com/goccy/go-json"
)

// HandleEvent serves inbound socket events. Writes go through the same
// services as HTTP so socket and REST clients see identical behaviour.
func (h *Handlers) HandleEvent(ctx context.Context, conn *ws.Connection, event string, data json.RawMessage) error {
	switch event {
	case ws.EventLocationUpdate:
		if conn.Role != models.RoleTourist {
			return apperrors.Forbidden("only tourists can report location")
		}
		var in service.LocationInput
		if err := decode(data, &in); err != nil {
			return err
		}
		_, err := h.Locations.Record(ctx, conn.Identity, in)
		return err

	case ws.EventSOSTrigger:
		var in service.SOSInput
		if err := decode(data, &in); err != nil {
			return err
		}
		_, err := h.SOS.Create(ctx, conn.Identity, in)
		return err

	case ws.EventSOSAcknowledge:
		var in struct {
			AlertID string `json:"alertId"`
		}
		if err := decode(data, &in); err != nil {
			return err
		}
		if in.AlertID == "" {
			return apperrors.Validation("alertId is required")
		}
		_, err := h.SOS.Acknowledge(ctx, conn.Identity, in.AlertID)
		return err

	default:
		return apperrors.Validation("%s: %s", ws.ErrUnknownEvent, event)
	}
}

func decode(data json.RawMessage, dst interface{}) error {
	if len(data) == 0 {
		return apperrors.Validation("event payload is required")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return apperrors.Validation("invalid event payload")
	}
	return nil
}
