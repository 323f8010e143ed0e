package listeners

import (
	"context"

	"SafeYatra/internal/models"
	"SafeYatra/internal/service"
	"SafeYatra/pkg/logger"
	"SafeYatra/pkg/metrics"
	"SafeYatra/pkg/util"
	ws "SafeYatra/pkg/websocket"

	"go.uber.org/zap"
)

// Broadcaster is the slice of the websocket hub the fan-out needs.
type Broadcaster interface {
	BroadcastToRoom(room, event string, data interface{}) int
	BroadcastToUser(userID, event string, data interface{}) int
	BroadcastAll(event string, data interface{}) int
}

// Realtime turns committed domain signals into socket events. Delivery is
// best effort: a session that is offline simply misses the event and
// catches up through the notification list.
type Realtime struct {
	hub     Broadcaster
	metrics *metrics.Metrics
}

func NewRealtime(hub Broadcaster, m *metrics.Metrics) *Realtime {
	return &Realtime{hub: hub, metrics: m}
}

// Connect registers every handler on sig.
func (r *Realtime) Connect(sig *util.Signals) {
	sig.Connect(models.SigLocationRecorded, r.onLocation)
	sig.Connect(models.SigSOSCreated, r.onSOSCreated)
	sig.Connect(models.SigSOSStatusChanged, r.onSOSStatus)
	sig.Connect(models.SigSOSCancelled, r.onSOSCancelled)
	sig.Connect(models.SigNotificationCreated, r.onNotification)
}

func (r *Realtime) onLocation(sender any, params ...any) {
	sample := sender.(*models.LocationSample)
	actor, _ := param[models.Identity](params, 0)

	payload := map[string]interface{}{
		"touristId":    sample.UserID,
		"touristName":  actor.Name,
		"latitude":     sample.Latitude,
		"longitude":    sample.Longitude,
		"placeName":    sample.PlaceName,
		"zoneType":     sample.ZoneType,
		"batteryLevel": sample.BatteryLevel,
		"timestamp":    sample.RecordedAt,
	}
	r.send(ws.EventTouristLocationUpdate, r.hub.BroadcastToRoom(ws.RoomAuthorities, ws.EventTouristLocationUpdate, payload))
	if r.metrics != nil {
		r.metrics.RecordLocation(string(sample.ZoneType))
	}
}

func (r *Realtime) onSOSCreated(sender any, params ...any) {
	alert := sender.(*models.SOSAlert)
	creator, _ := param[*models.User](params, 0)

	payload := map[string]interface{}{
		"alertId":     alert.ID,
		"userId":      alert.UserID,
		"latitude":    alert.Latitude,
		"longitude":   alert.Longitude,
		"alertType":   alert.AlertType,
		"description": alert.Description,
		"placeName":   alert.PlaceName,
		"status":      alert.Status,
		"createdAt":   alert.CreatedAt,
	}
	if creator != nil {
		payload["userName"] = creator.Name
		payload["userPhone"] = creator.Phone
	}
	n := r.hub.BroadcastToRoom(ws.RoomAuthorities, ws.EventNewSOSAlert, payload)
	r.send(ws.EventNewSOSAlert, n)
	if n == 0 {
		logger.Warn("sos raised with no authority online", zap.String("alertId", alert.ID))
	}
	if r.metrics != nil {
		r.metrics.RecordSOSCreated(alert.AlertType)
	}
}

func (r *Realtime) onSOSStatus(sender any, params ...any) {
	alert := sender.(*models.SOSAlert)
	actor, _ := param[models.Identity](params, 0)
	prev, _ := param[models.SOSStatus](params, 1)

	r.send(ws.EventSOSStatusUpdate, r.hub.BroadcastAll(ws.EventSOSStatusUpdate, map[string]interface{}{
		"alertId":   alert.ID,
		"status":    alert.Status,
		"updatedBy": actor.Name,
	}))

	if alert.Status == models.SOSAcknowledged {
		at := alert.UpdatedAt
		if alert.AcknowledgedAt != nil {
			at = *alert.AcknowledgedAt
		}
		r.send(ws.EventSOSAcknowledged, r.hub.BroadcastToUser(alert.UserID, ws.EventSOSAcknowledged, map[string]interface{}{
			"alertId":        alert.ID,
			"acknowledgedBy": actor.Name,
			"timestamp":      at,
		}))
	}
	if r.metrics != nil {
		r.metrics.RecordSOSTransition(string(prev), string(alert.Status))
	}
}

func (r *Realtime) onSOSCancelled(sender any, params ...any) {
	alert := sender.(*models.SOSAlert)
	actor, _ := param[models.Identity](params, 0)

	r.send(ws.EventSOSCancelled, r.hub.BroadcastToRoom(ws.RoomAuthorities, ws.EventSOSCancelled, map[string]interface{}{
		"alertId":     alert.ID,
		"cancelledBy": actor.Name,
	}))
	if r.metrics != nil {
		r.metrics.RecordSOSTransition(string(models.SOSActive), string(models.SOSCancelled))
	}
}

func (r *Realtime) onNotification(sender any, params ...any) {
	note := sender.(*models.Notification)
	r.send(ws.EventNotification, r.hub.BroadcastToUser(note.UserID, ws.EventNotification, note))
	if r.metrics != nil {
		r.metrics.RecordNotification(string(note.Type))
		if note.Title == service.HighRiskTitle {
			r.metrics.RecordHighRiskWarning()
		}
	}
}

func (r *Realtime) send(event string, n int) {
	if r.metrics != nil {
		r.metrics.RecordRealtime(event, n)
	}
	logger.Debug("realtime event", zap.String("event", event), zap.Int("sessions", n))
}

// param returns params[i] as T when present.
func param[T any](params []any, i int) (T, bool) {
	var zero T
	if i >= len(params) {
		return zero, false
	}
	v, ok := params[i].(T)
	return v, ok
}

// Sessions is sampled by the system monitor.
func Sessions(hub interface{ GetConnectionCount() int64 }, m *metrics.Metrics) metrics.GaugeFunc {
	return func(ctx context.Context) float64 {
		n := hub.GetConnectionCount()
		if m != nil {
			m.SetRealtimeSessions(n)
		}
		return float64(n)
	}
}
