package listeners

import (
	"SafeYatra/pkg/sse"
	ws "SafeYatra/pkg/websocket"
)

// Stream delivers to server-sent event clients, which join the same rooms
// as websocket sessions.
type Stream struct{ hub *sse.Hub }

func NewStream(h *sse.Hub) Stream { return Stream{hub: h} }

func (s Stream) BroadcastToRoom(room, event string, data interface{}) int {
	return s.hub.SendToGroup(room, event, data)
}

func (s Stream) BroadcastToUser(userID, event string, data interface{}) int {
	return s.hub.SendToGroup(ws.UserRoom(userID), event, data)
}

func (s Stream) BroadcastAll(event string, data interface{}) int {
	return s.hub.SendAll(event, data)
}

// Fanout delivers through every transport and reports the total.
type Fanout []Broadcaster

func (f Fanout) BroadcastToRoom(room, event string, data interface{}) int {
	n := 0
	for _, b := range f {
		n += b.BroadcastToRoom(room, event, data)
	}
	return n
}

func (f Fanout) BroadcastToUser(userID, event string, data interface{}) int {
	n := 0
	for _, b := range f {
		n += b.BroadcastToUser(userID, event, data)
	}
	return n
}

func (f Fanout) BroadcastAll(event string, data interface{}) int {
	n := 0
	for _, b := range f {
		n += b.BroadcastAll(event, data)
	}
	return n
}
