package websocket

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"SafeYatra/internal/models"
	apperrors "SafeYatra/pkg/errors"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// EventHandler receives inbound session events other than ping and typing
// indicators. Events from one connection arrive in receipt order. A
// returned error is reported back to that connection only.
type EventHandler interface {
	HandleEvent(ctx context.Context, conn *Connection, event string, data json.RawMessage) error
}

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc func(ctx context.Context, conn *Connection, event string, data json.RawMessage) error

func (f EventHandlerFunc) HandleEvent(ctx context.Context, conn *Connection, event string, data json.RawMessage) error {
	return f(ctx, conn, event, data)
}

// Connection 表示一个WebSocket连接
type Connection struct {
	ID string
	models.Identity
	Conn  *websocket.Conn
	Send  chan []byte
	Rooms map[string]bool

	hub      *Hub
	mu       sync.RWMutex
	alive    atomic.Bool
	pingAt   atomic.Int64
	typingIn map[string]bool
}

// NewConnection builds an unregistered session for identity. ws may be nil
// for in-process sessions.
func NewConnection(hub *Hub, ws *websocket.Conn, identity models.Identity) *Connection {
	size := DefaultMessageBufferSize
	if hub != nil && hub.config.MessageBufferSize > 0 {
		size = hub.config.MessageBufferSize
	}
	c := &Connection{
		ID:       "conn_" + uuid.NewString(),
		Identity: identity,
		Conn:     ws,
		Send:     make(chan []byte, size),
		Rooms:    make(map[string]bool),
		hub:      hub,
		typingIn: make(map[string]bool),
	}
	c.alive.Store(true)
	c.touch()
	return c
}

func (c *Connection) Alive() bool { return c.alive.Load() }

func (c *Connection) markDead() { c.alive.Store(false) }

func (c *Connection) touch() { c.pingAt.Store(time.Now().UnixNano()) }

func (c *Connection) lastPing() time.Time { return time.Unix(0, c.pingAt.Load()) }

// InRoom 检查是否在指定房间中
func (c *Connection) InRoom(room string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Rooms[room]
}

// RoomList 获取连接所属的房间
func (c *Connection) RoomList() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rooms := make([]string, 0, len(c.Rooms))
	for room := range c.Rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

// Emit queues an event for this connection only.
func (c *Connection) Emit(event string, data interface{}) bool {
	payload, err := encode(event, data)
	if err != nil {
		logrus.Errorf("websocket encode %s failed: %v", event, err)
		return false
	}
	h := c.hub
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.connections[c.ID]; !ok || !c.Alive() {
		return false
	}
	return h.trySend(c, payload)
}

// EmitError reports a failed inbound event back to the session. Internal
// failures are masked.
func (c *Connection) EmitError(event string, err error) {
	kind := apperrors.KindOf(err)
	msg := apperrors.GetMessage(err)
	if apperrors.HTTPStatus(kind) >= http.StatusInternalServerError {
		msg = "internal server error"
	}
	c.Emit(EventError, map[string]string{
		"event":   event,
		"code":    string(kind),
		"message": msg,
	})
}

// newUpgrader 根据配置创建WebSocket升级器
func newUpgrader(cfg *Config) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:    cfg.ReadBufferSize,
		WriteBufferSize:   cfg.WriteBufferSize,
		CheckOrigin:       originChecker(cfg.AllowedOrigins),
		EnableCompression: cfg.EnableCompression,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(strings.TrimSpace(o), "/")] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set["*"] || set[strings.TrimRight(origin, "/")]
	}
}

// ServeWS upgrades an authenticated request and runs the session until it
// disconnects.
func ServeWS(hub *Hub, w http.ResponseWriter, r *http.Request, identity models.Identity) {
	upgrader := newUpgrader(hub.config)
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Errorf("websocket upgrade failed: %v", err)
		return
	}

	if hub.config.EnableCompression {
		ws.EnableWriteCompression(true)
		if hub.config.CompressionLevel != 0 {
			_ = ws.SetCompressionLevel(hub.config.CompressionLevel)
		}
	}

	conn := NewConnection(hub, ws, identity)
	if err := hub.Register(conn); err != nil {
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()),
			time.Now().Add(time.Second))
		_ = ws.Close()
		return
	}

	go conn.writePump()
	conn.Emit(EventConnected, map[string]interface{}{
		"userId": identity.UserID,
		"role":   identity.Role,
		"rooms":  conn.RoomList(),
	})
	go conn.readPump()
}

// readPump 读取消息的协程
func (c *Connection) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(int64(c.hub.config.MaxMessageSize))
	_ = c.Conn.SetReadDeadline(time.Now().Add(c.hub.config.ConnectionTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.touch()
		return c.Conn.SetReadDeadline(time.Now().Add(c.hub.config.ConnectionTimeout))
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.Errorf("websocket read error: %v", err)
			}
			return
		}
		c.touch()
		_ = c.Conn.SetReadDeadline(time.Now().Add(c.hub.config.ConnectionTimeout))
		c.handleMessage(c.hub.ctx, message)
	}
}

// writePump 发送消息的协程
func (c *Connection) writePump() {
	var tick <-chan time.Time
	if !c.hub.config.EnableGlobalPing {
		interval := c.hub.config.HeartbeatInterval
		if interval <= 0 {
			interval = DefaultHeartbeatInterval * time.Second
		}
		ticker := time.NewTicker(time.Duration(float64(interval) * 0.9))
		defer ticker.Stop()
		tick = ticker.C
	}
	defer c.Conn.Close()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// one frame per event; clients parse each frame as a single JSON document
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-tick:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// handleMessage 处理接收到的消息
func (c *Connection) handleMessage(ctx context.Context, raw []byte) {
	var msg inbound
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Event == "" {
		c.EmitError("", apperrors.Validation(ErrInvalidMessage))
		return
	}

	switch msg.Event {
	case EventPing:
		c.touch()
		c.Emit(EventPong, nil)
	case EventTypingStart, EventTypingStop:
		c.handleTyping(msg.Event, msg.Data)
	default:
		eh := c.hub.eventHandler()
		if eh == nil {
			c.EmitError(msg.Event, apperrors.Validation("%s: %s", ErrUnknownEvent, msg.Event))
			return
		}
		if err := eh.HandleEvent(ctx, c, msg.Event, msg.Data); err != nil {
			logrus.WithFields(logrus.Fields{
				"conn":  c.ID,
				"user":  c.UserID,
				"event": msg.Event,
			}).Warnf("websocket event failed: %v", err)
			c.EmitError(msg.Event, err)
		}
	}
}

// handleTyping relays typing indicators to every other session. Events
// without a chatId and repeated start/stop for the same chat are dropped.
func (c *Connection) handleTyping(event string, data json.RawMessage) {
	var body struct {
		ChatID string `json:"chatId"`
	}
	if len(data) == 0 || json.Unmarshal(data, &body) != nil || body.ChatID == "" {
		return
	}

	starting := event == EventTypingStart
	c.mu.Lock()
	if c.typingIn[body.ChatID] == starting {
		c.mu.Unlock()
		return
	}
	if starting {
		c.typingIn[body.ChatID] = true
	} else {
		delete(c.typingIn, body.ChatID)
	}
	c.mu.Unlock()

	if starting {
		c.hub.BroadcastAllExcept(c.ID, EventUserTyping, map[string]string{
			"userId": c.UserID, "userName": c.Name, "chatId": body.ChatID,
		})
		return
	}
	c.hub.BroadcastAllExcept(c.ID, EventUserStoppedTyping, map[string]string{
		"userId": c.UserID, "chatId": body.ChatID,
	})
}
