package websocket

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"SafeYatra/internal/models"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Message 定义WebSocket消息结构
type Message struct {
	Event     string      `json:"event"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// ErrConnectionLimit is returned by Register when the hub is full.
var ErrConnectionLimit = errors.New(ErrConnectionLimitExceeded)

// Hub is the Connection Registry: it tracks live sessions, their rooms and
// delivers events to a room, a user or everyone. Delivery is best effort; a
// target with no live session is a no-op.
type Hub struct {
	// 注册的连接
	connections map[string]*Connection
	// 用户ID到连接ID的映射
	userConnections map[string]map[string]bool
	// 房间到连接ID的映射
	roomConnections map[string]map[string]bool
	// 连接计数
	connectionCount int64
	config          *Config
	mu              sync.RWMutex
	ctx             context.Context
	cancel          context.CancelFunc

	// shards and locks to reduce contention when fanout
	shardCount int
	shardConns []map[string]*Connection
	shardLocks []sync.RWMutex

	// broadcast worker pool
	broadcastJobs chan broadcastJob
	pingJobs      chan int

	events EventHandler
	closed sync.Once

	delivered int64
	dropped   int64
}

type broadcastJob struct {
	shard  int
	data   []byte
	except string
}

// NewHub 创建新的Hub实例
func NewHub(config *Config) *Hub {
	if config == nil {
		config = DefaultConfig()
	}
	ctx, cancel := context.WithCancel(context.Background())

	hub := &Hub{
		connections:     make(map[string]*Connection),
		userConnections: make(map[string]map[string]bool),
		roomConnections: make(map[string]map[string]bool),
		config:          config,
		ctx:             ctx,
		cancel:          cancel,
	}

	if hub.config.ShardCount <= 0 {
		hub.config.ShardCount = 1
	}
	hub.shardCount = hub.config.ShardCount
	hub.shardConns = make([]map[string]*Connection, hub.shardCount)
	hub.shardLocks = make([]sync.RWMutex, hub.shardCount)
	for i := 0; i < hub.shardCount; i++ {
		hub.shardConns[i] = make(map[string]*Connection)
	}

	if hub.config.BroadcastWorkerCount <= 0 {
		hub.config.BroadcastWorkerCount = 1
	}
	if hub.config.MessageQueueSize <= 0 {
		hub.config.MessageQueueSize = DefaultMessageQueueSize
	}
	hub.broadcastJobs = make(chan broadcastJob, hub.config.MessageQueueSize)
	for i := 0; i < hub.config.BroadcastWorkerCount; i++ {
		go hub.broadcastWorker()
	}

	if hub.config.EnableGlobalPing {
		if hub.config.PingWorkerCount <= 0 {
			hub.config.PingWorkerCount = 1
		}
		hub.pingJobs = make(chan int, hub.shardCount)
		for i := 0; i < hub.config.PingWorkerCount; i++ {
			go hub.pingWorker()
		}
	}

	go hub.run()
	return hub
}

// SetEventHandler installs the receiver of inbound session events.
func (h *Hub) SetEventHandler(eh EventHandler) {
	h.mu.Lock()
	h.events = eh
	h.mu.Unlock()
}

func (h *Hub) eventHandler() EventHandler {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.events
}

// run Hub主循环
func (h *Hub) run() {
	interval := h.config.HeartbeatInterval
	if interval <= 0 {
		interval = DefaultHeartbeatInterval * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			if h.config.EnableGlobalPing {
				for i := 0; i < h.shardCount; i++ {
					select {
					case h.pingJobs <- i:
					default:
					}
				}
			}
			h.checkHeartbeats()
		}
	}
}

// pingWorker 全局心跳worker
func (h *Hub) pingWorker() {
	for shard := range h.pingJobs {
		h.shardLocks[shard].RLock()
		for _, conn := range h.shardConns[shard] {
			if conn.Alive() && conn.Conn != nil {
				_ = conn.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second))
			}
		}
		h.shardLocks[shard].RUnlock()
	}
}

// Register joins conn to its rooms: "authorities" for authority and admin,
// "admin" for admin, and always the personal room of its user.
func (h *Hub) Register(conn *Connection) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if atomic.LoadInt64(&h.connectionCount) >= h.config.MaxConnections {
		logrus.Warnf("websocket connection limit reached: %d", h.config.MaxConnections)
		return ErrConnectionLimit
	}
	if conn.hub == nil {
		conn.hub = h
	}

	h.connections[conn.ID] = conn
	atomic.AddInt64(&h.connectionCount, 1)

	sh := h.shardIndex(conn.ID)
	h.shardLocks[sh].Lock()
	h.shardConns[sh][conn.ID] = conn
	h.shardLocks[sh].Unlock()

	if h.userConnections[conn.UserID] == nil {
		h.userConnections[conn.UserID] = make(map[string]bool)
	}
	h.userConnections[conn.UserID][conn.ID] = true

	for _, room := range RoomsFor(conn.Identity) {
		h.joinLocked(conn, room)
	}

	logrus.WithFields(logrus.Fields{
		"conn":  conn.ID,
		"user":  conn.UserID,
		"role":  conn.Role,
		"total": atomic.LoadInt64(&h.connectionCount),
	}).Info("websocket connection registered")
	return nil
}

// RoomsFor lists the rooms a session of id joins.
func RoomsFor(id models.Identity) []string {
	rooms := make([]string, 0, 3)
	if id.Role.IsAuthority() {
		rooms = append(rooms, RoomAuthorities)
	}
	if id.Role == models.RoleAdmin {
		rooms = append(rooms, RoomAdmin)
	}
	return append(rooms, UserRoom(id.UserID))
}

func (h *Hub) joinLocked(conn *Connection, room string) {
	if h.roomConnections[room] == nil {
		h.roomConnections[room] = make(map[string]bool)
	}
	h.roomConnections[room][conn.ID] = true
	conn.mu.Lock()
	conn.Rooms[room] = true
	conn.mu.Unlock()
}

// Unregister removes conn from every room and closes its send queue. A
// departing tourist is announced to the authorities room.
func (h *Hub) Unregister(conn *Connection) {
	h.mu.Lock()
	if _, exists := h.connections[conn.ID]; !exists {
		h.mu.Unlock()
		return
	}
	delete(h.connections, conn.ID)
	atomic.AddInt64(&h.connectionCount, -1)

	sh := h.shardIndex(conn.ID)
	h.shardLocks[sh].Lock()
	delete(h.shardConns[sh], conn.ID)
	h.shardLocks[sh].Unlock()

	if h.userConnections[conn.UserID] != nil {
		delete(h.userConnections[conn.UserID], conn.ID)
		if len(h.userConnections[conn.UserID]) == 0 {
			delete(h.userConnections, conn.UserID)
		}
	}

	conn.mu.Lock()
	for room := range conn.Rooms {
		if h.roomConnections[room] != nil {
			delete(h.roomConnections[room], conn.ID)
			if len(h.roomConnections[room]) == 0 {
				delete(h.roomConnections, room)
			}
		}
	}
	conn.Rooms = make(map[string]bool)
	conn.mu.Unlock()

	conn.markDead()
	close(conn.Send)
	h.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"conn":  conn.ID,
		"user":  conn.UserID,
		"total": atomic.LoadInt64(&h.connectionCount),
	}).Info("websocket connection unregistered")

	if conn.Role == models.RoleTourist {
		h.BroadcastToRoom(RoomAuthorities, EventTouristOffline, map[string]interface{}{
			"touristId":   conn.UserID,
			"touristName": conn.Name,
			"timestamp":   time.Now().UTC().Format(time.RFC3339Nano),
		})
	}
}

func encode(event string, data interface{}) ([]byte, error) {
	return json.Marshal(&Message{Event: event, Data: data, Timestamp: time.Now().UnixMilli()})
}

// BroadcastToRoom delivers to every session in room and returns how many
// sessions it was queued for.
func (h *Hub) BroadcastToRoom(room, event string, data interface{}) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members := h.roomConnections[room]
	if len(members) == 0 {
		return 0
	}
	payload, err := encode(event, data)
	if err != nil {
		logrus.Errorf("websocket encode %s failed: %v", event, err)
		return 0
	}
	sent := 0
	for connID := range members {
		if conn, ok := h.connections[connID]; ok && conn.Alive() {
			if h.trySend(conn, payload) {
				sent++
			}
		}
	}
	return sent
}

// BroadcastToUser delivers to every session of userID.
func (h *Hub) BroadcastToUser(userID, event string, data interface{}) int {
	return h.BroadcastToRoom(UserRoom(userID), event, data)
}

// BroadcastAll fans out to every session through the shard workers and
// returns the number of sessions connected at enqueue time.
func (h *Hub) BroadcastAll(event string, data interface{}) int {
	return h.broadcastAllExcept("", event, data)
}

// BroadcastAllExcept is BroadcastAll skipping one connection.
func (h *Hub) BroadcastAllExcept(connID, event string, data interface{}) int {
	return h.broadcastAllExcept(connID, event, data)
}

func (h *Hub) broadcastAllExcept(except, event string, data interface{}) int {
	n := int(atomic.LoadInt64(&h.connectionCount))
	if n == 0 || h.ctx.Err() != nil {
		return 0
	}
	payload, err := encode(event, data)
	if err != nil {
		logrus.Errorf("websocket encode %s failed: %v", event, err)
		return 0
	}
	for i := 0; i < h.shardCount; i++ {
		select {
		case h.broadcastJobs <- broadcastJob{shard: i, data: payload, except: except}:
		default:
			atomic.AddInt64(&h.dropped, 1)
			logrus.Warnf("broadcast queue full, dropping %s for shard %d", event, i)
		}
	}
	if except != "" {
		n--
	}
	return n
}

// broadcastWorker 广播worker
func (h *Hub) broadcastWorker() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case job := <-h.broadcastJobs:
			h.shardLocks[job.shard].RLock()
			for id, conn := range h.shardConns[job.shard] {
				if id != job.except && conn.Alive() {
					h.trySend(conn, job.data)
				}
			}
			h.shardLocks[job.shard].RUnlock()
		}
	}
}

// trySend 背压策略
func (h *Hub) trySend(conn *Connection, data []byte) bool {
	if h.config.DropOnFull {
		select {
		case conn.Send <- data:
			atomic.AddInt64(&h.delivered, 1)
			return true
		default:
		}
	} else {
		timeout := h.config.SendTimeout
		if timeout <= 0 {
			timeout = 50 * time.Millisecond
		}
		t := time.NewTimer(timeout)
		defer t.Stop()
		select {
		case conn.Send <- data:
			atomic.AddInt64(&h.delivered, 1)
			return true
		case <-t.C:
		}
	}

	atomic.AddInt64(&h.dropped, 1)
	logrus.WithFields(logrus.Fields{"conn": conn.ID, "user": conn.UserID}).Warn(ErrSendBufferFull)
	if h.config.CloseOnBackpressure && conn.Conn != nil {
		_ = conn.Conn.Close()
	}
	return false
}

// checkHeartbeats 检查心跳
func (h *Hub) checkHeartbeats() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	now := time.Now()
	for _, conn := range h.connections {
		if conn.Conn != nil && now.Sub(conn.lastPing()) > h.config.ConnectionTimeout {
			logrus.Warnf("websocket connection %s heartbeat timeout", conn.ID)
			conn.markDead()
			_ = conn.Conn.Close()
		}
	}
}

// GetConnectionCount 获取当前连接数
func (h *Hub) GetConnectionCount() int64 {
	return atomic.LoadInt64(&h.connectionCount)
}

// GetUserConnections 获取用户的连接数
func (h *Hub) GetUserConnections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.userConnections[userID])
}

// GetRoomConnections 获取房间的连接数
func (h *Hub) GetRoomConnections(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.roomConnections[room])
}

// Stats reports queue outcomes since start.
func (h *Hub) Stats() map[string]int64 {
	return map[string]int64{
		"connections": h.GetConnectionCount(),
		"users":       int64(h.userCount()),
		"delivered":   atomic.LoadInt64(&h.delivered),
		"dropped":     atomic.LoadInt64(&h.dropped),
	}
}

func (h *Hub) userCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.userConnections)
}

// Running reports whether Close has not been called.
func (h *Hub) Running() bool { return h.ctx.Err() == nil }

// Close 关闭Hub
func (h *Hub) Close() {
	h.closed.Do(func() {
		h.cancel()
		h.mu.Lock()
		for _, conn := range h.connections {
			if conn.Conn != nil {
				_ = conn.Conn.Close()
			}
		}
		h.mu.Unlock()
		logrus.Info("websocket hub closed")
	})
}

// shardIndex 计算分片索引
func (h *Hub) shardIndex(id string) int {
	if h.shardCount <= 1 {
		return 0
	}
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(id))
	return int(hasher.Sum32() % uint32(h.shardCount))
}
