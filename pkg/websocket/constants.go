package websocket

// 房间
const (
	RoomAuthorities = "authorities"
	RoomAdmin       = "admin"
	userRoomPrefix  = "user_"
)

// UserRoom is the personal room every session of userID joins.
func UserRoom(userID string) string { return userRoomPrefix + userID }

// 入站事件
const (
	EventPing           = "ping"
	EventLocationUpdate = "location_update"
	EventSOSTrigger     = "sos_trigger"
	EventSOSAcknowledge = "sos_acknowledge"
	EventTypingStart    = "typing_start"
	EventTypingStop     = "typing_stop"
)

// 出站事件
const (
	EventPong                  = "pong"
	EventConnected             = "connected"
	EventError                 = "error"
	EventTouristLocationUpdate = "tourist_location_update"
	EventNewSOSAlert           = "new_sos_alert"
	EventSOSAcknowledged       = "sos_acknowledged"
	EventSOSStatusUpdate       = "sos_status_update"
	EventSOSCancelled          = "sos_cancelled"
	EventTouristOffline        = "tourist_offline"
	EventNotification          = "notification"
	EventUserTyping            = "user_typing"
	EventUserStoppedTyping     = "user_stopped_typing"
)

const (
	// 默认配置值
	DefaultMaxConnections    = 100000
	DefaultHeartbeatInterval = 30
	DefaultConnectionTimeout = 60
	DefaultMessageBufferSize = 256
	DefaultMessageQueueSize  = 1000
	DefaultReadBufferSize    = 1024
	DefaultWriteBufferSize   = 1024
	DefaultMaxMessageSize    = 4096

	// 环境变量配置键
	EnvWebSocketMaxConnections      = "WEBSOCKET_MAX_CONNECTIONS"
	EnvWebSocketHeartbeatInterval   = "WEBSOCKET_HEARTBEAT_INTERVAL"
	EnvWebSocketConnectionTimeout   = "WEBSOCKET_CONNECTION_TIMEOUT"
	EnvWebSocketMessageBufferSize   = "WEBSOCKET_MESSAGE_BUFFER_SIZE"
	EnvWebSocketMessageQueueSize    = "WEBSOCKET_MESSAGE_QUEUE_SIZE"
	EnvWebSocketEnableCompression   = "WEBSOCKET_ENABLE_COMPRESSION"
	EnvWebSocketShardCount          = "WEBSOCKET_SHARD_COUNT"
	EnvWebSocketBroadcastWorkers    = "WEBSOCKET_BROADCAST_WORKERS"
	EnvWebSocketDropOnFull          = "WEBSOCKET_DROP_ON_FULL"
	EnvWebSocketCompressionLevel    = "WEBSOCKET_COMPRESSION_LEVEL"
	EnvWebSocketReadBufferSize      = "WEBSOCKET_READ_BUFFER_SIZE"
	EnvWebSocketWriteBufferSize     = "WEBSOCKET_WRITE_BUFFER_SIZE"
	EnvWebSocketMaxMessageSize      = "WEBSOCKET_MAX_MESSAGE_SIZE"
	EnvWebSocketCloseOnBackpressure = "WEBSOCKET_CLOSE_ON_BACKPRESSURE"
	EnvWebSocketSendTimeoutMs       = "WEBSOCKET_SEND_TIMEOUT_MS"
	EnvWebSocketEnableGlobalPing    = "WEBSOCKET_ENABLE_GLOBAL_PING"
	EnvWebSocketPingWorkers         = "WEBSOCKET_PING_WORKERS"
	EnvWebSocketAllowedOrigins      = "WEBSOCKET_ALLOWED_ORIGINS"

	// 错误消息
	ErrConnectionLimitExceeded = "connection limit reached"
	ErrInvalidMessage          = "invalid message"
	ErrUnknownEvent            = "unknown event"
	ErrSendBufferFull          = "send buffer full"

	// 路由路径
	RouteWebSocket       = "/ws"
	RouteWebSocketStats  = "/ws/stats"
	RouteWebSocketHealth = "/ws/health"
	RouteWebSocketUser   = "/ws/user/:user_id"
)
