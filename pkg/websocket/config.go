package websocket

import (
	"fmt"
	"time"

	"SafeYatra/pkg/util"
)

// Config WebSocket配置
type Config struct {
	// 最大连接数
	MaxConnections int64
	// 心跳间隔
	HeartbeatInterval time.Duration
	// 连接超时时间
	ConnectionTimeout time.Duration
	// 每个连接的发送缓冲区大小
	MessageBufferSize int
	ReadBufferSize    int
	WriteBufferSize   int
	// 最大入站消息大小
	MaxMessageSize    int
	EnableCompression bool
	// 广播作业队列大小
	MessageQueueSize int
	// 分片数量
	ShardCount int
	// 广播worker数量
	BroadcastWorkerCount int
	// 发送缓冲区满时是否丢弃
	DropOnFull bool
	// 压缩等级（-2..9）
	CompressionLevel int
	// 慢消费者策略：背压触发时直接断开
	CloseOnBackpressure bool
	// 发送阻塞超时（用于非 DropOnFull 模式）
	SendTimeout time.Duration
	// 启用全局心跳
	EnableGlobalPing bool
	PingWorkerCount  int
	// AllowedOrigins empty accepts any Origin.
	AllowedOrigins []string
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		MaxConnections:       DefaultMaxConnections,
		HeartbeatInterval:    DefaultHeartbeatInterval * time.Second,
		ConnectionTimeout:    DefaultConnectionTimeout * time.Second,
		MessageBufferSize:    DefaultMessageBufferSize,
		ReadBufferSize:       DefaultReadBufferSize,
		WriteBufferSize:      DefaultWriteBufferSize,
		MaxMessageSize:       DefaultMaxMessageSize,
		EnableCompression:    true,
		MessageQueueSize:     DefaultMessageQueueSize,
		ShardCount:           16,
		BroadcastWorkerCount: 8,
		DropOnFull:           true,
		CompressionLevel:     -2,
		CloseOnBackpressure:  false,
		SendTimeout:          50 * time.Millisecond,
		EnableGlobalPing:     false,
		PingWorkerCount:      4,
	}
}

// LoadConfigFromEnv 从环境变量加载WebSocket配置
func LoadConfigFromEnv() *Config {
	config := DefaultConfig()

	if maxConnections := util.GetIntEnv(EnvWebSocketMaxConnections); maxConnections > 0 {
		config.MaxConnections = maxConnections
	}
	if heartbeatInterval := util.GetIntEnv(EnvWebSocketHeartbeatInterval); heartbeatInterval > 0 {
		config.HeartbeatInterval = time.Duration(heartbeatInterval) * time.Second
	}
	if connectionTimeout := util.GetIntEnv(EnvWebSocketConnectionTimeout); connectionTimeout > 0 {
		config.ConnectionTimeout = time.Duration(connectionTimeout) * time.Second
	}
	if messageBufferSize := util.GetIntEnv(EnvWebSocketMessageBufferSize); messageBufferSize > 0 {
		config.MessageBufferSize = int(messageBufferSize)
	}
	if messageQueueSize := util.GetIntEnv(EnvWebSocketMessageQueueSize); messageQueueSize > 0 {
		config.MessageQueueSize = int(messageQueueSize)
	}
	if shardCount := util.GetIntEnv(EnvWebSocketShardCount); shardCount > 0 {
		config.ShardCount = int(shardCount)
	}
	if workerCount := util.GetIntEnv(EnvWebSocketBroadcastWorkers); workerCount > 0 {
		config.BroadcastWorkerCount = int(workerCount)
	}
	config.EnableCompression = util.GetBoolEnvOr(EnvWebSocketEnableCompression, config.EnableCompression)
	config.DropOnFull = util.GetBoolEnvOr(EnvWebSocketDropOnFull, config.DropOnFull)
	if compressionLevel := util.GetIntEnv(EnvWebSocketCompressionLevel); compressionLevel != 0 {
		config.CompressionLevel = int(compressionLevel)
	}
	if readBuf := util.GetIntEnv(EnvWebSocketReadBufferSize); readBuf > 0 {
		config.ReadBufferSize = int(readBuf)
	}
	if writeBuf := util.GetIntEnv(EnvWebSocketWriteBufferSize); writeBuf > 0 {
		config.WriteBufferSize = int(writeBuf)
	}
	if maxMsg := util.GetIntEnv(EnvWebSocketMaxMessageSize); maxMsg > 0 {
		config.MaxMessageSize = int(maxMsg)
	}
	config.CloseOnBackpressure = util.GetBoolEnvOr(EnvWebSocketCloseOnBackpressure, config.CloseOnBackpressure)
	if sendTimeoutMs := util.GetIntEnv(EnvWebSocketSendTimeoutMs); sendTimeoutMs > 0 {
		config.SendTimeout = time.Duration(sendTimeoutMs) * time.Millisecond
	}
	config.EnableGlobalPing = util.GetBoolEnvOr(EnvWebSocketEnableGlobalPing, config.EnableGlobalPing)
	if pingWorkers := util.GetIntEnv(EnvWebSocketPingWorkers); pingWorkers > 0 {
		config.PingWorkerCount = int(pingWorkers)
	}
	if origins := util.GetStringSliceEnv(EnvWebSocketAllowedOrigins); len(origins) > 0 {
		config.AllowedOrigins = origins
	}
	return config
}

// ValidateConfig 验证WebSocket配置
func ValidateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("websocket config is nil")
	}
	if config.MaxConnections <= 0 {
		return fmt.Errorf("max connections must be > 0")
	}
	if config.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat interval must be > 0")
	}
	if config.ConnectionTimeout <= 0 {
		return fmt.Errorf("connection timeout must be > 0")
	}
	if config.MessageBufferSize <= 0 {
		return fmt.Errorf("message buffer size must be > 0")
	}
	if config.MessageQueueSize <= 0 {
		return fmt.Errorf("message queue size must be > 0")
	}
	if config.ShardCount <= 0 {
		return fmt.Errorf("shard count must be > 0")
	}
	if config.BroadcastWorkerCount <= 0 {
		return fmt.Errorf("broadcast worker count must be > 0")
	}
	if config.CompressionLevel < -2 || config.CompressionLevel > 9 {
		return fmt.Errorf("compression level must be within -2..9")
	}
	if config.ReadBufferSize <= 0 || config.WriteBufferSize <= 0 {
		return fmt.Errorf("read/write buffer sizes must be > 0")
	}
	if config.MaxMessageSize <= 0 {
		return fmt.Errorf("max message size must be > 0")
	}
	// 心跳间隔应该小于连接超时时间
	if config.HeartbeatInterval >= config.ConnectionTimeout {
		return fmt.Errorf("heartbeat interval must be shorter than connection timeout")
	}
	if config.CloseOnBackpressure && !config.DropOnFull && config.SendTimeout <= 0 {
		return fmt.Errorf("close on backpressure needs a send timeout")
	}
	if config.EnableGlobalPing && config.PingWorkerCount <= 0 {
		return fmt.Errorf("global ping needs PingWorkerCount > 0")
	}
	return nil
}

// GetConfigSummary 获取配置摘要
func GetConfigSummary(config *Config) map[string]interface{} {
	return map[string]interface{}{
		"max_connections":       config.MaxConnections,
		"heartbeat_interval":    config.HeartbeatInterval.String(),
		"connection_timeout":    config.ConnectionTimeout.String(),
		"message_buffer_size":   config.MessageBufferSize,
		"message_queue_size":    config.MessageQueueSize,
		"read_buffer_size":      config.ReadBufferSize,
		"write_buffer_size":     config.WriteBufferSize,
		"max_message_size":      config.MaxMessageSize,
		"enable_compression":    config.EnableCompression,
		"shard_count":           config.ShardCount,
		"broadcast_workers":     config.BroadcastWorkerCount,
		"drop_on_full":          config.DropOnFull,
		"compression_level":     config.CompressionLevel,
		"close_on_backpressure": config.CloseOnBackpressure,
		"send_timeout":          config.SendTimeout.String(),
		"enable_global_ping":    config.EnableGlobalPing,
		"ping_workers":          config.PingWorkerCount,
		"allowed_origins":       config.AllowedOrigins,
	}
}

// CloneConfig 克隆配置
func CloneConfig(config *Config) *Config {
	if config == nil {
		return nil
	}
	c := *config
	c.AllowedOrigins = append([]string(nil), config.AllowedOrigins...)
	return &c
}
