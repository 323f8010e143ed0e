package metrics

import (
	"context"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// SystemStats 系统统计信息
type SystemStats struct {
	Timestamp time.Time          `json:"timestamp"`
	CPU       CPUStats           `json:"cpu"`
	Memory    MemoryStats        `json:"memory"`
	Disk      DiskStats          `json:"disk"`
	Process   ProcessStats       `json:"process"`
	Runtime   RuntimeStats       `json:"runtime"`
	Host      HostStats          `json:"host"`
	Gauges    map[string]float64 `json:"gauges,omitempty"`
}

// CPUStats CPU统计信息
type CPUStats struct {
	UsagePercent float64 `json:"usage_percent"`
	CountLogical int     `json:"count_logical"`
}

// MemoryStats 内存统计信息
type MemoryStats struct {
	Total        uint64  `json:"total"`
	Available    uint64  `json:"available"`
	Used         uint64  `json:"used"`
	UsagePercent float64 `json:"usage_percent"`
}

// DiskStats 磁盘统计信息
type DiskStats struct {
	Path         string  `json:"path"`
	Total        uint64  `json:"total"`
	Free         uint64  `json:"free"`
	UsagePercent float64 `json:"usage_percent"`
}

// ProcessStats 进程统计信息
type ProcessStats struct {
	PID        int32   `json:"pid"`
	CPUPercent float64 `json:"cpu_percent"`
	MemoryRSS  uint64  `json:"memory_rss"`
	NumThreads int32   `json:"num_threads"`
	Uptime     float64 `json:"uptime_seconds"`
}

// RuntimeStats Go运行时统计信息
type RuntimeStats struct {
	Goroutines int    `json:"goroutines"`
	HeapAlloc  uint64 `json:"heap_alloc"`
	HeapInuse  uint64 `json:"heap_inuse"`
	NumGC      uint32 `json:"num_gc"`
}

// HostStats 主机统计信息
type HostStats struct {
	Hostname string `json:"hostname"`
	Uptime   uint64 `json:"uptime"`
	Platform string `json:"platform"`
}

// GaugeFunc reports an application level value sampled with each tick,
// for example the number of open realtime sessions.
type GaugeFunc func(ctx context.Context) float64

// SystemMonitor 系统监控器
//
// Collect is driven by the scheduler. It keeps a bounded history and
// publishes the latest sample to the Prometheus gauges when metrics are set.
type SystemMonitor struct {
	mu       sync.RWMutex
	stats    []*SystemStats
	maxStats int
	diskPath string
	metrics  *Metrics
	gauges   map[string]GaugeFunc
	started  time.Time
}

// NewSystemMonitor 创建系统监控器
func NewSystemMonitor(maxStats int, diskPath string, m *Metrics) *SystemMonitor {
	if maxStats <= 0 {
		maxStats = 60
	}
	if diskPath == "" {
		diskPath = "/"
	}
	return &SystemMonitor{
		maxStats: maxStats,
		diskPath: diskPath,
		metrics:  m,
		gauges:   make(map[string]GaugeFunc),
		started:  time.Now(),
	}
}

// Gauge registers an application value included in every sample.
func (sm *SystemMonitor) Gauge(name string, fn GaugeFunc) {
	sm.mu.Lock()
	sm.gauges[name] = fn
	sm.mu.Unlock()
}

// Collect 收集统计信息
func (sm *SystemMonitor) Collect(ctx context.Context) {
	stats := &SystemStats{Timestamp: time.Now().UTC(), Gauges: make(map[string]float64)}

	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		stats.CPU.UsagePercent = pct[0]
	}
	stats.CPU.CountLogical = runtime.NumCPU()

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		stats.Memory = MemoryStats{
			Total:        vm.Total,
			Available:    vm.Available,
			Used:         vm.Used,
			UsagePercent: vm.UsedPercent,
		}
	}

	if du, err := disk.UsageWithContext(ctx, sm.diskPath); err == nil {
		stats.Disk = DiskStats{Path: sm.diskPath, Total: du.Total, Free: du.Free, UsagePercent: du.UsedPercent}
	}

	// 当前进程
	if p, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil {
		stats.Process.PID = p.Pid
		if v, err := p.CPUPercentWithContext(ctx); err == nil {
			stats.Process.CPUPercent = v
		}
		if mi, err := p.MemoryInfoWithContext(ctx); err == nil {
			stats.Process.MemoryRSS = mi.RSS
		}
		if n, err := p.NumThreadsWithContext(ctx); err == nil {
			stats.Process.NumThreads = n
		}
	}
	stats.Process.Uptime = time.Since(sm.started).Seconds()

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	stats.Runtime = RuntimeStats{
		Goroutines: runtime.NumGoroutine(),
		HeapAlloc:  ms.HeapAlloc,
		HeapInuse:  ms.HeapInuse,
		NumGC:      ms.NumGC,
	}

	if hi, err := host.InfoWithContext(ctx); err == nil {
		stats.Host = HostStats{Hostname: hi.Hostname, Uptime: hi.Uptime, Platform: hi.Platform}
	}

	sm.mu.RLock()
	for name, fn := range sm.gauges {
		stats.Gauges[name] = fn(ctx)
	}
	sm.mu.RUnlock()

	sm.mu.Lock()
	sm.stats = append(sm.stats, stats)
	if len(sm.stats) > sm.maxStats {
		sm.stats = sm.stats[len(sm.stats)-sm.maxStats:]
	}
	sm.mu.Unlock()

	if sm.metrics != nil {
		sm.metrics.SetSystemCPUUsage(stats.CPU.UsagePercent)
		sm.metrics.SetSystemMemoryUsage("used", stats.Memory.Used)
		sm.metrics.SetSystemMemoryUsage("heap_inuse", stats.Runtime.HeapInuse)
		sm.metrics.SetSystemMemoryUsage("process_rss", stats.Process.MemoryRSS)
		sm.metrics.SetSystemGoroutines(stats.Runtime.Goroutines)
	}
}

// GetLatestStats 获取最新统计信息
func (sm *SystemMonitor) GetLatestStats() *SystemStats {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if len(sm.stats) == 0 {
		return nil
	}
	return sm.stats[len(sm.stats)-1]
}

// GetStatsHistory 获取统计历史
func (sm *SystemMonitor) GetStatsHistory(limit int) []*SystemStats {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if limit <= 0 || limit > len(sm.stats) {
		limit = len(sm.stats)
	}
	out := make([]*SystemStats, limit)
	copy(out, sm.stats[len(sm.stats)-limit:])
	return out
}

// GetSystemSummary 获取系统摘要
func (sm *SystemMonitor) GetSystemSummary() map[string]interface{} {
	latest := sm.GetLatestStats()
	if latest == nil {
		return map[string]interface{}{
			"uptime_seconds": time.Since(sm.started).Seconds(),
			"goroutines":     runtime.NumGoroutine(),
		}
	}
	return map[string]interface{}{
		"timestamp":      latest.Timestamp,
		"cpu_usage":      latest.CPU.UsagePercent,
		"memory_usage":   latest.Memory.UsagePercent,
		"disk_usage":     latest.Disk.UsagePercent,
		"goroutines":     latest.Runtime.Goroutines,
		"heap_alloc":     latest.Runtime.HeapAlloc,
		"uptime_seconds": latest.Process.Uptime,
		"hostname":       latest.Host.Hostname,
		"gauges":         latest.Gauges,
	}
}
