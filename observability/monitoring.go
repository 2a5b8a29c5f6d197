package observability

import (
	"log/slog"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/process"
)

// RelayStats aggregates every relay metric for the stats endpoint
type RelayStats struct {
	// --- RELAY METRICS ---
	ActiveConnections   int64  `json:"active_connections"`
	AcceptedConnections uint64 `json:"accepted_connections"`
	RejectedHandshakes  uint64 `json:"rejected_handshakes"`
	MessagesRelayed     uint64 `json:"messages_relayed"`
	Deliveries          uint64 `json:"deliveries"`
	DeliveryFailures    uint64 `json:"delivery_failures"`

	// --- QUEUES ---
	Queues map[string]QueueStats `json:"queues,omitempty"`

	// --- SYSTEM METRICS ---
	AllocMemMb uint64  `json:"alloc_mem_mb"`
	NumGC      uint32  `json:"num_gc"`
	RSSBytes   uint64  `json:"rss_bytes"`
	CPUPercent float64 `json:"cpu_percent"`
	Uptime     string  `json:"uptime"`
}

// QueueStats is a sampled channel occupancy.
type QueueStats struct {
	Length   int `json:"length"`
	Capacity int `json:"capacity"`
}

// QueueProbe reads len and cap of a channel without blocking.
type QueueProbe func() (length, capacity int)

// RelayMonitor collects relay counters. Every method is safe for concurrent use.
type RelayMonitor struct {
	log       *slog.Logger
	startedAt time.Time

	activeConnections   int64
	acceptedConnections uint64
	rejectedHandshakes  uint64
	messagesRelayed     uint64
	deliveries          uint64
	deliveryFailures    uint64

	queuesMu sync.RWMutex
	queues   map[string]QueueProbe

	once sync.Once
	proc *process.Process
}

func NewRelayMonitor(log *slog.Logger) *RelayMonitor {
	return &RelayMonitor{log: log, startedAt: time.Now(), queues: make(map[string]QueueProbe)}
}

// TrackQueue adds a channel to every stats snapshot.
func (m *RelayMonitor) TrackQueue(name string, probe QueueProbe) {
	m.queuesMu.Lock()
	defer m.queuesMu.Unlock()
	m.queues[name] = probe
}

func (m *RelayMonitor) ConnectionOpened() {
	atomic.AddUint64(&m.acceptedConnections, 1)
	atomic.AddInt64(&m.activeConnections, 1)
}

func (m *RelayMonitor) ConnectionClosed() {
	atomic.AddInt64(&m.activeConnections, -1)
}

func (m *RelayMonitor) IncrRejectedHandshakes() {
	atomic.AddUint64(&m.rejectedHandshakes, 1)
}

func (m *RelayMonitor) IncrMessagesRelayed() {
	atomic.AddUint64(&m.messagesRelayed, 1)
}

func (m *RelayMonitor) AddDeliveries(n int) {
	atomic.AddUint64(&m.deliveries, uint64(n))
}

func (m *RelayMonitor) IncrDeliveryFailures() {
	atomic.AddUint64(&m.deliveryFailures, 1)
}

// GetLatest returns the counters plus Go runtime and process metrics.
func (m *RelayMonitor) GetLatest() RelayStats {
	stats := RelayStats{
		ActiveConnections:   atomic.LoadInt64(&m.activeConnections),
		AcceptedConnections: atomic.LoadUint64(&m.acceptedConnections),
		RejectedHandshakes:  atomic.LoadUint64(&m.rejectedHandshakes),
		MessagesRelayed:     atomic.LoadUint64(&m.messagesRelayed),
		Deliveries:          atomic.LoadUint64(&m.deliveries),
		DeliveryFailures:    atomic.LoadUint64(&m.deliveryFailures),
		Uptime:              time.Since(m.startedAt).Round(time.Second).String(),
	}

	m.queuesMu.RLock()
	if len(m.queues) > 0 {
		stats.Queues = make(map[string]QueueStats, len(m.queues))
		for name, probe := range m.queues {
			length, capacity := probe()
			stats.Queues[name] = QueueStats{Length: length, Capacity: capacity}
		}
	}
	m.queuesMu.RUnlock()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	stats.AllocMemMb = mem.Alloc / 1024 / 1024
	stats.NumGC = mem.NumGC

	if p := m.process(); p != nil {
		if info, err := p.MemoryInfo(); err == nil {
			stats.RSSBytes = info.RSS
		}
		if cpu, err := p.CPUPercent(); err == nil {
			stats.CPUPercent = cpu
		}
	}
	return stats
}

func (m *RelayMonitor) process() *process.Process {
	m.once.Do(func() {
		p, err := process.NewProcess(int32(os.Getpid()))
		if err != nil {
			m.log.Debug("Process stats unavailable", "error", err)
			return
		}
		m.proc = p
	})
	return m.proc
}
