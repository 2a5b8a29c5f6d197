package workers

import (
	"chat-relay/observability"
	"context"
	"log/slog"
	"time"
)

// ReporterWorker logs a relay stats snapshot at every interval.
type ReporterWorker struct {
	log      *slog.Logger
	monitor  *observability.RelayMonitor
	interval time.Duration
}

func NewReporterWorker(log *slog.Logger, monitor *observability.RelayMonitor, interval time.Duration) *ReporterWorker {
	return &ReporterWorker{log: log, monitor: monitor, interval: interval}
}

func (w *ReporterWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.report()
			w.log.Debug("Context done, stopping stats reporter")
			return nil
		case <-ticker.C:
			w.report()
		}
	}
}

func (w *ReporterWorker) report() {
	stats := w.monitor.GetLatest()
	w.log.Info("Relay stats",
		"uptime", stats.Uptime,
		"active_connections", stats.ActiveConnections,
		"accepted_connections", stats.AcceptedConnections,
		"rejected_handshakes", stats.RejectedHandshakes,
		"messages_relayed", stats.MessagesRelayed,
		"deliveries", stats.Deliveries,
		"delivery_failures", stats.DeliveryFailures,
		"alloc_mem_mb", stats.AllocMemMb,
		"rss_bytes", stats.RSSBytes,
	)
	for name, queue := range stats.Queues {
		if queue.Capacity > 0 && queue.Length*10 >= queue.Capacity*8 {
			w.log.Warn("Queue almost full", "queue", name, "length", queue.Length, "capacity", queue.Capacity)
		}
	}
}
