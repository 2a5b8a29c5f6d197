package workers

import (
	"chat-relay/observability"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestReporterWorker_StopsCleanlyOnCancel(t *testing.T) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	monitor := observability.NewRelayMonitor(log)
	monitor.TrackQueue("intake", func() (int, int) { return 9, 10 })
	worker := NewReporterWorker(log, monitor, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	// A clean stop returns nil so the supervisor never restarts it
	require.NoError(t, worker.Run(ctx))
}
