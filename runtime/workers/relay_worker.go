package workers

import (
	"chat-relay/runtime"
	"context"
)

// RelayWorker drains the relay intake under supervision.
type RelayWorker struct {
	relay *runtime.Relay
}

func NewRelayWorker(relay *runtime.Relay) *RelayWorker {
	return &RelayWorker{relay: relay}
}

func (w *RelayWorker) Run(ctx context.Context) error {
	return w.relay.Run(ctx)
}
