// Package runtime owns the live relay state: the connection registry and
// the broadcast relay that fans every inbound message out to it.
package runtime

import (
	"chat-relay/clock"
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/observability"
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Relay stamps inbound payloads and broadcasts them to every registered connection.
//
// The intake channel is the single serialisation point: messages are fanned out
// in the order Publish enqueued them. A failed delivery only affects its target.
type Relay struct {
	log             *slog.Logger
	registry        contract.IRegistry
	monitor         *observability.RelayMonitor
	clock           clock.Clock
	filter          contract.ContentFilter
	intake          chan domain.Message
	deliveryTimeout time.Duration
}

func NewRelay(log *slog.Logger, registry contract.IRegistry, monitor *observability.RelayMonitor,
	clk clock.Clock, bufferSize int, deliveryTimeout time.Duration) *Relay {
	return &Relay{
		log:             log,
		registry:        registry,
		monitor:         monitor,
		clock:           clk,
		intake:          make(chan domain.Message, bufferSize),
		deliveryTimeout: deliveryTimeout,
	}
}

// IntakeDepth reports how many messages wait for fan-out.
func (r *Relay) IntakeDepth() (int, int) {
	return len(r.intake), cap(r.intake)
}

// WithFilter rewrites every message content before fan-out.
func (r *Relay) WithFilter(filter contract.ContentFilter) *Relay {
	r.filter = filter
	return r
}

// Publish captures the receipt instant and queues the message for fan-out.
// Sender identity is copied from the connection, never from the payload.
func (r *Relay) Publish(ctx context.Context, from contract.Connection, payload string) error {
	msg := domain.Message{
		Sender:    from.Username(),
		Content:   payload,
		Timestamp: r.clock.Now().UTC(),
	}
	select {
	case r.intake <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drains the intake until ctx is canceled.
func (r *Relay) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			r.log.Debug("Context done, stopping relay intake")
			return nil
		case msg := <-r.intake:
			r.Broadcast(ctx, msg)
		}
	}
}

// Broadcast delivers msg to every connection registered right now, the
// sender's own connections included. It returns the number of successful deliveries.
func (r *Relay) Broadcast(ctx context.Context, msg domain.Message) int {
	if r.filter != nil {
		msg.Content = r.filter.Censor(msg.Content)
	}

	delivered := 0
	for _, target := range r.registry.SnapshotAll() {
		if err := r.deliver(ctx, target, msg); err != nil {
			r.monitor.IncrDeliveryFailures()
			r.log.Debug("Delivery failed",
				"connection_id", target.ID().String(),
				"username", target.Username(),
				"error", err)
			continue
		}
		delivered++
	}

	r.monitor.IncrMessagesRelayed()
	r.monitor.AddDeliveries(delivered)
	return delivered
}

func (r *Relay) deliver(ctx context.Context, target contract.Connection, msg domain.Message) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", errors.ErrDeliveryFailure, rec)
		}
	}()

	if target.State() != domain.Open {
		return errors.ErrConnectionClosed
	}
	if r.deliveryTimeout <= 0 {
		return target.Deliver(ctx, msg)
	}
	deliverCtx, cancel := context.WithTimeout(ctx, r.deliveryTimeout)
	defer cancel()
	return target.Deliver(deliverCtx, msg)
}
