package server

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Connection is one authenticated WebSocket session.
//
// Deliver only enqueues; a single writer goroutine drains the queue so every
// recipient observes messages in the order the relay handed them over.
type Connection struct {
	id           domain.ConnectionID
	username     string
	log          *slog.Logger
	socket       *websocket.Conn
	send         chan domain.Message
	done         chan struct{}
	closeOnce    sync.Once
	state        atomic.Int32
	writeTimeout time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
}

var _ contract.Connection = (*Connection)(nil)

func NewConnection(log *slog.Logger, socket *websocket.Conn, username string,
	bufferSize int, writeTimeout time.Duration) *Connection {
	id := domain.NewConnectionID()
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		id:           id,
		username:     username,
		log:          log.With("connection_id", id.String(), "username", username),
		socket:       socket,
		send:         make(chan domain.Message, bufferSize),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}
}

func (c *Connection) ID() domain.ConnectionID { return c.id }

func (c *Connection) Username() string { return c.username }

func (c *Connection) State() domain.ConnectionState {
	return domain.ConnectionState(c.state.Load())
}

// Deliver never blocks when ctx has no deadline: a full queue is a delivery failure.
// With a deadline it waits for room until the deadline expires.
func (c *Connection) Deliver(ctx context.Context, msg domain.Message) error {
	if c.State() != domain.Open {
		return errors.ErrConnectionClosed
	}
	select {
	case c.send <- msg:
		return nil
	case <-c.done:
		return errors.ErrConnectionClosed
	default:
	}

	if _, ok := ctx.Deadline(); !ok {
		return fmt.Errorf("%w: outbound queue full", errors.ErrDeliveryFailure)
	}
	select {
	case c.send <- msg:
		return nil
	case <-c.done:
		return errors.ErrConnectionClosed
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", errors.ErrDeliveryFailure, ctx.Err())
	}
}

// Close is safe to call any number of times from any goroutine.
func (c *Connection) Close(reason string) error {
	var err error
	c.closeOnce.Do(func() {
		c.state.Store(int32(domain.Closing))
		close(c.done)
		c.cancel()
		_ = c.socket.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason),
			time.Now().Add(time.Second))
		err = c.socket.Close()
		c.state.Store(int32(domain.Closed))
		c.log.Debug("Connection closed", "reason", reason)
	})
	return err
}

// writePump is the only writer of data frames on the socket.
func (c *Connection) writePump() {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			if c.writeTimeout > 0 {
				_ = c.socket.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			}
			if err := c.socket.WriteJSON(msg.ToOutbound()); err != nil {
				c.log.Debug("Write failed", "error", err)
				_ = c.Close("write failed")
				return
			}
		}
	}
}

// readPump publishes every inbound text frame until the transport fails.
func (c *Connection) readPump(relay contract.IRelay) error {
	for {
		kind, data, err := c.socket.ReadMessage()
		if err != nil {
			return err
		}
		if kind != websocket.TextMessage {
			c.log.Debug("Ignoring non text frame", "type", kind)
			continue
		}
		if err = relay.Publish(c.ctx, c, string(data)); err != nil {
			return err
		}
	}
}
