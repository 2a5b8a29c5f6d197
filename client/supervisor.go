// Package client keeps one logical chat session alive across transport failures.
package client

import (
	"chat-relay/clock"
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type Config struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
	BufferSize  int
}

func DefaultConfig() Config {
	return Config{
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		MaxAttempts: 5,
		BufferSize:  64,
	}
}

// Backoff returns min(2^attempt * base, max).
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	// Past 2^32 the cap always wins; stop shifting before it overflows.
	if attempt > 32 {
		return max
	}
	delay := base * time.Duration(uint64(1)<<uint(attempt))
	if delay <= 0 || delay > max {
		return max
	}
	return delay
}

// Supervisor owns a single logical session. On connection loss it dials a
// fresh transport with capped exponential backoff, re-authenticating every
// time, until it connects, the attempts run out, or Logout is called.
type Supervisor struct {
	mu         sync.Mutex
	log        *slog.Logger
	dialer     Dialer
	clock      clock.Clock
	config     Config
	credential domain.Credential

	status     domain.SessionStatus
	attempt    int
	transport  Transport
	generation uint64
	timer      *clock.Timer
	started    bool
	ended      bool
	lastErr    error

	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	messages chan domain.OutboundMessage
	statuses chan domain.SessionStatus
}

func NewSupervisor(log *slog.Logger, dialer Dialer, clk clock.Clock,
	config Config, credential domain.Credential) *Supervisor {
	return &Supervisor{
		log:        log,
		dialer:     dialer,
		clock:      clk,
		config:     config,
		credential: credential,
		status:     domain.StatusDisconnected,
		done:       make(chan struct{}),
		messages:   make(chan domain.OutboundMessage, config.BufferSize),
		statuses:   make(chan domain.SessionStatus, config.BufferSize),
	}
}

// Start performs the first handshake. A failed first attempt is retried
// like any later loss; the returned error only reports that first attempt.
// Canceling ctx has the same effect as Logout.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("session already started")
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	go func() {
		select {
		case <-s.ctx.Done():
			s.Logout()
		case <-s.done:
		}
	}()

	return s.connect()
}

func (s *Supervisor) Status() domain.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Attempt is the number of reconnect attempts scheduled since the last success.
func (s *Supervisor) Attempt() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempt
}

// Err explains why the session ended, nil while it is alive.
func (s *Supervisor) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Messages is the live sequence of relayed messages, across reconnects.
func (s *Supervisor) Messages() <-chan domain.OutboundMessage {
	return s.messages
}

// Statuses publishes every status transition. Transitions are dropped when
// nobody reads them; Status always has the current value.
func (s *Supervisor) Statuses() <-chan domain.SessionStatus {
	return s.statuses
}

// Done is closed once the session reaches a terminal state.
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

// Send writes a text payload on the current transport.
func (s *Supervisor) Send(text string) error {
	s.mu.Lock()
	transport := s.transport
	ended := s.ended
	s.mu.Unlock()

	if ended {
		return errors.ErrSessionEnded
	}
	if transport == nil {
		return errors.ErrNotConnected
	}
	return transport.WriteText(text)
}

// Logout cancels any pending reconnect, closes the live transport and ends the session.
func (s *Supervisor) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endLocked(domain.StatusDisconnected, errors.ErrSessionEnded)
}

func (s *Supervisor) connect() error {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return errors.ErrSessionEnded
	}
	s.timer = nil
	s.setStatusLocked(domain.StatusConnecting)
	ctx := s.ctx
	s.mu.Unlock()

	transport, err := s.dialer.Dial(ctx, s.credential)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		if transport != nil {
			_ = transport.Close()
		}
		return errors.ErrSessionEnded
	}
	if err != nil {
		s.log.Warn("Connection attempt failed", "attempt", s.attempt, "error", err)
		s.handleFailureLocked(err)
		return err
	}

	s.transport = transport
	s.attempt = 0
	s.generation++
	s.setStatusLocked(domain.StatusConnected)
	s.log.Info("Connected", "username", s.credential.Username)

	go s.readLoop(transport, s.generation)
	return nil
}

func (s *Supervisor) readLoop(transport Transport, generation uint64) {
	for {
		msg, err := transport.ReadMessage()
		if err != nil {
			s.onTransportLost(generation, err)
			return
		}
		select {
		case s.messages <- msg:
		case <-s.done:
			return
		}
	}
}

func (s *Supervisor) onTransportLost(generation uint64, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended || generation != s.generation || s.transport == nil {
		return
	}
	_ = s.transport.Close()
	s.transport = nil
	s.log.Warn("Connection lost", "error", cause)
	s.handleFailureLocked(fmt.Errorf("%w: %v", errors.ErrTransportLost, cause))
}

// handleFailureLocked schedules the next attempt or ends the session.
func (s *Supervisor) handleFailureLocked(err error) {
	switch {
	case stderrors.Is(err, errors.ErrHandshakeRejected):
		s.endLocked(domain.StatusDisconnected, err)
		return
	case s.ctx.Err() != nil:
		s.endLocked(domain.StatusDisconnected, errors.ErrSessionEnded)
		return
	case s.attempt >= s.config.MaxAttempts:
		s.endLocked(domain.StatusDisconnectedMaxAttemptsReached,
			fmt.Errorf("%w after %d attempts: %v", errors.ErrReconnectExhausted, s.attempt, err))
		return
	}

	delay := Backoff(s.attempt, s.config.BaseDelay, s.config.MaxDelay)
	s.attempt++
	s.setStatusLocked(domain.StatusConnecting)
	s.log.Info("Reconnecting", "attempt", s.attempt, "delay", delay)
	s.timer = s.clock.AfterFunc(delay, func() { _ = s.connect() })
}

func (s *Supervisor) endLocked(status domain.SessionStatus, err error) {
	if s.ended {
		return
	}
	s.ended = true
	s.lastErr = err
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.transport != nil {
		_ = s.transport.Close()
		s.transport = nil
	}
	s.setStatusLocked(status)
	close(s.done)
	if s.cancel != nil {
		s.cancel()
	}
	s.log.Info("Session ended", "status", status.String(), "reason", err)
}

func (s *Supervisor) setStatusLocked(status domain.SessionStatus) {
	if s.status == status {
		return
	}
	s.status = status
	select {
	case s.statuses <- status:
	default:
	}
}
