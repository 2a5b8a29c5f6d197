package server

import (
	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/observability"
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

type RelayConfig struct {
	ConnectionBufferSize int
	WriteTimeout         time.Duration
	MaxMessageSize       int64
	// AllowedOrigins restricts browser origins; empty accepts any origin.
	AllowedOrigins []string
}

// RelayServer accepts WebSocket handshakes on the relay endpoint.
// Credentials are checked before the upgrade, so a rejected client never gets a transport.
type RelayServer struct {
	log      *slog.Logger
	gate     contract.IdentityGate
	registry contract.IRegistry
	relay    contract.IRelay
	monitor  *observability.RelayMonitor
	config   RelayConfig
	upgrader websocket.Upgrader
	wg       sync.WaitGroup
}

func NewRelayServer(log *slog.Logger, gate contract.IdentityGate, registry contract.IRegistry,
	relay contract.IRelay, monitor *observability.RelayMonitor, config RelayConfig) *RelayServer {
	s := &RelayServer{
		log:      log,
		gate:     gate,
		registry: registry,
		relay:    relay,
		monitor:  monitor,
		config:   config,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *RelayServer) checkOrigin(r *http.Request) bool {
	if len(s.config.AllowedOrigins) == 0 {
		return true
	}
	return lo.Contains(s.config.AllowedOrigins, r.Header.Get("Origin"))
}

func (s *RelayServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	credential := domain.Credential{
		Username: auth.NormalizeUsername(r.URL.Query().Get("username")),
		Token:    r.URL.Query().Get("token"),
	}
	if err := s.gate.Authenticate(r.Context(), credential.Username, credential.Token); err != nil {
		s.monitor.IncrRejectedHandshakes()
		s.log.Info("Handshake rejected", "username", credential.Username, "remote", r.RemoteAddr, "error", err)
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	socket, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader already answered the client.
		s.log.Debug("Upgrade failed", "username", credential.Username, "error", err)
		return
	}
	if s.config.MaxMessageSize > 0 {
		socket.SetReadLimit(s.config.MaxMessageSize)
	}

	conn := NewConnection(s.log, socket, credential.Username, s.config.ConnectionBufferSize, s.config.WriteTimeout)
	if err = s.registry.Register(conn); err != nil {
		s.log.Error("Registration failed", "connection_id", conn.ID().String(), "error", err)
		_ = conn.Close("registration failed")
		return
	}
	s.monitor.ConnectionOpened()
	s.wg.Add(1)
	s.log.Info("Participant connected", "connection_id", conn.ID().String(), "username", conn.Username())

	defer s.teardown(conn)
	go conn.writePump()

	if err = conn.readPump(s.relay); err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		s.log.Debug("Read loop ended", "connection_id", conn.ID().String(), "error", err)
	}
}

// teardown runs once per registered connection whatever ended it.
func (s *RelayServer) teardown(conn *Connection) {
	defer s.wg.Done()
	if s.registry.Unregister(conn) {
		s.monitor.ConnectionClosed()
	}
	_ = conn.Close("disconnected")
	s.log.Info("Participant disconnected", "connection_id", conn.ID().String(), "username", conn.Username())
}

// Shutdown closes every registered connection and waits for their teardown.
func (s *RelayServer) Shutdown(ctx context.Context) error {
	s.registry.CloseAll("server shutting down")

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
