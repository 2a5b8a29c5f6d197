package server

import (
	"chat-relay/auth"
	"chat-relay/clock"
	"chat-relay/internal"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/services"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

// stack is a complete relay served over httptest.
type stack struct {
	server      *httptest.Server
	registry    *runtime.Registry
	monitor     *observability.RelayMonitor
	relayServer *RelayServer
	authService *services.AuthService
}

func newStack(t *testing.T) *stack {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	users := repositories.NewUserRepository(db)
	tokens := auth.NewTokenIssuer("test-secret", time.Hour)
	authService := services.NewAuthService(log, users, tokens)

	monitor := observability.NewRelayMonitor(log)
	registry := runtime.NewRegistry(log)
	relay := runtime.NewRelay(log, registry, monitor, clock.Real(), 64, 0)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = relay.Run(ctx) }()

	relayServer := NewRelayServer(log, auth.NewGate(log, tokens, users), registry, relay, monitor, RelayConfig{
		ConnectionBufferSize: 16,
		WriteTimeout:         time.Second,
		MaxMessageSize:       4096,
	})
	mux := http.NewServeMux()
	mux.Handle("GET /ws", relayServer)
	NewAccountServer(log, authService).Register(mux)
	internal.RegisterDebugRoutes(mux, monitor, registry)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	t.Cleanup(func() {
		shutdownCtx, stop := context.WithTimeout(context.Background(), time.Second)
		defer stop()
		_ = relayServer.Shutdown(shutdownCtx)
	})

	return &stack{server: srv, registry: registry, monitor: monitor, relayServer: relayServer, authService: authService}
}

func (s *stack) signup(t *testing.T, username string) string {
	_, token, err := s.authService.Signup(username, "password123", "")
	require.NoError(t, err)
	return token.String()
}

func (s *stack) wsURL(username, token string) string {
	u, _ := url.Parse(strings.Replace(s.server.URL, "http", "ws", 1) + "/ws")
	q := u.Query()
	q.Set("username", username)
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *stack) dial(t *testing.T, username, token string) *websocket.Conn {
	conn, _, err := websocket.DefaultDialer.Dial(s.wsURL(username, token), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (s *stack) waitConnections(t *testing.T, n int) {
	require.Eventually(t, func() bool { return s.registry.Len() == n }, 2*time.Second, 5*time.Millisecond)
}
