package server

import (
	"chat-relay/client"
	"chat-relay/clock"
	"chat-relay/domain"
	"context"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func readOutbound(t *testing.T, conn *websocket.Conn) domain.OutboundMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg domain.OutboundMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestRelayServer_TwoParticipantsExchange(t *testing.T) {
	req := require.New(t)
	s := newStack(t)
	alice := s.dial(t, "alice", s.signup(t, "alice"))
	bob := s.dial(t, "bob", s.signup(t, "bob"))
	s.waitConnections(t, 2)

	// When alice says hi
	before := time.Now().UTC().Add(-time.Millisecond)
	req.NoError(alice.WriteMessage(websocket.TextMessage, []byte("hi")))

	// Then both alice and bob receive it, stamped by the server
	for _, conn := range []*websocket.Conn{alice, bob} {
		msg := readOutbound(t, conn)
		req.Equal("alice", msg.Sender)
		req.Equal("hi", msg.Content)
		ts, err := msg.ParseTimestamp()
		req.NoError(err)
		req.False(ts.Before(before.Truncate(time.Millisecond)))
		req.False(ts.After(time.Now().UTC()))
	}

	// When bob leaves
	req.NoError(bob.Close())
	s.waitConnections(t, 1)

	// Then alice keeps chatting alone
	req.NoError(alice.WriteMessage(websocket.TextMessage, []byte("still here")))
	req.Equal("still here", readOutbound(t, alice).Content)

	req.EqualValues(2, s.monitor.GetLatest().AcceptedConnections)
	req.Eventually(func() bool { return s.monitor.GetLatest().ActiveConnections == 1 }, time.Second, 5*time.Millisecond)
}

func TestRelayServer_SameUserTwoTabs(t *testing.T) {
	req := require.New(t)
	s := newStack(t)
	token := s.signup(t, "alice")
	tab1 := s.dial(t, "alice", token)
	tab2 := s.dial(t, "alice", token)
	s.waitConnections(t, 2)

	req.NoError(tab1.WriteMessage(websocket.TextMessage, []byte("from tab 1")))

	req.Equal("from tab 1", readOutbound(t, tab1).Content)
	req.Equal("from tab 1", readOutbound(t, tab2).Content)
}

func TestRelayServer_RejectsInvalidCredential(t *testing.T) {
	req := require.New(t)
	s := newStack(t)
	s.signup(t, "alice")

	for _, tc := range []struct{ username, token string }{
		{"alice", "forged"},
		{"alice", ""},
		{"", ""},
	} {
		conn, resp, err := websocket.DefaultDialer.Dial(s.wsURL(tc.username, tc.token), nil)
		req.Error(err)
		req.Nil(conn)
		req.NotNil(resp)
		req.Equal(http.StatusUnauthorized, resp.StatusCode)
	}

	// Then nothing was ever registered
	req.Zero(s.registry.Len())
	req.EqualValues(3, s.monitor.GetLatest().RejectedHandshakes)
	req.Zero(s.monitor.GetLatest().AcceptedConnections)
}

func TestRelayServer_OversizedFrameDropsOnlyThatConnection(t *testing.T) {
	req := require.New(t)
	s := newStack(t)
	alice := s.dial(t, "alice", s.signup(t, "alice"))
	bob := s.dial(t, "bob", s.signup(t, "bob"))
	s.waitConnections(t, 2)

	req.NoError(bob.WriteMessage(websocket.TextMessage, make([]byte, 8192)))
	s.waitConnections(t, 1)

	req.NoError(alice.WriteMessage(websocket.TextMessage, []byte("ok")))
	req.Equal("ok", readOutbound(t, alice).Content)
}

func TestRelayServer_ShutdownClosesEveryConnection(t *testing.T) {
	req := require.New(t)
	s := newStack(t)
	alice := s.dial(t, "alice", s.signup(t, "alice"))
	s.waitConnections(t, 1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	req.NoError(s.relayServer.Shutdown(ctx))

	req.Zero(s.registry.Len())
	_ = alice.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := alice.ReadMessage()
	req.Error(err)
}

func TestRelayServer_SupervisorReconnectsAfterServerDrop(t *testing.T) {
	req := require.New(t)
	s := newStack(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	credential := domain.Credential{Username: "alice", Token: s.signup(t, "alice")}

	endpoint, err := client.NewAccountClient(s.server.URL, time.Second).RelayEndpoint()
	req.NoError(err)
	session := client.NewSupervisor(log, client.NewWebSocketDialer(endpoint, time.Second, time.Second), clock.Real(),
		client.Config{BaseDelay: 10 * time.Millisecond, MaxDelay: 100 * time.Millisecond, MaxAttempts: 5, BufferSize: 16},
		credential)
	t.Cleanup(session.Logout)

	req.NoError(session.Start(context.Background()))
	s.waitConnections(t, 1)

	// When the server drops every connection
	s.registry.CloseAll("maintenance")

	// Then the session comes back on its own over a second connection
	req.Eventually(func() bool {
		return s.monitor.GetLatest().AcceptedConnections == 2 &&
			session.Status() == domain.StatusConnected && s.registry.Len() == 1
	}, 2*time.Second, 5*time.Millisecond)

	req.NoError(session.Send("back online"))
	select {
	case msg := <-session.Messages():
		req.Equal("back online", msg.Content)
	case <-time.After(2 * time.Second):
		req.Fail("message never came back")
	}

	// And logout really leaves
	session.Logout()
	s.waitConnections(t, 0)
	req.Equal(domain.StatusDisconnected, session.Status())
}

func TestRelayServer_SupervisorStopsOnRejectedToken(t *testing.T) {
	req := require.New(t)
	s := newStack(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	endpoint, err := client.NewAccountClient(s.server.URL, time.Second).RelayEndpoint()
	req.NoError(err)
	session := client.NewSupervisor(log, client.NewWebSocketDialer(endpoint, time.Second, time.Second), clock.Real(),
		client.DefaultConfig(), domain.Credential{Username: "mallory", Token: "forged"})

	req.Error(session.Start(context.Background()))
	req.Equal(domain.StatusDisconnected, session.Status())
	req.Zero(s.registry.Len())
}
