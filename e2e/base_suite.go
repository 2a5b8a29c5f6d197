package e2e

import (
	"chat-relay/client"
	"chat-relay/clock"
	"chat-relay/domain"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"
)

type BaseRelaySuite struct {
	suite.Suite
	Config   Config
	Accounts *client.AccountClient
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseRelaySuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ServerURL == "" {
		s.T().Skip("E2E_SERVER_URL is not set")
	}
	s.Accounts = client.NewAccountClient(s.Config.ServerURL, s.Config.Timeout)
}

// Step prints a colorized header before running fn.
func (s *BaseRelaySuite) Step(name string, fn func()) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
	fn()
}

// NewParticipant signs up a fresh account and returns its credential.
func (s *BaseRelaySuite) NewParticipant(prefix string) domain.Credential {
	username := fmt.Sprintf("%s%s", prefix, uuid.NewString()[:8])
	ctx, cancel := context.WithTimeout(context.Background(), s.Config.Timeout)
	defer cancel()

	token, err := s.Accounts.Signup(ctx, username, "e2e-password", "")
	s.Require().NoError(err, "signup of "+username)
	return domain.Credential{Username: username, Token: token}
}

// Connect opens a supervised session and waits until it is connected.
func (s *BaseRelaySuite) Connect(credential domain.Credential) *client.Supervisor {
	endpoint, err := s.Accounts.RelayEndpoint()
	s.Require().NoError(err)

	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	dialer := client.NewWebSocketDialer(endpoint, s.Config.Timeout, s.Config.Timeout)
	session := client.NewSupervisor(log, dialer, clock.Real(), client.DefaultConfig(), credential)
	s.T().Cleanup(session.Logout)

	s.Require().NoError(session.Start(context.Background()))
	s.Require().Equal(domain.StatusConnected, session.Status())
	return session
}

// Expect waits for the next relayed message on session.
func (s *BaseRelaySuite) Expect(session *client.Supervisor) domain.OutboundMessage {
	select {
	case msg := <-session.Messages():
		if s.Config.DebugJSON {
			raw, _ := json.MarshalIndent(msg, "", "  ")
			s.T().Log(string(raw))
		}
		return msg
	case <-time.After(s.Config.Timeout):
		s.FailNow("no message relayed in time")
		return domain.OutboundMessage{}
	}
}
