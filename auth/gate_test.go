package auth

import (
	"chat-relay/errors"
	"chat-relay/mocks"
	"chat-relay/repositories"
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newGate(t *testing.T) (*Gate, *TokenIssuer, *mocks.MockIUserRepository) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockIUserRepository(ctrl)
	tokens := NewTokenIssuer("secret", time.Hour)
	return NewGate(logs.GetLoggerFromLevel(slog.LevelDebug), tokens, repo), tokens, repo
}

func TestGate_AcceptsValidCredential(t *testing.T) {
	req := require.New(t)
	gate, tokens, repo := newGate(t)
	token, err := tokens.GenerateToken("id-1", "alice", []string{"user"})
	req.NoError(err)

	repo.EXPECT().GetUserByUsername("alice").Return(repositories.User{ID: "id-1", Username: "alice"}, nil)

	// Usernames are compared after normalization
	req.NoError(gate.Authenticate(context.Background(), "Alice", token))
}

func TestGate_Rejects(t *testing.T) {
	gate, tokens, repo := newGate(t)
	aliceToken, err := tokens.GenerateToken("id-1", "alice", nil)
	require.NoError(t, err)

	repo.EXPECT().GetUserByUsername("alice").Return(repositories.User{}, errors.ErrUserNotFound).AnyTimes()

	tests := []struct {
		name     string
		username string
		token    string
	}{
		{"Missing username", "", aliceToken},
		{"Missing token", "alice", ""},
		{"Garbage token", "alice", "garbage"},
		{"Token of another user", "bob", aliceToken},
		{"Deleted account", "alice", aliceToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := gate.Authenticate(context.Background(), tt.username, tt.token)
			require.ErrorIs(t, err, errors.ErrHandshakeRejected)
		})
	}
}

func TestGate_StoreFailureRejects(t *testing.T) {
	gate, tokens, repo := newGate(t)
	token, err := tokens.GenerateToken("id-1", "alice", nil)
	require.NoError(t, err)

	repo.EXPECT().GetUserByUsername("alice").Return(repositories.User{}, fmt.Errorf("disk failure"))

	require.ErrorIs(t, gate.Authenticate(context.Background(), "alice", token), errors.ErrHandshakeRejected)
}

func TestGate_CanceledContext(t *testing.T) {
	gate, _, _ := newGate(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, gate.Authenticate(ctx, "alice", "token"), context.Canceled)
}
