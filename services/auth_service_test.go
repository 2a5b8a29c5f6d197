package services

import (
	"chat-relay/auth"
	"chat-relay/errors"
	"chat-relay/mocks"
	"chat-relay/repositories"
	"encoding/base64"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func newAuthService(t *testing.T) (*AuthService, *mocks.MockIUserRepository, *auth.TokenIssuer) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockIUserRepository(ctrl)
	tokens := auth.NewTokenIssuer("secret", time.Hour)
	return NewAuthService(logs.GetLoggerFromLevel(slog.LevelDebug), repo, tokens), repo, tokens
}

func TestAuthService_Signup(t *testing.T) {
	t.Run("stores a lowercased account with a hashed password", func(t *testing.T) {
		req := require.New(t)
		svc, repo, tokens := newAuthService(t)

		repo.EXPECT().
			CreateUser("alice", gomock.Any(), gomock.Nil()).
			DoAndReturn(func(username, hashed string, _ []byte) (repositories.User, error) {
				req.True(strings.HasPrefix(hashed, "$argon2id$"))
				return repositories.User{ID: "id-1", Username: username, PasswordHash: hashed}, nil
			})

		profile, token, err := svc.Signup("Alice", "password123", "")

		req.NoError(err)
		req.Equal("alice", profile.Username)
		claims, err := tokens.ValidateToken(token.String())
		req.NoError(err)
		req.Equal("alice", claims.Username)
	})

	t.Run("keeps the decoded profile picture", func(t *testing.T) {
		req := require.New(t)
		svc, repo, _ := newAuthService(t)
		dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngHeader)

		repo.EXPECT().
			CreateUser("alice", gomock.Any(), pngHeader).
			Return(repositories.User{ID: "id-1", Username: "alice", ProfilePicture: pngHeader}, nil)

		profile, _, err := svc.Signup("alice", "password123", dataURL)

		req.NoError(err)
		req.Equal(pngHeader, profile.ProfilePicture)
	})

	t.Run("validation fails before touching the store", func(t *testing.T) {
		req := require.New(t)
		svc, _, _ := newAuthService(t)

		_, _, err := svc.Signup("al", "password123", "")
		req.ErrorIs(err, errors.ErrInvalidUsername)

		_, _, err = svc.Signup("alice", "short", "")
		req.ErrorIs(err, errors.ErrInvalidPassword)

		_, _, err = svc.Signup("alice", "password123", "data:image/gif;base64,R0lGOD")
		req.ErrorIs(err, errors.ErrInvalidProfilePicture)
	})

	t.Run("duplicate username", func(t *testing.T) {
		svc, repo, _ := newAuthService(t)
		repo.EXPECT().CreateUser("alice", gomock.Any(), gomock.Nil()).Return(repositories.User{}, errors.ErrUserAlreadyExists)

		_, _, err := svc.Signup("alice", "password123", "")

		require.ErrorIs(t, err, errors.ErrUserAlreadyExists)
	})
}

func TestAuthService_Signin(t *testing.T) {
	hash, err := auth.HashPassword("password123")
	require.NoError(t, err)
	stored := repositories.User{ID: "id-1", Username: "alice", PasswordHash: hash, Roles: []string{"user"}}

	t.Run("issues a token for the right password", func(t *testing.T) {
		req := require.New(t)
		svc, repo, tokens := newAuthService(t)
		repo.EXPECT().GetUserByUsername("alice").Return(stored, nil)

		token, err := svc.Signin("ALICE", "password123")

		req.NoError(err)
		claims, err := tokens.ValidateToken(token.String())
		req.NoError(err)
		req.Equal("id-1", claims.UserID)
	})

	t.Run("wrong password and unknown user look the same", func(t *testing.T) {
		req := require.New(t)
		svc, repo, _ := newAuthService(t)
		repo.EXPECT().GetUserByUsername("alice").Return(stored, nil)
		repo.EXPECT().GetUserByUsername("ghost").Return(repositories.User{}, errors.ErrUserNotFound)

		_, err := svc.Signin("alice", "wrong-password")
		req.ErrorIs(err, errors.ErrInvalidCredentials)

		_, err = svc.Signin("ghost", "password123")
		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})
}

func TestAuthService_Lookup(t *testing.T) {
	req := require.New(t)
	svc, repo, _ := newAuthService(t)
	repo.EXPECT().GetUserByUsername("alice").Return(repositories.User{ID: "id-1", Username: "alice"}, nil)
	repo.EXPECT().GetUserByUsername("ghost").Return(repositories.User{}, errors.ErrUserNotFound)

	profile, err := svc.Lookup("Alice")
	req.NoError(err)
	req.Equal("id-1", profile.ID)

	_, err = svc.Lookup("ghost")
	req.ErrorIs(err, errors.ErrUserNotFound)
}
