package auth

import (
	"chat-relay/errors"
	"chat-relay/repositories"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
)

// Gate is the identity check run once per handshake, before registration.
type Gate struct {
	log    *slog.Logger
	tokens *TokenIssuer
	users  repositories.IUserRepository
}

func NewGate(log *slog.Logger, tokens *TokenIssuer, users repositories.IUserRepository) *Gate {
	return &Gate{log: log, tokens: tokens, users: users}
}

// Authenticate accepts the credential (nil) or rejects it with an error
// wrapping errors.ErrHandshakeRejected.
func (g *Gate) Authenticate(ctx context.Context, username, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	username = NormalizeUsername(username)
	if username == "" || token == "" {
		return reject("missing username or token")
	}

	claims, err := g.tokens.ValidateToken(token)
	if err != nil {
		return reject(err.Error())
	}
	if claims.Username != username {
		return reject("token was not issued to this username")
	}

	if _, err = g.users.GetUserByUsername(username); err != nil {
		if !stderrors.Is(err, errors.ErrUserNotFound) {
			g.log.Error("Identity lookup failed", "username", username, "error", err)
		}
		return reject("unknown account")
	}
	return nil
}

func reject(reason string) error {
	return fmt.Errorf("%w: %s", errors.ErrHandshakeRejected, reason)
}
