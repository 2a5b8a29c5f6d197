//go:generate go run go.uber.org/mock/mockgen -source=transport.go -destination=../mocks/mock_transport.go -package=mocks
package client

import (
	"chat-relay/domain"
	"context"
)

// Transport is one live connection to the relay.
type Transport interface {
	ReadMessage() (domain.OutboundMessage, error)
	WriteText(text string) error
	Close() error
}

// Dialer performs a fresh handshake presenting the credential.
// A refused credential is reported with errors.ErrHandshakeRejected.
type Dialer interface {
	Dial(ctx context.Context, credential domain.Credential) (Transport, error)
}
