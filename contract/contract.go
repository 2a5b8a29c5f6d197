//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// The supervisor restarts it when it panics
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Connection is one accepted transport session, as seen by the registry and the relay.
type Connection interface {
	ID() domain.ConnectionID
	Username() string
	State() domain.ConnectionState
	// Deliver hands a message to the connection's outbound path.
	// It never blocks longer than ctx allows.
	Deliver(ctx context.Context, msg domain.Message) error
	Close(reason string) error
}

type IRegistry interface {
	Register(conn Connection) error
	Unregister(conn Connection) bool
	SnapshotAll() []Connection
	Len() int
	CloseAll(reason string)
}

type IRelay interface {
	Publish(ctx context.Context, from Connection, payload string) error
}

// IdentityGate accepts (nil) or rejects a handshake credential.
type IdentityGate interface {
	Authenticate(ctx context.Context, username, token string) error
}

type ContentFilter interface {
	Censor(content string) string
}
