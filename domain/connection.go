package domain

import (
	"github.com/google/uuid"
)

// ConnectionID is the opaque handle of one accepted transport session.
type ConnectionID uuid.UUID

func NewConnectionID() ConnectionID {
	return ConnectionID(uuid.New())
}

func (id ConnectionID) String() string {
	return uuid.UUID(id).String()
}

type ConnectionState int32

const (
	Open ConnectionState = iota
	Closing
	Closed
)

func (s ConnectionState) String() string {
	switch s {
	case Open:
		return "OPEN"
	case Closing:
		return "CLOSING"
	case Closed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}
