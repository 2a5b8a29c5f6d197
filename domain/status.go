package domain

// SessionStatus is the connection status a client session exposes to its UI.
type SessionStatus int

const (
	StatusDisconnected SessionStatus = iota
	StatusConnecting
	StatusConnected
	StatusDisconnectedMaxAttemptsReached
)

func (s SessionStatus) String() string {
	switch s {
	case StatusConnecting:
		return "Connecting"
	case StatusConnected:
		return "Connected"
	case StatusDisconnectedMaxAttemptsReached:
		return "Disconnected-MaxAttemptsReached"
	default:
		return "Disconnected"
	}
}

// Terminal reports whether no further reconnect will happen on its own.
func (s SessionStatus) Terminal() bool {
	return s == StatusDisconnected || s == StatusDisconnectedMaxAttemptsReached
}
