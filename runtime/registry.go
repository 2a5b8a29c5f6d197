package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/samber/lo"
)

// Registry is the authoritative live set of accepted connections.
// Every mutation and enumeration goes through mu.
type Registry struct {
	mu          sync.RWMutex
	log         *slog.Logger
	seq         uint64
	connections map[domain.ConnectionID]entry
}

type entry struct {
	seq  uint64
	conn contract.Connection
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		log:         log,
		connections: make(map[domain.ConnectionID]entry),
	}
}

// Register adds a connection that has passed the identity gate.
// Registering the same handle twice is a programming error and is refused.
func (r *Registry) Register(conn contract.Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.connections[conn.ID()]; ok {
		return fmt.Errorf("%w: %s", errors.ErrDuplicateConnection, conn.ID())
	}
	r.seq++
	r.connections[conn.ID()] = entry{seq: r.seq, conn: conn}
	r.log.Debug("Connection registered", "connection_id", conn.ID().String(), "username", conn.Username())
	return nil
}

// Unregister removes the connection. It reports whether this call removed it,
// so a second call is a harmless no-op.
func (r *Registry) Unregister(conn contract.Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.connections[conn.ID()]; !ok {
		return false
	}
	delete(r.connections, conn.ID())
	r.log.Debug("Connection unregistered", "connection_id", conn.ID().String(), "username", conn.Username())
	return true
}

// SnapshotAll returns a copy of the membership in registration order.
// Callers may iterate it while the registry keeps changing.
func (r *Registry) SnapshotAll() []contract.Connection {
	r.mu.RLock()
	entries := lo.Values(r.connections)
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	return lo.Map(entries, func(e entry, _ int) contract.Connection { return e.conn })
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}

// CloseAll closes every registered connection. Each connection's own
// teardown path takes care of unregistering it.
func (r *Registry) CloseAll(reason string) {
	for _, conn := range r.SnapshotAll() {
		if err := conn.Close(reason); err != nil {
			r.log.Debug("Closing connection failed", "connection_id", conn.ID().String(), "error", err)
		}
	}
}
