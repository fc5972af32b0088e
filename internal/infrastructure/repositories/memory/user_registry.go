package memory

import (
	"sync"

	"peerlink/internal/core/domain"
	"peerlink/internal/core/ports"
)

type MemoryUserRegistry struct {
	users  map[domain.Username]ports.Connection
	byConn map[string]domain.Username
	mu     sync.Mutex
}

func NewMemoryUserRegistry() ports.UserRegistry {
	return &MemoryUserRegistry{
		users:  make(map[domain.Username]ports.Connection),
		byConn: make(map[string]domain.Username),
	}
}

func (r *MemoryUserRegistry) Bind(name domain.Username, conn ports.Connection, onChange ports.PresenceFunc) (domain.Username, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := conn.ID()

	var released domain.Username
	renamed := false
	if prev, ok := r.byConn[id]; ok && prev != name {
		if owner, exists := r.users[prev]; exists && owner.ID() == id {
			delete(r.users, prev)
			released, renamed = prev, true
		}
	}

	// The displaced holder keeps its socket but no longer owns the name.
	if old, exists := r.users[name]; exists && old.ID() != id {
		delete(r.byConn, old.ID())
	}

	r.users[name] = conn
	r.byConn[id] = name

	r.notifyLocked(onChange)
	return released, renamed
}

func (r *MemoryUserRegistry) Unbind(conn ports.Connection, onChange ports.PresenceFunc) (domain.Username, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := conn.ID()
	name, ok := r.byConn[id]
	if !ok {
		return "", false
	}
	delete(r.byConn, id)

	owner, exists := r.users[name]
	if !exists || owner.ID() != id {
		return "", false
	}
	delete(r.users, name)

	r.notifyLocked(onChange)
	return name, true
}

func (r *MemoryUserRegistry) Lookup(name domain.Username) (ports.Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, exists := r.users[name]
	return conn, exists
}

func (r *MemoryUserRegistry) View(fn ports.PresenceFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.notifyLocked(fn)
}

func (r *MemoryUserRegistry) Usernames() []domain.Username {
	r.mu.Lock()
	defer r.mu.Unlock()

	names, _ := r.snapshotLocked()
	return names
}

func (r *MemoryUserRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.users)
}

func (r *MemoryUserRegistry) notifyLocked(fn ports.PresenceFunc) {
	if fn == nil {
		return
	}
	fn(r.snapshotLocked())
}

func (r *MemoryUserRegistry) snapshotLocked() ([]domain.Username, []ports.Connection) {
	names := make([]domain.Username, 0, len(r.users))
	for name := range r.users {
		names = append(names, name)
	}
	domain.SortUsernames(names)

	conns := make([]ports.Connection, 0, len(names))
	for _, name := range names {
		conns = append(conns, r.users[name])
	}
	return names, conns
}
