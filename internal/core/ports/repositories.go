package ports

import (
	"peerlink/internal/core/domain"
)

// Connection is a live channel to exactly one client.
// Send must not block; it fails when the connection is gone or backed up.
type Connection interface {
	ID() string
	Send(data []byte) error
}

// PresenceFunc receives a consistent snapshot of the registry. It is invoked
// while the registry lock is held, so it must only enqueue work.
type PresenceFunc func(users []domain.Username, conns []Connection)

// UserRegistry maps usernames to connections. Each connection holds at most
// one username; the last connection to bind a username owns it.
type UserRegistry interface {
	// Bind registers conn under name and calls onChange with the resulting
	// snapshot. If conn was bound to a different name that it still owns,
	// that name is released and returned.
	Bind(name domain.Username, conn Connection, onChange PresenceFunc) (released domain.Username, renamed bool)
	// Unbind removes the entry owned by conn, if any, and calls onChange
	// only when something was removed.
	Unbind(conn Connection, onChange PresenceFunc) (domain.Username, bool)
	Lookup(name domain.Username) (Connection, bool)
	// View calls fn with the current snapshot under the registry lock.
	View(fn PresenceFunc)
	Usernames() []domain.Username
	Len() int
}
