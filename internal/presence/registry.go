package presence

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrDuplicateConnection = errors.New("connection is already registered")

// Sender is the transport-facing view of a peer: enough to address it and to
// tear it down. The coordinator is tested against in-memory Senders.
type Sender interface {
	ID() uuid.UUID
	Send(message []byte)
	Close(err error)
}

// Connection is the registry's record of one live transport session.
type Connection struct {
	ID        uuid.UUID
	Pseudonym string
	Token     string
	RoomID    string // empty until a join lands
	Transport Sender
	CreatedAt time.Time
}

// Registry is the authoritative record of live connections and which room,
// if any, each currently occupies. All mutation goes through the
// coordinator; the registry only guards its own map.
type Registry struct {
	mu     sync.RWMutex
	conns  map[uuid.UUID]*Connection
	logger *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		conns:  make(map[uuid.UUID]*Connection),
		logger: logger.With(slog.String("component", "registry")),
	}
}

// Register creates an entry with no room. Transport-generated ids should
// never collide; a collision is fatal to the new session only.
func (r *Registry) Register(transport Sender, pseudonym, token string) (*Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	connID := transport.ID()
	if _, exists := r.conns[connID]; exists {
		return nil, ErrDuplicateConnection
	}
	conn := &Connection{
		ID:        connID,
		Pseudonym: pseudonym,
		Token:     token,
		Transport: transport,
		CreatedAt: time.Now(),
	}
	r.conns[connID] = conn
	r.logger.Debug("Connection registered", slog.String("connID", connID.String()))
	return conn, nil
}

// SetIdentity refreshes the caller-supplied pseudonym and token. A join may
// carry a different pseudonym than the previous one; last write wins.
func (r *Registry) SetIdentity(connID uuid.UUID, pseudonym, token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conn, ok := r.conns[connID]; ok {
		conn.Pseudonym = pseudonym
		conn.Token = token
	}
}

// SetRoom points the connection at a room.
func (r *Registry) SetRoom(connID uuid.UUID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conn, ok := r.conns[connID]; ok {
		conn.RoomID = roomID
	}
}

// ClearRoom marks the connection as roomless.
func (r *Registry) ClearRoom(connID uuid.UUID) {
	r.SetRoom(connID, "")
}

// Unregister removes the entry and returns the room it occupied so the
// caller can clean up. Disconnect handlers may fire more than once, so an
// already-gone connection is not an error.
func (r *Registry) Unregister(connID uuid.UUID) (priorRoom string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, found := r.conns[connID]
	if !found {
		return "", false
	}
	delete(r.conns, connID)
	r.logger.Debug("Connection unregistered", slog.String("connID", connID.String()))
	return conn.RoomID, true
}

func (r *Registry) Get(connID uuid.UUID) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[connID]
	return conn, ok
}

// All snapshots the live connections, for the shutdown sweep.
func (r *Registry) All() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
