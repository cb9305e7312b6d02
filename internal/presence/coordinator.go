package presence

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/citybuild/maprelay/internal/protocol"
	"github.com/citybuild/maprelay/pkg/metrics"
)

// Coordinator drives the per-connection state machine
// (connected → in-room → in-room' → disconnected) and owns the broadcast
// policy. Every roster mutation is serialized through its mutex, which is
// what gives each room a total broadcast order. Sends are buffered-channel
// enqueues, so no socket I/O ever happens under the lock.
//
// All operations are defensive: an unknown connection or room means the
// command raced a disconnect and is dropped with a log line, never an error
// surfaced to another connection.
type Coordinator struct {
	mu       sync.Mutex
	registry *Registry
	rooms    *RoomStore
	logger   *slog.Logger
	metrics  *metrics.Set // nil disables instrumentation
}

func NewCoordinator(logger *slog.Logger, registry *Registry, rooms *RoomStore, m *metrics.Set) *Coordinator {
	return &Coordinator{
		registry: registry,
		rooms:    rooms,
		logger:   logger.With(slog.String("component", "coordinator")),
		metrics:  m,
	}
}

// Connect registers a fresh transport session with no room.
func (c *Coordinator) Connect(transport Sender) (*Connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := c.registry.Register(transport, "", "")
	if err != nil {
		return nil, err
	}
	c.gauges()
	return conn, nil
}

// Join moves the connection into the room for mapID, leaving its current
// room first if it is switching. Existing members get a visitor-joined
// notice; everyone, joiner included, gets the authoritative roster.
func (c *Coordinator) Join(connID uuid.UUID, mapID, mapName, owner, pseudonym, token string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, ok := c.registry.Get(connID)
	if !ok {
		c.logger.Warn("join from unknown connection", slog.String("connID", connID.String()))
		return
	}

	roomID := protocol.RoomID(mapID)

	if conn.RoomID == roomID {
		// Re-join of the current room: refresh the roster entry and
		// re-send the roster to the caller only. No broadcast.
		c.registry.SetIdentity(connID, pseudonym, token)
		c.rooms.AddVisitor(roomID, connID, pseudonym)
		if frame := c.encode(protocol.EventRoster, c.rosterFor(roomID)); frame != nil {
			conn.Transport.Send(frame)
		}
		return
	}

	if conn.RoomID != "" {
		// Switch path: the old room sees the departure, under the old
		// pseudonym, before anyone sees the arrival. Both happen inside
		// this critical section.
		c.leaveLocked(conn)
	}
	c.registry.SetIdentity(connID, pseudonym, token)

	c.rooms.GetOrCreate(roomID, mapID, mapName, owner)
	prior := c.rooms.Visitors(roomID)
	c.rooms.AddVisitor(roomID, connID, pseudonym)
	c.registry.SetRoom(connID, roomID)

	visitors := c.rooms.Visitors(roomID)
	info, _ := c.rooms.Info(roomID)
	joiner := visitors[len(visitors)-1]

	if len(prior) > 0 {
		frame := c.encode(protocol.EventVisitorJoined, protocol.VisitorJoined{
			Visitor:       wireVisitor(joiner),
			TotalVisitors: len(visitors),
			RoomInfo:      info,
		})
		for _, v := range prior {
			c.sendTo(v.ConnID, frame)
		}
	}

	rosterFrame := c.encode(protocol.EventRoster, protocol.Roster{
		Visitors: wireVisitors(visitors),
		RoomInfo: info,
	})
	for _, v := range visitors {
		c.sendTo(v.ConnID, rosterFrame)
	}

	c.logger.Info("visitor joined room",
		slog.String("connID", connID.String()),
		slog.String("roomID", roomID),
		slog.String("pseudonym", pseudonym),
		slog.Int("visitors", len(visitors)),
	)
	c.gauges()
}

// Leave removes the connection from its room. A roomless connection is a
// no-op.
func (c *Coordinator) Leave(connID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, ok := c.registry.Get(connID)
	if !ok {
		return
	}
	c.leaveLocked(conn)
	c.gauges()
}

// MapUpdate relays an edit to every other member of the sender's room.
// The sender never hears its own update back. A roomless or unknown sender
// means the update raced a leave; it is dropped silently.
func (c *Coordinator) MapUpdate(connID uuid.UUID, upd protocol.MapUpdate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, ok := c.registry.Get(connID)
	if !ok || conn.RoomID == "" {
		c.logger.Debug("map update outside a room, dropping", slog.String("connID", connID.String()))
		return
	}

	frame := c.encode(protocol.EventMapChanged, protocol.MapChanged{
		Action:       upd.Action,
		BuildingData: upd.BuildingData,
		Position:     upd.Position,
		UpdatedBy:    conn.Pseudonym,
		Timestamp:    time.Now().UnixMilli(),
	})
	for _, v := range c.rooms.Visitors(conn.RoomID) {
		if v.ConnID == connID {
			continue
		}
		c.sendTo(v.ConnID, frame)
	}
}

// Disconnect performs leave-then-unregister as one atomic cleanup. It is
// idempotent: transport close handlers may fire more than once, and a second
// call finds nothing to do.
func (c *Coordinator) Disconnect(connID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, ok := c.registry.Get(connID)
	if !ok {
		return
	}
	c.leaveLocked(conn)
	c.registry.Unregister(connID)
	c.logger.Info("connection disconnected", slog.String("connID", connID.String()))
	c.gauges()
}

// Kick tears down one connection's transport. Cleanup arrives through the
// normal close path, so no lock is held here.
func (c *Coordinator) Kick(connID uuid.UUID, reason error) {
	if conn, ok := c.registry.Get(connID); ok {
		conn.Transport.Close(reason)
	}
}

// leaveLocked removes conn from its room and notifies the remaining
// members. When the leaver was the last visitor the room is already gone
// and there is nobody left to tell. Caller holds c.mu.
func (c *Coordinator) leaveLocked(conn *Connection) {
	roomID := conn.RoomID
	if roomID == "" {
		return
	}

	pseudonym := conn.Pseudonym
	remaining := c.rooms.RemoveVisitor(roomID, conn.ID)
	c.registry.ClearRoom(conn.ID)

	c.logger.Info("visitor left room",
		slog.String("connID", conn.ID.String()),
		slog.String("roomID", roomID),
		slog.Int("remaining", remaining),
	)

	if remaining == 0 {
		return
	}

	visitors := c.rooms.Visitors(roomID)
	leftFrame := c.encode(protocol.EventVisitorLeft, protocol.VisitorLeft{
		ConnectionID:      conn.ID.String(),
		Pseudonym:         pseudonym,
		RemainingVisitors: remaining,
	})
	rosterFrame := c.encode(protocol.EventRoster, c.rosterFor(roomID))
	for _, v := range visitors {
		c.sendTo(v.ConnID, leftFrame)
		c.sendTo(v.ConnID, rosterFrame)
	}
}

func (c *Coordinator) rosterFor(roomID string) protocol.Roster {
	info, _ := c.rooms.Info(roomID)
	return protocol.Roster{
		Visitors: wireVisitors(c.rooms.Visitors(roomID)),
		RoomInfo: info,
	}
}

// sendTo enqueues a frame for one member, skipping peers whose registry
// entry vanished under a concurrent disconnect.
func (c *Coordinator) sendTo(connID uuid.UUID, frame []byte) {
	if frame == nil {
		return
	}
	if conn, ok := c.registry.Get(connID); ok {
		conn.Transport.Send(frame)
	}
}

func (c *Coordinator) encode(event string, payload any) []byte {
	frame, err := protocol.Encode(event, payload)
	if err != nil {
		c.logger.Error("encode broadcast", slog.String("event", event), slog.Any("error", err))
		return nil
	}
	return frame
}

func (c *Coordinator) gauges() {
	if c.metrics == nil {
		return
	}
	c.metrics.ActiveConnections.Set(float64(c.registry.Len()))
	c.metrics.ActiveRooms.Set(float64(c.rooms.Len()))
}

func wireVisitor(v Visitor) protocol.Visitor {
	return protocol.Visitor{
		ConnectionID: v.ConnID.String(),
		Pseudonym:    v.Pseudonym,
		JoinedAt:     v.JoinedAt,
	}
}

func wireVisitors(vs []Visitor) []protocol.Visitor {
	out := make([]protocol.Visitor, len(vs))
	for i, v := range vs {
		out[i] = wireVisitor(v)
	}
	return out
}
