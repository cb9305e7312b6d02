package presence

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/citybuild/maprelay/internal/protocol"
)

// Visitor is a room's view of one connection.
type Visitor struct {
	ConnID    uuid.UUID
	Pseudonym string
	JoinedAt  time.Time
}

// Room groups the connections currently viewing the same map. The visitor
// slice is kept in join order.
type Room struct {
	ID       string
	MapID    string
	MapName  string
	Owner    string
	Visitors []Visitor
}

// RoomStore is keyed by room id. Invariant: a room exists here if and only
// if it has at least one visitor: the last leaver deletes it inside
// RemoveVisitor, so no empty room is ever observable.
type RoomStore struct {
	mu     sync.RWMutex
	rooms  map[string]*Room
	logger *slog.Logger
}

func NewRoomStore(logger *slog.Logger) *RoomStore {
	return &RoomStore{
		rooms:  make(map[string]*Room),
		logger: logger.With(slog.String("component", "roomstore")),
	}
}

// GetOrCreate returns the room, creating an empty one if needed. Metadata is
// first-writer-wins for the room's lifetime: an existing room keeps its name
// and owner whatever a later joiner supplies.
func (s *RoomStore) GetOrCreate(roomID, mapID, mapName, owner string) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, exists := s.rooms[roomID]
	if !exists {
		room = &Room{
			ID:      roomID,
			MapID:   mapID,
			MapName: mapName,
			Owner:   owner,
		}
		s.rooms[roomID] = room
		s.logger.Debug("Room created", slog.String("roomID", roomID))
	}
	return room
}

// AddVisitor appends a visitor in join order. A duplicate connection id
// refreshes the pseudonym in place and never produces a second entry.
func (s *RoomStore) AddVisitor(roomID string, connID uuid.UUID, pseudonym string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		s.logger.Warn("AddVisitor on unknown room", slog.String("roomID", roomID))
		return
	}
	for i := range room.Visitors {
		if room.Visitors[i].ConnID == connID {
			room.Visitors[i].Pseudonym = pseudonym
			return
		}
	}
	room.Visitors = append(room.Visitors, Visitor{
		ConnID:    connID,
		Pseudonym: pseudonym,
		JoinedAt:  time.Now(),
	})
}

// RemoveVisitor drops the visitor if present and returns how many remain.
// When the roster empties the room is deleted in the same critical section,
// so a subsequent GetOrCreate always starts fresh.
func (s *RoomStore) RemoveVisitor(roomID string, connID uuid.UUID) (remaining int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return 0
	}
	for i := range room.Visitors {
		if room.Visitors[i].ConnID == connID {
			room.Visitors = append(room.Visitors[:i], room.Visitors[i+1:]...)
			break
		}
	}
	if len(room.Visitors) == 0 {
		delete(s.rooms, roomID)
		s.logger.Debug("Removed empty room", slog.String("roomID", roomID))
		return 0
	}
	return len(room.Visitors)
}

// Visitors returns an ordered copy of the roster, empty if the room is gone.
func (s *RoomStore) Visitors(roomID string) []Visitor {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	out := make([]Visitor, len(room.Visitors))
	copy(out, room.Visitors)
	return out
}

// Info returns the wire-level description of a room.
func (s *RoomStore) Info(roomID string) (protocol.RoomInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return protocol.RoomInfo{}, false
	}
	return protocol.RoomInfo{
		MapID:   room.MapID,
		MapName: room.MapName,
		Owner:   room.Owner,
	}, true
}

func (s *RoomStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}
