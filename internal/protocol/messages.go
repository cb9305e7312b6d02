// Package protocol defines the closed set of wire messages exchanged with
// clients. Every message is an Envelope carrying one event name and the
// payload variant for that event; nothing else crosses the socket.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Client-to-server events.
const (
	EventJoinRoom  = "join-room"
	EventLeaveRoom = "leave-room"
	EventMapUpdate = "map-update"
)

// Server-to-client events.
const (
	EventVisitorJoined = "visitor-joined"
	EventRoster        = "roster"
	EventVisitorLeft   = "visitor-left"
	EventMapChanged    = "map-changed"
)

// roomPrefix namespaces room ids so every client visiting the same map
// resolves to the same room, however they learned the map id.
const roomPrefix = "map_"

func RoomID(mapID string) string { return roomPrefix + mapID }

type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// JoinRoom asks to enter the room for a map. MapID is a json.Number so both
// numeric and string ids decode.
type JoinRoom struct {
	MapID            json.Number `json:"mapId"`
	MapName          string      `json:"mapName"`
	OwnerPseudonym   string      `json:"ownerPseudonym"`
	VisitorPseudonym string      `json:"visitorPseudonym"`
	Token            string      `json:"token"`
}

// MapUpdate relays an edit to the map being visited. BuildingData and
// Position are forwarded untouched; the relay never interprets them.
type MapUpdate struct {
	Action       string          `json:"action"`
	BuildingData json.RawMessage `json:"buildingData,omitempty"`
	Position     json.RawMessage `json:"position,omitempty"`
}

type RoomInfo struct {
	MapID   string `json:"mapId"`
	MapName string `json:"mapName"`
	Owner   string `json:"owner"`
}

type Visitor struct {
	ConnectionID string    `json:"connectionId"`
	Pseudonym    string    `json:"pseudonym"`
	JoinedAt     time.Time `json:"joinedAt"`
}

// VisitorJoined notifies existing room members of a newcomer.
type VisitorJoined struct {
	Visitor       Visitor  `json:"visitor"`
	TotalVisitors int      `json:"totalVisitors"`
	RoomInfo      RoomInfo `json:"roomInfo"`
}

// Roster is the authoritative, ordered membership of a room. Clients that
// raced an earlier partial update self-heal from it.
type Roster struct {
	Visitors []Visitor `json:"visitors"`
	RoomInfo RoomInfo  `json:"roomInfo"`
}

type VisitorLeft struct {
	ConnectionID      string `json:"connectionId"`
	Pseudonym         string `json:"pseudonym"`
	RemainingVisitors int    `json:"remainingVisitors"`
}

// MapChanged fans a MapUpdate out to the rest of the room. Timestamp is
// server-assigned, unix milliseconds.
type MapChanged struct {
	Action       string          `json:"action"`
	BuildingData json.RawMessage `json:"buildingData,omitempty"`
	Position     json.RawMessage `json:"position,omitempty"`
	UpdatedBy    string          `json:"updatedBy"`
	Timestamp    int64           `json:"timestamp"`
}

// Encode wraps a payload in an Envelope for the given event and marshals it.
func Encode(event string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	msg, err := json.Marshal(Envelope{Event: event, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", event, err)
	}
	return msg, nil
}
