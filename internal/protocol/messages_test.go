package protocol_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citybuild/maprelay/internal/protocol"
)

func TestRoomIDDerivation(t *testing.T) {
	assert.Equal(t, "map_7", protocol.RoomID("7"))
	assert.Equal(t, "map_7", protocol.RoomID("7"), "same map id must resolve to the same room")
	assert.NotEqual(t, protocol.RoomID("7"), protocol.RoomID("9"))
}

func TestJoinRoomDecodesNumericAndStringMapIDs(t *testing.T) {
	var numeric protocol.JoinRoom
	require.NoError(t, json.Unmarshal([]byte(`{"mapId":7,"visitorPseudonym":"alice"}`), &numeric))
	assert.Equal(t, "7", numeric.MapID.String())

	var str protocol.JoinRoom
	require.NoError(t, json.Unmarshal([]byte(`{"mapId":"7","mapName":"Ville"}`), &str))
	assert.Equal(t, "7", str.MapID.String())
	assert.Equal(t, "Ville", str.MapName)
}

func TestEncodeWrapsPayloadInEnvelope(t *testing.T) {
	frame, err := protocol.Encode(protocol.EventVisitorLeft, protocol.VisitorLeft{
		ConnectionID:      "c1",
		Pseudonym:         "alice",
		RemainingVisitors: 2,
	})
	require.NoError(t, err)

	var env protocol.Envelope
	require.NoError(t, json.Unmarshal(frame, &env))
	assert.Equal(t, protocol.EventVisitorLeft, env.Event)

	var left protocol.VisitorLeft
	require.NoError(t, json.Unmarshal(env.Payload, &left))
	assert.Equal(t, "alice", left.Pseudonym)
	assert.Equal(t, 2, left.RemainingVisitors)
}

func TestMapUpdatePayloadPassesThroughUntouched(t *testing.T) {
	raw := []byte(`{"action":"place","buildingData":{"type":"house","level":3},"position":{"x":4,"y":9}}`)
	var upd protocol.MapUpdate
	require.NoError(t, json.Unmarshal(raw, &upd))
	assert.JSONEq(t, `{"type":"house","level":3}`, string(upd.BuildingData))
	assert.JSONEq(t, `{"x":4,"y":9}`, string(upd.Position))
}
