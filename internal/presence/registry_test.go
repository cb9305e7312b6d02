package presence_test

import (
	"errors"
	"testing"

	"github.com/citybuild/maprelay/internal/presence"
)

func TestRegisterAndGet(t *testing.T) {
	r := presence.NewRegistry(newTestLogger())
	s := newFakeSender()

	conn, err := r.Register(s, "alice", "tok")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if conn.ID != s.ID() {
		t.Error("registered connection id mismatch")
	}
	if conn.RoomID != "" {
		t.Error("fresh connection must be roomless")
	}

	got, ok := r.Get(s.ID())
	if !ok || got.Pseudonym != "alice" {
		t.Errorf("Get returned %+v, %v", got, ok)
	}
}

func TestRegisterDuplicateFails(t *testing.T) {
	r := presence.NewRegistry(newTestLogger())
	s := newFakeSender()

	if _, err := r.Register(s, "alice", ""); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	_, err := r.Register(s, "alice", "")
	if !errors.Is(err, presence.ErrDuplicateConnection) {
		t.Errorf("expected ErrDuplicateConnection, got %v", err)
	}
}

func TestUnregisterReturnsPriorRoom(t *testing.T) {
	r := presence.NewRegistry(newTestLogger())
	s := newFakeSender()
	r.Register(s, "alice", "")
	r.SetRoom(s.ID(), "map_7")

	prior, ok := r.Unregister(s.ID())
	if !ok || prior != "map_7" {
		t.Errorf("expected (map_7, true), got (%q, %v)", prior, ok)
	}

	// Disconnect handlers may fire more than once.
	prior, ok = r.Unregister(s.ID())
	if ok || prior != "" {
		t.Errorf("second Unregister should be a silent no-op, got (%q, %v)", prior, ok)
	}
}

func TestSetAndClearRoom(t *testing.T) {
	r := presence.NewRegistry(newTestLogger())
	s := newFakeSender()
	r.Register(s, "alice", "")

	r.SetRoom(s.ID(), "map_1")
	if conn, _ := r.Get(s.ID()); conn.RoomID != "map_1" {
		t.Errorf("expected room map_1, got %q", conn.RoomID)
	}

	r.ClearRoom(s.ID())
	if conn, _ := r.Get(s.ID()); conn.RoomID != "" {
		t.Errorf("expected roomless, got %q", conn.RoomID)
	}
}
