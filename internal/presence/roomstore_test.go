package presence_test

import (
	"testing"

	"github.com/google/uuid"

	"github.com/citybuild/maprelay/internal/presence"
)

func TestGetOrCreateFirstWriterWinsMetadata(t *testing.T) {
	s := presence.NewRoomStore(newTestLogger())

	s.GetOrCreate("map_1", "1", "Aliceville", "alice")
	s.GetOrCreate("map_1", "1", "Bobtown", "bob")

	info, ok := s.Info("map_1")
	if !ok {
		t.Fatal("room should exist")
	}
	if info.MapName != "Aliceville" || info.Owner != "alice" {
		t.Errorf("metadata overwritten by later joiner: %+v", info)
	}
}

func TestAddVisitorIsIdempotent(t *testing.T) {
	s := presence.NewRoomStore(newTestLogger())
	s.GetOrCreate("map_1", "1", "m", "o")
	id := uuid.New()

	s.AddVisitor("map_1", id, "alice")
	s.AddVisitor("map_1", id, "alice2")

	vs := s.Visitors("map_1")
	if len(vs) != 1 {
		t.Fatalf("duplicate connection id must not duplicate the entry, got %d", len(vs))
	}
	if vs[0].Pseudonym != "alice2" {
		t.Errorf("expected pseudonym refresh to alice2, got %q", vs[0].Pseudonym)
	}
}

func TestVisitorsKeepJoinOrder(t *testing.T) {
	s := presence.NewRoomStore(newTestLogger())
	s.GetOrCreate("map_1", "1", "m", "o")
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	s.AddVisitor("map_1", a, "a")
	s.AddVisitor("map_1", b, "b")
	s.AddVisitor("map_1", c, "c")

	s.RemoveVisitor("map_1", b)

	vs := s.Visitors("map_1")
	if len(vs) != 2 || vs[0].ConnID != a || vs[1].ConnID != c {
		t.Errorf("expected join order [a c], got %v", vs)
	}
}

func TestRemoveLastVisitorDeletesRoom(t *testing.T) {
	s := presence.NewRoomStore(newTestLogger())
	s.GetOrCreate("map_1", "1", "m", "o")
	id := uuid.New()
	s.AddVisitor("map_1", id, "alice")

	if remaining := s.RemoveVisitor("map_1", id); remaining != 0 {
		t.Errorf("expected 0 remaining, got %d", remaining)
	}
	if _, ok := s.Info("map_1"); ok {
		t.Error("empty room must be deleted inside RemoveVisitor")
	}
	if s.Len() != 0 {
		t.Errorf("store should be empty, has %d rooms", s.Len())
	}
}

func TestVisitorsOfAbsentRoomIsEmpty(t *testing.T) {
	s := presence.NewRoomStore(newTestLogger())
	if vs := s.Visitors("map_404"); len(vs) != 0 {
		t.Errorf("expected empty roster for absent room, got %v", vs)
	}
	if remaining := s.RemoveVisitor("map_404", uuid.New()); remaining != 0 {
		t.Errorf("remove on absent room should report 0, got %d", remaining)
	}
}
