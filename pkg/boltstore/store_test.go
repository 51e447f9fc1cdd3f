package boltstore

import (
	"path/filepath"
	"testing"

	"github.com/emberline-mud/goember/pkg/gamedb"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestObjectRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	obj := &gamedb.Object{
		DBRef: 7,
		Name:  "accessed_object",
		Type:  gamedb.TypeThing,
		Owner: 1,
		Perms: []string{"has_permission", "skey:has_permission"},
	}
	obj.SetAttr("testattr", "testattr_value")
	if err := s.PutObject(obj); err != nil {
		t.Fatalf("PutObject: %v", err)
	}
	s.DB().Add(obj)
	if err := s.PutMeta(); err != nil {
		t.Fatalf("PutMeta: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reload through a fresh cache.
	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	if err := s2.LoadAll(); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	got, ok := s2.DB().Objects[7]
	if !ok {
		t.Fatal("object #7 missing after reload")
	}
	if got.Name != "accessed_object" || got.Attr("testattr") != "testattr_value" {
		t.Errorf("reloaded object mismatch: %+v", got)
	}
	if len(got.Perms) != 2 {
		t.Errorf("reloaded perms = %v", got.Perms)
	}
	if s2.DB().NextRef != 8 {
		t.Errorf("NextRef = %d, want 8", s2.DB().NextRef)
	}

	if err := s2.DeleteObject(7); err != nil {
		t.Fatalf("DeleteObject: %v", err)
	}
}

func TestChannelRoundtrip(t *testing.T) {
	s := openTestStore(t)

	ch := &gamedb.Channel{Name: "lobby", Owner: 1, Description: "test channel"}
	if err := s.PutChannel(ch); err != nil {
		t.Fatalf("PutChannel: %v", err)
	}
	ca := &gamedb.ChanAlias{Player: 1, Channel: "lobby", Alias: "lob", IsListening: true}
	if err := s.PutChanAlias(ca); err != nil {
		t.Fatalf("PutChanAlias: %v", err)
	}

	channels, aliases, err := s.Channels()
	if err != nil {
		t.Fatalf("Channels: %v", err)
	}
	if len(channels) != 1 || channels[0].Name != "lobby" {
		t.Errorf("channels = %+v", channels)
	}
	if len(aliases) != 1 || aliases[0].Alias != "lob" || !aliases[0].IsListening {
		t.Errorf("aliases = %+v", aliases)
	}

	if err := s.DeleteChanAlias(1, "LOB"); err != nil {
		t.Fatalf("DeleteChanAlias: %v", err)
	}
	if err := s.DeleteChannel("LOBBY"); err != nil {
		t.Fatalf("DeleteChannel: %v", err)
	}
	channels, aliases, err = s.Channels()
	if err != nil {
		t.Fatalf("Channels after delete: %v", err)
	}
	if len(channels) != 0 || len(aliases) != 0 {
		t.Errorf("expected empty comsys, got %d channels %d aliases", len(channels), len(aliases))
	}
}

func TestStateStackRoundtrip(t *testing.T) {
	s := openTestStore(t)

	paths := []string{"world.states.example", "world.states.combat"}
	if err := s.PutStateStack(4, paths); err != nil {
		t.Fatalf("PutStateStack: %v", err)
	}

	got, err := s.StateStack(4)
	if err != nil {
		t.Fatalf("StateStack: %v", err)
	}
	if len(got) != 2 || got[0] != "world.states.example" || got[1] != "world.states.combat" {
		t.Errorf("StateStack = %v, want %v", got, paths)
	}

	// Unknown player: no stack, no error.
	got, err = s.StateStack(99)
	if err != nil || got != nil {
		t.Errorf("StateStack(99) = %v, %v; want nil, nil", got, err)
	}

	if err := s.DeleteStateStack(4); err != nil {
		t.Fatalf("DeleteStateStack: %v", err)
	}
	got, _ = s.StateStack(4)
	if got != nil {
		t.Errorf("stack should be gone, got %v", got)
	}
}
