package server

import (
	"path/filepath"
	"testing"

	"github.com/emberline-mud/goember/pkg/boltstore"
	"github.com/emberline-mud/goember/pkg/gamedb"
)

func stateGame(t *testing.T, withStore bool) *Game {
	t.Helper()
	db := gamedb.NewDatabase()
	db.Objects[1] = &gamedb.Object{DBRef: 1, Name: "God", Type: gamedb.TypePlayer, Flags: gamedb.FlagWizard | gamedb.FlagImmortal, Owner: 1}
	db.Objects[2] = &gamedb.Object{DBRef: 2, Name: "Bob", Type: gamedb.TypePlayer, Owner: 2}
	db.NextRef = 3
	g := NewGame(db, nil)

	if withStore {
		store, err := boltstore.Open(filepath.Join(t.TempDir(), "game.db"))
		if err != nil {
			t.Fatalf("opening store: %v", err)
		}
		t.Cleanup(func() { store.Close() })
		g.Store = store
	}
	return g
}

func TestStateHandlerAddAndShadow(t *testing.T) {
	g := stateGame(t, false)
	sh := g.StateHandlerFor(2)

	if sh.State() != nil {
		t.Fatal("fresh handler should have an empty stack")
	}
	if sh.String() != "State stack: <empty>" {
		t.Fatalf("empty render: %q", sh.String())
	}

	// Bare names are qualified against the state base.
	st, err := sh.Add("example")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if st.Key() != "example" {
		t.Fatalf("added state key = %q", st.Key())
	}
	if sh.State() == nil || sh.State().Key() != "example" {
		t.Fatal("active state should be the pushed one")
	}
	if sh.String() != "State stack: example" {
		t.Fatalf("render: %q", sh.String())
	}

	if cmd := sh.FindCommand("smile"); cmd == nil {
		t.Error("active state should contribute the smile command")
	}
	if cmd := sh.FindCommand("@testcommand"); cmd == nil {
		t.Error("active state should contribute @testcommand")
	}
	if cmd := sh.FindCommand("frown"); cmd != nil {
		t.Error("unknown command should not resolve")
	}
}

func TestStateHandlerAddUnknownPath(t *testing.T) {
	g := stateGame(t, false)
	sh := g.StateHandlerFor(2)

	if _, err := sh.Add("nonexistent"); err == nil {
		t.Fatal("adding an unregistered state should fail")
	}
	if sh.State() != nil {
		t.Fatal("failed add must not change the stack")
	}
}

func TestStateHandlerClear(t *testing.T) {
	g := stateGame(t, false)
	sh := g.StateHandlerFor(2)

	if _, err := sh.Add("example"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := sh.Add("example"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if got := len(sh.Keys()); got != 2 {
		t.Fatalf("expected 2 stacked states, got %d", got)
	}

	if err := sh.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if sh.State() != nil || len(sh.Keys()) != 0 {
		t.Fatal("cleared handler should be empty")
	}
}

func TestStateHandlerPersistence(t *testing.T) {
	g := stateGame(t, true)

	sh := g.StateHandlerFor(2)
	if _, err := sh.Add("example"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	// A fresh handler for the same player reloads the stack from the store.
	fresh := newStateHandler(g, 2)
	if fresh.State() == nil || fresh.State().Key() != "example" {
		t.Fatalf("reloaded handler: %q", fresh.String())
	}

	// Clear drops the persisted configuration too.
	if err := sh.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	fresh = newStateHandler(g, 2)
	if fresh.State() != nil {
		t.Fatal("cleared stack should not reload")
	}

	paths, err := g.Store.StateStack(2)
	if err != nil {
		t.Fatalf("StateStack: %v", err)
	}
	if paths != nil {
		t.Fatalf("expected no persisted paths, got %v", paths)
	}
}

func TestStateHandlerLoadSkipsUnresolvable(t *testing.T) {
	g := stateGame(t, true)

	// Persist a stack containing a path that no longer resolves.
	if err := g.Store.PutStateStack(2, []string{"world.states.gone", "world.states.example"}); err != nil {
		t.Fatalf("PutStateStack: %v", err)
	}

	sh := newStateHandler(g, 2)
	keys := sh.Keys()
	if len(keys) != 1 || keys[0] != "example" {
		t.Fatalf("load should skip unresolvable paths, got %v", keys)
	}
}

func TestStateHandlerPerPlayer(t *testing.T) {
	g := stateGame(t, false)

	shBob := g.StateHandlerFor(2)
	shGod := g.StateHandlerFor(1)
	if shBob == shGod {
		t.Fatal("handlers must be per player")
	}
	if g.StateHandlerFor(2) != shBob {
		t.Fatal("handler lookup must be stable")
	}

	if _, err := shBob.Add("example"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if shGod.State() != nil {
		t.Fatal("one player's states must not leak to another")
	}
}
