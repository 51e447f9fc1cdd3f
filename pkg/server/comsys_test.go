package server

import (
	"strings"
	"testing"

	"github.com/emberline-mud/goember/pkg/gamedb"
)

func TestComsysAddChannel(t *testing.T) {
	cs := NewComsys()

	if err := cs.AddChannel(&gamedb.Channel{Name: "Public", Owner: 1}); err != nil {
		t.Fatalf("AddChannel: %v", err)
	}
	// Duplicate detection is case-insensitive and leaves state untouched.
	if err := cs.AddChannel(&gamedb.Channel{Name: "public", Owner: 2}); err == nil {
		t.Fatal("duplicate channel should fail")
	}
	if got := len(cs.AllChannels()); got != 1 {
		t.Fatalf("expected 1 channel after failed duplicate, got %d", got)
	}

	if ch := cs.GetChannel("PUBLIC"); ch == nil || ch.Name != "Public" {
		t.Fatalf("GetChannel case-insensitive lookup failed: %+v", ch)
	}
	if cs.GetChannel("nosuch") != nil {
		t.Fatal("unknown channel should be nil")
	}
}

func TestComsysAliases(t *testing.T) {
	cs := NewComsys()
	if err := cs.AddChannel(&gamedb.Channel{Name: "Public", Owner: 1}); err != nil {
		t.Fatalf("AddChannel: %v", err)
	}

	ca := &gamedb.ChanAlias{Player: 2, Channel: "Public", Alias: "pub", IsListening: true}
	if err := cs.AddAlias(ca); err != nil {
		t.Fatalf("AddAlias: %v", err)
	}
	if err := cs.AddAlias(&gamedb.ChanAlias{Player: 2, Channel: "Public", Alias: "PUB"}); err == nil {
		t.Fatal("duplicate alias should fail")
	}
	// Same alias for a different player is fine.
	if err := cs.AddAlias(&gamedb.ChanAlias{Player: 3, Channel: "Public", Alias: "pub", IsListening: false}); err != nil {
		t.Fatalf("AddAlias other player: %v", err)
	}

	if got := cs.LookupAlias(2, "PUB"); got != ca {
		t.Fatal("LookupAlias should be case-insensitive")
	}
	if cs.LookupAlias(2, "nope") != nil {
		t.Fatal("unknown alias should be nil")
	}

	// Only listening aliases count as listeners.
	listeners := cs.ChannelListeners("public")
	if len(listeners) != 1 || listeners[0].Player != 2 {
		t.Fatalf("listeners = %+v", listeners)
	}
}

func TestComsysRemoveChannel(t *testing.T) {
	cs := NewComsys()
	cs.AddChannel(&gamedb.Channel{Name: "Public", Owner: 1})
	cs.AddAlias(&gamedb.ChanAlias{Player: 2, Channel: "Public", Alias: "pub", IsListening: true})
	cs.AddAlias(&gamedb.ChanAlias{Player: 3, Channel: "Public", Alias: "p", IsListening: true})

	removed, err := cs.RemoveChannel("public")
	if err != nil {
		t.Fatalf("RemoveChannel: %v", err)
	}
	if len(removed) != 2 {
		t.Fatalf("expected 2 removed aliases, got %d", len(removed))
	}
	if cs.GetChannel("Public") != nil {
		t.Fatal("channel still present after removal")
	}
	if cs.LookupAlias(2, "pub") != nil {
		t.Fatal("alias still present after channel removal")
	}

	if _, err := cs.RemoveChannel("Public"); err == nil {
		t.Fatal("removing a missing channel should fail")
	}
}

func TestGameChannelFlow(t *testing.T) {
	env := newTestEnv(t)
	env.game.Comsys = NewComsys()

	ch, err := env.game.CreateChannel("Gossip", 2)
	if err != nil {
		t.Fatalf("CreateChannel: %v", err)
	}

	// Subscribe both players; default alias is the lowercased name.
	if _, err := env.game.ConnectToChannel(2, "gossip", ""); err != nil {
		t.Fatalf("ConnectToChannel bob: %v", err)
	}
	if _, err := env.game.ConnectToChannel(1, "Gossip", "gos"); err != nil {
		t.Fatalf("ConnectToChannel god: %v", err)
	}

	env.game.SendToChannel("Gossip", 2, "[Gossip] Bob: hello")
	if out := getOutput(env.god); !strings.Contains(out, "[Gossip] Bob: hello") {
		t.Errorf("god should hear the channel: %s", out)
	}
	if out := getOutput(env.bob); !strings.Contains(out, "[Gossip] Bob: hello") {
		t.Errorf("sender hears their own channel message: %s", out)
	}

	// Using the alias as a command posts to the channel.
	if env.game.Msgs == nil {
		// No message log in this test; posting still broadcasts.
		DispatchCommand(env.game, env.bob, "gossip hi all")
		if out := getOutput(env.god); !strings.Contains(out, "hi all") {
			t.Errorf("alias dispatch should broadcast: %s", out)
		}
	}

	// Channel meta-commands.
	DispatchCommand(env.game, env.god, "gos off")
	if out := getOutput(env.god); !strings.Contains(out, "Channel Gossip is now off.") {
		t.Errorf("channel off: %s", out)
	}
	DispatchCommand(env.game, env.bob, "gossip anyone there?")
	clearOutput(env.bob)
	if out := getOutput(env.god); strings.Contains(out, "anyone there?") {
		t.Errorf("muted channel should not deliver: %s", out)
	}
	DispatchCommand(env.game, env.god, "gos on")
	if out := getOutput(env.god); !strings.Contains(out, "Channel Gossip is now on.") {
		t.Errorf("channel on: %s", out)
	}

	if ch.NumSent == 0 {
		t.Error("NumSent should count posted messages")
	}
}
