package events

import (
	"sync"
	"testing"

	"github.com/emberline-mud/goember/pkg/gamedb"
)

// mockSubscriber implements Subscriber for testing.
type mockSubscriber struct {
	mu       sync.Mutex
	events   []Event
	isClosed bool
}

func (m *mockSubscriber) Receive(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

func (m *mockSubscriber) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isClosed
}

func (m *mockSubscriber) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]Event, len(m.events))
	copy(cp, m.events)
	return cp
}

func TestBusEmitToPlayer(t *testing.T) {
	bus := NewBus()
	sub := &mockSubscriber{}

	player := gamedb.DBRef(1)
	bus.Subscribe(player, sub)

	bus.Emit(Event{Type: EvSay, Player: player, Source: player, Text: "Hello world"})

	events := sub.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Text != "Hello world" {
		t.Errorf("expected text %q, got %q", "Hello world", events[0].Text)
	}
	if events[0].Type != EvSay {
		t.Errorf("expected type EvSay, got %v", events[0].Type)
	}
}

func TestBusGlobalSubscriber(t *testing.T) {
	bus := NewBus()
	global := &mockSubscriber{}
	bus.SubscribeGlobal(global)

	bus.Emit(Event{Type: EvChannel, Player: 5, Channel: "lobby", Text: "test msg"})

	events := global.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 global event, got %d", len(events))
	}
	if events[0].Channel != "lobby" {
		t.Errorf("expected channel %q, got %q", "lobby", events[0].Channel)
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus()
	sub := &mockSubscriber{}
	player := gamedb.DBRef(2)

	bus.Subscribe(player, sub)
	bus.Unsubscribe(player, sub)
	bus.Emit(Event{Type: EvText, Player: player, Text: "dropped"})

	if got := sub.Events(); len(got) != 0 {
		t.Errorf("unsubscribed subscriber received %d events", len(got))
	}
}

func TestBusClosedSubscriberSkipped(t *testing.T) {
	bus := NewBus()
	sub := &mockSubscriber{isClosed: true}
	player := gamedb.DBRef(3)

	bus.Subscribe(player, sub)
	bus.Emit(Event{Type: EvText, Player: player, Text: "dropped"})

	if got := sub.Events(); len(got) != 0 {
		t.Errorf("closed subscriber received %d events", len(got))
	}
}

func TestBusEmitToAll(t *testing.T) {
	bus := NewBus()
	a := &mockSubscriber{}
	b := &mockSubscriber{}
	bus.Subscribe(1, a)
	bus.Subscribe(2, b)

	bus.EmitToAll(Event{Type: EvConnect, Source: 1, Text: "Wizard has connected."})

	if len(a.Events()) != 1 || len(b.Events()) != 1 {
		t.Errorf("broadcast reached %d/%d subscribers", len(a.Events()), len(b.Events()))
	}
	if a.Events()[0].Player != 1 || b.Events()[0].Player != 2 {
		t.Error("broadcast should stamp each copy with the recipient")
	}
}
