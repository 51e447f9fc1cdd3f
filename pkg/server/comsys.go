package server

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/emberline-mud/goember/pkg/events"
	"github.com/emberline-mud/goember/pkg/gamedb"
)

// Comsys manages the channel/communication system.
type Comsys struct {
	mu       sync.RWMutex
	Channels map[string]*gamedb.Channel           // lowercase name -> channel
	Aliases  map[gamedb.DBRef][]*gamedb.ChanAlias // player -> their aliases
}

// NewComsys creates an empty comsys manager.
func NewComsys() *Comsys {
	return &Comsys{
		Channels: make(map[string]*gamedb.Channel),
		Aliases:  make(map[gamedb.DBRef][]*gamedb.ChanAlias),
	}
}

// LoadChannels populates the comsys from persisted data.
func (cs *Comsys) LoadChannels(channels []gamedb.Channel, aliases []gamedb.ChanAlias) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	for i := range channels {
		cs.Channels[strings.ToLower(channels[i].Name)] = &channels[i]
	}
	for i := range aliases {
		a := aliases[i]
		cs.Aliases[a.Player] = append(cs.Aliases[a.Player], &a)
	}
	log.Printf("comsys: loaded %d channels, %d aliases (%d players)",
		len(cs.Channels), len(aliases), len(cs.Aliases))
}

// GetChannel returns a channel by name (case-insensitive).
func (cs *Comsys) GetChannel(name string) *gamedb.Channel {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.Channels[strings.ToLower(name)]
}

// AllChannels returns a snapshot of all channels.
func (cs *Comsys) AllChannels() []*gamedb.Channel {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	result := make([]*gamedb.Channel, 0, len(cs.Channels))
	for _, ch := range cs.Channels {
		result = append(result, ch)
	}
	return result
}

// LookupAlias finds a player's channel alias by name (case-insensitive).
func (cs *Comsys) LookupAlias(player gamedb.DBRef, alias string) *gamedb.ChanAlias {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	lower := strings.ToLower(alias)
	for _, ca := range cs.Aliases[player] {
		if strings.ToLower(ca.Alias) == lower {
			return ca
		}
	}
	return nil
}

// AddChannel adds a new channel. Creating a channel whose key already
// exists fails cleanly; the comsys state is untouched.
func (cs *Comsys) AddChannel(ch *gamedb.Channel) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	lower := strings.ToLower(ch.Name)
	if _, exists := cs.Channels[lower]; exists {
		return fmt.Errorf("channel %q already exists", ch.Name)
	}
	cs.Channels[lower] = ch
	return nil
}

// RemoveChannel removes a channel and all its subscriptions.
// Returns the removed aliases so the caller can clean up the store.
func (cs *Comsys) RemoveChannel(name string) ([]*gamedb.ChanAlias, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	lower := strings.ToLower(name)
	if _, exists := cs.Channels[lower]; !exists {
		return nil, fmt.Errorf("channel %q not found", name)
	}
	delete(cs.Channels, lower)

	var removed []*gamedb.ChanAlias
	for player, aliases := range cs.Aliases {
		var kept []*gamedb.ChanAlias
		for _, ca := range aliases {
			if strings.ToLower(ca.Channel) == lower {
				removed = append(removed, ca)
			} else {
				kept = append(kept, ca)
			}
		}
		if len(kept) == 0 {
			delete(cs.Aliases, player)
		} else {
			cs.Aliases[player] = kept
		}
	}
	return removed, nil
}

// AddAlias adds a channel alias for a player. Returns error if the alias
// already exists.
func (cs *Comsys) AddAlias(ca *gamedb.ChanAlias) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	lower := strings.ToLower(ca.Alias)
	for _, existing := range cs.Aliases[ca.Player] {
		if strings.ToLower(existing.Alias) == lower {
			return fmt.Errorf("alias %q already exists", ca.Alias)
		}
	}
	cs.Aliases[ca.Player] = append(cs.Aliases[ca.Player], ca)
	return nil
}

// ChannelListeners returns all aliases for a given channel that are listening.
func (cs *Comsys) ChannelListeners(channelName string) []*gamedb.ChanAlias {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	lower := strings.ToLower(channelName)
	var result []*gamedb.ChanAlias
	for _, aliases := range cs.Aliases {
		for _, ca := range aliases {
			if strings.ToLower(ca.Channel) == lower && ca.IsListening {
				result = append(result, ca)
			}
		}
	}
	return result
}

// ConnectToChannel subscribes a player to a channel, aliasing it by its own
// lowercased name when no alias is given.
func (g *Game) ConnectToChannel(player gamedb.DBRef, channelName, alias string) (*gamedb.ChanAlias, error) {
	ch := g.Comsys.GetChannel(channelName)
	if ch == nil {
		return nil, fmt.Errorf("channel %q not found", channelName)
	}
	if alias == "" {
		alias = strings.ToLower(ch.Name)
	}
	ca := &gamedb.ChanAlias{
		Player:      player,
		Channel:     ch.Name,
		Alias:       alias,
		IsListening: true,
	}
	if err := g.Comsys.AddAlias(ca); err != nil {
		return nil, err
	}
	if g.Store != nil {
		if err := g.Store.PutChanAlias(ca); err != nil {
			log.Printf("comsys: persist alias %q: %v", ca.Alias, err)
		}
	}
	return ca, nil
}

// SendToChannel broadcasts a message to all listening, connected players on
// a channel via the event bus.
func (g *Game) SendToChannel(channelName string, sender gamedb.DBRef, msg string) {
	if g.Comsys == nil {
		return
	}
	listeners := g.Comsys.ChannelListeners(channelName)
	// Deduplicate by player: multiple aliases for the same channel still
	// mean one copy of each message.
	seen := make(map[gamedb.DBRef]bool)
	for _, ca := range listeners {
		if seen[ca.Player] {
			continue
		}
		seen[ca.Player] = true
		if g.Conns.IsConnected(ca.Player) {
			g.EventBus.EmitToPlayer(ca.Player, events.Event{
				Type:    events.EvChannel,
				Source:  sender,
				Channel: channelName,
				Text:    msg,
				Data: map[string]any{
					"channel": channelName,
					"message": msg,
				},
			})
		}
	}
}

// PostToChannel records a message in the message log and broadcasts it.
// The stored message carries the raw body; the broadcast carries the
// channel-formatted text.
func (g *Game) PostToChannel(sender gamedb.DBRef, channelName, body string) (*gamedb.Message, error) {
	ch := g.Comsys.GetChannel(channelName)
	if ch == nil {
		return nil, fmt.Errorf("channel %q not found", channelName)
	}
	msg := &gamedb.Message{
		Sender:   sender,
		Channels: []string{ch.Name},
		Body:     body,
		Sent:     time.Now(),
	}
	if g.Msgs != nil {
		if err := g.Msgs.InsertMessage(msg); err != nil {
			return nil, fmt.Errorf("recording message: %w", err)
		}
	}
	ch.NumSent++
	if g.Store != nil {
		if err := g.Store.PutChannel(ch); err != nil {
			log.Printf("comsys: persist channel %q: %v", ch.Name, err)
		}
	}
	if g.Metrics != nil {
		g.Metrics.MessagePosted()
	}

	header := ch.Header
	if header == "" {
		header = fmt.Sprintf("[%s]", ch.Name)
	}
	g.SendToChannel(ch.Name, sender, fmt.Sprintf("%s %s: %s", header, g.PlayerName(sender), body))
	return msg, nil
}

// ComsysProcessAlias handles a player using a channel alias to send a message.
func (g *Game) ComsysProcessAlias(d *Descriptor, ca *gamedb.ChanAlias, args string) {
	args = strings.TrimSpace(args)
	ch := g.Comsys.GetChannel(ca.Channel)
	if ch == nil {
		d.Send("That channel no longer exists.")
		return
	}

	// Meta-commands: on, off
	switch strings.ToLower(args) {
	case "on":
		ca.IsListening = true
		if g.Store != nil {
			g.Store.PutChanAlias(ca)
		}
		d.Send(fmt.Sprintf("Channel %s is now on.", ch.Name))
		return
	case "off":
		ca.IsListening = false
		if g.Store != nil {
			g.Store.PutChanAlias(ca)
		}
		d.Send(fmt.Sprintf("Channel %s is now off.", ch.Name))
		return
	}

	if args == "" {
		d.Send(fmt.Sprintf("Channel %s: what do you want to say?", ch.Name))
		return
	}
	if !ca.IsListening {
		d.Send(fmt.Sprintf("You must turn on channel %s first.", ch.Name))
		return
	}

	if _, err := g.PostToChannel(d.Player, ch.Name, args); err != nil {
		d.Send(fmt.Sprintf("Could not send to channel %s: %v", ch.Name, err))
	}
}

// CreateChannel creates and persists a new channel. The duplicate-key error
// from the comsys passes through unchanged for the caller to report.
func (g *Game) CreateChannel(name string, owner gamedb.DBRef) (*gamedb.Channel, error) {
	ch := &gamedb.Channel{Name: name, Owner: owner}
	if err := g.Comsys.AddChannel(ch); err != nil {
		return nil, err
	}
	if g.Store != nil {
		if err := g.Store.PutChannel(ch); err != nil {
			log.Printf("comsys: persist channel %q: %v", name, err)
		}
	}
	if g.Metrics != nil {
		g.Metrics.SetChannels(len(g.Comsys.AllChannels()))
	}
	return ch, nil
}
