package gamedb

import "time"

// Channel represents a comsys channel.
type Channel struct {
	Name        string
	Owner       DBRef
	Flags       int
	NumSent     int
	Description string
	Header      string // prefix shown before messages, defaults to [Name]
}

// Channel flag constants.
const (
	ChanPublic = 0x0001 // anyone can join
	ChanLoud   = 0x0002 // announce joins and parts
)

// ChanAlias represents a player's subscription/alias for a channel.
type ChanAlias struct {
	Player      DBRef
	Channel     string // channel name
	Alias       string // player's alias for this channel
	Title       string // player's title on this channel
	IsListening bool   // currently tuned in
}

// Message is a single channel message. The comsys records one per post;
// the message log keeps them queryable by sender.
type Message struct {
	ID       int64
	Sender   DBRef
	Channels []string
	Body     string
	Sent     time.Time
}
