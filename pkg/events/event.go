package events

import "github.com/emberline-mud/goember/pkg/gamedb"

// EventType classifies events for transport-specific encoding.
type EventType int

const (
	EvText       EventType = iota // Raw text (universal fallback)
	EvSay                         // Speech
	EvPose                        // Pose/emote
	EvChannel                     // Channel message
	EvConnect                     // Player connected
	EvDisconnect                  // Player disconnected
	EvWho                         // WHO data
	EvState                       // State stack changed
	EvDebug                       // Debug report output
)

// String returns a human-readable name for the event type.
func (t EventType) String() string {
	switch t {
	case EvText:
		return "text"
	case EvSay:
		return "say"
	case EvPose:
		return "pose"
	case EvChannel:
		return "channel"
	case EvConnect:
		return "connect"
	case EvDisconnect:
		return "disconnect"
	case EvWho:
		return "who"
	case EvState:
		return "state"
	case EvDebug:
		return "debug"
	default:
		return "unknown"
	}
}

// Event is a structured game event that flows through the event bus.
// Transports decide how to encode each event: telnet uses Text,
// WebSocket clients get the full structured data.
type Event struct {
	Type    EventType
	Player  gamedb.DBRef   // Recipient (Nothing for broadcast)
	Source  gamedb.DBRef   // Who generated the event
	Channel string         // Channel name (EvChannel)
	Text    string         // Pre-formatted text (telnet uses this)
	Data    map[string]any // Structured data for JSON clients
}
