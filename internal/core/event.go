package core

import (
	"time"

	"github.com/vovakirdan/chatrelay/internal/store"
)

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventPublicHistory replays global history to a client that announced itself.
	EventPublicHistory EventKind = iota
	// EventRoomHistory replays a room's history to a client that joined it.
	EventRoomHistory
	// EventPresence carries the full online-user snapshot.
	EventPresence
	// EventSystemNotice is a server-authored line shown in a room.
	EventSystemNotice
	// EventChatMessage delivers a persisted text message.
	EventChatMessage
	// EventFileMessage delivers a persisted attachment message.
	EventFileMessage
	// EventPrivateMessage delivers a persisted direct message.
	EventPrivateMessage
	// EventTyping relays a typing indicator.
	EventTyping
	// EventStopTyping relays the end of a typing indicator.
	EventStopTyping
	// EventReply answers an inbound event on the connection that sent it.
	EventReply
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind     EventKind
	Message  *store.Message   // chat, file and private events
	Messages []*store.Message // history events
	Users    []OnlineUser     // presence
	Notice   *SystemNotice
	Typing   string // username relayed by typing events
	Reply    *Reply
}

// Reply is the outcome of one inbound event. Exactly one of Ack and Error is set;
// Error is used for events rejected before reaching a handler.
type Reply struct {
	CorrelationID string
	Ack           *Ack
	Error         *CoreError
}

// SystemNotice is a room announcement such as a join.
type SystemNotice struct {
	Text string    `json:"text"`
	Time time.Time `json:"time"`
}
