package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
// ID is an optional correlation id echoed back in the ack.
type Inbound struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeJoinChat       = "joinChat"
	InboundTypeJoinRoom       = "joinRoom"
	InboundTypeChatMessage    = "chatMessage"
	InboundTypeFileMessage    = "fileMessage"
	InboundTypePrivateMessage = "privateMessage"
	InboundTypeTyping         = "typing"
	InboundTypeStopTyping     = "stopTyping"

	OutboundTypeEvent = "event"
	OutboundTypeAck   = "ack"
	OutboundTypeError = "error"

	EventChatHistory    = "chatHistory"
	EventRoomHistory    = "roomHistory"
	EventOnlineUsers    = "onlineUsers"
	EventSystemMessage  = "systemMessage"
	EventChatMessage    = "chatMessage"
	EventFileMessage    = "fileMessage"
	EventPrivateMessage = "privateMessage"
	EventTyping         = "typing"
	EventStopTyping     = "stopTyping"
)

// JoinChatData announces the user behind the connection.
type JoinChatData struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// JoinRoomData requests to join a specific room.
type JoinRoomData struct {
	Room     string `json:"room"`
	User     string `json:"user,omitempty"`
	UserName string `json:"userName,omitempty"`
}

// ChatMessageData is a text message from the client.
type ChatMessageData struct {
	User     string `json:"user"`
	UserName string `json:"userName,omitempty"`
	Msg      string `json:"msg"`
	Room     string `json:"room,omitempty"`
}

// FileData is an inline attachment; Data is a data URI.
type FileData struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Data string `json:"data"`
}

// FileMessageData carries an attachment.
type FileMessageData struct {
	User     string    `json:"user"`
	UserName string    `json:"userName,omitempty"`
	Room     string    `json:"room,omitempty"`
	File     *FileData `json:"file"`
}

// PrivateMessageData is a direct message.
type PrivateMessageData struct {
	To       string `json:"to"`
	From     string `json:"from"`
	Msg      string `json:"msg"`
	FromName string `json:"fromName,omitempty"`
	ToName   string `json:"toName,omitempty"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	ID    string `json:"id,omitempty"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// AckData reports the outcome of an inbound event.
type AckData struct {
	OK    bool   `json:"ok"`
	ID    string `json:"id,omitempty"`
	Error string `json:"error,omitempty"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
