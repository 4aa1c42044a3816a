package core

import "github.com/vovakirdan/chatrelay/internal/store"

// JoinChat announces the identity behind a connection.
type JoinChat struct {
	Email string
	Name  string
}

// JoinRoom moves a connection into a room.
type JoinRoom struct {
	Room     string
	User     string
	UserName string
}

// ChatMessage is a text message for the current room or everyone.
type ChatMessage struct {
	User     string
	UserName string
	Msg      string
	Room     string
}

// FileMessage carries an inline attachment.
type FileMessage struct {
	User     string
	UserName string
	Room     string
	File     *store.FileAttachment
}

// PrivateMessage is a direct message between two identities.
type PrivateMessage struct {
	To       string
	From     string
	Msg      string
	FromName string
	ToName   string
}

// Ack is the result reported back to the sender of an inbound event.
type Ack struct {
	OK    bool
	ID    string
	Error *CoreError
}

func okAck(id string) Ack {
	return Ack{OK: true, ID: id}
}

func failAck(err *CoreError) Ack {
	return Ack{Error: err}
}
