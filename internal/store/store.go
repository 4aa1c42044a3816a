package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a lookup matches no record.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique constraint is violated.
	ErrDuplicate = errors.New("duplicate")
)

// FileAttachment is an inline file carried by a message.
// Data holds the full data URI: <mime>;base64,<payload>.
type FileAttachment struct {
	Name string `json:"name" bson:"name"`
	Type string `json:"type" bson:"type"`
	Data string `json:"data" bson:"data"`
}

// Message is a persisted chat record. It is append-only and never mutated after creation.
// Room nil means global scope; To/ToName are set only for private messages.
type Message struct {
	ID        string          `json:"_id" bson:"_id"`
	User      string          `json:"user" bson:"user"`
	UserName  string          `json:"userName" bson:"userName"`
	Msg       string          `json:"msg" bson:"msg"`
	Room      *string         `json:"room" bson:"room"`
	To        *string         `json:"to" bson:"to"`
	ToName    *string         `json:"toName" bson:"toName"`
	IsPrivate bool            `json:"isPrivate" bson:"isPrivate"`
	File      *FileAttachment `json:"file" bson:"file"`
	Time      time.Time       `json:"time" bson:"time"`
}

// User is a registered account.
type User struct {
	ID           string    `bson:"_id"`
	Username     string    `bson:"username"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"password_hash"`
	CreatedAt    time.Time `bson:"created_at"`
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser inserts a user. Returns ErrDuplicate if the email is taken.
	CreateUser(ctx context.Context, user *User) error

	// GetUserByEmail returns ErrNotFound when no user has that email.
	GetUserByEmail(ctx context.Context, email string) (*User, error)
}

// MessageStore handles message persistence.
// History queries return records ascending by time and capped at limit.
type MessageStore interface {
	// SaveMessage inserts a fully populated message (id and time already assigned).
	SaveMessage(ctx context.Context, msg *Message) error

	// ListPublicMessages returns messages with no room that are not private.
	ListPublicMessages(ctx context.Context, limit int) ([]*Message, error)

	// ListRoomMessages returns every message tagged with room, private or not.
	ListRoomMessages(ctx context.Context, room string, limit int) ([]*Message, error)
}

// Checkpointer is implemented by backends that benefit from periodic compaction.
type Checkpointer interface {
	Checkpoint(ctx context.Context) error
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the value behind p, or "" for nil.
func Deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
