package core

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatrelay/internal/store"
)

// History caps. Clients cannot page past them.
const (
	PublicHistoryLimit = 200
	RoomHistoryLimit   = 500
)

// mirrorTimeout bounds a single mirror publish.
const mirrorTimeout = 5 * time.Second

// MessagePublisher receives every message after it has been persisted.
type MessagePublisher interface {
	Publish(ctx context.Context, msg *store.Message) error
}

// Gateway is the only writer of messages. It assigns ids and timestamps.
type Gateway struct {
	store     store.MessageStore
	publisher MessagePublisher
	log       *zerolog.Logger
	now       func() time.Time

	mirrorTimeout time.Duration
	mirrors       sync.WaitGroup
}

// NewGateway wraps a message store. publisher may be nil.
func NewGateway(ms store.MessageStore, publisher MessagePublisher, logger *zerolog.Logger) *Gateway {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Gateway{
		store:     ms,
		publisher: publisher,
		log:       logger,
		now:       time.Now,

		mirrorTimeout: mirrorTimeout,
	}
}

// Save validates msg, stamps it and writes it. The stored record is returned.
func (g *Gateway) Save(ctx context.Context, msg store.Message) (*store.Message, error) {
	if msg.User == "" {
		return nil, badRequest("user is required")
	}
	if msg.IsPrivate {
		if msg.To == nil || *msg.To == "" {
			return nil, badRequest("private message requires a recipient")
		}
		msg.Room = nil
	} else {
		msg.To = nil
		msg.ToName = nil
	}

	msg.ID = uuid.NewString()
	msg.Time = g.now().UTC().Truncate(time.Millisecond)

	if err := g.store.SaveMessage(ctx, &msg); err != nil {
		g.log.Error().Err(err).Str("user", msg.User).Msg("failed to save message")
		return nil, &StorageError{Op: "save", Err: err}
	}

	g.log.Info().
		Str("message_id", msg.ID).
		Str("user", msg.User).
		Str("room", store.Deref(msg.Room)).
		Bool("private", msg.IsPrivate).
		Msg("message saved")
	return &msg, nil
}

// Mirror hands a saved message to the publisher in the background. Callers
// invoke it after delivery; failures are only logged.
func (g *Gateway) Mirror(msg *store.Message) {
	if g.publisher == nil || msg == nil {
		return
	}
	copied := *msg

	g.mirrors.Add(1)
	go func() {
		defer g.mirrors.Done()

		ctx, cancel := context.WithTimeout(context.Background(), g.mirrorTimeout)
		defer cancel()
		if err := g.publisher.Publish(ctx, &copied); err != nil {
			g.log.Warn().Err(err).Str("message_id", copied.ID).Msg("failed to mirror message")
		}
	}()
}

// WaitMirrors blocks until in-flight mirror publishes finish or ctx ends.
func (g *Gateway) WaitMirrors(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.mirrors.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublicHistory returns global, non-private messages ordered by time.
func (g *Gateway) PublicHistory(ctx context.Context) ([]*store.Message, error) {
	msgs, err := g.store.ListPublicMessages(ctx, PublicHistoryLimit)
	if err != nil {
		return nil, &StorageError{Op: "public history", Err: err}
	}
	return msgs, nil
}

// RoomHistory returns every message carrying room, private ones included.
func (g *Gateway) RoomHistory(ctx context.Context, room string) ([]*store.Message, error) {
	msgs, err := g.store.ListRoomMessages(ctx, room, RoomHistoryLimit)
	if err != nil {
		return nil, &StorageError{Op: "room history", Err: err}
	}
	return msgs, nil
}
