package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatrelay/internal/attachment"
	"github.com/vovakirdan/chatrelay/internal/store"
)

// UserDirectory resolves display names for identities.
type UserDirectory interface {
	GetUserByEmail(ctx context.Context, email string) (*store.User, error)
}

// Dispatcher runs the inbound event handlers. Handlers for one connection are
// expected to be called sequentially; different connections may call concurrently.
type Dispatcher struct {
	registry *Registry
	router   *Router
	gateway  *Gateway
	users    UserDirectory
	log      *zerolog.Logger
}

// NewDispatcher wires the core services together. users may be nil.
func NewDispatcher(registry *Registry, router *Router, gateway *Gateway, users UserDirectory, logger *zerolog.Logger) *Dispatcher {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Dispatcher{
		registry: registry,
		router:   router,
		gateway:  gateway,
		users:    users,
		log:      logger,
	}
}

// Registry exposes the presence registry for read-only views.
func (d *Dispatcher) Registry() *Registry { return d.registry }

// Connect makes a new connection reachable by broadcasts.
func (d *Dispatcher) Connect(c *Client) {
	d.router.Register(c)
	d.log.Debug().Str("conn_id", c.ID).Msg("connection registered")
}

// Disconnect forgets the connection and tells everyone who is left.
func (d *Dispatcher) Disconnect(connID string) {
	d.registry.Leave(connID)
	d.router.Remove(connID)
	d.broadcastPresence()
	d.log.Debug().Str("conn_id", connID).Msg("connection removed")
}

// JoinChat identifies the connection, replays public history to it and
// broadcasts presence.
func (d *Dispatcher) JoinChat(ctx context.Context, connID string, cmd JoinChat) Ack {
	if cmd.Email == "" {
		return failAck(badRequest("email is required"))
	}
	ctx = context.WithoutCancel(ctx)

	name := d.displayName(ctx, cmd.Email, cmd.Name)
	d.registry.Join(connID, cmd.Email, name)

	history, err := d.gateway.PublicHistory(ctx)
	if err == nil {
		d.router.PublishTo(connID, &Event{Kind: EventPublicHistory, Messages: history})
	}
	d.broadcastPresence()

	if err != nil {
		return d.fail(connID, err)
	}
	return okAck("")
}

// JoinRoom subscribes the connection to a room, replays its history and
// announces the arrival to the room.
func (d *Dispatcher) JoinRoom(ctx context.Context, connID string, cmd JoinRoom) Ack {
	if cmd.Room == "" {
		return failAck(badRequest("room is required"))
	}
	ctx = context.WithoutCancel(ctx)

	d.router.Subscribe(connID, cmd.Room)
	d.registry.SetRoom(connID, cmd.Room)

	// Notice and presence still go out when history fails.
	history, err := d.gateway.RoomHistory(ctx, cmd.Room)
	if err == nil {
		d.router.PublishTo(connID, &Event{Kind: EventRoomHistory, Messages: history})
	}

	who := cmd.UserName
	if who == "" {
		who = cmd.User
	}
	if who == "" {
		if u, ok := d.registry.Lookup(connID); ok {
			who = u.Name
		}
	}
	d.router.Publish(cmd.Room, &Event{
		Kind: EventSystemNotice,
		Notice: &SystemNotice{
			Text: fmt.Sprintf("%s joined %s", who, cmd.Room),
			Time: d.gateway.now().UTC(),
		},
	}, "")
	d.broadcastPresence()

	if err != nil {
		return d.fail(connID, err)
	}
	return okAck("")
}

// Chat persists a text message and sends it to the resolved audience.
func (d *Dispatcher) Chat(ctx context.Context, connID string, cmd ChatMessage) Ack {
	ctx = context.WithoutCancel(ctx)

	user := cmd.User
	if user == "" {
		if u, ok := d.registry.Lookup(connID); ok {
			user = u.Email
		}
	}
	audience := d.router.ResolveAudience(connID, cmd.Room)

	msg, err := d.gateway.Save(ctx, store.Message{
		User:     user,
		UserName: d.displayName(ctx, user, cmd.UserName),
		Msg:      cmd.Msg,
		Room:     roomOf(audience),
	})
	if err != nil {
		return d.fail(connID, err)
	}

	d.router.Deliver(audience, &Event{Kind: EventChatMessage, Message: msg})
	d.gateway.Mirror(msg)
	return okAck(msg.ID)
}

// File validates and persists an attachment, then sends it to the payload's
// room or to everyone. The registry room is not consulted.
func (d *Dispatcher) File(ctx context.Context, connID string, cmd FileMessage) Ack {
	if cmd.File == nil || cmd.File.Data == "" {
		return failAck(coreError(ErrCodePayload, "Invalid file payload"))
	}
	if _, err := attachment.Validate(cmd.File.Data); err != nil {
		d.log.Info().Str("conn_id", connID).Str("user", cmd.User).Err(err).Msg("attachment rejected")
		return d.fail(connID, err)
	}
	ctx = context.WithoutCancel(ctx)

	file := *cmd.File
	msg, err := d.gateway.Save(ctx, store.Message{
		User:     cmd.User,
		UserName: d.displayName(ctx, cmd.User, cmd.UserName),
		Msg:      "[File] " + file.Name,
		Room:     store.StringPtr(cmd.Room),
		File:     &file,
	})
	if err != nil {
		return d.fail(connID, err)
	}

	audience := GlobalAudience()
	if cmd.Room != "" {
		audience = RoomAudience(cmd.Room)
	}
	d.router.Deliver(audience, &Event{Kind: EventFileMessage, Message: msg})
	d.gateway.Mirror(msg)
	return okAck(msg.ID)
}

// Private persists a direct message and delivers it to the recipient, when
// online, and back to the sender.
func (d *Dispatcher) Private(ctx context.Context, connID string, cmd PrivateMessage) Ack {
	if cmd.To == "" || cmd.From == "" {
		return failAck(badRequest("to and from are required"))
	}
	ctx = context.WithoutCancel(ctx)

	target, online := d.registry.FindByIdentity(cmd.To)
	toName := cmd.ToName
	if online {
		if u, ok := d.registry.Lookup(target); ok && u.Name != "" {
			toName = u.Name
		}
	}
	if toName == "" {
		toName = cmd.To
	}

	msg, err := d.gateway.Save(ctx, store.Message{
		User:      cmd.From,
		UserName:  d.displayName(ctx, cmd.From, cmd.FromName),
		Msg:       cmd.Msg,
		To:        store.StringPtr(cmd.To),
		ToName:    store.StringPtr(toName),
		IsPrivate: true,
	})
	if err != nil {
		return d.fail(connID, err)
	}

	event := &Event{Kind: EventPrivateMessage, Message: msg}
	if online && target != connID {
		d.router.Deliver(ConnectionAudience(target), event)
	}
	d.router.Deliver(ConnectionAudience(connID), event)
	d.gateway.Mirror(msg)
	return okAck(msg.ID)
}

// Typing relays a typing indicator to the sender's room, or to every other
// connection when the sender is in no room.
func (d *Dispatcher) Typing(connID, username string, stop bool) Ack {
	kind := EventTyping
	if stop {
		kind = EventStopTyping
	}
	event := &Event{Kind: kind, Typing: username}

	if room := d.registry.CurrentRoom(connID); room != "" {
		d.router.Publish(room, event, connID)
	} else {
		d.router.PublishAll(event, connID)
	}
	return okAck("")
}

func (d *Dispatcher) broadcastPresence() {
	d.router.PublishAll(&Event{Kind: EventPresence, Users: d.registry.Snapshot()}, "")
}

// displayName prefers the stored username, then the client-supplied name,
// then the identity itself.
func (d *Dispatcher) displayName(ctx context.Context, identity, supplied string) string {
	if d.users != nil && identity != "" {
		u, err := d.users.GetUserByEmail(ctx, identity)
		switch {
		case err == nil && u.Username != "":
			return u.Username
		case err != nil && !errors.Is(err, store.ErrNotFound):
			d.log.Warn().Err(err).Str("user", identity).Msg("display name lookup failed")
		}
	}
	if supplied != "" {
		return supplied
	}
	return identity
}

func (d *Dispatcher) fail(connID string, err error) Ack {
	var (
		ce *CoreError
		se *StorageError
		pe *attachment.PayloadError
	)
	switch {
	case errors.As(err, &ce):
		return failAck(ce)
	case errors.As(err, &pe):
		return failAck(coreError(ErrCodePayload, pe.Reason))
	case errors.As(err, &se):
		d.log.Error().Err(err).Str("conn_id", connID).Msg("storage failure")
		return failAck(coreError(ErrCodeStorage, "Server error"))
	default:
		d.log.Error().Err(err).Str("conn_id", connID).Msg("handler failure")
		return failAck(coreError(ErrCodeStorage, err.Error()))
	}
}

func roomOf(a Audience) *string {
	if a.Kind != AudienceRoom {
		return nil
	}
	return store.StringPtr(a.Room)
}
