package core

import (
	"sync"

	"github.com/rs/zerolog"
)

// AudienceKind selects who receives an outgoing event.
type AudienceKind int

const (
	// AudienceGlobal targets every connection.
	AudienceGlobal AudienceKind = iota
	// AudienceRoom targets subscribers of one room.
	AudienceRoom
	// AudienceConnection targets a single connection.
	AudienceConnection
)

// Audience is a resolved delivery target.
type Audience struct {
	Kind   AudienceKind
	Room   string
	ConnID string
}

// GlobalAudience targets every connection.
func GlobalAudience() Audience { return Audience{Kind: AudienceGlobal} }

// RoomAudience targets the subscribers of room.
func RoomAudience(room string) Audience { return Audience{Kind: AudienceRoom, Room: room} }

// ConnectionAudience targets one connection.
func ConnectionAudience(connID string) Audience {
	return Audience{Kind: AudienceConnection, ConnID: connID}
}

// Router owns connection handles and room groups. A connection belongs to at
// most one room; subscribing elsewhere moves it.
type Router struct {
	registry *Registry
	log      *zerolog.Logger

	mu         sync.RWMutex
	clients    map[string]*Client
	rooms      map[string]*Room
	membership map[string]string
}

// NewRouter creates a router resolving rooms against registry.
func NewRouter(registry *Registry, logger *zerolog.Logger) *Router {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Router{
		registry:   registry,
		log:        logger,
		clients:    make(map[string]*Client),
		rooms:      make(map[string]*Room),
		membership: make(map[string]string),
	}
}

// Register makes a connection reachable.
func (r *Router) Register(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.ID] = c
}

// Remove forgets a connection and its room membership.
// Later deliveries addressed to it are dropped.
func (r *Router) Remove(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.leaveLocked(connID)
	delete(r.clients, connID)
}

// Subscribe moves connID into room, leaving any previous room.
func (r *Router) Subscribe(connID, room string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[connID]
	if !ok {
		return false
	}
	if current, ok := r.membership[connID]; ok && current == room {
		return true
	}
	r.leaveLocked(connID)

	rm, ok := r.rooms[room]
	if !ok {
		rm = NewRoom(room)
		r.rooms[room] = rm
	}
	rm.AddClient(c)
	r.membership[connID] = room
	return true
}

func (r *Router) leaveLocked(connID string) {
	current, ok := r.membership[connID]
	if !ok {
		return
	}
	delete(r.membership, connID)

	rm, ok := r.rooms[current]
	if !ok {
		return
	}
	if c, ok := r.clients[connID]; ok {
		rm.RemoveClient(c)
	}
	if rm.Empty() {
		delete(r.rooms, current)
	}
}

// RoomOf returns the room connID is subscribed to.
func (r *Router) RoomOf(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.membership[connID]
	return room, ok
}

// ResolveAudience picks the target for a room-scoped event sent on connID.
// The room recorded in the registry wins over payloadRoom; with neither the
// audience is global.
func (r *Router) ResolveAudience(connID, payloadRoom string) Audience {
	if room := r.registry.CurrentRoom(connID); room != "" {
		return RoomAudience(room)
	}
	if payloadRoom != "" {
		return RoomAudience(payloadRoom)
	}
	return GlobalAudience()
}

// Deliver sends event to audience and returns how many connections accepted it.
func (r *Router) Deliver(audience Audience, event *Event) int {
	switch audience.Kind {
	case AudienceRoom:
		return r.Publish(audience.Room, event, "")
	case AudienceConnection:
		if r.PublishTo(audience.ConnID, event) {
			return 1
		}
		return 0
	default:
		return r.PublishAll(event, "")
	}
}

// Publish sends event to every subscriber of room except skipConnID.
func (r *Router) Publish(room string, event *Event, skipConnID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[room]
	if !ok {
		return 0
	}
	skip := r.clients[skipConnID]
	want := rm.Len()
	if skip != nil && rm.Has(skip) {
		want--
	}
	delivered := rm.Broadcast(event, skip)
	if delivered < want {
		r.log.Debug().Str("room", room).Int("dropped", want-delivered).Msg("slow consumers skipped")
	}
	return delivered
}

// PublishAll sends event to every connection except skipConnID.
func (r *Router) PublishAll(event *Event, skipConnID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	delivered := 0
	for id, c := range r.clients {
		if id == skipConnID {
			continue
		}
		if c.deliver(event) {
			delivered++
		} else {
			r.log.Debug().Str("conn_id", id).Msg("slow consumer skipped")
		}
	}
	return delivered
}

// PublishTo sends event to a single connection.
func (r *Router) PublishTo(connID string, event *Event) bool {
	r.mu.RLock()
	c, ok := r.clients[connID]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if !c.deliver(event) {
		r.log.Debug().Str("conn_id", connID).Msg("slow consumer skipped")
		return false
	}
	return true
}

// Connections returns the number of registered connections.
func (r *Router) Connections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
