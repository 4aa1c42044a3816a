package core

import "sync"

// OnlineUser is the presence entry of one identified connection.
type OnlineUser struct {
	Email string  `json:"email"`
	Name  string  `json:"name"`
	Room  *string `json:"room"`
}

// Registry maps connection ids to the user announced on them.
// Entries are keyed by connection, so one identity may hold several.
// Iteration follows join order.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*OnlineUser
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*OnlineUser),
	}
}

// Join records identity on connID. Re-announcing on the same connection
// replaces the entry and keeps its position.
func (r *Registry) Join(connID, email, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[connID]; !ok {
		r.order = append(r.order, connID)
	}
	r.entries[connID] = &OnlineUser{Email: email, Name: name}
}

// SetRoom records the current room of connID. Unknown ids are ignored.
func (r *Registry) SetRoom(connID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[connID]; ok {
		e.Room = &room
	}
}

// Leave drops connID. Unknown ids are ignored.
func (r *Registry) Leave(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[connID]; !ok {
		return
	}
	delete(r.entries, connID)
	for i, id := range r.order {
		if id == connID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Lookup returns the entry for connID.
func (r *Registry) Lookup(connID string) (OnlineUser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[connID]
	if !ok {
		return OnlineUser{}, false
	}
	return *e, true
}

// CurrentRoom returns the room recorded for connID, or "" when none.
func (r *Registry) CurrentRoom(connID string) string {
	u, ok := r.Lookup(connID)
	if !ok || u.Room == nil {
		return ""
	}
	return *u.Room
}

// Snapshot lists every online user in join order.
func (r *Registry) Snapshot() []OnlineUser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]OnlineUser, 0, len(r.order))
	for _, id := range r.order {
		u := *r.entries[id]
		if u.Room != nil {
			room := *u.Room
			u.Room = &room
		}
		users = append(users, u)
	}
	return users
}

// FindByIdentity returns the earliest-joined connection announcing email.
func (r *Registry) FindByIdentity(email string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		if r.entries[id].Email == email {
			return id, true
		}
	}
	return "", false
}

// Len returns the number of identified connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Rooms returns how many distinct rooms are currently occupied.
func (r *Registry) Rooms() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, e := range r.entries {
		if e.Room != nil {
			seen[*e.Room] = struct{}{}
		}
	}
	return len(seen)
}
