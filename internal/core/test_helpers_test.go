package core

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/chatrelay/internal/store"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// mustNotEvent drains ch and fails if an event of kind is found.
func mustNotEvent(t *testing.T, ch <-chan *Event, kind EventKind) {
	t.Helper()

	for {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event kind %v: %+v", kind, ev)
			}
		default:
			return
		}
	}
}

func drain(ch <-chan *Event) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

var errBackendDown = errors.New("backend down")

// memoryStore is an in-memory store.MessageStore and UserDirectory.
type memoryStore struct {
	mu       sync.Mutex
	messages []*store.Message
	users    map[string]*store.User
	failSave bool
	failRead bool
	limits   []int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{users: make(map[string]*store.User)}
}

func (m *memoryStore) SaveMessage(_ context.Context, msg *store.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave {
		return errBackendDown
	}
	cp := *msg
	m.messages = append(m.messages, &cp)
	return nil
}

func (m *memoryStore) ListPublicMessages(_ context.Context, limit int) ([]*store.Message, error) {
	return m.list(limit, func(msg *store.Message) bool { return msg.Room == nil && !msg.IsPrivate })
}

func (m *memoryStore) ListRoomMessages(_ context.Context, room string, limit int) ([]*store.Message, error) {
	return m.list(limit, func(msg *store.Message) bool { return msg.Room != nil && *msg.Room == room })
}

func (m *memoryStore) list(limit int, keep func(*store.Message) bool) ([]*store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limits = append(m.limits, limit)
	if m.failRead {
		return nil, errBackendDown
	}

	out := make([]*store.Message, 0)
	for _, msg := range m.messages {
		if keep(msg) {
			cp := *msg
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryStore) GetUserByEmail(_ context.Context, email string) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[email]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

func (m *memoryStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

func (m *memoryStore) addUser(email, username string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[email] = &store.User{ID: email, Email: email, Username: username}
}

type testEnv struct {
	store      *memoryStore
	registry   *Registry
	router     *Router
	dispatcher *Dispatcher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	ms := newMemoryStore()
	registry := NewRegistry()
	router := NewRouter(registry, nil)
	gateway := NewGateway(ms, nil, nil)
	return &testEnv{
		store:      ms,
		registry:   registry,
		router:     router,
		dispatcher: NewDispatcher(registry, router, gateway, ms, nil),
	}
}

// connect registers a new client and returns it.
func (e *testEnv) connect(id string) *Client {
	c := NewClient(id)
	e.dispatcher.Connect(c)
	return c
}
