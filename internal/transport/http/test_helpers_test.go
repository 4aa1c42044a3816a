package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatrelay/internal/auth"
	"github.com/vovakirdan/chatrelay/internal/config"
	"github.com/vovakirdan/chatrelay/internal/core"
	"github.com/vovakirdan/chatrelay/internal/proto"
	"github.com/vovakirdan/chatrelay/internal/store"
	"github.com/vovakirdan/chatrelay/internal/store/sqlite"
)

const testJWTSecret = "test-secret"

// createTestStore creates an in-memory SQLite store with schema applied.
func createTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", sqlite.Migrate)
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	return st
}

// createTestAuthService creates an auth service for testing.
func createTestAuthService(t *testing.T, st store.Store, jwtSecret string) *auth.Service {
	t.Helper()

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(jwtSecret),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	}

	return auth.NewService(st, jwtConfig)
}

type testServer struct {
	*httptest.Server
	store store.Store
	auth  *auth.Service
}

// startTestServer runs the full HTTP stack on an in-memory store.
// mutate may adjust the default config before the server is built.
func startTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()

	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg)
	}

	logger := zerolog.Nop()
	st := createTestStore(t)
	authService := createTestAuthService(t, st, testJWTSecret)

	registry := core.NewRegistry()
	router := core.NewRouter(registry, &logger)
	gateway := core.NewGateway(st, nil, &logger)
	dispatcher := core.NewDispatcher(registry, router, gateway, st, &logger)

	server := NewServer(Deps{
		Dispatcher: dispatcher,
		Gateway:    gateway,
		Auth:       authService,
		Users:      st,
	}, &cfg, &logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testServer{Server: ts, store: st, auth: authService}
}

func (ts *testServer) wsURL(query string) string {
	u := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
	if query != "" {
		u += "?" + query
	}
	return u
}

func dial(t *testing.T, ctx context.Context, url string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn.SetReadLimit(32 << 20)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

// frame is an outbound envelope with the payload left raw.
type frame struct {
	Type  string          `json:"type"`
	ID    string          `json:"id"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, typ, id string, data any) {
	t.Helper()

	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, ID: id, Data: payload}); err != nil {
		t.Fatalf("send %s: %v", typ, err)
	}
}

// readUntil reads frames until match returns true.
func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, match func(frame) bool) frame {
	t.Helper()

	for {
		var f frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			t.Fatalf("read outbound: %v", err)
		}
		if match(f) {
			return f
		}
	}
}

func isEvent(name string) func(frame) bool {
	return func(f frame) bool { return f.Type == proto.OutboundTypeEvent && f.Event == name }
}

func isType(typ string) func(frame) bool {
	return func(f frame) bool { return f.Type == typ }
}

// joinChat announces email and waits for the history reply.
func joinChat(t *testing.T, ctx context.Context, conn *websocket.Conn, email, name string) {
	t.Helper()

	send(t, ctx, conn, proto.InboundTypeJoinChat, "", proto.JoinChatData{Email: email, Name: name})
	readUntil(t, ctx, conn, isEvent(proto.EventChatHistory))
}

func decodeMessage(t *testing.T, raw json.RawMessage) store.Message {
	t.Helper()

	var m store.Message
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	return m
}
