package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/chatrelay/internal/store"
)

type recordingPublisher struct {
	mu        sync.Mutex
	published []*store.Message
	err       error
}

func (p *recordingPublisher) Publish(_ context.Context, msg *store.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, msg)
	return p.err
}

func (p *recordingPublisher) messages() []*store.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*store.Message(nil), p.published...)
}

// blockingPublisher holds every publish until its context ends.
type blockingPublisher struct {
	started  chan struct{}
	deadline chan bool
}

func newBlockingPublisher() *blockingPublisher {
	return &blockingPublisher{
		started:  make(chan struct{}, 16),
		deadline: make(chan bool, 16),
	}
}

func (p *blockingPublisher) Publish(ctx context.Context, _ *store.Message) error {
	_, ok := ctx.Deadline()
	p.deadline <- ok
	p.started <- struct{}{}
	<-ctx.Done()
	return ctx.Err()
}

func waitMirrors(t *testing.T, gw *Gateway) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := gw.WaitMirrors(ctx); err != nil {
		t.Fatalf("mirror publishes did not finish: %v", err)
	}
}

func TestGatewaySaveAssignsIdentityAndTime(t *testing.T) {
	ms := newMemoryStore()
	gw := NewGateway(ms, nil, nil)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 123456789, time.UTC)
	gw.now = func() time.Time { return fixed }

	in := store.Message{User: "a@x.com", UserName: "A", Msg: "hi", Room: store.StringPtr("general")}
	saved, err := gw.Save(context.Background(), in)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saved.ID == "" {
		t.Fatalf("expected id to be assigned")
	}
	if !saved.Time.Equal(fixed.Truncate(time.Millisecond)) {
		t.Fatalf("unexpected time %v", saved.Time)
	}

	history, err := gw.RoomHistory(context.Background(), "general")
	if err != nil || len(history) != 1 {
		t.Fatalf("RoomHistory = %v, %v", history, err)
	}
	got := history[0]
	got.ID, got.Time = "", time.Time{}
	if got.User != in.User || got.UserName != in.UserName || got.Msg != in.Msg ||
		store.Deref(got.Room) != "general" || got.IsPrivate || got.To != nil || got.File != nil {
		t.Fatalf("round trip changed fields: %+v", got)
	}
}

func TestGatewaySaveEnforcesPrivateShape(t *testing.T) {
	gw := NewGateway(newMemoryStore(), nil, nil)
	ctx := context.Background()

	dm, err := gw.Save(ctx, store.Message{
		User: "a@x.com", IsPrivate: true, To: store.StringPtr("b@x.com"), Room: store.StringPtr("general"),
	})
	if err != nil {
		t.Fatalf("Save private: %v", err)
	}
	if dm.Room != nil {
		t.Fatalf("private message kept a room")
	}

	pub, err := gw.Save(ctx, store.Message{User: "a@x.com", To: store.StringPtr("b@x.com")})
	if err != nil {
		t.Fatalf("Save public: %v", err)
	}
	if pub.To != nil || pub.ToName != nil {
		t.Fatalf("public message kept a recipient")
	}

	var ce *CoreError
	if _, err := gw.Save(ctx, store.Message{User: "a@x.com", IsPrivate: true}); !errors.As(err, &ce) || ce.Code != ErrCodeBadRequest {
		t.Fatalf("expected bad_request for private without recipient, got %v", err)
	}
	if _, err := gw.Save(ctx, store.Message{Msg: "anonymous"}); !errors.As(err, &ce) || ce.Code != ErrCodeBadRequest {
		t.Fatalf("expected bad_request for missing user, got %v", err)
	}
}

func TestGatewayStorageFailure(t *testing.T) {
	ms := newMemoryStore()
	ms.failSave = true
	pub := &recordingPublisher{}
	gw := NewGateway(ms, pub, nil)

	_, err := gw.Save(context.Background(), store.Message{User: "a@x.com", Msg: "hi"})
	var se *StorageError
	if !errors.As(err, &se) {
		t.Fatalf("expected StorageError, got %v", err)
	}
	if !errors.Is(err, errBackendDown) {
		t.Fatalf("StorageError should unwrap to backend error")
	}
	if len(pub.messages()) != 0 {
		t.Fatalf("failed write must not be mirrored")
	}

	ms.failRead = true
	if _, err := gw.PublicHistory(context.Background()); !errors.As(err, &se) {
		t.Fatalf("expected StorageError from history, got %v", err)
	}
}

func TestGatewayMirrorsAfterWrite(t *testing.T) {
	ms := newMemoryStore()
	pub := &recordingPublisher{err: errors.New("nats down")}
	gw := NewGateway(ms, pub, nil)

	saved, err := gw.Save(context.Background(), store.Message{User: "a@x.com", Msg: "hi"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(pub.messages()) != 0 {
		t.Fatalf("Save must not publish before delivery")
	}

	gw.Mirror(saved)
	waitMirrors(t, gw)

	published := pub.messages()
	if len(published) != 1 || published[0].ID != saved.ID {
		t.Fatalf("expected saved message to be mirrored, got %+v", published)
	}
	if ms.count() != 1 {
		t.Fatalf("expected message to be stored")
	}
}

func TestGatewayMirrorIsBounded(t *testing.T) {
	pub := newBlockingPublisher()
	gw := NewGateway(newMemoryStore(), pub, nil)
	gw.mirrorTimeout = 50 * time.Millisecond

	saved, err := gw.Save(context.Background(), store.Message{User: "a@x.com", Msg: "hi"})
	if err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	gw.Mirror(saved)
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("Mirror blocked the caller for %v", elapsed)
	}

	if !<-pub.deadline {
		t.Fatalf("mirror publish ran without a deadline")
	}
	waitMirrors(t, gw)
}

func TestGatewayHistoryCaps(t *testing.T) {
	ms := newMemoryStore()
	gw := NewGateway(ms, nil, nil)

	if _, err := gw.PublicHistory(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := gw.RoomHistory(context.Background(), "general"); err != nil {
		t.Fatal(err)
	}
	if len(ms.limits) != 2 || ms.limits[0] != PublicHistoryLimit || ms.limits[1] != RoomHistoryLimit {
		t.Fatalf("unexpected limits %v", ms.limits)
	}
}

func TestGatewayRoomHistoryOrderedAndScoped(t *testing.T) {
	ms := newMemoryStore()
	gw := NewGateway(ms, nil, nil)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	step := 0
	gw.now = func() time.Time {
		step++
		// Out of order on purpose.
		return base.Add(time.Duration((step*7)%5) * time.Minute)
	}

	ctx := context.Background()
	for i := range 5 {
		room := "general"
		if i%2 == 1 {
			room = "random"
		}
		if _, err := gw.Save(ctx, store.Message{User: "a@x.com", Room: store.StringPtr(room)}); err != nil {
			t.Fatal(err)
		}
	}

	history, err := gw.RoomHistory(ctx, "general")
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 general messages, got %d", len(history))
	}
	for i, m := range history {
		if store.Deref(m.Room) != "general" {
			t.Fatalf("foreign room in history: %+v", m)
		}
		if i > 0 && m.Time.Before(history[i-1].Time) {
			t.Fatalf("history not ordered by time")
		}
	}
}
