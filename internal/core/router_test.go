package core

import "testing"

func TestRouterSubscribeReplacesMembership(t *testing.T) {
	router := NewRouter(NewRegistry(), nil)
	a := NewClient("a")
	router.Register(a)

	router.Subscribe("a", "general")
	router.Subscribe("a", "random")

	if room, _ := router.RoomOf("a"); room != "random" {
		t.Fatalf("RoomOf = %q, want random", room)
	}
	if n := router.Publish("general", &Event{Kind: EventTyping}, ""); n != 0 {
		t.Fatalf("left room still delivered to %d clients", n)
	}
	if n := router.Publish("random", &Event{Kind: EventTyping}, ""); n != 1 {
		t.Fatalf("new room delivered to %d clients, want 1", n)
	}
}

func TestRouterSubscribeUnknownConnection(t *testing.T) {
	router := NewRouter(NewRegistry(), nil)
	if router.Subscribe("ghost", "general") {
		t.Fatalf("expected subscribe of unknown connection to fail")
	}
}

func TestRouterResolveAudiencePrecedence(t *testing.T) {
	registry := NewRegistry()
	router := NewRouter(registry, nil)
	registry.Join("a", "a@x.com", "A")

	if got := router.ResolveAudience("a", ""); got.Kind != AudienceGlobal {
		t.Fatalf("expected global, got %+v", got)
	}
	if got := router.ResolveAudience("a", "payload"); got != RoomAudience("payload") {
		t.Fatalf("expected payload room, got %+v", got)
	}

	registry.SetRoom("a", "general")
	if got := router.ResolveAudience("a", "payload"); got != RoomAudience("general") {
		t.Fatalf("expected registry room to win, got %+v", got)
	}
}

func TestRouterPublishSkipsSender(t *testing.T) {
	router := NewRouter(NewRegistry(), nil)
	a, b, c := NewClient("a"), NewClient("b"), NewClient("c")
	for _, cl := range []*Client{a, b, c} {
		router.Register(cl)
	}
	router.Subscribe("a", "general")
	router.Subscribe("b", "general")

	if n := router.Publish("general", &Event{Kind: EventTyping, Typing: "a"}, "a"); n != 1 {
		t.Fatalf("Publish delivered to %d, want 1", n)
	}
	mustEvent(t, b.Events, EventTyping)
	mustNotEvent(t, a.Events, EventTyping)
	mustNotEvent(t, c.Events, EventTyping)

	if n := router.PublishAll(&Event{Kind: EventStopTyping}, "a"); n != 2 {
		t.Fatalf("PublishAll delivered to %d, want 2", n)
	}
}

func TestRouterRemoveDropsLaterDeliveries(t *testing.T) {
	router := NewRouter(NewRegistry(), nil)
	a := NewClient("a")
	router.Register(a)
	router.Subscribe("a", "general")

	router.Remove("a")

	if router.PublishTo("a", &Event{Kind: EventTyping}) {
		t.Fatalf("delivery to removed connection succeeded")
	}
	if n := router.Deliver(RoomAudience("general"), &Event{Kind: EventTyping}); n != 0 {
		t.Fatalf("room delivery reached %d removed clients", n)
	}
	if router.Connections() != 0 {
		t.Fatalf("expected no connections")
	}
}

func TestRouterSlowConsumerDoesNotBlock(t *testing.T) {
	router := NewRouter(NewRegistry(), nil)
	slow := NewClient("slow")
	router.Register(slow)

	for range clientBuffer {
		router.PublishTo("slow", &Event{Kind: EventTyping})
	}
	if router.PublishTo("slow", &Event{Kind: EventTyping}) {
		t.Fatalf("expected delivery to full buffer to be dropped")
	}
}
