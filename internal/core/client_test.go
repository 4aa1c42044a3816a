package core

import (
	"context"
	"errors"
	"testing"
)

func TestClientReplyQueuesBehindEvents(t *testing.T) {
	c := NewClient("a")
	if !c.deliver(&Event{Kind: EventFileMessage}) {
		t.Fatalf("deliver failed on empty buffer")
	}

	ack := okAck("m1")
	if err := c.Reply(context.Background(), Reply{CorrelationID: "req-1", Ack: &ack}); err != nil {
		t.Fatalf("Reply: %v", err)
	}

	if ev := <-c.Events; ev.Kind != EventFileMessage {
		t.Fatalf("first event = %v, want file message", ev.Kind)
	}
	ev := <-c.Events
	if ev.Kind != EventReply || ev.Reply.CorrelationID != "req-1" || ev.Reply.Ack.ID != "m1" {
		t.Fatalf("unexpected reply %+v", ev.Reply)
	}
}

func TestClientReplyStopsOnCancel(t *testing.T) {
	c := NewClient("a")
	for range clientBuffer {
		c.deliver(&Event{Kind: EventTyping})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.Reply(ctx, Reply{Error: NewError(ErrCodeBadRequest, "nope")})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled on full buffer, got %v", err)
	}
}
