package core

import "context"

// clientBuffer bounds how many undelivered events a connection may hold.
const clientBuffer = 64

// Client is a single connection as seen by the core layer.
// ID is the ephemeral connection identifier, not the user identity.
type Client struct {
	ID     string
	Events chan *Event
}

// NewClient constructs a client with an initialized event channel.
func NewClient(id string) *Client {
	return &Client{
		ID:     id,
		Events: make(chan *Event, clientBuffer),
	}
}

// deliver queues an event without blocking; a full buffer drops it.
func (c *Client) deliver(event *Event) bool {
	select {
	case c.Events <- event:
		return true
	default:
		return false
	}
}

// Reply queues r behind every event already queued for this connection, so a
// handler's broadcasts reach the sender before its ack. Unlike deliver it
// waits for room in the buffer.
func (c *Client) Reply(ctx context.Context, r Reply) error {
	select {
	case c.Events <- &Event{Kind: EventReply, Reply: &r}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
