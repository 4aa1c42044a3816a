// Package mirror publishes persisted chat messages to NATS JetStream.
package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatrelay/internal/store"
)

// HeaderRoom carries the message room, empty for global and private messages.
const HeaderRoom = "Chat-Room"

// Config configures the JetStream mirror.
type Config struct {
	URL           string
	Stream        string
	SubjectPrefix string
}

// streamPublisher is the part of jetstream.JetStream the mirror uses.
type streamPublisher interface {
	PublishMsg(ctx context.Context, msg *nats.Msg, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// Publisher mirrors messages to JetStream subjects <prefix>.global,
// <prefix>.room and <prefix>.private.
type Publisher struct {
	js     streamPublisher
	nc     *nats.Conn
	prefix string
	log    *zerolog.Logger
}

// Connect dials NATS and makes sure the stream exists.
func Connect(ctx context.Context, cfg Config, logger *zerolog.Logger) (*Publisher, error) {
	nc, err := nats.Connect(cfg.URL, nats.Name("chatrelay"))
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := js.Stream(ctx, cfg.Stream); err != nil {
		logger.Info().Str("stream", cfg.Stream).Msg("stream not found, creating")
		_, err = js.CreateStream(ctx, jetstream.StreamConfig{
			Name:        cfg.Stream,
			Description: "Persisted chat messages",
			Subjects:    []string{cfg.SubjectPrefix + ".*"},
			Storage:     jetstream.FileStorage,
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("create stream %q: %w", cfg.Stream, err)
		}
	}

	return newPublisher(js, cfg.SubjectPrefix, logger, nc), nil
}

func newPublisher(js streamPublisher, prefix string, logger *zerolog.Logger, nc *nats.Conn) *Publisher {
	return &Publisher{js: js, nc: nc, prefix: prefix, log: logger}
}

// Publish sends msg to its subject. The message id doubles as the
// JetStream deduplication id.
func (p *Publisher) Publish(ctx context.Context, msg *store.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	out := nats.NewMsg(p.Subject(msg))
	out.Data = data
	out.Header.Set(HeaderRoom, store.Deref(msg.Room))

	if _, err := p.js.PublishMsg(ctx, out, jetstream.WithMsgID(msg.ID)); err != nil {
		return fmt.Errorf("publish to %s: %w", out.Subject, err)
	}
	p.log.Debug().Str("subject", out.Subject).Str("message_id", msg.ID).Msg("message mirrored")
	return nil
}

// Subject returns the subject msg is published on.
func (p *Publisher) Subject(msg *store.Message) string {
	switch {
	case msg.IsPrivate:
		return p.prefix + ".private"
	case msg.Room != nil:
		return p.prefix + ".room"
	default:
		return p.prefix + ".global"
	}
}

// Close drains the NATS connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		if err := p.nc.Drain(); err != nil {
			p.nc.Close()
		}
	}
}
