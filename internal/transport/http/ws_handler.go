package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"
	"slices"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatrelay/internal/auth"
	"github.com/vovakirdan/chatrelay/internal/config"
	"github.com/vovakirdan/chatrelay/internal/core"
	"github.com/vovakirdan/chatrelay/internal/proto"
)

// WSHandler upgrades HTTP connections and bridges them to the dispatcher.
type WSHandler struct {
	dispatcher *core.Dispatcher
	auth       *auth.Service
	cfg        *config.Config
	log        *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler. authService may be nil, in
// which case tokens are neither required nor checked.
func NewWSHandler(dispatcher *core.Dispatcher, authService *auth.Service, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{dispatcher: dispatcher, auth: authService, cfg: cfg, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	claims, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	conn, err := websocket.Accept(w, r, h.acceptOptions())
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")
	conn.SetReadLimit(h.cfg.MaxMessageBytes)

	client := core.NewClient(uuid.NewString())
	h.dispatcher.Connect(client)
	defer h.dispatcher.Disconnect(client.ID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client, claims)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("conn_id", client.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

// authenticate checks the optional handshake token. It writes the 401
// itself and returns false when the connection must be refused.
func (h *WSHandler) authenticate(w stdhttp.ResponseWriter, r *stdhttp.Request) (*auth.Claims, bool) {
	if h.auth == nil {
		return nil, true
	}

	token := tokenFromRequest(r)
	if token == "" {
		if h.cfg.JWT.Required {
			writeJSONError(w, stdhttp.StatusUnauthorized, "missing token")
			return nil, false
		}
		return nil, true
	}

	claims, err := h.auth.ValidateToken(token)
	if err != nil {
		h.log.Debug().Err(err).Msg("ws handshake rejected")
		writeJSONError(w, stdhttp.StatusUnauthorized, "invalid token")
		return nil, false
	}
	return claims, true
}

func (h *WSHandler) acceptOptions() *websocket.AcceptOptions {
	if len(h.cfg.AllowedOrigins) == 0 || slices.Contains(h.cfg.AllowedOrigins, "*") {
		return &websocket.AcceptOptions{InsecureSkipVerify: true}
	}
	return &websocket.AcceptOptions{OriginPatterns: originPatterns(h.cfg.AllowedOrigins)}
}

// originPatterns reduces configured origins to the host patterns the
// websocket library matches against.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimSpace(o)
		o = strings.TrimPrefix(o, "https://")
		o = strings.TrimPrefix(o, "http://")
		o = strings.TrimSuffix(o, "/")
		if o != "" {
			patterns = append(patterns, o)
		}
	}
	return patterns
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client, claims *auth.Claims) error {
	limiter := newRateLimiter(h.cfg.RateLimitPerMinute)
	stop := make(chan struct{})
	defer close(stop)
	limiter.startReset(stop)

	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			h.log.Debug().Err(err).Str("conn_id", client.ID).Msg("read ws inbound")
			return err
		}

		// Replies share the event queue with broadcasts; writeLoop is the only writer.
		if !limiter.allow() {
			if err := client.Reply(ctx, core.Reply{
				CorrelationID: inbound.ID,
				Error:         core.NewError(core.ErrCodeRateLimited, "rate limit exceeded"),
			}); err != nil {
				return err
			}
			continue
		}

		cmd, protoErr := inboundToCommand(inbound)
		if protoErr == nil {
			protoErr = checkIdentity(cmd, claims)
		}
		if protoErr != nil {
			if err := client.Reply(ctx, core.Reply{
				CorrelationID: inbound.ID,
				Error:         core.NewError(protoErr.Code, protoErr.Msg),
			}); err != nil {
				return err
			}
			continue
		}

		ack := h.handle(ctx, client.ID, cmd)

		var reply *core.Reply
		switch {
		case inbound.Type == proto.InboundTypeFileMessage || inbound.ID != "":
			reply = &core.Reply{CorrelationID: inbound.ID, Ack: &ack}
		case !ack.OK && ack.Error != nil:
			reply = &core.Reply{Error: ack.Error}
		}
		if reply != nil {
			if err := client.Reply(ctx, *reply); err != nil {
				return err
			}
		}
	}
}

// checkIdentity refuses joinChat announcements that contradict the handshake token.
func checkIdentity(cmd any, claims *auth.Claims) *proto.Error {
	join, ok := cmd.(core.JoinChat)
	if !ok || claims == nil || join.Email == "" {
		return nil
	}
	if !strings.EqualFold(join.Email, claims.Email) {
		return &proto.Error{Code: core.ErrCodeUnauthorized, Msg: "identity does not match token"}
	}
	return nil
}

func (h *WSHandler) handle(ctx context.Context, connID string, cmd any) core.Ack {
	switch c := cmd.(type) {
	case core.JoinChat:
		return h.dispatcher.JoinChat(ctx, connID, c)
	case core.JoinRoom:
		return h.dispatcher.JoinRoom(ctx, connID, c)
	case core.ChatMessage:
		return h.dispatcher.Chat(ctx, connID, c)
	case core.FileMessage:
		return h.dispatcher.File(ctx, connID, c)
	case core.PrivateMessage:
		return h.dispatcher.Private(ctx, connID, c)
	case typingCommand:
		return h.dispatcher.Typing(connID, c.Username, c.Stop)
	default:
		return core.Ack{Error: core.NewError(core.ErrCodeUnknownEvent, "unknown message type")}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event := <-client.Events:
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("conn_id", client.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
