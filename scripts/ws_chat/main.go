package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/chatrelay/internal/proto"
	"github.com/vovakirdan/chatrelay/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

type session struct {
	conn  *websocket.Conn
	email string
	name  string
	room  string
}

func run() error {
	addr := flag.String("addr", "ws://localhost:4000/ws", "WebSocket address")
	email := flag.String("email", "cli@example.com", "identity")
	name := flag.String("name", "cli-user", "display name")
	room := flag.String("room", "", "room to join, empty for global chat")
	token := flag.String("token", "", "optional JWT for the handshake")
	flag.Parse()

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	url := *addr
	if *token != "" {
		url += "?token=" + *token
	}
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")
	conn.SetReadLimit(16 << 20)

	s := &session{conn: conn, email: *email, name: *name}
	if err := s.send(ctx, proto.InboundTypeJoinChat, proto.JoinChatData{Email: s.email, Name: s.name}); err != nil {
		return err
	}
	if *room != "" {
		if err := s.joinRoom(ctx, *room); err != nil {
			return err
		}
	}

	fmt.Printf("Connected to %s as %s\n", *addr, s.email)
	fmt.Println("Type messages and press Enter. Commands: /room <name>, /dm <email> <text>. Ctrl+C to exit.")

	go func() {
		defer cancel()
		readLoop(ctx, conn)
	}()

	s.writeLoop(ctx)

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func (s *session) send(ctx context.Context, typ string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	if err := wsjson.Write(ctx, s.conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		return fmt.Errorf("send %s: %w", typ, err)
	}
	return nil
}

func (s *session) joinRoom(ctx context.Context, room string) error {
	s.room = room
	return s.send(ctx, proto.InboundTypeJoinRoom, proto.JoinRoomData{Room: room, User: s.email, UserName: s.name})
}

func readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var outbound struct {
			Type  string          `json:"type"`
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
			Error *proto.Error    `json:"error"`
		}
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			// Treat expected shutdowns quietly.
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			log.Printf("read error: %v", err)
			return
		}

		if outbound.Error != nil {
			fmt.Printf("! %s: %s\n", outbound.Error.Code, outbound.Error.Msg)
			continue
		}

		switch outbound.Event {
		case proto.EventChatHistory, proto.EventRoomHistory:
			var msgs []store.Message
			if err := json.Unmarshal(outbound.Data, &msgs); err != nil {
				log.Printf("unmarshal history: %v", err)
				continue
			}
			for _, m := range msgs {
				printMessage(m)
			}
		case proto.EventChatMessage, proto.EventFileMessage, proto.EventPrivateMessage:
			var m store.Message
			if err := json.Unmarshal(outbound.Data, &m); err != nil {
				log.Printf("unmarshal message: %v", err)
				continue
			}
			printMessage(m)
		case proto.EventSystemMessage:
			var notice struct {
				Text string `json:"text"`
			}
			if err := json.Unmarshal(outbound.Data, &notice); err == nil {
				fmt.Printf("* %s\n", notice.Text)
			}
		case proto.EventOnlineUsers, proto.EventTyping, proto.EventStopTyping:
			// not shown
		default:
			fmt.Printf("type=%s event=%s data=%s\n", outbound.Type, outbound.Event, outbound.Data)
		}
	}
}

func printMessage(m store.Message) {
	scope := "global"
	switch {
	case m.IsPrivate:
		scope = "dm→" + store.Deref(m.ToName)
	case m.Room != nil:
		scope = *m.Room
	}
	fmt.Printf("%s [%s] %s: %s\n", m.Time.Local().Format(time.Kitchen), scope, m.UserName, m.Msg)
}

func (s *session) writeLoop(ctx context.Context) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}

			var err error
			switch {
			case strings.HasPrefix(text, "/room "):
				err = s.joinRoom(ctx, strings.TrimSpace(strings.TrimPrefix(text, "/room ")))
			case strings.HasPrefix(text, "/dm "):
				to, body, found := strings.Cut(strings.TrimPrefix(text, "/dm "), " ")
				if !found {
					fmt.Println("usage: /dm <email> <text>")
					continue
				}
				err = s.send(ctx, proto.InboundTypePrivateMessage, proto.PrivateMessageData{
					To: to, From: s.email, FromName: s.name, Msg: body,
				})
			default:
				err = s.send(ctx, proto.InboundTypeChatMessage, proto.ChatMessageData{
					User: s.email, UserName: s.name, Msg: text, Room: s.room,
				})
			}
			if err != nil {
				log.Printf("send error: %v", err)
				return
			}
		}
	}
}
