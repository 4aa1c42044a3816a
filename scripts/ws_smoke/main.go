package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/chatrelay/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:4000/ws", "WebSocket address")
	email := flag.String("email", "tester@example.com", "identity to announce with joinChat")
	name := flag.String("name", "tester", "display name")
	room := flag.String("room", "general", "room name")
	text := flag.String("text", "hello from smoke test", "message text to send")
	token := flag.String("token", "", "optional JWT for the handshake")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
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

	send := func(typ, id string, data any) error {
		payload, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", typ, err)
		}
		if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, ID: id, Data: payload}); err != nil {
			return fmt.Errorf("send %s: %w", typ, err)
		}
		return nil
	}

	if err := send(proto.InboundTypeJoinChat, "", proto.JoinChatData{Email: *email, Name: *name}); err != nil {
		return err
	}
	if err := send(proto.InboundTypeJoinRoom, "", proto.JoinRoomData{Room: *room, User: *email, UserName: *name}); err != nil {
		return err
	}
	if err := send(proto.InboundTypeChatMessage, "smoke", proto.ChatMessageData{User: *email, UserName: *name, Msg: *text, Room: *room}); err != nil {
		return err
	}

	for {
		var outbound struct {
			Type  string          `json:"type"`
			ID    string          `json:"id"`
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
			Error *proto.Error    `json:"error"`
		}
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		fmt.Printf("Received outbound: type=%s", outbound.Type)
		if outbound.Event != "" {
			fmt.Printf(" event=%s", outbound.Event)
		}
		fmt.Println()

		switch {
		case outbound.Error != nil:
			return fmt.Errorf("server error %s: %s", outbound.Error.Code, outbound.Error.Msg)
		case outbound.Type == proto.OutboundTypeAck && outbound.ID == "smoke":
			var ack proto.AckData
			if err := json.Unmarshal(outbound.Data, &ack); err != nil {
				return fmt.Errorf("unmarshal ack: %w", err)
			}
			if !ack.OK {
				return fmt.Errorf("message rejected: %s", ack.Error)
			}
			fmt.Printf("Message stored with id %s\n", ack.ID)
			return nil
		case outbound.Event == proto.EventSystemMessage:
			fmt.Printf("System: %s\n", string(outbound.Data))
		}
	}
}
