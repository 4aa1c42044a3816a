package http

import (
	"encoding/json"

	"github.com/vovakirdan/chatrelay/internal/core"
	"github.com/vovakirdan/chatrelay/internal/proto"
	"github.com/vovakirdan/chatrelay/internal/store"
)

// typingCommand relays a typing indicator.
type typingCommand struct {
	Username string
	Stop     bool
}

func inboundToCommand(inbound proto.Inbound) (any, *proto.Error) {
	switch inbound.Type {
	case proto.InboundTypeJoinChat:
		var data proto.JoinChatData
		if err := decodeData(inbound.Data, &data); err != nil {
			return nil, err
		}
		return core.JoinChat{Email: data.Email, Name: data.Name}, nil
	case proto.InboundTypeJoinRoom:
		var data proto.JoinRoomData
		if err := decodeData(inbound.Data, &data); err != nil {
			return nil, err
		}
		return core.JoinRoom{Room: data.Room, User: data.User, UserName: data.UserName}, nil
	case proto.InboundTypeChatMessage:
		var data proto.ChatMessageData
		if err := decodeData(inbound.Data, &data); err != nil {
			return nil, err
		}
		return core.ChatMessage{User: data.User, UserName: data.UserName, Msg: data.Msg, Room: data.Room}, nil
	case proto.InboundTypeFileMessage:
		var data proto.FileMessageData
		if err := decodeData(inbound.Data, &data); err != nil {
			return nil, err
		}
		cmd := core.FileMessage{User: data.User, UserName: data.UserName, Room: data.Room}
		if data.File != nil {
			cmd.File = &store.FileAttachment{Name: data.File.Name, Type: data.File.Type, Data: data.File.Data}
		}
		return cmd, nil
	case proto.InboundTypePrivateMessage:
		var data proto.PrivateMessageData
		if err := decodeData(inbound.Data, &data); err != nil {
			return nil, err
		}
		return core.PrivateMessage{
			To:       data.To,
			From:     data.From,
			Msg:      data.Msg,
			FromName: data.FromName,
			ToName:   data.ToName,
		}, nil
	case proto.InboundTypeTyping, proto.InboundTypeStopTyping:
		var username string
		if err := decodeData(inbound.Data, &username); err != nil {
			return nil, err
		}
		return typingCommand{Username: username, Stop: inbound.Type == proto.InboundTypeStopTyping}, nil
	default:
		return nil, &proto.Error{Code: core.ErrCodeUnknownEvent, Msg: "unknown message type"}
	}
}

// decodeData unmarshals an inbound payload. A missing payload leaves v zeroed.
func decodeData(raw json.RawMessage, v any) *proto.Error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &proto.Error{Code: core.ErrCodeBadRequest, Msg: "invalid payload: " + err.Error()}
	}
	return nil
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	if event.Kind == core.EventReply {
		return replyOutbound(event.Reply)
	}
	out := proto.Outbound{Type: proto.OutboundTypeEvent}

	switch event.Kind {
	case core.EventPublicHistory:
		out.Event = proto.EventChatHistory
		out.Data = nonNil(event.Messages)
	case core.EventRoomHistory:
		out.Event = proto.EventRoomHistory
		out.Data = nonNil(event.Messages)
	case core.EventPresence:
		users := event.Users
		if users == nil {
			users = []core.OnlineUser{}
		}
		out.Event = proto.EventOnlineUsers
		out.Data = users
	case core.EventSystemNotice:
		out.Event = proto.EventSystemMessage
		out.Data = event.Notice
	case core.EventChatMessage:
		out.Event = proto.EventChatMessage
		out.Data = event.Message
	case core.EventFileMessage:
		out.Event = proto.EventFileMessage
		out.Data = event.Message
	case core.EventPrivateMessage:
		out.Event = proto.EventPrivateMessage
		out.Data = event.Message
	case core.EventTyping:
		out.Event = proto.EventTyping
		out.Data = event.Typing
	case core.EventStopTyping:
		out.Event = proto.EventStopTyping
		out.Data = event.Typing
	}
	return out
}

func nonNil(msgs []*store.Message) []*store.Message {
	if msgs == nil {
		return []*store.Message{}
	}
	return msgs
}

func replyOutbound(r *core.Reply) proto.Outbound {
	if r.Ack != nil {
		return ackOutbound(r.CorrelationID, *r.Ack)
	}
	return errorOutbound(r.CorrelationID, &proto.Error{Code: r.Error.Code, Msg: r.Error.Message})
}

func ackOutbound(id string, ack core.Ack) proto.Outbound {
	data := proto.AckData{OK: ack.OK, ID: ack.ID}
	if ack.Error != nil {
		data.Error = ack.Error.Message
	}
	return proto.Outbound{Type: proto.OutboundTypeAck, ID: id, Data: data}
}

func errorOutbound(id string, err *proto.Error) proto.Outbound {
	return proto.Outbound{Type: proto.OutboundTypeError, ID: id, Error: err}
}
