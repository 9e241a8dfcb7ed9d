package http

import (
	"encoding/json"

	"github.com/samber/lo"

	"github.com/vovakirdan/lobbychat/internal/core"
	"github.com/vovakirdan/lobbychat/internal/proto"
)

func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error) {
	switch inbound.Type {
	case proto.InboundTypeUserJoined:
		// null, a missing field and "" all ask for a new identity
		var identity *string
		if len(inbound.Data) > 0 {
			if err := json.Unmarshal(inbound.Data, &identity); err != nil {
				return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "userJoined data must be a string or null"}
			}
		}
		return &core.Command{
			Kind:     core.CommandUserJoined,
			Identity: lo.FromPtr(identity),
		}, nil
	case proto.InboundTypeMessage:
		var msg proto.MessageData
		if len(inbound.Data) == 0 {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "message data is required"}
		}
		if err := json.Unmarshal(inbound.Data, &msg); err != nil {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "malformed message"}
		}
		return &core.Command{
			Kind: core.CommandSendMessage,
			Message: core.Message{
				// ID and ChatID are assigned by the hub
				Text:      msg.Text,
				User:      core.Author{UserID: msg.User.UserID},
				CreatedAt: msg.CreatedAt,
			},
		}, nil
	default:
		return nil, &proto.Error{Code: "invalid_message", Msg: "unknown message type"}
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventUserJoined:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventUserJoined,
			Data:  event.Identity,
		}
	case core.EventMessages:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventTypeMessage,
			Data:  lo.Map(event.Messages, toEventMessage),
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}

func toEventMessage(msg core.Message, _ int) proto.EventMessage {
	return proto.EventMessage{
		ID:        msg.ID,
		Text:      msg.Text,
		User:      proto.UserRef{UserID: msg.User.UserID},
		CreatedAt: msg.CreatedAt,
		ChatID:    msg.ChatID,
	}
}
