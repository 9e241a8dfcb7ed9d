package proto

import (
	"encoding/json"
	"time"
)

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeUserJoined = "userJoined"
	InboundTypeMessage    = "message"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventUserJoined  = "userJoined"
	EventTypeMessage = "message"
)

// UserRef embeds the author identity in a message.
type UserRef struct {
	UserID string `json:"user_id"`
}

// MessageData is a chat message from the client.
// The data of an inbound userJoined is a bare JSON string or null.
type MessageData struct {
	Text      string    `json:"text"`
	User      UserRef   `json:"user"`
	CreatedAt time.Time `json:"createdAt"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// EventMessage is one element of an outbound message batch.
type EventMessage struct {
	ID        string    `json:"_id"`
	Text      string    `json:"text"`
	User      UserRef   `json:"user"`
	CreatedAt time.Time `json:"createdAt"`
	ChatID    string    `json:"chatId"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
