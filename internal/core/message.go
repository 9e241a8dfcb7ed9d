package core

import (
	"time"

	"github.com/vovakirdan/lobbychat/internal/store"
)

// Author references the identity that wrote a message.
type Author struct {
	UserID string `validate:"required"`
}

// Message is the domain model for a chat message.
type Message struct {
	ID        string
	ChatID    string
	Text      string `validate:"required"`
	User      Author
	CreatedAt time.Time
}

func (m Message) toRecord() *store.Message {
	return &store.Message{
		ID:        m.ID,
		ChatID:    m.ChatID,
		Text:      m.Text,
		UserID:    m.User.UserID,
		CreatedAt: m.CreatedAt,
	}
}

func messageFromRecord(r *store.Message) Message {
	return Message{
		ID:        r.ID,
		ChatID:    r.ChatID,
		Text:      r.Text,
		User:      Author{UserID: r.UserID},
		CreatedAt: r.CreatedAt,
	}
}
