package store

import (
	"context"
	"errors"
	"math"
	"time"
)

var (
	// ErrNotInserted reports a write that acknowledged a row count other than one.
	ErrNotInserted = errors.New("row was not inserted")
	// ErrTimeout reports a store call that did not complete within its deadline.
	ErrTimeout = errors.New("store call timed out")
	// ErrDuplicate reports a write whose key already exists.
	ErrDuplicate = errors.New("duplicate key")
	// ErrTimeOutOfRange reports a CreatedAt the stores cannot represent.
	ErrTimeOutOfRange = errors.New("created_at out of range")
)

// Creation times are stored as Unix nanoseconds, which bounds them to this range.
var (
	MinCreatedAt = time.Unix(0, math.MinInt64).UTC()
	MaxCreatedAt = time.Unix(0, math.MaxInt64).UTC()
)

// ValidCreatedAt reports whether t can be persisted without loss.
func ValidCreatedAt(t time.Time) bool {
	return !t.Before(MinCreatedAt) && !t.After(MaxCreatedAt)
}

// User is an anonymous chat participant. It is never mutated or deleted.
type User struct {
	UserID    string
	CreatedAt time.Time
}

// Message represents a persisted chat message.
type Message struct {
	// Seq is assigned by the store and breaks ties between equal CreatedAt values.
	Seq       int64
	ID        string
	ChatID    string
	Text      string
	UserID    string
	CreatedAt time.Time
}

// UserStore handles identity persistence.
type UserStore interface {
	// CreateUser inserts a user record and returns the number of rows inserted.
	CreateUser(ctx context.Context, userID string) (int64, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// InsertMessage persists a message and returns the number of rows inserted.
	// On success msg.Seq is populated.
	InsertMessage(ctx context.Context, msg *Message) (int64, error)

	// ListMessages returns every message of a chat in ascending creation order,
	// ties broken by insertion order.
	ListMessages(ctx context.Context, chatID string) ([]*Message, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	MessageStore

	// Ping checks that the backing database is reachable.
	Ping(ctx context.Context) error

	// Close closes the underlying database connection.
	Close() error
}
