package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type timeoutStore struct {
	next    Store
	timeout time.Duration
}

// WithTimeout bounds every call on st with the given timeout.
// A call that runs out of time returns an error wrapping ErrTimeout.
// A non-positive timeout returns st unchanged.
func WithTimeout(st Store, timeout time.Duration) Store {
	if timeout <= 0 {
		return st
	}
	return &timeoutStore{next: st, timeout: timeout}
}

func (s *timeoutStore) CreateUser(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.next.CreateUser(ctx, userID)
	return n, s.wrap(ctx, "create user", err)
}

func (s *timeoutStore) InsertMessage(ctx context.Context, msg *Message) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.next.InsertMessage(ctx, msg)
	return n, s.wrap(ctx, "insert message", err)
}

func (s *timeoutStore) ListMessages(ctx context.Context, chatID string) ([]*Message, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	msgs, err := s.next.ListMessages(ctx, chatID)
	if err != nil {
		return nil, s.wrap(ctx, "list messages", err)
	}
	return msgs, nil
}

func (s *timeoutStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.wrap(ctx, "ping", s.next.Ping(ctx))
}

func (s *timeoutStore) Close() error {
	return s.next.Close()
}

func (s *timeoutStore) wrap(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s after %s: %w", op, s.timeout, ErrTimeout)
	}
	return err
}
