package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

// blockingStore never answers until its context is done.
type blockingStore struct{}

func (blockingStore) CreateUser(ctx context.Context, _ string) (int64, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func (blockingStore) InsertMessage(ctx context.Context, _ *Message) (int64, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func (blockingStore) ListMessages(ctx context.Context, _ string) ([]*Message, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingStore) Ping(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (blockingStore) Close() error { return nil }

func TestWithTimeoutSurfacesErrTimeout(t *testing.T) {
	st := WithTimeout(blockingStore{}, 20*time.Millisecond)
	ctx := context.Background()

	if _, err := st.CreateUser(ctx, "u"); !errors.Is(err, ErrTimeout) {
		t.Fatalf("CreateUser: expected ErrTimeout, got %v", err)
	}
	if _, err := st.InsertMessage(ctx, &Message{}); !errors.Is(err, ErrTimeout) {
		t.Fatalf("InsertMessage: expected ErrTimeout, got %v", err)
	}
	if _, err := st.ListMessages(ctx, "1"); !errors.Is(err, ErrTimeout) {
		t.Fatalf("ListMessages: expected ErrTimeout, got %v", err)
	}
	if err := st.Ping(ctx); !errors.Is(err, ErrTimeout) {
		t.Fatalf("Ping: expected ErrTimeout, got %v", err)
	}
}

func TestWithTimeoutKeepsCancellation(t *testing.T) {
	st := WithTimeout(blockingStore{}, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := st.CreateUser(ctx, "u")
	if !errors.Is(err, context.Canceled) || errors.Is(err, ErrTimeout) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestWithTimeoutDisabled(t *testing.T) {
	var st Store = blockingStore{}
	if got := WithTimeout(st, 0); got != st {
		t.Fatalf("expected the store to be returned unchanged")
	}
}
