package core

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/lobbychat/internal/store"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// noEvent fails if anything arrives on ch within wait.
func noEvent(t *testing.T, ch <-chan *Event, wait time.Duration) {
	t.Helper()

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event: %+v", ev)
	case <-time.After(wait):
	}
}

// memStore is an in-memory store.Store with a knob for the reported insert count.
type memStore struct {
	mu          sync.Mutex
	users       []string
	messages    []*store.Message
	seq         int64
	insertCount int64
	userWrites  int
}

func newMemStore() *memStore {
	return &memStore{insertCount: 1}
}

func (s *memStore) CreateUser(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.userWrites++
	s.users = append(s.users, userID)
	return 1, nil
}

func (s *memStore) InsertMessage(_ context.Context, msg *store.Message) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.insertCount != 1 {
		return s.insertCount, nil
	}
	s.seq++
	msg.Seq = s.seq
	cp := *msg
	s.messages = append(s.messages, &cp)
	return 1, nil
}

func (s *memStore) ListMessages(_ context.Context, chatID string) ([]*store.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*store.Message
	for _, m := range s.messages {
		if m.ChatID == chatID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Seq < out[j].Seq
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *memStore) Ping(context.Context) error { return nil }
func (s *memStore) Close() error               { return nil }

func (s *memStore) writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userWrites
}

func (s *memStore) stored() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func startHub(t *testing.T, st store.Store, order HistoryOrder) *Hub {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(st, HubConfig{ChatID: "1", HistoryOrder: order}, nil)

	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return hub
}

// joinClient registers a client, joins it and drains the userJoined event.
func joinClient(t *testing.T, hub *Hub, id, identity string) *Client {
	t.Helper()

	c := NewClient(id)
	hub.RegisterClient(c)
	c.Commands <- &Command{Kind: CommandUserJoined, Identity: identity}
	mustEvent(t, c.Events, EventUserJoined)
	return c
}
