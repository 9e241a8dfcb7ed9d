package core

import (
	"context"
	"testing"
	"time"

	"github.com/vovakirdan/lobbychat/internal/store"
	"github.com/vovakirdan/lobbychat/internal/store/sqlite"
)

func seedHistory(t *testing.T) (*sqlite.SQLiteStore, time.Time) {
	t.Helper()

	st, err := sqlite.NewMemory(context.Background())
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	// inserted out of order on purpose
	for i, offset := range []int{2, 3, 1} {
		_, err := st.InsertMessage(context.Background(), &store.Message{
			ID:        "m" + string(rune('a'+i)),
			ChatID:    "1",
			Text:      "t" + string(rune('0'+offset)),
			UserID:    "someone",
			CreatedAt: base.Add(time.Duration(offset) * time.Minute),
		})
		if err != nil {
			t.Fatalf("seed message: %v", err)
		}
	}
	return st, base
}

func texts(msgs []Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Text)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestHubJoinAssignsIdentityAndReplaysNewestFirst(t *testing.T) {
	st, _ := seedHistory(t)
	hub := startHub(t, st, HistoryNewestFirst)

	alice := NewClient("a")
	hub.RegisterClient(alice)
	alice.Commands <- &Command{Kind: CommandUserJoined}

	joined := mustEvent(t, alice.Events, EventUserJoined)
	if joined.Identity == "" {
		t.Fatalf("expected a generated identity")
	}
	if got, ok := hub.registry.IdentityOf(alice); !ok || got != joined.Identity {
		t.Fatalf("registry binding = %q, %v; want %q", got, ok, joined.Identity)
	}

	history := mustEvent(t, alice.Events, EventMessages)
	if !history.History {
		t.Fatalf("expected the replay batch to be flagged as history")
	}
	if got, want := texts(history.Messages), []string{"t3", "t2", "t1"}; !equalStrings(got, want) {
		t.Fatalf("replay order = %v, want %v", got, want)
	}
	if history.Messages[0].User.UserID != "someone" || history.Messages[0].ChatID != "1" {
		t.Fatalf("unexpected replayed message: %+v", history.Messages[0])
	}
}

func TestHubReplayOldestFirst(t *testing.T) {
	st, _ := seedHistory(t)
	hub := startHub(t, st, HistoryOldestFirst)

	alice := joinClient(t, hub, "a", "alice")

	history := mustEvent(t, alice.Events, EventMessages)
	if got, want := texts(history.Messages), []string{"t1", "t2", "t3"}; !equalStrings(got, want) {
		t.Fatalf("replay order = %v, want %v", got, want)
	}
}

func TestHubEmptyHistorySendsNothing(t *testing.T) {
	hub := startHub(t, newMemStore(), HistoryNewestFirst)

	alice := joinClient(t, hub, "a", "")
	noEvent(t, alice.Events, 100*time.Millisecond)
}

func TestHubReturningIdentityIsNotPersisted(t *testing.T) {
	st := newMemStore()
	hub := startHub(t, st, HistoryNewestFirst)

	c := NewClient("a")
	hub.RegisterClient(c)
	c.Commands <- &Command{Kind: CommandUserJoined, Identity: "returning"}

	ev := mustEvent(t, c.Events, EventUserJoined)
	if ev.Identity != "returning" {
		t.Fatalf("identity = %q, want %q", ev.Identity, "returning")
	}
	if st.writes() != 0 {
		t.Fatalf("expected no user writes, got %d", st.writes())
	}
}

func TestHubSecondJoinRejected(t *testing.T) {
	st, _ := seedHistory(t)
	hub := startHub(t, st, HistoryNewestFirst)

	alice := joinClient(t, hub, "a", "alice")
	mustEvent(t, alice.Events, EventMessages)

	alice.Commands <- &Command{Kind: CommandUserJoined, Identity: "mallory"}
	ev := mustEvent(t, alice.Events, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeAlreadyJoined {
		t.Fatalf("expected already_joined error, got %+v", ev)
	}
	noEvent(t, alice.Events, 100*time.Millisecond)

	if got, _ := hub.registry.IdentityOf(alice); got != "alice" {
		t.Fatalf("identity changed to %q", got)
	}
}

func TestHubClientSendSkipsOrigin(t *testing.T) {
	st := newMemStore()
	hub := startHub(t, st, HistoryNewestFirst)

	alice := joinClient(t, hub, "a", "alice")
	bob := joinClient(t, hub, "b", "bob")
	carol := joinClient(t, hub, "c", "carol")

	alice.Commands <- &Command{
		Kind:    CommandSendMessage,
		Message: Message{Text: "hi", User: Author{UserID: "alice"}},
	}

	for _, c := range []*Client{bob, carol} {
		ev := mustEvent(t, c.Events, EventMessages)
		if len(ev.Messages) != 1 || ev.History {
			t.Fatalf("expected a single fan-out message, got %+v", ev)
		}
		msg := ev.Messages[0]
		if msg.Text != "hi" || msg.User.UserID != "alice" || msg.ChatID != "1" || msg.ID == "" {
			t.Fatalf("unexpected message: %+v", msg)
		}
	}
	noEvent(t, alice.Events, 100*time.Millisecond)

	if st.stored() != 1 {
		t.Fatalf("expected 1 stored message, got %d", st.stored())
	}
}

func TestHubServerOriginReachesEveryone(t *testing.T) {
	hub := startHub(t, newMemStore(), HistoryNewestFirst)

	alice := joinClient(t, hub, "a", "alice")
	bob := joinClient(t, hub, "b", "bob")

	_, err := hub.Send(context.Background(), Message{Text: "announcement", User: Author{UserID: "robot"}}, alice, true)
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	for _, c := range []*Client{alice, bob} {
		ev := mustEvent(t, c.Events, EventMessages)
		if ev.Messages[0].Text != "announcement" || ev.Messages[0].User.UserID != "robot" {
			t.Fatalf("unexpected message for %s: %+v", c.ID, ev.Messages[0])
		}
	}
}

func TestHubInsertCountGuard(t *testing.T) {
	st := newMemStore()
	hub := startHub(t, st, HistoryNewestFirst)

	alice := joinClient(t, hub, "a", "alice")
	bob := joinClient(t, hub, "b", "bob")

	st.mu.Lock()
	st.insertCount = 0
	st.mu.Unlock()

	alice.Commands <- &Command{
		Kind:    CommandSendMessage,
		Message: Message{Text: "lost", User: Author{UserID: "alice"}},
	}

	ev := mustEvent(t, alice.Events, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeStorageFault {
		t.Fatalf("expected storage_fault error, got %+v", ev)
	}
	noEvent(t, bob.Events, 100*time.Millisecond)

	if _, err := hub.Send(context.Background(), Message{Text: "x", User: Author{UserID: "robot"}}, nil, true); err == nil {
		t.Fatalf("expected server-origin send to fail as well")
	}
	noEvent(t, alice.Events, 50*time.Millisecond)
	noEvent(t, bob.Events, 50*time.Millisecond)
}

func TestHubDisconnectedClientLeavesAudience(t *testing.T) {
	hub := startHub(t, newMemStore(), HistoryNewestFirst)

	alice := joinClient(t, hub, "a", "alice")
	bob := joinClient(t, hub, "b", "bob")

	hub.UnregisterClient(bob)
	// unknown handle after disconnect is a no-op
	hub.UnregisterClient(bob)

	for _, c := range hub.registry.Handles(nil) {
		if c == bob {
			t.Fatalf("disconnected client still enumerated")
		}
	}

	if _, err := hub.Send(context.Background(), Message{Text: "after", User: Author{UserID: "robot"}}, nil, true); err != nil {
		t.Fatalf("send: %v", err)
	}
	mustEvent(t, alice.Events, EventMessages)
	noEvent(t, bob.Events, 100*time.Millisecond)
}

func TestHubSendWithoutIdentityRejected(t *testing.T) {
	st := newMemStore()
	hub := startHub(t, st, HistoryNewestFirst)

	alice := NewClient("a")
	hub.RegisterClient(alice)
	bob := joinClient(t, hub, "b", "bob")

	alice.Commands <- &Command{
		Kind:    CommandSendMessage,
		Message: Message{Text: "hi", User: Author{UserID: "forged"}},
	}

	ev := mustEvent(t, alice.Events, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeNotIdentified {
		t.Fatalf("expected not_identified error, got %+v", ev)
	}
	noEvent(t, bob.Events, 100*time.Millisecond)
	if st.stored() != 0 {
		t.Fatalf("message should not be stored")
	}
}

func TestHubInvalidMessageRejected(t *testing.T) {
	st := newMemStore()
	hub := startHub(t, st, HistoryNewestFirst)

	alice := joinClient(t, hub, "a", "alice")
	bob := joinClient(t, hub, "b", "bob")

	for _, msg := range []Message{
		{Text: "", User: Author{UserID: "alice"}},
		{Text: "no author"},
	} {
		alice.Commands <- &Command{Kind: CommandSendMessage, Message: msg}
		ev := mustEvent(t, alice.Events, EventError)
		if ev.Error == nil || ev.Error.Code != ErrCodeBadRequest {
			t.Fatalf("expected bad_request error, got %+v", ev)
		}
	}
	noEvent(t, bob.Events, 100*time.Millisecond)
	if st.stored() != 0 {
		t.Fatalf("invalid messages should not be stored")
	}
}

func TestHubKeepsClientTimestamp(t *testing.T) {
	hub := startHub(t, newMemStore(), HistoryNewestFirst)
	ctx := context.Background()

	at := time.Date(2020, 2, 2, 2, 2, 2, 0, time.FixedZone("X", 3600))
	sent, err := hub.Send(ctx, Message{Text: "old", User: Author{UserID: "u"}, CreatedAt: at}, nil, false)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !sent.CreatedAt.Equal(at) || sent.CreatedAt.Location() != time.UTC {
		t.Fatalf("createdAt = %v, want %v in UTC", sent.CreatedAt, at)
	}

	before := time.Now()
	stamped, err := hub.Send(ctx, Message{Text: "now", User: Author{UserID: "u"}}, nil, false)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if stamped.CreatedAt.Before(before.Add(-time.Second)) {
		t.Fatalf("expected server stamp, got %v", stamped.CreatedAt)
	}
}

func TestHubRejectsUnrepresentableCreatedAt(t *testing.T) {
	st, err := sqlite.NewMemory(context.Background())
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	hub := startHub(t, st, HistoryNewestFirst)

	alice := joinClient(t, hub, "a", "alice")
	bob := joinClient(t, hub, "b", "bob")

	for _, at := range []time.Time{
		time.Date(3000, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(1000, 1, 1, 0, 0, 0, 0, time.UTC),
	} {
		alice.Commands <- &Command{
			Kind:    CommandSendMessage,
			Message: Message{Text: "far", User: Author{UserID: "alice"}, CreatedAt: at},
		}
		ev := mustEvent(t, alice.Events, EventError)
		if ev.Error == nil || ev.Error.Code != ErrCodeBadRequest {
			t.Fatalf("expected bad_request error for %v, got %+v", at, ev)
		}
	}
	noEvent(t, bob.Events, 100*time.Millisecond)

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	alice.Commands <- &Command{
		Kind:    CommandSendMessage,
		Message: Message{Text: "near", User: Author{UserID: "alice"}, CreatedAt: at},
	}
	mustEvent(t, bob.Events, EventMessages)

	carol := joinClient(t, hub, "c", "carol")
	history := mustEvent(t, carol.Events, EventMessages)
	if got := texts(history.Messages); !equalStrings(got, []string{"near"}) {
		t.Fatalf("replay = %v, want only the representable message", got)
	}
	if !history.Messages[0].CreatedAt.Equal(at) {
		t.Fatalf("replayed createdAt = %v, want %v", history.Messages[0].CreatedAt, at)
	}
}

func TestHubFanOutReachesConnectionsBeforeJoin(t *testing.T) {
	hub := startHub(t, newMemStore(), HistoryNewestFirst)

	alice := joinClient(t, hub, "a", "alice")
	pending := NewClient("p")
	hub.RegisterClient(pending)

	alice.Commands <- &Command{
		Kind:    CommandSendMessage,
		Message: Message{Text: "early", User: Author{UserID: "alice"}},
	}
	ev := mustEvent(t, pending.Events, EventMessages)
	if ev.History || ev.Messages[0].Text != "early" {
		t.Fatalf("unexpected event: %+v", ev)
	}

	// the same message is part of the history replayed on join
	pending.Commands <- &Command{Kind: CommandUserJoined, Identity: "late"}
	mustEvent(t, pending.Events, EventUserJoined)
	history := mustEvent(t, pending.Events, EventMessages)
	if !history.History || !equalStrings(texts(history.Messages), []string{"early"}) {
		t.Fatalf("unexpected history: %+v", history)
	}
}
