package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/lobbychat/internal/config"
	"github.com/vovakirdan/lobbychat/internal/core"
	"github.com/vovakirdan/lobbychat/internal/proto"
	"github.com/vovakirdan/lobbychat/internal/store/sqlite"
)

type testEnv struct {
	ts    *httptest.Server
	hub   *core.Hub
	store *sqlite.SQLiteStore
}

func startTestServer(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	st, err := sqlite.NewMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cfg := config.Default()
	cfg.Addr = ":0"
	if mutate != nil {
		mutate(&cfg)
	}

	hub := core.NewHub(st, core.HubConfig{
		ChatID:       cfg.Chat.RoomID,
		HistoryOrder: core.HistoryOrder(cfg.Chat.HistoryOrder),
	}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	server := NewServer(hub, st, cfg, nil)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(func() {
		ts.Close()
		cancel()
		<-done
	})

	return &testEnv{ts: ts, hub: hub, store: st}
}

func (e *testEnv) wsURL() string {
	return strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ string, data any) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: raw}))
}

// wireOutbound mirrors proto.Outbound with a raw data field for decoding in tests.
type wireOutbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func read(t *testing.T, conn *websocket.Conn) wireOutbound {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var out wireOutbound
	require.NoError(t, wsjson.Read(ctx, conn, &out))
	return out
}

// expectSilence fails if conn receives anything within wait.
func expectSilence(t *testing.T, conn *websocket.Conn, wait time.Duration) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()

	var out wireOutbound
	err := wsjson.Read(ctx, conn, &out)
	require.Error(t, err, "unexpected outbound: %+v", out)
}

// join sends userJoined and returns the identity echoed back.
func join(t *testing.T, conn *websocket.Conn, identity *string) string {
	t.Helper()

	send(t, conn, proto.InboundTypeUserJoined, identity)
	out := read(t, conn)
	require.Equal(t, proto.OutboundTypeEvent, out.Type)
	require.Equal(t, proto.EventUserJoined, out.Event)

	var got string
	require.NoError(t, json.Unmarshal(out.Data, &got))
	require.NotEmpty(t, got)
	return got
}

func decodeMessages(t *testing.T, out wireOutbound) []proto.EventMessage {
	t.Helper()

	require.Equal(t, proto.OutboundTypeEvent, out.Type)
	require.Equal(t, proto.EventTypeMessage, out.Event)

	var msgs []proto.EventMessage
	require.NoError(t, json.Unmarshal(out.Data, &msgs))
	return msgs
}
