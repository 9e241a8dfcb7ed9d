package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/lobbychat/internal/proto"
)

type outbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

// run joins two anonymous clients, sends from the first and waits for the second to receive it.
func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	sender, senderID, err := connect(ctx, *addr)
	if err != nil {
		return fmt.Errorf("sender: %w", err)
	}
	defer sender.Close(websocket.StatusNormalClosure, "bye")

	receiver, receiverID, err := connect(ctx, *addr)
	if err != nil {
		return fmt.Errorf("receiver: %w", err)
	}
	defer receiver.Close(websocket.StatusNormalClosure, "bye")

	fmt.Printf("sender=%s receiver=%s\n", senderID, receiverID)

	payload, err := json.Marshal(proto.MessageData{
		Text:      *text,
		User:      proto.UserRef{UserID: senderID},
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal msg: %w", err)
	}
	if err := wsjson.Write(ctx, sender, proto.Inbound{Type: proto.InboundTypeMessage, Data: payload}); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	for {
		out, err := readOutbound(ctx, receiver)
		if err != nil {
			return err
		}
		if out.Event != proto.EventTypeMessage {
			continue
		}

		var msgs []proto.EventMessage
		if err := json.Unmarshal(out.Data, &msgs); err != nil {
			return fmt.Errorf("unmarshal message: %w", err)
		}
		for _, m := range msgs {
			if m.Text == *text && m.User.UserID == senderID {
				fmt.Printf("EventMessage: id=%s chat=%s user=%s text=%q\n", m.ID, m.ChatID, m.User.UserID, m.Text)
				return nil
			}
		}
	}
}

func connect(ctx context.Context, addr string) (*websocket.Conn, string, error) {
	conn, _, err := websocket.Dial(ctx, addr, nil)
	if err != nil {
		return nil, "", fmt.Errorf("dial: %w", err)
	}

	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeUserJoined, Data: json.RawMessage("null")}); err != nil {
		conn.CloseNow()
		return nil, "", fmt.Errorf("send userJoined: %w", err)
	}

	for {
		out, err := readOutbound(ctx, conn)
		if err != nil {
			conn.CloseNow()
			return nil, "", err
		}
		if out.Event != proto.EventUserJoined {
			continue
		}
		var id string
		if err := json.Unmarshal(out.Data, &id); err != nil {
			conn.CloseNow()
			return nil, "", fmt.Errorf("unmarshal identity: %w", err)
		}
		return conn, id, nil
	}
}

func readOutbound(ctx context.Context, conn *websocket.Conn) (outbound, error) {
	var out outbound
	if err := wsjson.Read(ctx, conn, &out); err != nil {
		return out, fmt.Errorf("read: %w", err)
	}
	fmt.Printf("Received outbound: type=%s event=%s\n", out.Type, out.Event)
	if out.Error != nil {
		fmt.Printf("Error: %s %s\n", out.Error.Code, out.Error.Msg)
	}
	return out, nil
}
