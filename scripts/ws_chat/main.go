package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/lobbychat/internal/proto"
)

// outbound mirrors proto.Outbound with raw data for client-side decoding.
type outbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func main() {
	if err := run(); err != nil {
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	identity := flag.String("id", "", "returning identity; empty asks for a new one")
	flag.Parse()

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	joinData := []byte("null")
	if *identity != "" {
		if joinData, err = json.Marshal(*identity); err != nil {
			return fmt.Errorf("marshal identity: %w", err)
		}
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeUserJoined, Data: joinData}); err != nil {
		return fmt.Errorf("send userJoined: %w", err)
	}

	self := make(chan string, 1)
	go func() {
		defer cancel()
		readLoop(ctx, conn, self)
	}()

	var me string
	select {
	case me = <-self:
	case <-ctx.Done():
		return nil
	}

	fmt.Printf("Connected to %s as %s\n", *addr, me)
	fmt.Println("Type messages and press Enter to send. Ctrl+C to exit.")

	writeLoop(ctx, conn, me)

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func readLoop(ctx context.Context, conn *websocket.Conn, self chan<- string) {
	for {
		var out outbound
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			// Treat expected shutdowns quietly.
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			log.Printf("read error: %v", err)
			return
		}

		if out.Type == proto.OutboundTypeError && out.Error != nil {
			fmt.Printf("! %s: %s\n", out.Error.Code, out.Error.Msg)
			continue
		}

		switch out.Event {
		case proto.EventUserJoined:
			var id string
			if err := json.Unmarshal(out.Data, &id); err != nil {
				log.Printf("unmarshal userJoined: %v", err)
				continue
			}
			self <- id
		case proto.EventTypeMessage:
			var msgs []proto.EventMessage
			if err := json.Unmarshal(out.Data, &msgs); err != nil {
				log.Printf("unmarshal message: %v", err)
				continue
			}
			for _, m := range msgs {
				fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Local().Format(time.TimeOnly), m.User.UserID, m.Text)
			}
		default:
			fmt.Printf("event=%s data=%s\n", out.Event, out.Data)
		}
	}
}

func writeLoop(ctx context.Context, conn *websocket.Conn, me string) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}

			payload, err := json.Marshal(proto.MessageData{
				Text:      text,
				User:      proto.UserRef{UserID: me},
				CreatedAt: time.Now().UTC(),
			})
			if err != nil {
				log.Printf("marshal msg: %v", err)
				return
			}
			if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeMessage, Data: payload}); err != nil {
				log.Printf("send error: %v", err)
				return
			}
		}
	}
}
