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

	"github.com/etensports/chat-server/internal/core"
	"github.com/etensports/chat-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	token := flag.String("token", "", "session token from /api/auth/login")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	if *token == "" {
		return fmt.Errorf("-token is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	if err := send(ctx, conn, proto.InboundTypeHello, proto.HelloData{Token: *token, Protocol: proto.ProtocolVersion}); err != nil {
		return err
	}
	if err := send(ctx, conn, proto.InboundTypeSend, proto.TextData{Text: *text}); err != nil {
		return err
	}

	var sentID string
	for {
		var outbound proto.Outbound
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if outbound.Error != nil {
			return fmt.Errorf("server error %s: %s", outbound.Error.Code, outbound.Error.Msg)
		}

		raw, err := json.Marshal(outbound.Data)
		if err != nil {
			return fmt.Errorf("marshal outbound data: %w", err)
		}

		switch outbound.Event {
		case proto.EventSent:
			var evt proto.EventSentData
			if err := json.Unmarshal(raw, &evt); err != nil {
				return fmt.Errorf("unmarshal sent: %w", err)
			}
			sentID = evt.ID
			fmt.Printf("Sent: id=%s\n", sentID)
		case proto.EventView:
			var view core.View
			if err := json.Unmarshal(raw, &view); err != nil {
				return fmt.Errorf("unmarshal view: %w", err)
			}
			fmt.Printf("View: conversation=%s messages=%d adminOnline=%t\n", view.Conversation, len(view.Messages), view.AdminOnline)
			if sentID == "" {
				continue
			}
			for _, m := range view.Messages {
				if m.ID == sentID {
					fmt.Printf("Echoed: %s %q\n", m.DisplayName, m.Text)
					return nil
				}
			}
		}
	}
}

func send(ctx context.Context, conn *websocket.Conn, typ string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		return fmt.Errorf("send %s: %w", typ, err)
	}
	return nil
}
