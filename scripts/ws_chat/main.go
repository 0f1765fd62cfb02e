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

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/etensports/chat-server/internal/core"
	"github.com/etensports/chat-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	token := flag.String("token", "", "session token from /api/auth/login")
	conversation := flag.String("conversation", "", "conversation to open (admins only)")
	flag.Parse()

	if *token == "" {
		return errors.New("-token is required")
	}

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	if err := send(ctx, conn, proto.InboundTypeHello, proto.HelloData{
		Token:        *token,
		Protocol:     proto.ProtocolVersion,
		Conversation: *conversation,
	}); err != nil {
		return err
	}

	fmt.Printf("Connected to %s\n", *addr)
	fmt.Println("Type a message and press Enter. Commands: /select <id>, /deselect, /delete <msgId>, /logout. Ctrl+C to exit.")

	go func() {
		defer cancel()
		readLoop(ctx, conn)
	}()

	writeLoop(ctx, conn)

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var outbound proto.Outbound
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
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

		if outbound.Error != nil {
			fmt.Printf("! %s: %s\n", outbound.Error.Code, outbound.Error.Msg)
			continue
		}

		switch outbound.Event {
		case proto.EventView:
			raw, err := json.Marshal(outbound.Data)
			if err != nil {
				log.Printf("marshal outbound data: %v", err)
				continue
			}
			var view core.View
			if err := json.Unmarshal(raw, &view); err != nil {
				log.Printf("unmarshal view: %v", err)
				continue
			}
			printView(view)
		case proto.EventLogout:
			fmt.Println("logged out")
			return
		}
	}
}

func printView(v core.View) {
	fmt.Println(strings.Repeat("-", 40))
	if v.Role == core.RoleAdmin {
		fmt.Printf("unread: %d\n", v.UnreadCount)
		for _, c := range v.Conversations {
			fmt.Printf("  %s  %-16s %d msgs  %q\n", c.ID, c.Label, c.MessageCount, c.LastText)
		}
	} else {
		status := "offline"
		if v.AdminOnline {
			status = "online"
		}
		fmt.Printf("support is %s", status)
		if v.HasUnreadReply {
			fmt.Print(" (new reply)")
		}
		fmt.Println()
	}
	if v.Conversation != "" {
		fmt.Printf("[%s]\n", v.Conversation)
	}
	for _, m := range v.Messages {
		fmt.Printf("  %s %s: %s\n", m.ID, m.DisplayName, m.Text)
	}
}

func writeLoop(ctx context.Context, conn *websocket.Conn) {
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
			if err := dispatch(ctx, conn, text); err != nil {
				log.Printf("send error: %v", err)
				return
			}
		}
	}
}

func dispatch(ctx context.Context, conn *websocket.Conn, line string) error {
	cmd, arg, _ := strings.Cut(line, " ")
	switch cmd {
	case "/select":
		return send(ctx, conn, proto.InboundTypeSelect, proto.SelectData{Conversation: arg})
	case "/deselect":
		return send(ctx, conn, proto.InboundTypeDeselect, struct{}{})
	case "/delete":
		return send(ctx, conn, proto.InboundTypeDeleteMessage, proto.DeleteMessageData{ID: arg})
	case "/logout":
		return send(ctx, conn, proto.InboundTypeLogout, struct{}{})
	default:
		return send(ctx, conn, proto.InboundTypeSend, proto.TextData{Text: line})
	}
}

func send(ctx context.Context, conn *websocket.Conn, typ string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	return wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload})
}
