// Command ws_smoke is a manual smoke test for the relay: it opens two
// authenticated connections, joins both to a room, sends a chat from one and
// prints what the other receives.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/siro844/excalidraw/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	token := flag.String("token", "", "token for the sending connection")
	token2 := flag.String("token2", "", "token for the receiving connection (defaults to -token)")
	room := flag.Int64("room", 10001, "room id")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	if *token == "" {
		return fmt.Errorf("-token is required (sign up via POST /api/v1/auth/signup first)")
	}
	if *token2 == "" {
		*token2 = *token
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	sender, err := dial(ctx, *addr, *token)
	if err != nil {
		return fmt.Errorf("dial sender: %w", err)
	}
	defer sender.Close(websocket.StatusNormalClosure, "bye")

	receiver, err := dial(ctx, *addr, *token2)
	if err != nil {
		return fmt.Errorf("dial receiver: %w", err)
	}
	defer receiver.Close(websocket.StatusNormalClosure, "bye")

	join := proto.Inbound{Type: proto.TypeJoinRoom, RoomID: *room}
	if err := wsjson.Write(ctx, sender, join); err != nil {
		return fmt.Errorf("join (sender): %w", err)
	}
	if err := wsjson.Write(ctx, receiver, join); err != nil {
		return fmt.Errorf("join (receiver): %w", err)
	}

	// give the joins a moment to land before the chat fans out
	time.Sleep(100 * time.Millisecond)

	chat := proto.Inbound{Type: proto.TypeChat, RoomID: *room, Text: *text}
	if err := wsjson.Write(ctx, sender, chat); err != nil {
		return fmt.Errorf("send chat: %w", err)
	}

	var out proto.Outbound
	if err := wsjson.Read(ctx, receiver, &out); err != nil {
		return fmt.Errorf("read outbound: %w", err)
	}

	fmt.Printf("received: type=%s user=%s room=%d message=%q\n", out.Type, out.UserID, out.RoomID, out.Text)
	return nil
}

func dial(ctx context.Context, addr, token string) (*websocket.Conn, error) {
	conn, _, err := websocket.Dial(ctx, addr, &websocket.DialOptions{
		HTTPHeader: http.Header{"token": []string{token}},
	})
	return conn, err
}
