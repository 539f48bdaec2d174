package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/siro844/excalidraw/internal/proto"
)

type recordedChat struct {
	roomID int64
	userID string
	text   string
}

type fakeSink struct {
	chats []recordedChat
	err   error
}

func (f *fakeSink) RecordChat(_ context.Context, roomID int64, userID, text string) error {
	if f.err != nil {
		return f.err
	}
	f.chats = append(f.chats, recordedChat{roomID: roomID, userID: userID, text: text})
	return nil
}

func newTestRouter(sink ChatSink) (*Router, *Registry, *Rooms) {
	logger := zerolog.New(nil)
	registry := NewRegistry()
	rooms := NewRooms()
	return NewRouter(registry, rooms, sink, &logger), registry, rooms
}

func connect(rt *Router, userID string) *Conn {
	c := NewConn(userID)
	rt.Connect(c)
	return c
}

func frame(rt *Router, c *Conn, raw string) {
	rt.HandleFrame(context.Background(), c, []byte(raw))
}

func recvOne(t *testing.T, c *Conn) proto.Outbound {
	t.Helper()
	select {
	case out := <-c.Outbound():
		return out
	case <-time.After(time.Second):
		t.Fatalf("expected an envelope for conn %s", c.ID)
		return proto.Outbound{}
	}
}

func expectNone(t *testing.T, c *Conn) {
	t.Helper()
	select {
	case out := <-c.Outbound():
		t.Fatalf("unexpected envelope for conn %s: %+v", c.ID, out)
	default:
	}
}

func TestChatFansOutToAllMembers(t *testing.T) {
	rt, _, _ := newTestRouter(nil)

	a := connect(rt, "A")
	b := connect(rt, "B")
	c := connect(rt, "C")
	d := connect(rt, "D")

	frame(rt, a, `{"type":"join_room","roomId":42}`)
	frame(rt, b, `{"type":"join_room","roomId":42}`)
	frame(rt, c, `{"type":"join_room","roomId":42}`)
	frame(rt, d, `{"type":"join_room","roomId":7}`)

	frame(rt, a, `{"type":"chat","roomId":42,"message":"hi"}`)

	for _, member := range []*Conn{a, b, c} {
		out := recvOne(t, member)
		if out.Type != proto.TypeMessage || out.UserID != "A" || out.RoomID != 42 || out.Text != "hi" {
			t.Fatalf("unexpected envelope for %s: %+v", member.UserID, out)
		}
		expectNone(t, member)
	}
	expectNone(t, d)
}

func TestChatToEmptyRoomDeliversNothing(t *testing.T) {
	rt, _, _ := newTestRouter(nil)

	a := connect(rt, "A")
	frame(rt, a, `{"type":"chat","roomId":999,"message":"anyone?"}`)

	expectNone(t, a)
}

func TestChatWithoutJoiningStillFansOut(t *testing.T) {
	rt, _, _ := newTestRouter(nil)

	a := connect(rt, "A")
	b := connect(rt, "B")
	frame(rt, b, `{"type":"join_room","roomId":42}`)

	// A never joined 42; the message still reaches whoever is there.
	frame(rt, a, `{"type":"chat","roomId":42,"message":"drive-by"}`)

	out := recvOne(t, b)
	if out.UserID != "A" || out.Text != "drive-by" {
		t.Fatalf("unexpected envelope: %+v", out)
	}
	expectNone(t, a)
}

func TestSameUserTwoConnectionsBothReceive(t *testing.T) {
	rt, _, _ := newTestRouter(nil)

	tab1 := connect(rt, "A")
	tab2 := connect(rt, "A")
	frame(rt, tab1, `{"type":"join_room","roomId":42}`)
	frame(rt, tab2, `{"type":"join_room","roomId":42}`)

	frame(rt, tab1, `{"type":"chat","roomId":42,"message":"synced"}`)

	for _, tab := range []*Conn{tab1, tab2} {
		out := recvOne(t, tab)
		if out.UserID != "A" || out.Text != "synced" {
			t.Fatalf("unexpected envelope: %+v", out)
		}
	}
}

func TestDisconnectPurgesMembershipAndRegistry(t *testing.T) {
	rt, registry, rooms := newTestRouter(nil)

	a := connect(rt, "A")
	b := connect(rt, "B")
	frame(rt, a, `{"type":"join_room","roomId":42}`)
	frame(rt, a, `{"type":"join_room","roomId":43}`)
	frame(rt, b, `{"type":"join_room","roomId":42}`)

	rt.Disconnect(a)

	if _, ok := registry.Lookup(a.ID); ok {
		t.Fatalf("disconnected conn still registered")
	}
	if got := rooms.Members(43); got != nil {
		t.Fatalf("room 43 should be reaped, got %v", got)
	}

	frame(rt, b, `{"type":"chat","roomId":42,"message":"still here"}`)

	out := recvOne(t, b)
	if out.Text != "still here" {
		t.Fatalf("unexpected envelope: %+v", out)
	}
	expectNone(t, a)
}

func TestDisconnectIsIdempotent(t *testing.T) {
	rt, registry, _ := newTestRouter(nil)

	a := connect(rt, "A")
	rt.Disconnect(a)
	rt.Disconnect(a)

	if registry.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", registry.Len())
	}
}

func TestMalformedFramesAreDropped(t *testing.T) {
	rt, registry, rooms := newTestRouter(nil)

	a := connect(rt, "A")
	frame(rt, a, `{"type":"join_room","roomId":42}`)

	for _, raw := range []string{
		`this is not json`,
		`{"type":"teleport","roomId":42}`,
		`{"type":"chat","roomId":"forty-two"}`,
		`{"type":"chat"}`,
	} {
		frame(rt, a, raw)
	}

	// Connection and membership survive the garbage.
	if _, ok := registry.Lookup(a.ID); !ok {
		t.Fatalf("connection should still be registered")
	}
	if got := rooms.Members(42); len(got) != 1 {
		t.Fatalf("membership should be intact, got %v", got)
	}
	expectNone(t, a)
}

func TestSlowRecipientIsSkipped(t *testing.T) {
	rt, _, _ := newTestRouter(nil)

	a := connect(rt, "A")
	slow := connect(rt, "B")
	c := connect(rt, "C")
	frame(rt, slow, `{"type":"join_room","roomId":42}`)
	frame(rt, c, `{"type":"join_room","roomId":42}`)

	// Fill the slow consumer's buffer, then chat once more.
	for i := 0; i < outboundBuffer; i++ {
		if !slow.TrySend(proto.NewMessage("X", 42, "fill")) {
			t.Fatalf("fill send %d should succeed", i)
		}
	}
	frame(rt, a, `{"type":"chat","roomId":42,"message":"after"}`)

	// The healthy member still gets the message.
	if out := recvOne(t, c); out.Text != "after" {
		t.Fatalf("unexpected envelope for healthy member: %+v", out)
	}

	// The slow consumer was skipped: its buffer holds only the filler.
	if got := len(slow.Outbound()); got != outboundBuffer {
		t.Fatalf("slow consumer should hold exactly %d envelopes, got %d", outboundBuffer, got)
	}
	for i := 0; i < outboundBuffer; i++ {
		if out := recvOne(t, slow); out.Text != "after" && out.Text != "fill" {
			t.Fatalf("unexpected envelope: %+v", out)
		} else if out.Text == "after" {
			t.Fatalf("skipped message should not have been delivered")
		}
	}
}

func TestClosedRecipientRefusesSend(t *testing.T) {
	rt, _, _ := newTestRouter(nil)

	a := connect(rt, "A")
	b := connect(rt, "B")
	frame(rt, b, `{"type":"join_room","roomId":42}`)

	rt.Disconnect(b)
	if b.TrySend(proto.NewMessage("A", 42, "late")) {
		t.Fatalf("send to closed connection should be refused")
	}

	// Fan-out after the disconnect reaches nobody and does not panic.
	frame(rt, a, `{"type":"chat","roomId":42,"message":"late"}`)
	expectNone(t, b)
}

func TestChatSinkRecordsRelayedMessages(t *testing.T) {
	sink := &fakeSink{}
	rt, _, _ := newTestRouter(sink)

	a := connect(rt, "A")
	frame(rt, a, `{"type":"join_room","roomId":42}`)
	frame(rt, a, `{"type":"chat","roomId":42,"message":"for the record"}`)

	if len(sink.chats) != 1 {
		t.Fatalf("expected 1 recorded chat, got %d", len(sink.chats))
	}
	rec := sink.chats[0]
	if rec.roomID != 42 || rec.userID != "A" || rec.text != "for the record" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestChatSinkFailureDoesNotBlockDelivery(t *testing.T) {
	sink := &fakeSink{err: errors.New("disk full")}
	rt, _, _ := newTestRouter(sink)

	a := connect(rt, "A")
	b := connect(rt, "B")
	frame(rt, a, `{"type":"join_room","roomId":42}`)
	frame(rt, b, `{"type":"join_room","roomId":42}`)

	frame(rt, a, `{"type":"chat","roomId":42,"message":"hi"}`)

	if out := recvOne(t, b); out.Text != "hi" {
		t.Fatalf("delivery should survive sink failure, got %+v", out)
	}
}
