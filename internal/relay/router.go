package relay

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/siro844/excalidraw/internal/proto"
)

// ChatSink receives a copy of every relayed chat message. The relay itself
// keeps no durable state; the sink is how the surrounding product records
// history. A nil sink disables recording.
type ChatSink interface {
	RecordChat(ctx context.Context, roomID int64, userID, text string) error
}

// Router interprets inbound envelopes against the registry and membership
// table and fans chat messages out to room members.
type Router struct {
	registry *Registry
	rooms    *Rooms
	sink     ChatSink
	log      *zerolog.Logger
}

// NewRouter wires a router to its shared tables. sink may be nil.
func NewRouter(registry *Registry, rooms *Rooms, sink ChatSink, logger *zerolog.Logger) *Router {
	return &Router{
		registry: registry,
		rooms:    rooms,
		sink:     sink,
		log:      logger,
	}
}

// Connect registers a freshly authenticated connection.
func (rt *Router) Connect(c *Conn) {
	rt.registry.Register(c)
	rt.log.Debug().Str("conn_id", c.ID).Str("user_id", c.UserID).Msg("connection registered")
}

// Disconnect tears a connection down: no further sends, no registry entry,
// no room memberships. Idempotent; only the first call does work.
func (rt *Router) Disconnect(c *Conn) {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	rt.registry.Unregister(c.ID)
	rt.rooms.RemoveConnFromAllRooms(c.ID)
	rt.log.Debug().Str("conn_id", c.ID).Str("user_id", c.UserID).Msg("connection closed")
}

// HandleFrame applies one inbound frame from the given connection.
// Malformed frames are logged and dropped; they never close the connection.
func (rt *Router) HandleFrame(ctx context.Context, c *Conn, raw []byte) {
	in, err := proto.ParseInbound(raw)
	if err != nil {
		rt.log.Warn().Err(err).Str("conn_id", c.ID).Msg("dropping inbound frame")
		return
	}

	switch in.Type {
	case proto.TypeJoinRoom:
		rt.rooms.Join(in.RoomID, c.ID)
		rt.log.Debug().Str("user_id", c.UserID).Int64("room_id", in.RoomID).Msg("joined room")
	case proto.TypeLeaveRoom:
		rt.rooms.Leave(in.RoomID, c.ID)
		rt.log.Debug().Str("user_id", c.UserID).Int64("room_id", in.RoomID).Msg("left room")
	case proto.TypeChat:
		rt.relayChat(ctx, c, in.RoomID, in.Text)
	}
}

// relayChat delivers the message to every current member of the room, the
// sender's own connections included. Membership of the sender is not checked;
// a room with no members means zero deliveries. Recipients that are closed or
// cannot keep up are skipped.
func (rt *Router) relayChat(ctx context.Context, c *Conn, roomID int64, text string) {
	out := proto.NewMessage(c.UserID, roomID, text)

	delivered, skipped := 0, 0
	for _, connID := range rt.rooms.Members(roomID) {
		member, ok := rt.registry.Lookup(connID)
		if !ok {
			skipped++
			continue
		}
		if member.TrySend(out) {
			delivered++
		} else {
			skipped++
		}
	}

	if rt.sink != nil {
		if err := rt.sink.RecordChat(ctx, roomID, c.UserID, text); err != nil {
			rt.log.Warn().Err(err).Int64("room_id", roomID).Msg("failed to record chat")
		}
	}

	rt.log.Debug().
		Str("user_id", c.UserID).
		Int64("room_id", roomID).
		Int("delivered", delivered).
		Int("skipped", skipped).
		Msg("chat relayed")
}
