package relay

import (
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/siro844/excalidraw/internal/proto"
)

const outboundBuffer = 16

// Conn is one live client connection as seen by the relay.
// The ID is unique for the process lifetime and never reused; UserID is fixed
// at handshake time. Outbound envelopes are consumed by the transport's write
// loop, which exclusively owns the underlying socket.
type Conn struct {
	ID     string
	UserID string

	outbound chan proto.Outbound
	closed   atomic.Bool
}

// NewConn constructs a connection for a verified user.
func NewConn(userID string) *Conn {
	return &Conn{
		ID:       uuid.NewString(),
		UserID:   userID,
		outbound: make(chan proto.Outbound, outboundBuffer),
	}
}

// Outbound returns the channel the transport drains to the socket.
func (c *Conn) Outbound() <-chan proto.Outbound {
	return c.outbound
}

// TrySend queues an envelope for delivery without blocking.
// Returns false if the connection is closed or its buffer is full; the caller
// skips this recipient and carries on.
func (c *Conn) TrySend(out proto.Outbound) bool {
	if c.closed.Load() {
		return false
	}
	select {
	case c.outbound <- out:
		return true
	default:
		return false
	}
}
