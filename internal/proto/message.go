package proto

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Inbound message types accepted from clients.
const (
	TypeJoinRoom  = "join_room"
	TypeLeaveRoom = "leave_room"
	TypeChat      = "chat"

	// TypeMessage is the only outbound type.
	TypeMessage = "message"
)

var (
	// ErrMalformedEnvelope indicates a frame that is not a valid envelope.
	ErrMalformedEnvelope = errors.New("malformed envelope")
	// ErrUnknownType indicates a well-formed envelope with an unrecognized type.
	ErrUnknownType = errors.New("unknown envelope type")
)

// Inbound is a single frame from a client.
// Text is meaningful only for chat; an empty string is a valid payload.
type Inbound struct {
	Type   string `json:"type"`
	RoomID int64  `json:"roomId"`
	Text   string `json:"message"`
}

// Outbound is a single frame delivered to a client.
type Outbound struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
	RoomID int64  `json:"roomId"`
	Text   string `json:"message"`
}

// ParseInbound decodes and validates one inbound frame.
func ParseInbound(raw []byte) (Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	switch in.Type {
	case TypeJoinRoom, TypeLeaveRoom, TypeChat:
	default:
		return Inbound{}, fmt.Errorf("%w: %q", ErrUnknownType, in.Type)
	}

	if in.RoomID <= 0 {
		return Inbound{}, fmt.Errorf("%w: roomId must be a positive integer", ErrMalformedEnvelope)
	}

	return in, nil
}

// NewMessage builds the outbound envelope for a relayed chat message.
func NewMessage(userID string, roomID int64, text string) Outbound {
	return Outbound{
		Type:   TypeMessage,
		UserID: userID,
		RoomID: roomID,
		Text:   text,
	}
}
