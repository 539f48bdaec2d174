package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// User is an account that can sign in and own rooms.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
}

// Room is a durable drawing room. Its ID is the caller-visible numeric room
// identifier used by the relay protocol.
type Room struct {
	ID        int64
	OwnerID   string
	CreatedAt time.Time
}

// Chat is a persisted chat message from a room.
type Chat struct {
	ID        int64
	RoomID    int64
	UserID    string
	Message   string
	CreatedAt time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser inserts a new user; ID and PasswordHash must be set.
	CreateUser(ctx context.Context, user *User) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id string) (*User, error)

	// GetUserByEmail retrieves a user by email.
	GetUserByEmail(ctx context.Context, email string) (*User, error)
}

// RoomStore handles room persistence.
type RoomStore interface {
	// CreateRoom inserts a room with the given numeric ID.
	CreateRoom(ctx context.Context, roomID int64, ownerID string) (*Room, error)

	// GetRoomByID retrieves a room by its numeric ID.
	GetRoomByID(ctx context.Context, roomID int64) (*Room, error)

	// ListRoomsByOwner lists rooms created by the given user.
	ListRoomsByOwner(ctx context.Context, ownerID string) ([]*Room, error)
}

// ChatStore handles chat history persistence.
type ChatStore interface {
	// SaveChat persists one chat message.
	SaveChat(ctx context.Context, chat *Chat) error

	// ListChats retrieves messages from a room, newest first.
	// If beforeID is non-nil, only messages older than that ID are returned.
	ListChats(ctx context.Context, roomID int64, limit int, beforeID *int64) ([]*Chat, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	RoomStore
	ChatStore

	// Close closes the underlying database connection.
	Close() error
}
