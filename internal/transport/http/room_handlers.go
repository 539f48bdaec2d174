package http

import (
	"errors"
	"math/rand"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/siro844/excalidraw/internal/store"
)

// roomIDAttempts bounds retries when a random room ID collides.
const roomIDAttempts = 5

// RoomHandlers provides HTTP handlers for room and chat history endpoints.
type RoomHandlers struct {
	store store.Store
	log   *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(st store.Store, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		store: st,
		log:   logger,
	}
}

// RoomResponse represents a room in API responses.
type RoomResponse struct {
	RoomID    int64  `json:"roomId"`
	OwnerID   string `json:"ownerId"`
	CreatedAt string `json:"createdAt"`
}

// CreateRoomResponse is returned on room creation.
type CreateRoomResponse struct {
	Message string `json:"message"`
	RoomID  int64  `json:"roomId"`
}

// ChatResponse represents one historical chat message.
type ChatResponse struct {
	ID        int64  `json:"id"`
	RoomID    int64  `json:"roomId"`
	UserID    string `json:"userId"`
	Message   string `json:"message"`
	CreatedAt string `json:"createdAt"`
}

// newRoomID picks a random five-digit room identifier.
func newRoomID() int64 {
	return int64(10000 + rand.Intn(90000))
}

// CreateRoom handles room creation.
// POST /api/v1/rooms
func (h *RoomHandlers) CreateRoom(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "please login"})
		return
	}

	var room *store.Room
	var err error
	for range roomIDAttempts {
		room, err = h.store.CreateRoom(c.Request.Context(), newRoomID(), uid)
		if err == nil {
			break
		}
		if !strings.Contains(err.Error(), "UNIQUE") {
			break
		}
	}
	if err != nil {
		h.log.Error().Err(err).Str("owner_id", uid).Msg("failed to create room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Int64("room_id", room.ID).Str("owner_id", uid).Msg("room created")
	c.JSON(http.StatusCreated, CreateRoomResponse{
		Message: "room created successfully",
		RoomID:  room.ID,
	})
}

// ListRooms lists the authenticated user's rooms.
// GET /api/v1/rooms
func (h *RoomHandlers) ListRooms(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "please login"})
		return
	}

	rooms, err := h.store.ListRoomsByOwner(c.Request.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Str("owner_id", uid).Msg("failed to list rooms")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		response = append(response, RoomResponse{
			RoomID:    room.ID,
			OwnerID:   room.OwnerID,
			CreatedAt: room.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	c.JSON(http.StatusOK, response)
}

// ListChats returns a room's chat history, newest first.
// GET /api/v1/rooms/:roomId/chats?limit=&before=
func (h *RoomHandlers) ListChats(c *gin.Context) {
	roomID, err := strconv.ParseInt(c.Param("roomId"), 10, 64)
	if err != nil || roomID <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid room id"})
		return
	}

	if _, err := h.store.GetRoomByID(c.Request.Context(), roomID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
			return
		}
		h.log.Error().Err(err).Int64("room_id", roomID).Msg("failed to load room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, convErr := strconv.Atoi(raw); convErr == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	var beforeID *int64
	if raw := c.Query("before"); raw != "" {
		if n, convErr := strconv.ParseInt(raw, 10, 64); convErr == nil {
			beforeID = &n
		}
	}

	chats, err := h.store.ListChats(c.Request.Context(), roomID, limit, beforeID)
	if err != nil {
		h.log.Error().Err(err).Int64("room_id", roomID).Msg("failed to list chats")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]ChatResponse, 0, len(chats))
	for _, chat := range chats {
		response = append(response, ChatResponse{
			ID:        chat.ID,
			RoomID:    chat.RoomID,
			UserID:    chat.UserID,
			Message:   chat.Message,
			CreatedAt: chat.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	c.JSON(http.StatusOK, response)
}
