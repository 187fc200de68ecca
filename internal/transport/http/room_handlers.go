package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/sketchwire/sketchwire-server/internal/store"
)

// RoomHandlers provides HTTP handlers for room and shape-log endpoints.
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

// CreateRoomRequest represents the create room request body.
type CreateRoomRequest struct {
	Name string `json:"roomName" binding:"required,min=1,max=64"`
}

// RoomResponse represents a room in API responses.
type RoomResponse struct {
	ID        int64  `json:"id"`
	Slug      string `json:"slug"`
	AdminID   int64  `json:"adminId"`
	CreatedAt string `json:"createdAt"`
}

// ShapeResponse represents one entry of a room's persisted log.
type ShapeResponse struct {
	ID      int64  `json:"id"`
	RoomID  int64  `json:"roomId"`
	UserID  int64  `json:"userId"`
	Message string `json:"message"`
}

// UpsertShapeRequest represents the shape upsert request body.
type UpsertShapeRequest struct {
	ID        *int64 `json:"id"`
	RoomID    int64  `json:"roomId" binding:"required"`
	ShapeData string `json:"shapeData" binding:"required"`
}

// CreateRoom handles room creation.
// POST /api/rooms
func (h *RoomHandlers) CreateRoom(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		h.log.Error().Msg("user_id not found in context")
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create room request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	room, err := h.store.CreateRoom(c.Request.Context(), req.Name, uid)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") || strings.Contains(err.Error(), "duplicate key") {
			c.JSON(http.StatusConflict, ErrorResponse{Error: "room with this name already exists"})
			return
		}
		h.log.Error().Err(err).Str("room_slug", req.Name).Msg("failed to create room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("room_slug", room.Slug).Int64("room_id", room.ID).Int64("admin_id", uid).Msg("room created")
	c.JSON(http.StatusCreated, toRoomResponse(room))
}

// ListRooms handles listing rooms.
// GET /api/rooms
func (h *RoomHandlers) ListRooms(c *gin.Context) {
	rooms, err := h.store.ListRooms(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list rooms")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		response = append(response, toRoomResponse(room))
	}
	c.JSON(http.StatusOK, gin.H{"rooms": response})
}

// ResolveRoom maps a human-readable room name to its numeric identity.
// GET /room/:slug
func (h *RoomHandlers) ResolveRoom(c *gin.Context) {
	slug := c.Param("slug")

	room, err := h.store.GetRoomBySlug(c.Request.Context(), slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
			return
		}
		h.log.Error().Err(err).Str("room_slug", slug).Msg("failed to resolve room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"roomId": room.ID})
}

// ListRoomShapes serves the bootstrap fetch: the room's full persisted log,
// ordered by store identity descending. Clients re-order to ascending for
// display.
// GET /chats/:roomId
func (h *RoomHandlers) ListRoomShapes(c *gin.Context) {
	roomID, err := strconv.ParseInt(c.Param("roomId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid room id"})
		return
	}

	shapes, err := h.store.ListShapesByRoom(c.Request.Context(), roomID)
	if err != nil {
		h.log.Error().Err(err).Int64("room_id", roomID).Msg("failed to list shapes")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	messages := make([]ShapeResponse, 0, len(shapes))
	for _, shape := range shapes {
		messages = append(messages, ShapeResponse{
			ID:      shape.ID,
			RoomID:  shape.RoomID,
			UserID:  shape.UserID,
			Message: shape.Payload,
		})
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// UpsertShape overwrites or creates a persisted element by store identity.
// POST /shape/update
func (h *RoomHandlers) UpsertShape(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		h.log.Error().Msg("user_id not found in context")
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req UpsertShapeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid upsert shape request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	id, err := h.store.UpsertShape(c.Request.Context(), req.ID, req.RoomID, uid, req.ShapeData)
	if err != nil {
		h.log.Error().Err(err).Int64("room_id", req.RoomID).Msg("failed to upsert shape")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id})
}

func toRoomResponse(room *store.Room) RoomResponse {
	return RoomResponse{
		ID:        room.ID,
		Slug:      room.Slug,
		AdminID:   room.AdminID,
		CreatedAt: room.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
