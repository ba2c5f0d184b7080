package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vaais251/Smobile-market-place/internal/application/services"
)

type ChatHandler struct {
	rooms *services.RoomService
}

func NewChatHandler(rooms *services.RoomService) *ChatHandler {
	return &ChatHandler{rooms: rooms}
}

// ListRooms handles GET /api/v1/chat/rooms.
func (h *ChatHandler) ListRooms(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	summaries, err := h.rooms.ListRoomsFor(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summaries)
}

// GetOrCreateDirectRoom handles GET /api/v1/chat/rooms/:otherUserID.
func (h *ChatHandler) GetOrCreateDirectRoom(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	otherUserID, err := parseUintParam(c, "otherUserID")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	room, created, err := h.rooms.FindOrCreateDirectRoom(c.Request.Context(), userID, otherUserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"room_id": room.ID, "created": created})
}

// History handles GET /api/v1/chat/history/:roomID?limit=&before_id=.
func (h *ChatHandler) History(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	roomID, err := parseUintParam(c, "roomID")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	var beforeID uint64
	if raw := c.Query("before_id"); raw != "" {
		beforeID, err = strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid before_id cursor"})
			return
		}
	}

	messages, err := h.rooms.FetchHistory(c.Request.Context(), roomID, userID, uint(beforeID), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"room_id": roomID, "messages": messages})
}

func parseUintParam(c *gin.Context, name string) (uint, error) {
	value, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(value), nil
}
