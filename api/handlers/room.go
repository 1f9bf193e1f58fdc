package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/termhub/backend/internal/repository"
)

// RoomHandler handles HTTP requests for chat rooms.
type RoomHandler struct {
	repo *repository.ChatRepository
}

// NewRoomHandler creates a new RoomHandler.
func NewRoomHandler(repo *repository.ChatRepository) *RoomHandler {
	return &RoomHandler{repo: repo}
}

// CreateRoomRequest represents the request body for creating a room.
type CreateRoomRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	IsPrivate   bool   `json:"isPrivate"`
}

// List handles GET /api/rooms - lists all chat rooms.
func (h *RoomHandler) List(c *gin.Context) {
	rooms, err := h.repo.ListRooms(c.Request.Context())
	if err != nil {
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list rooms: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, rooms)
}

// Create handles POST /api/rooms - creates a new chat room.
func (h *RoomHandler) Create(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body: "+err.Error())
		return
	}

	room, err := h.repo.CreateRoom(c.Request.Context(), req.Name, req.Description, req.IsPrivate)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create room: "+err.Error())
		return
	}

	c.JSON(http.StatusCreated, room)
}

// RegisterRoutes registers the room handler routes on a Gin router
// group.
func (h *RoomHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/rooms", h.List)
	rg.POST("/rooms", h.Create)
}
