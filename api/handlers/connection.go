// Package handlers provides HTTP API request handlers.
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/termhub/backend/internal/model"
	"github.com/termhub/backend/internal/repository"
)

// ConnectionHandler handles HTTP requests for connection profiles.
type ConnectionHandler struct {
	repo *repository.ConnectionRepository
}

// NewConnectionHandler creates a new ConnectionHandler.
func NewConnectionHandler(repo *repository.ConnectionRepository) *ConnectionHandler {
	return &ConnectionHandler{repo: repo}
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// sendError sends an error response with the appropriate status code.
func sendError(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// List handles GET /api/connections - lists stored profiles without
// credentials.
func (h *ConnectionHandler) List(c *gin.Context) {
	connections, err := h.repo.List(c.Request.Context())
	if err != nil {
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list connections: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, connections)
}

// Create handles POST /api/connections - stores a new profile.
func (h *ConnectionHandler) Create(c *gin.Context) {
	var req model.CreateConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body: "+err.Error())
		return
	}

	conn := &model.Connection{
		Name:       req.Name,
		Hostname:   req.Hostname,
		Port:       req.Port,
		Username:   req.Username,
		AuthMethod: model.AuthMethod(req.AuthMethod),
		Password:   req.Password,
		PrivateKey: req.PrivateKey,
	}
	if err := conn.ValidateCredentials(); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	created, err := h.repo.Create(c.Request.Context(), conn)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create connection: "+err.Error())
		return
	}

	c.JSON(http.StatusCreated, created)
}

// Delete handles DELETE /api/connections/:id - removes a profile.
func (h *ConnectionHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid connection ID")
		return
	}

	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, model.ErrProfileNotFound) {
			sendError(c, http.StatusNotFound, "CONNECTION_NOT_FOUND", "Connection not found")
			return
		}
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete connection: "+err.Error())
		return
	}

	c.Status(http.StatusNoContent)
}

// RegisterRoutes registers the connection handler routes on a Gin
// router group.
func (h *ConnectionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/connections", h.List)
	rg.POST("/connections", h.Create)
	rg.DELETE("/connections/:id", h.Delete)
}
