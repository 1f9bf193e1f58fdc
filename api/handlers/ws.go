package handlers

import (
	"log"

	"github.com/gin-gonic/gin"

	"github.com/termhub/backend/internal/chat"
	"github.com/termhub/backend/internal/shell"
	"github.com/termhub/backend/internal/ws"
)

// WebSocketHandler upgrades chat and shell endpoints and wires each
// connection into the matching service.
type WebSocketHandler struct {
	chatService *chat.Service
	shellProxy  *shell.Proxy
}

// NewWebSocketHandler creates a new WebSocketHandler.
func NewWebSocketHandler(chatService *chat.Service, shellProxy *shell.Proxy) *WebSocketHandler {
	return &WebSocketHandler{
		chatService: chatService,
		shellProxy:  shellProxy,
	}
}

// Chat handles GET /ws/chat - one duplex chat connection per client.
func (h *WebSocketHandler) Chat(c *gin.Context) {
	conn, err := ws.Upgrade(c.Writer, c.Request)
	if err != nil {
		log.Printf("Failed to upgrade chat connection: %v", err)
		return
	}

	client := ws.NewClient(conn)
	h.chatService.HandleConnection(client)

	go client.WritePump()
	client.ReadPump(
		func(data []byte) {
			h.chatService.HandleMessage(c.Request.Context(), client, data)
		},
		func() {
			h.chatService.HandleDisconnect(c.Request.Context(), client)
		},
	)
}

// Shell handles GET /ws/shell - one duplex connection multiplexing any
// number of remote-shell sessions.
func (h *WebSocketHandler) Shell(c *gin.Context) {
	conn, err := ws.Upgrade(c.Writer, c.Request)
	if err != nil {
		log.Printf("Failed to upgrade shell connection: %v", err)
		return
	}

	client := ws.NewClient(conn)

	go client.WritePump()
	client.ReadPump(
		func(data []byte) {
			h.shellProxy.HandleMessage(c.Request.Context(), client, data)
		},
		func() {
			h.shellProxy.HandleClientGone(c.Request.Context(), client)
		},
	)
}

// RegisterRoutes registers the WebSocket endpoints on a Gin router
// group.
func (h *WebSocketHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/chat", h.Chat)
	rg.GET("/shell", h.Shell)
}
