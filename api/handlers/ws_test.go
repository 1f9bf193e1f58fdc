package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/termhub/backend/internal/chat"
	"github.com/termhub/backend/internal/db"
	"github.com/termhub/backend/internal/repository"
	"github.com/termhub/backend/internal/shell"
)

func newChatServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	database, err := db.NewTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	chatRepo := repository.NewChatRepository(database)
	connRepo := repository.NewConnectionRepository(database)

	registry := chat.NewRegistry()
	service := chat.NewService(registry, chat.NewRouter(registry), chatRepo, chat.Config{})

	store := shell.NewStore()
	proxy := shell.NewProxy(store, connRepo, &shell.SSHDialer{}, shell.Config{})

	r := gin.New()
	wsGroup := r.Group("/ws")
	NewWebSocketHandler(service, proxy).RegisterRoutes(wsGroup)

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server
}

func dialChat(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/chat"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readChatFrame(t *testing.T, conn *websocket.Conn, want chat.MessageType) *chat.Message {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	require.NoError(t, conn.SetReadDeadline(deadline))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var msg chat.Message
		require.NoError(t, json.Unmarshal(data, &msg))
		if msg.Type == want {
			return &msg
		}
		if time.Now().After(deadline) {
			t.Fatalf("no frame of type %s before deadline", want)
		}
	}
}

func writeChatFrame(t *testing.T, conn *websocket.Conn, msg *chat.Message) {
	t.Helper()

	data, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func TestChatEndpoint(t *testing.T) {
	server := newChatServer(t)

	alice := dialChat(t, server)
	writeChatFrame(t, alice, &chat.Message{Type: chat.MessageTypeJoin, Username: "alice"})

	joined := readChatFrame(t, alice, chat.MessageTypeJoined)
	require.Equal(t, "alice", joined.Username)
	require.Equal(t, "general", joined.Room)
	readChatFrame(t, alice, chat.MessageTypeMessageHistory)

	bob := dialChat(t, server)
	writeChatFrame(t, bob, &chat.Message{Type: chat.MessageTypeJoin, Username: "bob"})
	readChatFrame(t, bob, chat.MessageTypeJoined)

	// Everyone in the room sees the message, sender included.
	writeChatFrame(t, alice, &chat.Message{Type: chat.MessageTypeMessage, Content: "hello over the wire"})
	for _, conn := range []*websocket.Conn{alice, bob} {
		msg := readChatFrame(t, conn, chat.MessageTypeMessage)
		require.Equal(t, "alice", msg.Username)
		require.Equal(t, "hello over the wire", msg.Content)
	}
}

func TestChatEndpoint_DisconnectAnnounced(t *testing.T) {
	server := newChatServer(t)

	alice := dialChat(t, server)
	writeChatFrame(t, alice, &chat.Message{Type: chat.MessageTypeJoin, Username: "alice"})
	readChatFrame(t, alice, chat.MessageTypeJoined)

	bob := dialChat(t, server)
	writeChatFrame(t, bob, &chat.Message{Type: chat.MessageTypeJoin, Username: "bob"})
	readChatFrame(t, bob, chat.MessageTypeJoined)
	readChatFrame(t, alice, chat.MessageTypeSystemMessage)

	require.NoError(t, bob.Close())

	system := readChatFrame(t, alice, chat.MessageTypeSystemMessage)
	require.Equal(t, "bob left the room", system.Content)

	users := readChatFrame(t, alice, chat.MessageTypeUsersUpdate)
	require.Equal(t, []string{"alice"}, users.Users)
}
