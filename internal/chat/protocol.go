// Package chat implements the chat-room variant of the session
// multiplexer: the connection registry, the room broadcast router and
// the slash-command interpreter.
package chat

import (
	"time"

	"github.com/termhub/backend/internal/model"
)

// MessageType represents the type of a chat websocket message.
type MessageType string

const (
	// Client -> Server message types
	MessageTypeJoin    MessageType = "join"
	MessageTypeMessage MessageType = "message"
	MessageTypeCommand MessageType = "command"

	// Server -> Client message types
	MessageTypeJoined          MessageType = "joined"
	MessageTypeMessageHistory  MessageType = "message_history"
	MessageTypeSystemMessage   MessageType = "system_message"
	MessageTypeCommandResponse MessageType = "command_response"
	MessageTypeRoomChanged     MessageType = "room_changed"
	MessageTypeClearTerminal   MessageType = "clear_terminal"
	MessageTypeUsersUpdate     MessageType = "users_update"
	MessageTypeError           MessageType = "error"
)

// HistoryEntry is one stored message as rendered on the wire.
type HistoryEntry struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	Kind      string    `json:"kind"`
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
}

// Message is the websocket frame for the chat variant. The Type tag
// discriminates which of the optional fields are meaningful.
type Message struct {
	Type MessageType `json:"type"`

	ID        int64      `json:"id,omitempty"`
	Username  string     `json:"username,omitempty"`
	Content   string     `json:"content,omitempty"`
	Command   string     `json:"command,omitempty"`
	Args      []string   `json:"args,omitempty"`
	Room      string     `json:"room,omitempty"`
	Seq       uint64     `json:"seq,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`

	Messages []HistoryEntry `json:"messages,omitempty"`
	Users    []string       `json:"users,omitempty"`

	// ErrorText carries the human-readable reason on error frames.
	ErrorText string `json:"message,omitempty"`
}

func errorMessage(reason string) *Message {
	return &Message{Type: MessageTypeError, ErrorText: reason}
}

func commandResponse(content string) *Message {
	return &Message{Type: MessageTypeCommandResponse, Content: content}
}

func historyEntry(m *model.ChatMessage) HistoryEntry {
	return HistoryEntry{
		ID:        m.ID,
		Username:  m.Username,
		Content:   m.Content,
		Kind:      string(m.Kind),
		Seq:       m.Seq,
		Timestamp: m.CreatedAt,
	}
}
