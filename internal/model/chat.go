package model

import "time"

// MessageKind classifies a chat message row.
type MessageKind string

const (
	MessageKindMessage MessageKind = "message"
	MessageKindCommand MessageKind = "command"
	MessageKindSystem  MessageKind = "system"
)

// Room represents a named chat channel. Rooms are created rarely and
// never deleted in normal operation.
type Room struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsPrivate   bool      `json:"isPrivate"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ChatMessage is an append-only message in a room. Seq is a
// server-assigned, per-room monotonic sequence number; within a room,
// delivery and stored history both follow Seq order.
type ChatMessage struct {
	ID        int64       `json:"id"`
	RoomID    int64       `json:"roomId"`
	Username  string      `json:"username"`
	Content   string      `json:"content"`
	Kind      MessageKind `json:"kind"`
	Seq       uint64      `json:"seq"`
	CreatedAt time.Time   `json:"timestamp"`
}

// User is a persisted chat identity. Online status is mirrored from the
// connection registry; the registry, not this row, is authoritative for
// the live presence set.
type User struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName,omitempty"`
	IsOnline    bool      `json:"isOnline"`
	LastSeen    time.Time `json:"lastSeen"`
	CreatedAt   time.Time `json:"createdAt"`
}

const (
	// UsernameMinLen and UsernameMaxLen bound identity names at bind time.
	UsernameMinLen = 2
	UsernameMaxLen = 20
)

// ValidUsername reports whether a trimmed username is acceptable for
// identity binding.
func ValidUsername(name string) bool {
	return len(name) >= UsernameMinLen && len(name) <= UsernameMaxLen
}
