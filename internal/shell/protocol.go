// Package shell implements the remote-shell variant of the session
// multiplexer: the per-connection session store and the SSH stream
// proxy that relays an interactive byte stream over the duplex channel.
package shell

// MessageType represents the type of a shell websocket message.
type MessageType string

const (
	// Client -> Server message types
	MessageTypeConnect    MessageType = "connect"
	MessageTypeInput      MessageType = "input"
	MessageTypeResize     MessageType = "resize"
	MessageTypeDisconnect MessageType = "disconnect"

	// Server -> Client message types
	MessageTypeConnected    MessageType = "connected"
	MessageTypeOutput       MessageType = "output"
	MessageTypeDisconnected MessageType = "disconnected"
	MessageTypeError        MessageType = "error"
)

// ConnectionInfo names the target of an established session in the
// connected confirmation. Credentials never appear here.
type ConnectionInfo struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Hostname string `json:"hostname"`
	Username string `json:"username"`
}

// Message is the websocket frame for the shell variant.
type Message struct {
	Type MessageType `json:"type"`

	SessionID    string `json:"sessionId,omitempty"`
	ConnectionID int64  `json:"connectionId,omitempty"`
	Data         string `json:"data,omitempty"`
	Cols         int    `json:"cols,omitempty"`
	Rows         int    `json:"rows,omitempty"`

	Connection *ConnectionInfo `json:"connection,omitempty"`

	// ErrorText carries the human-readable reason on error frames.
	ErrorText string `json:"message,omitempty"`
}
