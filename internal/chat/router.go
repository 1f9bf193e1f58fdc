package chat

import (
	"encoding/json"
	"log"

	"github.com/termhub/backend/internal/ws"
)

// Router fans messages out to room subscribers. Enumeration snapshots
// the membership index under the registry lock; delivery happens outside
// it, and delivery to a closed client is a harmless no-op. The registry's
// unregister path is the only place a dead connection is removed.
type Router struct {
	registry *Registry
}

// NewRouter creates a router over the given registry.
func NewRouter(registry *Registry) *Router {
	return &Router{registry: registry}
}

// BroadcastToRoom delivers a message to every connection whose current
// room is roomID, skipping exclude if non-nil.
func (r *Router) BroadcastToRoom(roomID int64, msg *Message, exclude *ws.Client) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal broadcast message: %v", err)
		return
	}

	for _, c := range r.registry.RoomMembers(roomID, exclude) {
		c.Send(data)
	}
}

// BroadcastToAll delivers a message to every bound connection, skipping
// exclude if non-nil. Used for presence-set updates.
func (r *Router) BroadcastToAll(msg *Message, exclude *ws.Client) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal broadcast message: %v", err)
		return
	}

	for _, c := range r.registry.BoundConnections(exclude) {
		c.Send(data)
	}
}

// SendTo delivers a message to a single connection.
func (r *Router) SendTo(c *ws.Client, msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal message: %v", err)
		return
	}
	c.Send(data)
}
