package chat

import (
	"sort"
	"sync"
	"time"

	"github.com/termhub/backend/internal/model"
	"github.com/termhub/backend/internal/ws"
)

// connState is the registry's view of one duplex channel.
type connState struct {
	username string // empty until an identity is bound
	roomID   int64
	joinedAt time.Time
}

// Registry owns every live chat connection, the username bindings and
// the room-membership index. All access goes through its lock; nothing
// outside this type touches the maps.
type Registry struct {
	mu     sync.Mutex
	conns  map[*ws.Client]*connState
	byUser map[string]*ws.Client
	rooms  map[int64]map[*ws.Client]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[*ws.Client]*connState),
		byUser: make(map[string]*ws.Client),
		rooms:  make(map[int64]map[*ws.Client]struct{}),
	}
}

// Register creates a tracking entry for a newly accepted channel. The
// connection has no identity until BindIdentity succeeds.
func (r *Registry) Register(c *ws.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[c]; ok {
		return
	}
	r.conns[c] = &connState{joinedAt: time.Now()}
}

// BindIdentity atomically checks username uniqueness across all live
// connections and, on success, binds the name to this connection and
// places it in roomID. An existing binding is never displaced.
func (r *Registry) BindIdentity(c *ws.Client, username string, roomID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.conns[c]
	if !ok {
		// Channel closed before the bind was processed.
		return model.ErrSessionClosed
	}
	if state.username != "" {
		return model.ErrAlreadyBound
	}
	if _, taken := r.byUser[username]; taken {
		return model.ErrUsernameTaken
	}

	state.username = username
	state.roomID = roomID
	r.byUser[username] = c
	r.roomAdd(roomID, c)
	return nil
}

// SwitchRoom moves a bound connection to a new room and returns the room
// it left.
func (r *Registry) SwitchRoom(c *ws.Client, roomID int64) (oldRoomID int64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.conns[c]
	if !ok || state.username == "" {
		return 0, model.ErrSessionClosed
	}

	oldRoomID = state.roomID
	r.roomRemove(oldRoomID, c)
	state.roomID = roomID
	r.roomAdd(roomID, c)
	return oldRoomID, nil
}

// Unregister removes a connection and every index entry it holds, then
// closes the client so later broadcasts become no-ops. It is idempotent:
// only the first call reports the binding that was released.
func (r *Registry) Unregister(c *ws.Client) (username string, roomID int64, wasBound bool) {
	r.mu.Lock()
	state, ok := r.conns[c]
	if !ok {
		r.mu.Unlock()
		return "", 0, false
	}
	delete(r.conns, c)
	if state.username != "" {
		username = state.username
		roomID = state.roomID
		wasBound = true
		delete(r.byUser, username)
		r.roomRemove(roomID, c)
	}
	r.mu.Unlock()

	c.Close()
	return username, roomID, wasBound
}

// Username returns the identity bound to a connection, if any.
func (r *Registry) Username(c *ws.Client) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.conns[c]
	if !ok || state.username == "" {
		return "", false
	}
	return state.username, true
}

// CurrentRoom returns the room a bound connection is in.
func (r *Registry) CurrentRoom(c *ws.Client) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.conns[c]
	if !ok || state.username == "" {
		return 0, false
	}
	return state.roomID, true
}

// Presence returns the sorted set of currently bound usernames.
func (r *Registry) Presence() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	users := make([]string, 0, len(r.byUser))
	for name := range r.byUser {
		users = append(users, name)
	}
	sort.Strings(users)
	return users
}

// RoomMembers returns a snapshot of the connections whose current room
// is roomID, skipping exclude if non-nil.
func (r *Registry) RoomMembers(roomID int64, exclude *ws.Client) []*ws.Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	members := r.rooms[roomID]
	out := make([]*ws.Client, 0, len(members))
	for c := range members {
		if c == exclude {
			continue
		}
		out = append(out, c)
	}
	return out
}

// BoundConnections returns a snapshot of every connection with a bound
// identity, skipping exclude if non-nil.
func (r *Registry) BoundConnections(exclude *ws.Client) []*ws.Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*ws.Client, 0, len(r.byUser))
	for _, c := range r.byUser {
		if c == exclude {
			continue
		}
		out = append(out, c)
	}
	return out
}

// roomAdd and roomRemove maintain the membership index. Callers hold the lock.

func (r *Registry) roomAdd(roomID int64, c *ws.Client) {
	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[*ws.Client]struct{})
		r.rooms[roomID] = members
	}
	members[c] = struct{}{}
}

func (r *Registry) roomRemove(roomID int64, c *ws.Client) {
	members, ok := r.rooms[roomID]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(r.rooms, roomID)
	}
}
