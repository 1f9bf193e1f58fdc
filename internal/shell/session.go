package shell

import (
	"sync"

	"github.com/google/uuid"

	"github.com/termhub/backend/internal/model"
	"github.com/termhub/backend/internal/recorder"
	"github.com/termhub/backend/internal/ws"
)

// State is the lifecycle state of a shell session.
type State string

const (
	StatePending State = "pending"
	StateOpen    State = "open"
	StateClosed  State = "closed"
)

// Session is one proxied remote-shell channel owned by a single
// connection. Its state machine is pending -> open -> closed (or
// pending -> closed on immediate failure); the transition into closed
// happens exactly once no matter how many paths race toward it.
type Session struct {
	ID      string
	Owner   *ws.Client
	Profile *model.Connection

	mu    sync.Mutex
	state State
	shell RemoteShell
	rec   *recorder.Recorder
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// open attaches the remote shell and moves pending -> open. It fails
// when the session was closed while the handshake was in flight.
func (s *Session) open(shell RemoteShell, rec *recorder.Recorder) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StatePending {
		return false
	}
	s.state = StateOpen
	s.shell = shell
	s.rec = rec
	return true
}

// Shell returns the remote shell while the session is open.
func (s *Session) Shell() (RemoteShell, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateOpen {
		return nil, false
	}
	return s.shell, true
}

// transitionClosed is the single compare-and-swap into closed. Only the
// first caller receives the resources to release; later callers observe
// a silent success.
func (s *Session) transitionClosed() (RemoteShell, *recorder.Recorder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return nil, nil, false
	}
	shell := s.shell
	rec := s.rec
	s.state = StateClosed
	s.shell = nil
	s.rec = nil
	return shell, rec, true
}

// Store indexes live shell sessions by id and by owning connection.
// Index entries are removed, never left dangling, when a session closes
// or its owner disappears.
type Store struct {
	mu      sync.Mutex
	byID    map[string]*Session
	byOwner map[*ws.Client]map[string]*Session
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		byID:    make(map[string]*Session),
		byOwner: make(map[*ws.Client]map[string]*Session),
	}
}

// Create allocates a fresh session id and a pending record owned by c.
func (s *Store) Create(c *ws.Client, profile *model.Connection) *Session {
	sess := &Session{
		ID:      uuid.New().String(),
		Owner:   c,
		Profile: profile,
		state:   StatePending,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.byID[sess.ID] = sess
	owned, ok := s.byOwner[c]
	if !ok {
		owned = make(map[string]*Session)
		s.byOwner[c] = owned
	}
	owned[sess.ID] = sess

	return sess
}

// Get returns the session with the given id.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byID[id]
	return sess, ok
}

// Remove drops a session from both indexes.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byID[id]
	if !ok {
		return
	}
	delete(s.byID, id)

	if owned, ok := s.byOwner[sess.Owner]; ok {
		delete(owned, id)
		if len(owned) == 0 {
			delete(s.byOwner, sess.Owner)
		}
	}
}

// OwnerSessions returns a snapshot of every session owned by c.
func (s *Store) OwnerSessions(c *ws.Client) []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	owned := s.byOwner[c]
	out := make([]*Session, 0, len(owned))
	for _, sess := range owned {
		out = append(out, sess)
	}
	return out
}

// CountForProfile returns how many live sessions reference a profile.
func (s *Store) CountForProfile(profileID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, sess := range s.byID {
		if sess.Profile.ID == profileID {
			count++
		}
	}
	return count
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}
