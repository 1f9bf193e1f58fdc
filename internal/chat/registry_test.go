package chat

import (
	"errors"
	"sort"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/termhub/backend/internal/model"
	"github.com/termhub/backend/internal/ws"
)

func TestRegistry_BindIdentity(t *testing.T) {
	r := NewRegistry()

	c1 := ws.NewTestClient()
	r.Register(c1)

	if err := r.BindIdentity(c1, "alice", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	name, ok := r.Username(c1)
	if !ok || name != "alice" {
		t.Errorf("expected bound username alice, got %q (ok=%v)", name, ok)
	}
	roomID, ok := r.CurrentRoom(c1)
	if !ok || roomID != 1 {
		t.Errorf("expected room 1, got %d (ok=%v)", roomID, ok)
	}
}

func TestRegistry_BindIdentity_UsernameTaken(t *testing.T) {
	r := NewRegistry()

	c1 := ws.NewTestClient()
	c2 := ws.NewTestClient()
	r.Register(c1)
	r.Register(c2)

	if err := r.BindIdentity(c1, "alice", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.BindIdentity(c2, "alice", 1); !errors.Is(err, model.ErrUsernameTaken) {
		t.Errorf("expected ErrUsernameTaken, got %v", err)
	}

	// The holder keeps the name; the loser stays unbound.
	if name, _ := r.Username(c1); name != "alice" {
		t.Errorf("holder lost the binding: %q", name)
	}
	if _, ok := r.Username(c2); ok {
		t.Error("loser should stay unbound")
	}
}

func TestRegistry_BindIdentity_AlreadyBound(t *testing.T) {
	r := NewRegistry()

	c1 := ws.NewTestClient()
	r.Register(c1)

	if err := r.BindIdentity(c1, "alice", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.BindIdentity(c1, "bob", 1); !errors.Is(err, model.ErrAlreadyBound) {
		t.Errorf("expected ErrAlreadyBound, got %v", err)
	}
	if name, _ := r.Username(c1); name != "alice" {
		t.Errorf("rebind must not displace the original binding, got %q", name)
	}
}

func TestRegistry_BindIdentity_UnknownConnection(t *testing.T) {
	r := NewRegistry()

	c := ws.NewTestClient()
	if err := r.BindIdentity(c, "alice", 1); !errors.Is(err, model.ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewRegistry()

	c := ws.NewTestClient()
	r.Register(c)
	if err := r.BindIdentity(c, "alice", 7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	username, roomID, wasBound := r.Unregister(c)
	if !wasBound || username != "alice" || roomID != 7 {
		t.Errorf("expected released binding alice/7, got %q/%d (wasBound=%v)", username, roomID, wasBound)
	}
	if !c.IsClosed() {
		t.Error("unregistered client should be closed")
	}

	// Name is free for reuse immediately.
	c2 := ws.NewTestClient()
	r.Register(c2)
	if err := r.BindIdentity(c2, "alice", 1); err != nil {
		t.Errorf("released username should be available, got %v", err)
	}

	// Second unregister is a no-op.
	if _, _, again := r.Unregister(c); again {
		t.Error("second unregister should not report a binding")
	}
}

func TestRegistry_Unregister_Unbound(t *testing.T) {
	r := NewRegistry()

	c := ws.NewTestClient()
	r.Register(c)

	if _, _, wasBound := r.Unregister(c); wasBound {
		t.Error("unbound connection should not report a released binding")
	}
	if !c.IsClosed() {
		t.Error("client should still be closed")
	}
}

func TestRegistry_SwitchRoom(t *testing.T) {
	r := NewRegistry()

	c := ws.NewTestClient()
	r.Register(c)
	if err := r.BindIdentity(c, "alice", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	oldRoomID, err := r.SwitchRoom(c, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if oldRoomID != 1 {
		t.Errorf("expected old room 1, got %d", oldRoomID)
	}

	if members := r.RoomMembers(1, nil); len(members) != 0 {
		t.Errorf("expected old room empty, got %d members", len(members))
	}
	if members := r.RoomMembers(2, nil); len(members) != 1 {
		t.Errorf("expected new room to have 1 member, got %d", len(members))
	}
}

func TestRegistry_RoomMembers_Exclude(t *testing.T) {
	r := NewRegistry()

	c1 := ws.NewTestClient()
	c2 := ws.NewTestClient()
	r.Register(c1)
	r.Register(c2)
	r.BindIdentity(c1, "alice", 1)
	r.BindIdentity(c2, "bob", 1)

	members := r.RoomMembers(1, c1)
	if len(members) != 1 || members[0] != c2 {
		t.Errorf("expected only the other member, got %d members", len(members))
	}
}

// Binding any set of distinct usernames yields exactly that set, sorted,
// from Presence; unregistering a connection removes exactly its name.
func TestRegistry_PresenceProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	usernameGen := gen.AlphaString().SuchThat(func(s string) bool {
		return len(s) >= 2 && len(s) <= 20
	})

	properties.Property("presence is the sorted set of bound names", prop.ForAll(
		func(names []string) bool {
			seen := make(map[string]bool)
			unique := names[:0]
			for _, n := range names {
				if !seen[n] {
					seen[n] = true
					unique = append(unique, n)
				}
			}

			r := NewRegistry()
			clients := make(map[string]*ws.Client)
			for _, n := range unique {
				c := ws.NewTestClient()
				r.Register(c)
				if err := r.BindIdentity(c, n, 1); err != nil {
					return false
				}
				clients[n] = c
			}

			want := append([]string(nil), unique...)
			sort.Strings(want)

			got := r.Presence()
			if len(got) != len(want) {
				return false
			}
			for i := range want {
				if got[i] != want[i] {
					return false
				}
			}

			// Dropping one connection removes exactly its name.
			if len(unique) > 0 {
				r.Unregister(clients[unique[0]])
				after := r.Presence()
				if len(after) != len(want)-1 {
					return false
				}
				for _, n := range after {
					if n == unique[0] {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOf(usernameGen),
	))

	properties.TestingRun(t)
}
