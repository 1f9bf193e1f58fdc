package shell

import (
	"testing"

	"github.com/termhub/backend/internal/model"
	"github.com/termhub/backend/internal/ws"
)

func testProfile(id int64) *model.Connection {
	return &model.Connection{
		ID:         id,
		Name:       "dev box",
		Hostname:   "dev.example.com",
		Port:       22,
		Username:   "deploy",
		AuthMethod: model.AuthMethodPassword,
		Password:   "secret",
	}
}

func TestSession_StateMachine(t *testing.T) {
	store := NewStore()
	sess := store.Create(ws.NewTestClient(), testProfile(1))

	if sess.State() != StatePending {
		t.Fatalf("expected pending, got %s", sess.State())
	}
	if _, ok := sess.Shell(); ok {
		t.Error("pending session must not expose a shell")
	}

	remote := newFakeRemote()
	if !sess.open(remote, nil) {
		t.Fatal("open from pending should succeed")
	}
	if sess.State() != StateOpen {
		t.Fatalf("expected open, got %s", sess.State())
	}
	if got, ok := sess.Shell(); !ok || got != RemoteShell(remote) {
		t.Error("open session should expose its shell")
	}

	shell, _, first := sess.transitionClosed()
	if !first || shell != RemoteShell(remote) {
		t.Error("first close should win and receive the shell")
	}
	if sess.State() != StateClosed {
		t.Fatalf("expected closed, got %s", sess.State())
	}
	if _, ok := sess.Shell(); ok {
		t.Error("closed session must not expose a shell")
	}

	// Later closers get nothing.
	if _, _, again := sess.transitionClosed(); again {
		t.Error("second close must not win")
	}
	// Reopening a closed session is impossible.
	if sess.open(newFakeRemote(), nil) {
		t.Error("open after close should fail")
	}
}

func TestSession_CloseWhilePending(t *testing.T) {
	store := NewStore()
	sess := store.Create(ws.NewTestClient(), testProfile(1))

	_, _, first := sess.transitionClosed()
	if !first {
		t.Fatal("closing a pending session should win")
	}
	if sess.open(newFakeRemote(), nil) {
		t.Error("handshake completing after close must not reopen the session")
	}
}

func TestStore_Indexes(t *testing.T) {
	store := NewStore()
	owner := ws.NewTestClient()
	other := ws.NewTestClient()

	s1 := store.Create(owner, testProfile(1))
	s2 := store.Create(owner, testProfile(1))
	s3 := store.Create(other, testProfile(2))

	if s1.ID == s2.ID {
		t.Error("session ids must be unique")
	}
	if store.Len() != 3 {
		t.Fatalf("expected 3 sessions, got %d", store.Len())
	}

	if got, ok := store.Get(s1.ID); !ok || got != s1 {
		t.Error("lookup by id failed")
	}
	if _, ok := store.Get("missing"); ok {
		t.Error("unknown id should not resolve")
	}

	if owned := store.OwnerSessions(owner); len(owned) != 2 {
		t.Errorf("expected 2 owned sessions, got %d", len(owned))
	}
	if n := store.CountForProfile(1); n != 2 {
		t.Errorf("expected 2 sessions for profile 1, got %d", n)
	}

	store.Remove(s1.ID)
	if _, ok := store.Get(s1.ID); ok {
		t.Error("removed session still resolves")
	}
	if owned := store.OwnerSessions(owner); len(owned) != 1 {
		t.Errorf("expected 1 owned session after removal, got %d", len(owned))
	}
	if n := store.CountForProfile(1); n != 1 {
		t.Errorf("expected 1 session for profile 1 after removal, got %d", n)
	}

	// Removing twice is harmless.
	store.Remove(s1.ID)

	store.Remove(s2.ID)
	store.Remove(s3.ID)
	if store.Len() != 0 {
		t.Errorf("expected empty store, got %d", store.Len())
	}
}
