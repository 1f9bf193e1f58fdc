package shell

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"path/filepath"

	"github.com/termhub/backend/internal/model"
	"github.com/termhub/backend/internal/recorder"
	"github.com/termhub/backend/internal/repository"
	"github.com/termhub/backend/internal/ws"
)

const relayBufferSize = 4096

// Proxy owns the lifecycle of proxied shell sessions: establish, relay,
// resize, teardown. Each session's relay runs on its own goroutine so
// no session blocks another connection's service.
type Proxy struct {
	store    *Store
	profiles *repository.ConnectionRepository
	dialer   Dialer

	// recordDir enables transcript recording when non-empty.
	recordDir string
}

// Config holds configuration for the proxy.
type Config struct {
	// RecordDir is the directory for session transcripts. Empty disables
	// recording.
	RecordDir string
}

// NewProxy creates a proxy over the given store, profile storage and
// dialer.
func NewProxy(store *Store, profiles *repository.ConnectionRepository, dialer Dialer, config Config) *Proxy {
	return &Proxy{
		store:     store,
		profiles:  profiles,
		dialer:    dialer,
		recordDir: config.RecordDir,
	}
}

// HandleMessage processes one inbound frame from a client.
func (p *Proxy) HandleMessage(ctx context.Context, c *ws.Client, raw []byte) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		p.sendError(c, "Invalid message format")
		return
	}

	switch msg.Type {
	case MessageTypeConnect:
		p.Connect(ctx, c, msg.ConnectionID)
	case MessageTypeInput:
		p.Input(msg.SessionID, msg.Data)
	case MessageTypeResize:
		p.Resize(msg.SessionID, msg.Cols, msg.Rows)
	case MessageTypeDisconnect:
		p.Disconnect(ctx, msg.SessionID)
	default:
		p.sendError(c, "Invalid message format")
	}
}

// HandleClientGone tears down every session owned by a connection that
// disappeared. No replies go toward the dead channel; cleanup is
// internal only.
func (p *Proxy) HandleClientGone(ctx context.Context, c *ws.Client) {
	for _, sess := range p.store.OwnerSessions(c) {
		p.closeSession(ctx, sess, false)
	}
}

// Connect resolves a stored profile, creates a pending session and
// establishes the remote shell asynchronously.
func (p *Proxy) Connect(ctx context.Context, c *ws.Client, connectionID int64) {
	profile, err := p.profiles.Get(ctx, connectionID)
	if errors.Is(err, model.ErrProfileNotFound) {
		p.sendError(c, "Connection not found")
		return
	}
	if err != nil {
		log.Printf("Failed to load connection %d: %v", connectionID, err)
		p.sendError(c, "Failed to load connection")
		return
	}

	if err := profile.ValidateCredentials(); err != nil {
		p.sendError(c, err.Error())
		return
	}

	sess := p.store.Create(c, profile)

	// The handshake may block for its full timeout; it must not stall
	// the servicing of other frames on this connection.
	go p.establish(ctx, sess)
}

// establish performs the remote handshake for a pending session and, on
// success, starts the relay.
func (p *Proxy) establish(ctx context.Context, sess *Session) {
	remote, err := p.dialer.Dial(ctx, sess.Profile)
	if err != nil {
		p.sendError(sess.Owner, err.Error())
		if _, _, first := sess.transitionClosed(); first {
			p.store.Remove(sess.ID)
		}
		return
	}

	rec := p.newRecorder(sess)

	if !sess.open(remote, rec) {
		// Closed while the handshake was in flight (owner went away or
		// an explicit disconnect raced us). Release the remote end.
		remote.Close()
		if rec != nil {
			rec.Close()
		}
		return
	}

	if err := p.profiles.SetActive(ctx, sess.Profile.ID, true); err != nil {
		log.Printf("Failed to mark connection %d active: %v", sess.Profile.ID, err)
	}

	p.send(sess.Owner, &Message{
		Type:      MessageTypeConnected,
		SessionID: sess.ID,
		Connection: &ConnectionInfo{
			ID:       sess.Profile.ID,
			Name:     sess.Profile.Name,
			Hostname: sess.Profile.Hostname,
			Username: sess.Profile.Username,
		},
	})

	go p.relay(sess, remote, rec)
}

// relay forwards remote bytes to the owning connection, tagged with the
// session id. Chunks are forwarded as read, never reordered or merged
// across reads, so byte order within the session is preserved.
func (p *Proxy) relay(sess *Session, remote RemoteShell, rec *recorder.Recorder) {
	buf := make([]byte, relayBufferSize)
	for {
		n, err := remote.Read(buf)
		if n > 0 {
			if rec != nil {
				rec.WriteOutput(buf[:n])
			}
			p.send(sess.Owner, &Message{
				Type:      MessageTypeOutput,
				SessionID: sess.ID,
				Data:      string(buf[:n]),
			})
		}
		if err != nil {
			break
		}
	}

	p.closeSession(context.Background(), sess, true)
}

// Input writes keystrokes through to an open session. Input against a
// pending or closed session is silently dropped.
func (p *Proxy) Input(sessionID, data string) {
	sess, ok := p.store.Get(sessionID)
	if !ok {
		return
	}
	remote, ok := sess.Shell()
	if !ok {
		return
	}

	sess.mu.Lock()
	rec := sess.rec
	sess.mu.Unlock()
	if rec != nil {
		rec.WriteInput([]byte(data))
	}

	if _, err := remote.Write([]byte(data)); err != nil {
		log.Printf("Failed to write to session %s: %v", sessionID, err)
	}
}

// Resize forwards a window-size change to an open session, otherwise
// drops it.
func (p *Proxy) Resize(sessionID string, cols, rows int) {
	if cols <= 0 || rows <= 0 {
		return
	}

	sess, ok := p.store.Get(sessionID)
	if !ok {
		return
	}
	remote, ok := sess.Shell()
	if !ok {
		return
	}

	if err := remote.Resize(cols, rows); err != nil {
		log.Printf("Failed to resize session %s: %v", sessionID, err)
	}
}

// Disconnect tears down a session on client request. Unknown ids and
// repeated disconnects are silent successes.
func (p *Proxy) Disconnect(ctx context.Context, sessionID string) {
	sess, ok := p.store.Get(sessionID)
	if !ok {
		return
	}
	p.closeSession(ctx, sess, true)
}

// closeSession is the one teardown path. The state machine guarantees
// the remote channel is released and the disconnected notice emitted
// exactly once even when a remote close and a client disconnect race.
func (p *Proxy) closeSession(ctx context.Context, sess *Session, notify bool) {
	remote, rec, first := sess.transitionClosed()
	if !first {
		return
	}

	if remote != nil {
		remote.Close()
	}
	if rec != nil {
		rec.Close()
	}

	p.store.Remove(sess.ID)

	if p.store.CountForProfile(sess.Profile.ID) == 0 {
		if err := p.profiles.SetActive(ctx, sess.Profile.ID, false); err != nil {
			log.Printf("Failed to mark connection %d inactive: %v", sess.Profile.ID, err)
		}
	}

	if notify {
		p.send(sess.Owner, &Message{
			Type:      MessageTypeDisconnected,
			SessionID: sess.ID,
		})
	}
}

// newRecorder opens a transcript recorder for a session when recording
// is configured. Recording failures never affect the session.
func (p *Proxy) newRecorder(sess *Session) *recorder.Recorder {
	if p.recordDir == "" {
		return nil
	}

	path := filepath.Join(p.recordDir, sess.ID+".cast")
	rec, err := recorder.New(path, initialCols, initialRows)
	if err != nil {
		log.Printf("Failed to start recording for session %s: %v", sess.ID, err)
		return nil
	}
	return rec
}

func (p *Proxy) send(c *ws.Client, msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal message: %v", err)
		return
	}
	c.Send(data)
}

func (p *Proxy) sendError(c *ws.Client, reason string) {
	p.send(c, &Message{Type: MessageTypeError, ErrorText: reason})
}
