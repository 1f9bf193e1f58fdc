package shell

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/termhub/backend/internal/model"
)

const (
	// DefaultDialTimeout bounds the TCP connect and SSH handshake.
	DefaultDialTimeout = 15 * time.Second

	// Initial pty geometry until the client sends a resize.
	initialCols = 80
	initialRows = 24
)

// RemoteShell is one interactive remote byte-stream channel. Reads
// preserve the remote transport's byte order; Close is safe to call
// more than once.
type RemoteShell interface {
	io.Reader
	io.Writer
	Resize(cols, rows int) error
	Close() error
}

// Dialer establishes remote shells from stored connection profiles. The
// proxy depends on this seam; tests substitute a fake remote end.
type Dialer interface {
	Dial(ctx context.Context, profile *model.Connection) (RemoteShell, error)
}

// SSHDialer opens remote shells over SSH.
type SSHDialer struct {
	// Timeout bounds the TCP connect and SSH handshake. Zero means
	// DefaultDialTimeout.
	Timeout time.Duration
}

// Dial connects to the profile's host, authenticates with its
// credential, and requests an interactive shell on a pty. Handshake and
// auth failures come back with the upstream's message text; a
// post-handshake failure to obtain the shell channel is reported
// separately.
func (d *SSHDialer) Dial(ctx context.Context, profile *model.Connection) (RemoteShell, error) {
	if err := profile.ValidateCredentials(); err != nil {
		return nil, err
	}

	timeout := d.Timeout
	if timeout == 0 {
		timeout = DefaultDialTimeout
	}

	config := &ssh.ClientConfig{
		User:            profile.Username,
		Timeout:         timeout,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}

	switch profile.AuthMethod {
	case model.AuthMethodPassword:
		config.Auth = []ssh.AuthMethod{ssh.Password(profile.Password)}
	case model.AuthMethodKey:
		signer, err := ssh.ParsePrivateKey([]byte(profile.PrivateKey))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrInvalidCredentials, err)
		}
		config.Auth = []ssh.AuthMethod{ssh.PublicKeys(signer)}
	}

	addr := net.JoinHostPort(profile.Hostname, strconv.Itoa(profile.Port))
	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, fmt.Errorf("SSH connection failed: %v", err)
	}

	session, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("Failed to start shell: %v", err)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := session.RequestPty("xterm-256color", initialRows, initialCols, modes); err != nil {
		session.Close()
		client.Close()
		return nil, fmt.Errorf("Failed to start shell: %v", err)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		client.Close()
		return nil, fmt.Errorf("Failed to start shell: %v", err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		client.Close()
		return nil, fmt.Errorf("Failed to start shell: %v", err)
	}
	// Stderr merges into the pty stream on the remote side once a pty is
	// allocated.

	if err := session.Shell(); err != nil {
		session.Close()
		client.Close()
		return nil, fmt.Errorf("Failed to start shell: %v", err)
	}

	return &sshShell{
		client:  client,
		session: session,
		stdin:   stdin,
		stdout:  stdout,
	}, nil
}

// sshShell adapts an ssh client+session pair to RemoteShell.
type sshShell struct {
	client  *ssh.Client
	session *ssh.Session
	stdin   io.WriteCloser
	stdout  io.Reader

	closeOnce sync.Once
	closeErr  error
}

func (s *sshShell) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

func (s *sshShell) Write(p []byte) (int, error) {
	return s.stdin.Write(p)
}

func (s *sshShell) Resize(cols, rows int) error {
	return s.session.WindowChange(rows, cols)
}

func (s *sshShell) Close() error {
	s.closeOnce.Do(func() {
		s.session.Close()
		s.closeErr = s.client.Close()
	})
	return s.closeErr
}
