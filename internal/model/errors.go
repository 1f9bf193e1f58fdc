package model

import "errors"

var (
	// ErrUsernameTaken is returned when another live connection already
	// holds the requested username.
	ErrUsernameTaken = errors.New("username already taken")

	// ErrAlreadyBound is returned when a connection that already has an
	// identity attempts to bind another one.
	ErrAlreadyBound = errors.New("connection already bound to an identity")

	// ErrInvalidUsername is returned when a username fails length
	// validation at bind time.
	ErrInvalidUsername = errors.New("username must be 2-20 characters")

	// ErrRoomNotFound is returned when a room lookup by name or id fails.
	ErrRoomNotFound = errors.New("room not found")

	// ErrUserNotFound is returned when a user lookup fails.
	ErrUserNotFound = errors.New("user not found")

	// ErrProfileNotFound is returned when a connection profile lookup fails.
	ErrProfileNotFound = errors.New("connection not found")

	// ErrInvalidCredentials is returned when a profile does not carry
	// exactly one usable credential mode.
	ErrInvalidCredentials = errors.New("invalid authentication method or missing credentials")

	// ErrSessionNotFound is returned when a shell session lookup fails.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionClosed is returned when an operation targets a session
	// that has already transitioned to closed.
	ErrSessionClosed = errors.New("session is closed")
)
