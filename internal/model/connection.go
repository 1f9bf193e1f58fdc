package model

import "time"

// AuthMethod selects how a connection profile authenticates against the
// remote host. Exactly one credential field must be present for the
// selected method.
type AuthMethod string

const (
	AuthMethodPassword AuthMethod = "password"
	AuthMethodKey      AuthMethod = "key"
)

// Connection is a stored remote-shell profile. Password and PrivateKey
// are pass-through credentials for the SSH collaborator; they are never
// inspected beyond presence validation and never serialized in list
// responses.
type Connection struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Hostname   string     `json:"hostname"`
	Port       int        `json:"port"`
	Username   string     `json:"username"`
	AuthMethod AuthMethod `json:"authMethod"`
	PrivateKey string     `json:"-"`
	Password   string     `json:"-"`
	IsActive   bool       `json:"isActive"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// ValidateCredentials checks that exactly one credential mode matching
// AuthMethod is present.
func (c *Connection) ValidateCredentials() error {
	switch c.AuthMethod {
	case AuthMethodPassword:
		if c.Password == "" {
			return ErrInvalidCredentials
		}
	case AuthMethodKey:
		if c.PrivateKey == "" {
			return ErrInvalidCredentials
		}
	default:
		return ErrInvalidCredentials
	}
	return nil
}

// CreateConnectionRequest is the request body for creating a profile.
type CreateConnectionRequest struct {
	Name       string `json:"name" binding:"required"`
	Hostname   string `json:"hostname" binding:"required"`
	Port       int    `json:"port"`
	Username   string `json:"username" binding:"required"`
	AuthMethod string `json:"authMethod" binding:"required"`
	Password   string `json:"password"`
	PrivateKey string `json:"privateKey"`
}
