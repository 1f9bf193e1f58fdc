package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/termhub/backend/internal/model"
)

// ConnectionRepository provides data access for remote-shell connection
// profiles.
type ConnectionRepository struct {
	db *sql.DB
}

// NewConnectionRepository creates a new ConnectionRepository.
func NewConnectionRepository(db *sql.DB) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

// Create inserts a new connection profile and returns it.
func (r *ConnectionRepository) Create(ctx context.Context, conn *model.Connection) (*model.Connection, error) {
	query := `
		INSERT INTO connections (name, hostname, port, username, auth_method, password, private_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	if conn.Port == 0 {
		conn.Port = 22
	}
	conn.CreatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		conn.Name,
		conn.Hostname,
		conn.Port,
		conn.Username,
		string(conn.AuthMethod),
		nullable(conn.Password),
		nullable(conn.PrivateKey),
		conn.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get connection id: %w", err)
	}
	conn.ID = id

	return conn, nil
}

// Get retrieves a connection profile by id, credentials included.
func (r *ConnectionRepository) Get(ctx context.Context, id int64) (*model.Connection, error) {
	query := `
		SELECT id, name, hostname, port, username, auth_method, password, private_key, is_active, created_at
		FROM connections
		WHERE id = ?
	`

	conn := &model.Connection{}
	var authMethod string
	var password, privateKey sql.NullString

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&conn.ID,
		&conn.Name,
		&conn.Hostname,
		&conn.Port,
		&conn.Username,
		&authMethod,
		&password,
		&privateKey,
		&conn.IsActive,
		&conn.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, model.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}

	conn.AuthMethod = model.AuthMethod(authMethod)
	if password.Valid {
		conn.Password = password.String
	}
	if privateKey.Valid {
		conn.PrivateKey = privateKey.String
	}

	return conn, nil
}

// List returns all connection profiles without credential material.
func (r *ConnectionRepository) List(ctx context.Context) ([]*model.Connection, error) {
	query := `
		SELECT id, name, hostname, port, username, auth_method, is_active, created_at
		FROM connections
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	defer rows.Close()

	var conns []*model.Connection
	for rows.Next() {
		conn := &model.Connection{}
		var authMethod string

		err := rows.Scan(
			&conn.ID,
			&conn.Name,
			&conn.Hostname,
			&conn.Port,
			&conn.Username,
			&authMethod,
			&conn.IsActive,
			&conn.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}
		conn.AuthMethod = model.AuthMethod(authMethod)

		conns = append(conns, conn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating connections: %w", err)
	}

	return conns, nil
}

// Delete removes a connection profile.
func (r *ConnectionRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM connections WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete connection: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return model.ErrProfileNotFound
	}

	return nil
}

// SetActive updates the activity flag on a profile. The flag tracks
// whether any live proxy session is open against it.
func (r *ConnectionRepository) SetActive(ctx context.Context, id int64, active bool) error {
	query := `UPDATE connections SET is_active = ? WHERE id = ?`

	if _, err := r.db.ExecContext(ctx, query, active, id); err != nil {
		return fmt.Errorf("failed to update connection activity: %w", err)
	}
	return nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
