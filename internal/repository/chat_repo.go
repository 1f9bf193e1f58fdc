// Package repository provides data access for chat and connection records.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/termhub/backend/internal/model"
)

// ChatRepository provides data access for rooms, messages and users.
type ChatRepository struct {
	db *sql.DB
}

// NewChatRepository creates a new ChatRepository.
func NewChatRepository(db *sql.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// ListRooms returns all rooms ordered by creation.
func (r *ChatRepository) ListRooms(ctx context.Context) ([]*model.Room, error) {
	query := `
		SELECT id, name, description, is_private, created_at
		FROM chat_rooms
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*model.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rooms: %w", err)
	}

	return rooms, nil
}

// GetRoom retrieves a room by its id.
func (r *ChatRepository) GetRoom(ctx context.Context, id int64) (*model.Room, error) {
	query := `
		SELECT id, name, description, is_private, created_at
		FROM chat_rooms
		WHERE id = ?
	`
	return r.getRoom(ctx, query, id)
}

// GetRoomByName retrieves a room by its unique name.
func (r *ChatRepository) GetRoomByName(ctx context.Context, name string) (*model.Room, error) {
	query := `
		SELECT id, name, description, is_private, created_at
		FROM chat_rooms
		WHERE name = ?
	`
	return r.getRoom(ctx, query, name)
}

func (r *ChatRepository) getRoom(ctx context.Context, query string, arg interface{}) (*model.Room, error) {
	room := &model.Room{}
	var description sql.NullString

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&room.ID,
		&room.Name,
		&description,
		&room.IsPrivate,
		&room.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, model.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	if description.Valid {
		room.Description = description.String
	}

	return room, nil
}

// CreateRoom inserts a new room and returns it with its assigned id.
func (r *ChatRepository) CreateRoom(ctx context.Context, name, description string, isPrivate bool) (*model.Room, error) {
	query := `
		INSERT INTO chat_rooms (name, description, is_private, created_at)
		VALUES (?, ?, ?, ?)
	`

	now := time.Now()
	result, err := r.db.ExecContext(ctx, query, name, description, isPrivate, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get room id: %w", err)
	}

	return &model.Room{
		ID:          id,
		Name:        name,
		Description: description,
		IsPrivate:   isPrivate,
		CreatedAt:   now,
	}, nil
}

// AppendMessage inserts a message into a room's history and returns the
// stored record. Messages are append-only and never mutated.
func (r *ChatRepository) AppendMessage(ctx context.Context, roomID int64, username, content string, kind model.MessageKind, seq uint64) (*model.ChatMessage, error) {
	query := `
		INSERT INTO chat_messages (room_id, username, content, message_type, seq, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	now := time.Now()
	result, err := r.db.ExecContext(ctx, query, roomID, username, content, string(kind), seq, now)
	if err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get message id: %w", err)
	}

	return &model.ChatMessage{
		ID:        id,
		RoomID:    roomID,
		Username:  username,
		Content:   content,
		Kind:      kind,
		Seq:       seq,
		CreatedAt: now,
	}, nil
}

// RecentMessages returns the newest limit messages in a room, ordered
// oldest-first. Ties on creation time break by insertion id.
func (r *ChatRepository) RecentMessages(ctx context.Context, roomID int64, limit int) ([]*model.ChatMessage, error) {
	query := `
		SELECT id, room_id, username, content, message_type, seq, created_at
		FROM (
			SELECT id, room_id, username, content, message_type, seq, created_at
			FROM chat_messages
			WHERE room_id = ?
			ORDER BY id DESC
			LIMIT ?
		)
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []*model.ChatMessage
	for rows.Next() {
		msg := &model.ChatMessage{}
		var kind string

		err := rows.Scan(
			&msg.ID,
			&msg.RoomID,
			&msg.Username,
			&msg.Content,
			&kind,
			&msg.Seq,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.Kind = model.MessageKind(kind)
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}

// LastSeq returns the highest sequence number assigned in a room, or 0
// if the room has no messages. Used to resume numbering after restart.
func (r *ChatRepository) LastSeq(ctx context.Context, roomID int64) (uint64, error) {
	query := `SELECT COALESCE(MAX(seq), 0) FROM chat_messages WHERE room_id = ?`

	var seq uint64
	if err := r.db.QueryRowContext(ctx, query, roomID).Scan(&seq); err != nil {
		return 0, fmt.Errorf("failed to get last seq: %w", err)
	}
	return seq, nil
}

// GetUserByName retrieves a user by username.
func (r *ChatRepository) GetUserByName(ctx context.Context, username string) (*model.User, error) {
	query := `
		SELECT id, username, display_name, is_online, last_seen, created_at
		FROM users
		WHERE username = ?
	`

	user := &model.User{}
	var displayName sql.NullString

	err := r.db.QueryRowContext(ctx, query, username).Scan(
		&user.ID,
		&user.Username,
		&displayName,
		&user.IsOnline,
		&user.LastSeen,
		&user.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, model.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if displayName.Valid {
		user.DisplayName = displayName.String
	}

	return user, nil
}

// CreateUser inserts a new user row and returns it.
func (r *ChatRepository) CreateUser(ctx context.Context, username string) (*model.User, error) {
	query := `
		INSERT INTO users (username, is_online, last_seen, created_at)
		VALUES (?, 1, ?, ?)
	`

	now := time.Now()
	result, err := r.db.ExecContext(ctx, query, username, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get user id: %w", err)
	}

	return &model.User{
		ID:        id,
		Username:  username,
		IsOnline:  true,
		LastSeen:  now,
		CreatedAt: now,
	}, nil
}

// SetOnline updates a user's online flag and last-seen timestamp.
// Updating an unknown username is a no-op.
func (r *ChatRepository) SetOnline(ctx context.Context, username string, online bool) error {
	query := `
		UPDATE users
		SET is_online = ?, last_seen = ?
		WHERE username = ?
	`

	if _, err := r.db.ExecContext(ctx, query, online, time.Now(), username); err != nil {
		return fmt.Errorf("failed to update online status: %w", err)
	}
	return nil
}

// ListOnline returns all users currently flagged online.
func (r *ChatRepository) ListOnline(ctx context.Context) ([]*model.User, error) {
	query := `
		SELECT id, username, display_name, is_online, last_seen, created_at
		FROM users
		WHERE is_online = 1
		ORDER BY username
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list online users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user := &model.User{}
		var displayName sql.NullString

		err := rows.Scan(
			&user.ID,
			&user.Username,
			&displayName,
			&user.IsOnline,
			&user.LastSeen,
			&user.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}

		if displayName.Valid {
			user.DisplayName = displayName.String
		}

		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRoom(rows rowScanner) (*model.Room, error) {
	room := &model.Room{}
	var description sql.NullString

	err := rows.Scan(
		&room.ID,
		&room.Name,
		&description,
		&room.IsPrivate,
		&room.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan room: %w", err)
	}

	if description.Valid {
		room.Description = description.String
	}

	return room, nil
}
