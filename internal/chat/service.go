package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/termhub/backend/internal/model"
	"github.com/termhub/backend/internal/repository"
	"github.com/termhub/backend/internal/ws"
)

const (
	// DefaultHistoryLimit is the number of recent messages delivered on
	// join or room switch.
	DefaultHistoryLimit = 20

	// DefaultRoomName is the room every new identity lands in.
	DefaultRoomName = "general"
)

// Config holds configuration for the chat service.
type Config struct {
	HistoryLimit int
	DefaultRoom  string
}

// Service routes inbound chat frames: identity binding, plain messages,
// and slash commands. It is the only writer of chat state; per-room
// sequencing serializes every event that lands in a room's history.
type Service struct {
	registry *Registry
	router   *Router
	repo     *repository.ChatRepository

	historyLimit int
	defaultRoom  string

	seqMu sync.Mutex
	seqs  map[int64]*roomSequence
}

// roomSequence is the serialization point for one room. Its lock is held
// across reserve+persist+broadcast so messages in a room go out in
// sequence order.
type roomSequence struct {
	mu     sync.Mutex
	loaded bool
	last   uint64
}

// NewService creates a chat service.
func NewService(registry *Registry, router *Router, repo *repository.ChatRepository, config Config) *Service {
	if config.HistoryLimit == 0 {
		config.HistoryLimit = DefaultHistoryLimit
	}
	if config.DefaultRoom == "" {
		config.DefaultRoom = DefaultRoomName
	}

	return &Service{
		registry:     registry,
		router:       router,
		repo:         repo,
		historyLimit: config.HistoryLimit,
		defaultRoom:  config.DefaultRoom,
		seqs:         make(map[int64]*roomSequence),
	}
}

// HandleConnection registers a newly accepted duplex channel.
func (s *Service) HandleConnection(c *ws.Client) {
	s.registry.Register(c)
}

// HandleMessage processes one inbound frame from a client. A malformed
// frame produces an error reply; the connection stays open.
func (s *Service) HandleMessage(ctx context.Context, c *ws.Client, raw []byte) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		s.router.SendTo(c, errorMessage("Invalid message format"))
		return
	}

	switch msg.Type {
	case MessageTypeJoin:
		s.handleJoin(ctx, c, msg.Username)
	case MessageTypeMessage:
		s.handleChat(ctx, c, msg.Content)
	case MessageTypeCommand:
		cmd := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(msg.Command), "/"))
		s.handleCommand(ctx, c, cmd, msg.Args)
	default:
		s.router.SendTo(c, errorMessage(fmt.Sprintf("Unknown message type: %s", msg.Type)))
	}
}

// HandleDisconnect tears down a channel: the registry entry, the room
// membership and the presence slot all go, then the leave is announced.
// Safe to call more than once; only the first call does the work.
func (s *Service) HandleDisconnect(ctx context.Context, c *ws.Client) {
	username, roomID, wasBound := s.registry.Unregister(c)
	if !wasBound {
		return
	}

	if err := s.repo.SetOnline(ctx, username, false); err != nil {
		log.Printf("Failed to update online status for %s: %v", username, err)
	}

	s.postSystem(ctx, roomID, username, username+" left the room")
	s.broadcastPresence()
}

// handleJoin binds an identity to the connection and places it in the
// default room.
func (s *Service) handleJoin(ctx context.Context, c *ws.Client, username string) {
	username = strings.TrimSpace(username)
	if !model.ValidUsername(username) {
		s.router.SendTo(c, errorMessage(model.ErrInvalidUsername.Error()))
		return
	}

	room, err := s.repo.GetRoomByName(ctx, s.defaultRoom)
	if err != nil {
		log.Printf("Failed to resolve default room %q: %v", s.defaultRoom, err)
		s.router.SendTo(c, errorMessage("Failed to resolve default room"))
		return
	}

	if err := s.registry.BindIdentity(c, username, room.ID); err != nil {
		s.router.SendTo(c, errorMessage(err.Error()))
		return
	}

	// Mirror the binding into storage. Failures are logged and surfaced
	// but never undo the live binding.
	if _, err := s.repo.GetUserByName(ctx, username); errors.Is(err, model.ErrUserNotFound) {
		if _, err := s.repo.CreateUser(ctx, username); err != nil {
			log.Printf("Failed to create user %s: %v", username, err)
			s.router.SendTo(c, errorMessage("Failed to persist user"))
		}
	} else if err != nil {
		log.Printf("Failed to look up user %s: %v", username, err)
		s.router.SendTo(c, errorMessage("Failed to persist user"))
	} else if err := s.repo.SetOnline(ctx, username, true); err != nil {
		log.Printf("Failed to update online status for %s: %v", username, err)
		s.router.SendTo(c, errorMessage("Failed to persist user"))
	}

	s.router.SendTo(c, &Message{Type: MessageTypeJoined, Username: username, Room: room.Name})
	s.sendHistory(ctx, c, room.ID)
	s.postSystem(ctx, room.ID, username, username+" joined the room")
	s.broadcastPresence()
}

// handleChat persists and fans out a plain message to the sender's
// current room, sender included. Slash-prefixed content is routed to the
// command interpreter instead.
func (s *Service) handleChat(ctx context.Context, c *ws.Client, content string) {
	username, ok := s.registry.Username(c)
	if !ok {
		s.router.SendTo(c, errorMessage("Join with a username before sending messages"))
		return
	}

	if cmd, args, isCommand := ParseCommand(content); isCommand {
		s.handleCommand(ctx, c, cmd, args)
		return
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return
	}

	roomID, _ := s.registry.CurrentRoom(c)

	rs := s.roomSeq(roomID)
	rs.mu.Lock()
	defer rs.mu.Unlock()

	seq, err := rs.reserve(ctx, s.repo, roomID)
	if err != nil {
		log.Printf("Failed to reserve sequence for room %d: %v", roomID, err)
		s.router.SendTo(c, errorMessage("Failed to store message"))
		return
	}

	stored, err := s.repo.AppendMessage(ctx, roomID, username, content, model.MessageKindMessage, seq)
	if err != nil {
		log.Printf("Failed to store message in room %d: %v", roomID, err)
		s.router.SendTo(c, errorMessage("Failed to store message"))
		return
	}

	// The sender is included so their transcript renders in the same
	// order everyone else sees.
	s.router.BroadcastToRoom(roomID, &Message{
		Type:      MessageTypeMessage,
		ID:        stored.ID,
		Username:  stored.Username,
		Content:   stored.Content,
		Seq:       stored.Seq,
		Timestamp: &stored.CreatedAt,
	}, nil)
}

// handleCommand dispatches a parsed slash command.
func (s *Service) handleCommand(ctx context.Context, c *ws.Client, command string, args []string) {
	username, ok := s.registry.Username(c)
	if !ok {
		s.router.SendTo(c, errorMessage("Join with a username before sending commands"))
		return
	}
	roomID, _ := s.registry.CurrentRoom(c)

	s.appendCommandEcho(ctx, roomID, username, command, args)

	switch command {
	case CommandHelp:
		s.router.SendTo(c, commandResponse(helpText))
	case CommandUsers:
		s.router.SendTo(c, commandResponse("Online users: "+strings.Join(s.registry.Presence(), ", ")))
	case CommandRooms:
		s.respondRooms(ctx, c)
	case CommandWhoami:
		s.router.SendTo(c, commandResponse("You are "+username))
	case CommandClear:
		s.router.SendTo(c, &Message{Type: MessageTypeClearTerminal})
	case CommandJoin:
		s.switchRoom(ctx, c, username, args)
	default:
		s.router.SendTo(c, commandResponse("Unknown command: /"+command))
	}
}

// switchRoom implements /join: leave notice to the old room, the switch,
// a join notice and history for the new one.
func (s *Service) switchRoom(ctx context.Context, c *ws.Client, username string, args []string) {
	if len(args) == 0 {
		s.router.SendTo(c, commandResponse("Usage: /join <room>"))
		return
	}
	roomName := args[0]

	room, err := s.repo.GetRoomByName(ctx, roomName)
	if errors.Is(err, model.ErrRoomNotFound) {
		s.router.SendTo(c, commandResponse("Room '"+roomName+"' not found"))
		return
	}
	if err != nil {
		log.Printf("Failed to look up room %q: %v", roomName, err)
		s.router.SendTo(c, errorMessage("Failed to look up room"))
		return
	}

	oldRoomID, err := s.registry.SwitchRoom(c, room.ID)
	if err != nil {
		return
	}

	s.postSystem(ctx, oldRoomID, username, username+" left the room")
	s.router.SendTo(c, &Message{Type: MessageTypeRoomChanged, Room: room.Name})
	s.postSystem(ctx, room.ID, username, username+" joined the room")
	s.sendHistory(ctx, c, room.ID)
}

// respondRooms replies with the room list, name and description each.
func (s *Service) respondRooms(ctx context.Context, c *ws.Client) {
	rooms, err := s.repo.ListRooms(ctx)
	if err != nil {
		log.Printf("Failed to list rooms: %v", err)
		s.router.SendTo(c, errorMessage("Failed to list rooms"))
		return
	}

	lines := make([]string, 0, len(rooms)+1)
	lines = append(lines, "Available rooms:")
	for _, room := range rooms {
		line := "  " + room.Name
		if room.Description != "" {
			line += " - " + room.Description
		}
		lines = append(lines, line)
	}
	s.router.SendTo(c, commandResponse(strings.Join(lines, "\n")))
}

// sendHistory delivers the most recent messages of a room to one client,
// oldest first.
func (s *Service) sendHistory(ctx context.Context, c *ws.Client, roomID int64) {
	messages, err := s.repo.RecentMessages(ctx, roomID, s.historyLimit)
	if err != nil {
		log.Printf("Failed to load history for room %d: %v", roomID, err)
		s.router.SendTo(c, errorMessage("Failed to load room history"))
		return
	}

	entries := make([]HistoryEntry, 0, len(messages))
	for _, m := range messages {
		entries = append(entries, historyEntry(m))
	}
	s.router.SendTo(c, &Message{Type: MessageTypeMessageHistory, Messages: entries})
}

// postSystem persists a system notice into a room's history and
// broadcasts it to the room's current members.
func (s *Service) postSystem(ctx context.Context, roomID int64, author, content string) {
	rs := s.roomSeq(roomID)
	rs.mu.Lock()
	defer rs.mu.Unlock()

	seq, err := rs.reserve(ctx, s.repo, roomID)
	if err != nil {
		log.Printf("Failed to reserve sequence for room %d: %v", roomID, err)
		return
	}

	stored, err := s.repo.AppendMessage(ctx, roomID, author, content, model.MessageKindSystem, seq)
	if err != nil {
		log.Printf("Failed to store system message in room %d: %v", roomID, err)
		return
	}

	s.router.BroadcastToRoom(roomID, &Message{
		Type:      MessageTypeSystemMessage,
		Content:   stored.Content,
		Timestamp: &stored.CreatedAt,
	}, nil)
}

// appendCommandEcho records what was typed so history replays show it.
// Echoes are history-only; they are never broadcast live.
func (s *Service) appendCommandEcho(ctx context.Context, roomID int64, username, command string, args []string) {
	echo := "/" + command
	if len(args) > 0 {
		echo += " " + strings.Join(args, " ")
	}

	rs := s.roomSeq(roomID)
	rs.mu.Lock()
	defer rs.mu.Unlock()

	seq, err := rs.reserve(ctx, s.repo, roomID)
	if err != nil {
		log.Printf("Failed to reserve sequence for room %d: %v", roomID, err)
		return
	}
	if _, err := s.repo.AppendMessage(ctx, roomID, username, echo, model.MessageKindCommand, seq); err != nil {
		log.Printf("Failed to store command echo in room %d: %v", roomID, err)
	}
}

// broadcastPresence pushes the current presence set to every bound
// connection.
func (s *Service) broadcastPresence() {
	s.router.BroadcastToAll(&Message{
		Type:  MessageTypeUsersUpdate,
		Users: s.registry.Presence(),
	}, nil)
}

// roomSeq returns the serialization point for a room, creating it on
// first use.
func (s *Service) roomSeq(roomID int64) *roomSequence {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()

	rs, ok := s.seqs[roomID]
	if !ok {
		rs = &roomSequence{}
		s.seqs[roomID] = rs
	}
	return rs
}

// reserve hands out the next sequence number for a room, loading the
// high-water mark from storage on first use. Callers hold rs.mu.
func (rs *roomSequence) reserve(ctx context.Context, repo *repository.ChatRepository, roomID int64) (uint64, error) {
	if !rs.loaded {
		last, err := repo.LastSeq(ctx, roomID)
		if err != nil {
			return 0, err
		}
		rs.last = last
		rs.loaded = true
	}
	rs.last++
	return rs.last, nil
}
