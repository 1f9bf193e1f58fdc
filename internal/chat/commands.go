package chat

import "strings"

// Recognized slash commands.
const (
	CommandHelp   = "help"
	CommandUsers  = "users"
	CommandRooms  = "rooms"
	CommandJoin   = "join"
	CommandClear  = "clear"
	CommandWhoami = "whoami"
)

const helpText = `Available commands:
/help - show this help
/users - list online users
/rooms - list available rooms
/join <room> - switch to another room
/clear - clear your terminal
/whoami - show your username`

// ParseCommand splits slash-prefixed content into a command name and its
// arguments. ok is false when the content is not a command at all.
func ParseCommand(content string) (command string, args []string, ok bool) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "/") {
		return "", nil, false
	}

	fields := strings.Fields(content[1:])
	if len(fields) == 0 {
		return "", nil, true
	}
	return strings.ToLower(fields[0]), fields[1:], true
}
