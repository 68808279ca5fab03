// Package console implements game.Server for dedicated servers that are only reachable through their
// console: commands are typed into stdin and state is followed by reading the log.
package console

import (
	"sort"
	"sync"

	"github.com/reedfamily/serverkit/internal/game"
)

// Dialect provides the game-specific behavior of a console server.
type Dialect interface {
	// Game returns the game identifier (e.g., "minecraft", "vintagestory")
	Game() string

	// ParseLogLine extracts structured events from log lines
	ParseLogLine(line string) *LogEvent

	// PlayerCommand returns the command to list online players
	PlayerCommand() string

	// StopCommand returns the graceful stop command for the server
	StopCommand() string

	// DefaultPort returns the port the game listens on inside its container
	DefaultPort() uint16

	// IDFormat returns the format player ids are given in
	IDFormat() game.IDFormat

	Clock() Clock

	// PlayerLimit returns the range of player limits the game accepts
	PlayerLimit() (lo, hi int)

	Commands() Commands

	// SetTimeCommand returns the command setting the in-game clock to native
	SetTimeCommand(native float64) string
}

type EventType string

const (
	EventJoin    EventType = "player_join"
	EventLeave   EventType = "player_leave"
	EventChat    EventType = "chat"
	EventPlayers EventType = "players" // reply to PlayerCommand, Players holds everyone online
	EventError   EventType = "error"
)

type LogEvent struct {
	Type    EventType
	Player  string
	Players []string
	Message string
}

// Commands are the console command tokens of a dialect. Empty tokens are unsupported.
type Commands struct {
	Say        string
	Tell       string
	Kick       string
	Save       string
	MaxPlayers string
}

// Clock describes how a game's clock runs. Native values wrap at DayLength and advance Rate native
// units per real second.
type Clock struct {
	Day       game.DayClock
	Rate      float64
	DayLength float64
}

var (
	mu       sync.RWMutex
	dialects = map[string]Dialect{}
)

func Register(d Dialect) {
	mu.Lock()
	defer mu.Unlock()
	dialects[d.Game()] = d
}

// Lookup returns the dialect registered for game, or nil.
func Lookup(game string) Dialect {
	mu.RLock()
	defer mu.RUnlock()
	return dialects[game]
}

// Games returns the registered game identifiers in order.
func Games() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
