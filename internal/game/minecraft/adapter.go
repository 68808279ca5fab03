// Package minecraft is the console dialect of the Minecraft dedicated server.
package minecraft

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/reedfamily/serverkit/internal/game"
	"github.com/reedfamily/serverkit/internal/game/console"
)

func init() {
	console.Register(&Adapter{})
}

type Adapter struct{}

const (
	ticksPerDay    = 24000
	ticksPerSecond = 20
	maxPlayers     = math.MaxInt32
)

// serverLine matches the prefix of a message logged by the server itself, e.g.
// "[12:00:01] [Server thread/INFO]: " or "[12:00:01] [Server thread/INFO] [minecraft/DedicatedServer]: ".
// Player chat follows the same prefix but always starts with "<name>".
const serverLine = `^\[[^\]]+\] \[Server thread/INFO\](?: \[[^\]]+\])?: `

var (
	joinRe  = regexp.MustCompile(serverLine + `(\w+) joined the game$`)
	leaveRe = regexp.MustCompile(serverLine + `(\w+) left the game$`)
	chatRe  = regexp.MustCompile(serverLine + `<(\w+)> (.+)$`)
	listRe  = regexp.MustCompile(serverLine + `There are \d+ of a max(?: of)? \d+ players online:(.*)$`)
	errorRe = regexp.MustCompile(`^\[[^\]]+\] \[[^\]]+/(?:ERROR|FATAL)\]`)

	nameRe = regexp.MustCompile(`^\w{3,16}$`)
)

func (a *Adapter) Game() string { return "minecraft" }

func (a *Adapter) ParseLogLine(line string) *console.LogEvent {
	line = strings.TrimRight(line, "\r\n")
	if m := chatRe.FindStringSubmatch(line); m != nil {
		return &console.LogEvent{Type: console.EventChat, Player: m[1], Message: m[2]}
	}
	if m := joinRe.FindStringSubmatch(line); m != nil {
		return &console.LogEvent{Type: console.EventJoin, Player: m[1]}
	}
	if m := leaveRe.FindStringSubmatch(line); m != nil {
		return &console.LogEvent{Type: console.EventLeave, Player: m[1]}
	}
	if m := listRe.FindStringSubmatch(line); m != nil {
		return &console.LogEvent{Type: console.EventPlayers, Players: splitNames(m[1])}
	}
	if errorRe.MatchString(line) {
		return &console.LogEvent{Type: console.EventError, Message: line}
	}
	return nil
}

func splitNames(list string) []string {
	names := []string{}
	for _, n := range strings.Split(list, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return names
}

func (a *Adapter) PlayerCommand() string { return "list" }
func (a *Adapter) StopCommand() string   { return "stop" }
func (a *Adapter) DefaultPort() uint16   { return 25565 }

func (a *Adapter) IDFormat() game.IDFormat {
	return game.NameFormat{Game: a.Game(), Pattern: nameRe}
}

// Clock runs 24000 ticks a day at 20 ticks a second. Tick 0 is sunrise, 06:00.
func (a *Adapter) Clock() console.Clock {
	return console.Clock{
		Day:       game.DayClock{Unit: 24 * time.Hour / ticksPerDay, Offset: 6 * time.Hour},
		Rate:      ticksPerSecond,
		DayLength: ticksPerDay,
	}
}

func (a *Adapter) PlayerLimit() (lo, hi int) { return 0, maxPlayers }

func (a *Adapter) Commands() console.Commands {
	// No MaxPlayers command: max-players is only read from server.properties at startup.
	return console.Commands{
		Say:  "say",
		Tell: "tell",
		Kick: "kick",
		Save: "save-all",
	}
}

func (a *Adapter) SetTimeCommand(native float64) string {
	return game.FormatCommand("time set", strconv.Itoa(int(native)))
}
