// Package vintagestory is the console dialect of the Vintage Story dedicated server.
package vintagestory

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/reedfamily/serverkit/internal/game"
	"github.com/reedfamily/serverkit/internal/game/console"
)

func init() {
	console.Register(&Adapter{})
}

type Adapter struct{}

// A default calendar day passes in 48 real minutes.
const hoursPerSecond = 24.0 / (48 * 60)

// Log lines start with "18.10.2026 09:00:01 [Category] ".
const stamp = `[\d.]+ [\d:]+ `

var (
	joinRe  = regexp.MustCompile(`^` + stamp + `\[(?:Server )?Event\] Player ([\w\-]+) joins\.?$`)
	leaveRe = regexp.MustCompile(`^` + stamp + `\[(?:Server )?Event\] Player ([\w\-]+) left\.?$`)
	chatRe  = regexp.MustCompile(`^` + stamp + `\[Server Chat\] (?:\d+ \| )?([\w\-]+): (.+)$`)

	// Reply to /list clients: a header, then one "[n] Name [address]" line per client.
	listHeadRe  = regexp.MustCompile(`^(?:` + stamp + `\[[^\]]+\] )?List of online Players`)
	listEntryRe = regexp.MustCompile(`^(?:` + stamp + `\[[^\]]+\] )?\[\d+\] ([\w\-]+)(?: \[.*)?$`)

	nameRe = regexp.MustCompile(`^[\w\-]{1,32}$`)
)

func (a *Adapter) Game() string { return "vintagestory" }

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
	// The header resets the online set, every entry after it joins it again.
	if listHeadRe.MatchString(line) {
		return &console.LogEvent{Type: console.EventPlayers, Players: []string{}}
	}
	if m := listEntryRe.FindStringSubmatch(line); m != nil {
		return &console.LogEvent{Type: console.EventJoin, Player: m[1]}
	}
	if strings.Contains(line, "Error") || strings.Contains(line, "Exception") {
		return &console.LogEvent{Type: console.EventError, Message: line}
	}
	return nil
}

func (a *Adapter) PlayerCommand() string { return "/list clients" }
func (a *Adapter) StopCommand() string   { return "/stop" }
func (a *Adapter) DefaultPort() uint16   { return 42420 }

func (a *Adapter) IDFormat() game.IDFormat {
	return game.NameFormat{Game: a.Game(), Pattern: nameRe}
}

// Clock counts hours since midnight.
func (a *Adapter) Clock() console.Clock {
	return console.Clock{
		Day:       game.DayClock{Unit: time.Hour},
		Rate:      hoursPerSecond,
		DayLength: 24,
	}
}

func (a *Adapter) PlayerLimit() (lo, hi int) { return 1, 1000 }

func (a *Adapter) Commands() console.Commands {
	return console.Commands{
		Say:        "/announce",
		Tell:       "/tell",
		Kick:       "/kick",
		Save:       "/autosavenow",
		MaxPlayers: "/serverconfig maxclients",
	}
}

func (a *Adapter) SetTimeCommand(native float64) string {
	h := int(native)
	m := int((native - float64(h)) * 60)
	return fmt.Sprintf("/time set %02d:%02d", h, m)
}
