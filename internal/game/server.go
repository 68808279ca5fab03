// Package game defines the contract every supported game backend implements, together with the
// backend-independent administration, chat and command policy that adapters share.
package game

import (
	"context"
	"net/netip"
	"time"

	"golang.org/x/text/language"
)

// Server is the capability set exposed for one running game backend. Every adapter honours the same
// semantics regardless of how its native runtime represents names, clocks, identities or bans.
type Server interface {
	// Name returns the public-facing display name of the server.
	Name() string
	// SetName changes the display name. It never fails.
	SetName(name string)

	// Address returns the public-facing IP address of the server. When the address could not be
	// resolved, the unspecified IPv4 address is returned and the failure is logged. Address never
	// blocks longer than the lookup timeout.
	Address(ctx context.Context) netip.Addr
	// Port returns the network port reported by the backend.
	Port() uint16
	// Version returns the version or build of the server.
	Version() string
	// Protocol returns the network protocol version. Backends without a separate protocol concept
	// return Version.
	Protocol() string
	// Language returns the language the server is configured with.
	Language() language.Tag

	// Players returns the number of players currently connected.
	Players() int
	// MaxPlayers returns the maximum number of players allowed at once.
	MaxPlayers() int
	// SetMaxPlayers changes the player limit. Values outside the range the backend can represent are
	// clamped rather than rejected.
	SetMaxPlayers(n int)

	// Time returns the current in-game time converted to wall-clock form.
	Time() time.Time
	// SetTime sets the in-game clock. Conversion to the native clock may lose precision.
	SetTime(t time.Time)

	// Save asks the backend to persist its state. Failures are logged, not returned.
	Save()

	// Ban bans the subject for the reason and duration given. A zero duration bans permanently.
	// Banning a subject that is already banned does nothing.
	Ban(id, reason string, duration time.Duration) error
	// Unban lifts the ban on the subject. Unbanning a subject that is not banned does nothing.
	Unban(id string) error
	// IsBanned reports if the subject is currently banned.
	IsBanned(id string) (bool, error)
	// BanTimeRemaining returns the time left on the subject's ban, or Forever for permanent bans. It
	// returns an error wrapping ErrNotFound if the subject is not banned.
	BanTimeRemaining(id string) (time.Duration, error)

	// Broadcast sends a chat message to every connected player.
	Broadcast(message string)
	// Command runs a console command with system authority. Arguments are converted to strings and
	// joined by single spaces.
	Command(command string, args ...any)
}

// Info is a point-in-time snapshot of the read-only side of a Server.
type Info struct {
	Name       string    `json:"name"`
	Address    string    `json:"address"`
	Port       uint16    `json:"port"`
	Version    string    `json:"version"`
	Protocol   string    `json:"protocol"`
	Language   string    `json:"language"`
	Players    int       `json:"players"`
	MaxPlayers int       `json:"max_players"`
	Time       time.Time `json:"time"`
}

// Describe collects an Info snapshot from srv.
func Describe(ctx context.Context, srv Server) Info {
	return Info{
		Name:       srv.Name(),
		Address:    srv.Address(ctx).String(),
		Port:       srv.Port(),
		Version:    srv.Version(),
		Protocol:   srv.Protocol(),
		Language:   srv.Language().String(),
		Players:    srv.Players(),
		MaxPlayers: srv.MaxPlayers(),
		Time:       srv.Time(),
	}
}
