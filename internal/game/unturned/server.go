// Package unturned adapts an Unturned dedicated server to game.Server.
package unturned

import (
	"context"
	"math"
	"net/netip"
	"time"

	"github.com/reedfamily/serverkit/internal/address"
	"github.com/reedfamily/serverkit/internal/game"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

// Provider is the native server runtime.
type Provider interface {
	ServerName() string
	SetServerName(name string)
	Port() uint16
	AppVersion() string
	Clients() int
	MaxPlayers() uint8
	SetMaxPlayers(n uint8)
	// LightingTime is the time of day in lighting units.
	LightingTime() uint32
	SetLightingTime(t uint32)
	Save() error
	Kick(steamID uint64, reason string) error
}

// SecondsPerUnit is the in-game time one lighting unit stands for.
const SecondsPerUnit = 120

// maxBan is the longest ban the blacklist can hold.
const maxBan = time.Duration(math.MaxUint32) * time.Second

type Options struct {
	Provider  Provider
	Registry  game.BanRegistry
	Transport game.ChatTransport
	Executor  game.CommandExecutor
	Resolver  *address.Resolver
	Language  language.Tag
	Log       *zap.Logger
	Now       func() time.Time
}

type Server struct {
	p        Provider
	bans     *game.Bans
	cmd      *game.Commander
	chat     *game.Announcer
	resolver *address.Resolver
	lang     language.Tag
	clock    game.DayClock
	log      *zap.Logger
}

func New(opts Options) *Server {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("game", "unturned"))
	lang := opts.Language
	if lang == language.Und {
		lang = language.English
	}
	s := &Server{
		p:        opts.Provider,
		cmd:      game.NewCommander(opts.Executor, log),
		chat:     game.NewAnnouncer(opts.Transport, log),
		resolver: opts.Resolver,
		lang:     lang,
		clock:    game.DayClock{Unit: SecondsPerUnit * time.Second, Now: opts.Now},
		log:      log,
	}
	bansOpts := []game.BansOption{
		game.WithDurationNarrowing(NarrowBanDuration),
		game.WithBanHooks(s.kick, nil),
	}
	if opts.Now != nil {
		bansOpts = append(bansOpts, game.WithNow(opts.Now))
	}
	s.bans = game.NewBans(game.SteamFormat{}, opts.Registry, bansOpts...)
	return s
}

// NarrowBanDuration rounds d up to whole seconds and caps it at what the blacklist can hold.
func NarrowBanDuration(d time.Duration) time.Duration {
	if d >= maxBan {
		return maxBan
	}
	return (d + time.Second - 1).Truncate(time.Second)
}

func (s *Server) Name() string        { return s.p.ServerName() }
func (s *Server) SetName(name string) { s.p.SetServerName(name) }

func (s *Server) Address(ctx context.Context) netip.Addr {
	r := s.resolver
	if r == nil {
		r = address.Default()
	}
	return r.Resolve(ctx)
}

func (s *Server) Port() uint16           { return s.p.Port() }
func (s *Server) Version() string        { return s.p.AppVersion() }
func (s *Server) Protocol() string       { return s.Version() }
func (s *Server) Language() language.Tag { return s.lang }
func (s *Server) Players() int           { return s.p.Clients() }
func (s *Server) MaxPlayers() int        { return int(s.p.MaxPlayers()) }

func (s *Server) SetMaxPlayers(n int) {
	s.p.SetMaxPlayers(uint8(game.Clamp(n, 0, math.MaxUint8)))
}

func (s *Server) Time() time.Time {
	return s.clock.Canonical(float64(s.p.LightingTime()))
}

func (s *Server) SetTime(t time.Time) {
	native := math.Round(s.clock.Native(t))
	s.p.SetLightingTime(uint32(native) % (24 * 60 * 60 / SecondsPerUnit))
}

func (s *Server) Save() {
	if err := s.p.Save(); err != nil {
		s.log.Warn("save failed", zap.Error(err))
	}
}

func (s *Server) Ban(id, reason string, duration time.Duration) error {
	return s.bans.Ban(id, reason, duration)
}

func (s *Server) Unban(id string) error { return s.bans.Unban(id) }

func (s *Server) IsBanned(id string) (bool, error) { return s.bans.IsBanned(id) }

func (s *Server) BanTimeRemaining(id string) (time.Duration, error) {
	return s.bans.Remaining(id)
}

func (s *Server) Broadcast(message string) {
	s.chat.Broadcast("", message)
}

func (s *Server) Command(command string, args ...any) {
	s.cmd.Run(command, args...)
}

func (s *Server) kick(id game.SubjectID, reason string) {
	if err := s.p.Kick(game.SteamID64(id), reason); err != nil {
		s.log.Warn("kick failed", zap.String("player", id.String()), zap.Error(err))
	}
}

var _ game.Server = (*Server)(nil)
