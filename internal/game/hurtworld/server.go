// Package hurtworld adapts a Hurtworld dedicated server to game.Server. Beyond the common contract
// it offers the named chat helpers Hurtworld plugins use.
package hurtworld

import (
	"context"
	"math"
	"net/netip"
	"strconv"
	"time"

	"github.com/reedfamily/serverkit/internal/address"
	"github.com/reedfamily/serverkit/internal/chat"
	"github.com/reedfamily/serverkit/internal/game"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

// PlayerSession is a connected player as the runtime tracks it.
type PlayerSession interface {
	game.Session
	SteamID() uint64
	Name() string
}

// Runtime is the native server runtime.
type Runtime interface {
	ServerName() string
	SetServerName(name string)
	Port() uint16
	Version() string
	ProtocolVersion() int
	Sessions() []PlayerSession
	MaxPlayers() uint16
	SetMaxPlayers(n uint16)
	// DayTime is the time of day in minutes.
	DayTime() float64
	SetDayTime(minutes float64)
	Save() error
	Kick(steamID uint64, reason string) error
	// RelayChat sends text to every connected player, RelayChatTo to one.
	RelayChat(text string) error
	RelayChatTo(session PlayerSession, text string) error
}

type Options struct {
	Runtime  Runtime
	Registry game.BanRegistry
	Executor game.CommandExecutor

	// Transport receives chat in addition to the game.
	Transport game.ChatTransport
	Resolver  *address.Resolver
	Language  language.Tag
	Log       *zap.Logger
	Now       func() time.Time
}

type Server struct {
	rt       Runtime
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
	log = log.With(zap.String("game", "hurtworld"))
	lang := opts.Language
	if lang == language.Und {
		lang = language.English
	}
	var transport game.ChatTransport = rpcChat{opts.Runtime}
	if opts.Transport != nil {
		transport = chat.Tee{transport, opts.Transport}
	}
	s := &Server{
		rt:       opts.Runtime,
		cmd:      game.NewCommander(opts.Executor, log),
		chat:     game.NewAnnouncer(transport, log),
		resolver: opts.Resolver,
		lang:     lang,
		clock:    game.DayClock{Unit: time.Minute, Now: opts.Now},
		log:      log,
	}
	bansOpts := []game.BansOption{game.WithBanHooks(s.kick, nil)}
	if opts.Now != nil {
		bansOpts = append(bansOpts, game.WithNow(opts.Now))
	}
	s.bans = game.NewBans(game.SteamFormat{}, opts.Registry, bansOpts...)
	return s
}

func (s *Server) Name() string        { return s.rt.ServerName() }
func (s *Server) SetName(name string) { s.rt.SetServerName(name) }

func (s *Server) Address(ctx context.Context) netip.Addr {
	r := s.resolver
	if r == nil {
		r = address.Default()
	}
	return r.Resolve(ctx)
}

func (s *Server) Port() uint16           { return s.rt.Port() }
func (s *Server) Version() string        { return s.rt.Version() }
func (s *Server) Protocol() string       { return strconv.Itoa(s.rt.ProtocolVersion()) }
func (s *Server) Language() language.Tag { return s.lang }
func (s *Server) Players() int           { return len(s.rt.Sessions()) }
func (s *Server) MaxPlayers() int        { return int(s.rt.MaxPlayers()) }

func (s *Server) SetMaxPlayers(n int) {
	s.rt.SetMaxPlayers(uint16(game.Clamp(n, 0, math.MaxUint16)))
}

func (s *Server) Time() time.Time {
	return s.clock.Canonical(s.rt.DayTime())
}

func (s *Server) SetTime(t time.Time) {
	s.rt.SetDayTime(s.clock.Native(t))
}

func (s *Server) Save() {
	if err := s.rt.Save(); err != nil {
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

// BroadcastChat sends message to every player, shown as coming from name.
func (s *Server) BroadcastChat(name, message string) {
	s.chat.Broadcast(name, message)
}

// SendChatMessage sends message to one player, shown as coming from name. Nothing is sent if the
// player has disconnected.
func (s *Server) SendChatMessage(session PlayerSession, name, message string) {
	s.chat.Send(session, name, message)
}

// FindSession returns the session of the connected player with the Steam id.
func (s *Server) FindSession(id string) (PlayerSession, error) {
	sid, err := game.SteamFormat{}.Parse(id)
	if err != nil {
		return nil, err
	}
	for _, session := range s.rt.Sessions() {
		if session.SteamID() == game.SteamID64(sid) {
			return session, nil
		}
	}
	return nil, game.ErrSessionNotFound
}

func (s *Server) Command(command string, args ...any) {
	s.cmd.Run(command, args...)
}

func (s *Server) kick(id game.SubjectID, reason string) {
	if err := s.rt.Kick(game.SteamID64(id), reason); err != nil {
		s.log.Warn("kick failed", zap.String("player", id.String()), zap.Error(err))
	}
}

type rpcChat struct {
	rt Runtime
}

func (c rpcChat) BroadcastAll(text string) error { return c.rt.RelayChat(text) }

func (c rpcChat) SendTo(session game.Session, text string) error {
	ps, ok := session.(PlayerSession)
	if !ok {
		return game.ErrSessionNotFound
	}
	return c.rt.RelayChatTo(ps, text)
}

var _ game.Server = (*Server)(nil)
