package console

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/netip"
	"sort"
	"sync"
	"time"

	"github.com/reedfamily/serverkit/internal/address"
	"github.com/reedfamily/serverkit/internal/chat"
	"github.com/reedfamily/serverkit/internal/game"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

type Options struct {
	Dialect  Dialect
	Executor game.CommandExecutor
	Registry game.BanRegistry

	// Resolver looks up the public address. address.Default() is used if nil.
	Resolver *address.Resolver

	// Transport receives broadcasts and whispers in addition to the game console.
	Transport game.ChatTransport

	Name       string
	Port       uint16
	Version    string
	Protocol   string
	Language   language.Tag
	MaxPlayers int

	// OnChat is called for every chat line players send in game.
	OnChat func(player, message string)

	Log *zap.Logger
	Now func() time.Time
}

// Server is a game.Server driven through a game's console.
type Server struct {
	dialect  Dialect
	registry game.BanRegistry
	resolver *address.Resolver
	bans     *game.Bans
	cmd      *game.Commander
	chat     *game.Announcer
	exec     game.CommandExecutor
	onChat   func(player, message string)
	log      *zap.Logger
	now      func() time.Time

	port     uint16
	version  string
	protocol string
	lang     language.Tag

	mu         sync.RWMutex
	name       string
	maxPlayers int
	online     map[string]string // canonical id -> name as shown in game
	clockBase  float64
	clockAt    time.Time
}

func New(opts Options) (*Server, error) {
	if opts.Dialect == nil {
		return nil, errors.New("console: no dialect")
	}
	if opts.Executor == nil {
		return nil, errors.New("console: no command executor")
	}
	if opts.Registry == nil {
		return nil, errors.New("console: no ban registry")
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("game", opts.Dialect.Game()))
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	s := &Server{
		dialect:  opts.Dialect,
		registry: opts.Registry,
		resolver: opts.Resolver,
		exec:     opts.Executor,
		onChat:   opts.OnChat,
		log:      log,
		now:      now,
		port:     opts.Port,
		version:  opts.Version,
		protocol: opts.Protocol,
		lang:     opts.Language,
		name:     opts.Name,
		online:   make(map[string]string),
		clockAt:  now(),
	}
	if s.version == "" {
		s.version = "unknown"
	}
	if s.protocol == "" {
		s.protocol = s.version
	}
	if s.lang == language.Und {
		s.lang = language.English
	}
	lo, hi := s.dialect.PlayerLimit()
	s.maxPlayers = game.Clamp(opts.MaxPlayers, lo, hi)

	s.cmd = game.NewCommander(opts.Executor, log)
	var transport game.ChatTransport = consoleChat{s}
	if opts.Transport != nil {
		transport = chat.Tee{transport, opts.Transport}
	}
	s.chat = game.NewAnnouncer(transport, log)
	s.bans = game.NewBans(s.dialect.IDFormat(), opts.Registry,
		game.WithBanHooks(s.kickBanned, nil),
		game.WithNow(now),
	)
	return s, nil
}

func (s *Server) Game() string { return s.dialect.Game() }

func (s *Server) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

func (s *Server) SetName(name string) {
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()
}

func (s *Server) Address(ctx context.Context) netip.Addr {
	r := s.resolver
	if r == nil {
		r = address.Default()
	}
	return r.Resolve(ctx)
}

func (s *Server) Port() uint16           { return s.port }
func (s *Server) Version() string        { return s.version }
func (s *Server) Protocol() string       { return s.protocol }
func (s *Server) Language() language.Tag { return s.lang }

func (s *Server) Players() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.online)
}

// OnlinePlayers returns the names of the players online, sorted.
func (s *Server) OnlinePlayers() []string {
	s.mu.RLock()
	names := make([]string, 0, len(s.online))
	for _, name := range s.online {
		names = append(names, name)
	}
	s.mu.RUnlock()
	sort.Strings(names)
	return names
}

func (s *Server) MaxPlayers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxPlayers
}

// SetMaxPlayers clamps n to the dialect's range and stores it. Dialects without a MaxPlayers
// command (Minecraft) can't change the limit of a running server, so only the value reported by
// MaxPlayers changes there.
func (s *Server) SetMaxPlayers(n int) {
	lo, hi := s.dialect.PlayerLimit()
	n = game.Clamp(n, lo, hi)
	s.mu.Lock()
	s.maxPlayers = n
	s.mu.Unlock()
	if c := s.dialect.Commands().MaxPlayers; c != "" {
		s.cmd.Run(c, n)
	}
}

func (s *Server) native() float64 {
	clock := s.dialect.Clock()
	s.mu.RLock()
	elapsed := s.now().Sub(s.clockAt).Seconds()
	v := s.clockBase + elapsed*clock.Rate
	s.mu.RUnlock()
	if clock.DayLength > 0 {
		v = math.Mod(v, clock.DayLength)
	}
	return v
}

func (s *Server) Time() time.Time {
	day := s.dialect.Clock().Day
	if day.Now == nil {
		day.Now = s.now
	}
	return day.Canonical(s.native())
}

func (s *Server) SetTime(t time.Time) {
	native := s.dialect.Clock().Day.Native(t)
	s.mu.Lock()
	s.clockBase = native
	s.clockAt = s.now()
	s.mu.Unlock()
	s.cmd.RunLine(s.dialect.SetTimeCommand(native))
}

func (s *Server) Save() {
	if c := s.dialect.Commands().Save; c != "" {
		s.cmd.Run(c)
	}
}

// Stop asks the game to shut down gracefully.
func (s *Server) Stop() {
	s.cmd.RunLine(s.dialect.StopCommand())
}

// Sync asks the game for the players online. The reply arrives through the log.
func (s *Server) Sync() {
	s.cmd.RunLine(s.dialect.PlayerCommand())
}

func (s *Server) Ban(id, reason string, duration time.Duration) error {
	return s.bans.Ban(id, reason, duration)
}

func (s *Server) Unban(id string) error {
	return s.bans.Unban(id)
}

func (s *Server) IsBanned(id string) (bool, error) {
	return s.bans.IsBanned(id)
}

func (s *Server) BanTimeRemaining(id string) (time.Duration, error) {
	return s.bans.Remaining(id)
}

// Bans returns the active bans.
func (s *Server) Bans() ([]game.BanEntry, error) {
	entries, ok, err := s.bans.List()
	if !ok {
		return nil, errors.New("ban registry can't list bans")
	}
	return entries, err
}

func (s *Server) Broadcast(message string) {
	s.chat.Broadcast("", message)
}

// Whisper sends a message to one online player.
func (s *Server) Whisper(player, message string) error {
	session, err := s.Session(player)
	if err != nil {
		return err
	}
	s.chat.Send(session, "", message)
	return nil
}

func (s *Server) Command(command string, args ...any) {
	s.cmd.Run(command, args...)
}

// Session returns the chat session of an online player.
func (s *Server) Session(player string) (game.Session, error) {
	id, err := s.dialect.IDFormat().Parse(player)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	_, ok := s.online[id.String()]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("player %s: %w", player, game.ErrSessionNotFound)
	}
	return playerSession{id: id.String(), srv: s}, nil
}

// HandleLine feeds one line of console output to the server.
func (s *Server) HandleLine(line string) {
	ev := s.dialect.ParseLogLine(line)
	if ev == nil {
		return
	}
	switch ev.Type {
	case EventJoin:
		s.join(ev.Player)
	case EventLeave:
		s.leave(ev.Player)
	case EventPlayers:
		s.resetOnline(ev.Players)
	case EventChat:
		if s.onChat != nil {
			s.onChat(ev.Player, ev.Message)
		}
	case EventError:
		s.log.Warn("game error", zap.String("line", ev.Message))
	}
}

func (s *Server) join(player string) {
	id, err := s.dialect.IDFormat().Parse(player)
	if err != nil {
		s.log.Warn("unrecognized player name", zap.String("player", player))
		return
	}
	s.mu.Lock()
	s.online[id.String()] = player
	s.mu.Unlock()
	s.log.Info("player joined", zap.String("player", player))
	s.kickIfBanned(id, player)
}

func (s *Server) kickIfBanned(id game.SubjectID, player string) {
	entry, ok, err := s.registry.Find(id.String())
	if err != nil {
		s.log.Warn("ban check failed", zap.String("player", player), zap.Error(err))
		return
	}
	if ok {
		s.kick(player, entry.Reason)
	}
}

func (s *Server) leave(player string) {
	id, err := s.dialect.IDFormat().Parse(player)
	if err != nil {
		return
	}
	s.mu.Lock()
	delete(s.online, id.String())
	s.mu.Unlock()
	s.log.Info("player left", zap.String("player", player))
}

// resetOnline replaces the online set with a player list reported by the game. Banned players
// that got in while the log stream was down are kicked.
func (s *Server) resetOnline(players []string) {
	online := make(map[string]string, len(players))
	ids := make(map[string]game.SubjectID, len(players))
	for _, p := range players {
		if id, err := s.dialect.IDFormat().Parse(p); err == nil {
			online[id.String()] = p
			ids[p] = id
		}
	}
	s.mu.Lock()
	s.online = online
	s.mu.Unlock()

	for _, p := range players {
		if id, ok := ids[p]; ok {
			s.kickIfBanned(id, p)
		}
	}
}

func (s *Server) kickBanned(id game.SubjectID, reason string) {
	s.mu.RLock()
	player, ok := s.online[id.String()]
	s.mu.RUnlock()
	if ok {
		s.kick(player, reason)
	}
}

func (s *Server) kick(player, reason string) {
	if c := s.dialect.Commands().Kick; c != "" {
		if reason == "" {
			s.cmd.Run(c, player)
			return
		}
		s.cmd.Run(c, player, reason)
	}
}

func (s *Server) connected(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.online[id]
	return ok
}

type playerSession struct {
	id  string
	srv *Server
}

func (p playerSession) ID() string      { return p.id }
func (p playerSession) Connected() bool { return p.srv.connected(p.id) }

// consoleChat delivers chat with the dialect's say and tell commands.
type consoleChat struct {
	srv *Server
}

func (c consoleChat) BroadcastAll(text string) error {
	return c.srv.exec.Execute(nil, game.FormatCommand(c.srv.dialect.Commands().Say, text))
}

func (c consoleChat) SendTo(session game.Session, text string) error {
	c.srv.mu.RLock()
	player, ok := c.srv.online[session.ID()]
	c.srv.mu.RUnlock()
	if !ok {
		return game.ErrSessionNotFound
	}
	return c.srv.exec.Execute(nil, game.FormatCommand(c.srv.dialect.Commands().Tell, player, text))
}

var _ game.Server = (*Server)(nil)
