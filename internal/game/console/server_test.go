package console_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/reedfamily/serverkit/internal/address"
	"github.com/reedfamily/serverkit/internal/bans"
	"github.com/reedfamily/serverkit/internal/game"
	"github.com/reedfamily/serverkit/internal/game/console"
	"github.com/reedfamily/serverkit/internal/game/minecraft"
	"github.com/reedfamily/serverkit/internal/game/vintagestory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/text/language"
)

type recorder struct {
	mu    sync.Mutex
	lines []string
	err   error
}

func (r *recorder) Execute(issuer game.Issuer, line string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if issuer != nil {
		return errors.New("console commands must run with system authority")
	}
	r.lines = append(r.lines, line)
	return r.err
}

func (r *recorder) take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	lines := r.lines
	r.lines = nil
	return lines
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type sink struct {
	broadcasts []string
}

func (s *sink) BroadcastAll(text string) error {
	s.broadcasts = append(s.broadcasts, text)
	return nil
}

func (s *sink) SendTo(session game.Session, text string) error {
	return game.ErrSessionNotFound
}

const (
	steveJoins = "[12:00:01] [Server thread/INFO]: Steve joined the game"
	steveLeft  = "[12:03:00] [Server thread/INFO]: Steve left the game"
	alexJoins  = "[12:00:02] [Server thread/INFO]: Alex joined the game"
)

type fixture struct {
	srv   *console.Server
	exec  *recorder
	clock *clock
	web   *sink
	logs  *observer.ObservedLogs
	chat  []string
}

func newFixture(t *testing.T, dialect console.Dialect) *fixture {
	t.Helper()
	f := &fixture{
		exec:  &recorder{},
		clock: &clock{t: time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)},
		web:   &sink{},
	}
	core, logs := observer.New(zap.InfoLevel)
	f.logs = logs

	ip := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("203.0.113.7\n"))
	}))
	t.Cleanup(ip.Close)

	srv, err := console.New(console.Options{
		Dialect:    dialect,
		Executor:   f.exec,
		Registry:   bans.NewMemory(bans.WithClock(f.clock.now)),
		Resolver:   address.New(address.Options{URL: ip.URL}),
		Transport:  f.web,
		Name:       "Family Survival",
		Port:       25565,
		Version:    "1.21.1",
		MaxPlayers: 20,
		OnChat: func(player, message string) {
			f.chat = append(f.chat, player+": "+message)
		},
		Log: zap.New(core),
		Now: f.clock.now,
	})
	require.NoError(t, err)
	f.srv = srv
	return f
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := console.New(console.Options{Executor: &recorder{}, Registry: bans.NewMemory()})
	require.Error(t, err)
	_, err = console.New(console.Options{Dialect: &minecraft.Adapter{}, Registry: bans.NewMemory()})
	require.Error(t, err)
	_, err = console.New(console.Options{Dialect: &minecraft.Adapter{}, Executor: &recorder{}})
	require.Error(t, err)
}

func TestRegistry(t *testing.T) {
	require.IsType(t, &minecraft.Adapter{}, console.Lookup("minecraft"))
	require.IsType(t, &vintagestory.Adapter{}, console.Lookup("vintagestory"))
	require.Nil(t, console.Lookup("factorio"))
	require.Equal(t, []string{"minecraft", "vintagestory"}, console.Games())
}

func TestInformation(t *testing.T) {
	f := newFixture(t, &minecraft.Adapter{})
	srv := f.srv

	require.Equal(t, "Family Survival", srv.Name())
	srv.SetName("Family Creative")
	require.Equal(t, "Family Creative", srv.Name())

	require.Equal(t, uint16(25565), srv.Port())
	require.Equal(t, "1.21.1", srv.Version())
	require.Equal(t, "1.21.1", srv.Protocol())
	require.Equal(t, language.English, srv.Language())
	require.Equal(t, netip.MustParseAddr("203.0.113.7"), srv.Address(context.Background()))

	info := game.Describe(context.Background(), srv)
	require.Equal(t, "203.0.113.7", info.Address)
	require.Equal(t, 20, info.MaxPlayers)
}

func TestPlayerTracking(t *testing.T) {
	f := newFixture(t, &minecraft.Adapter{})
	srv := f.srv

	srv.HandleLine(steveJoins)
	srv.HandleLine(alexJoins)
	srv.HandleLine("[12:00:03] [Server thread/INFO]: Done (3.2s)! For help, type \"help\"")
	require.Equal(t, 2, srv.Players())
	require.Equal(t, []string{"Alex", "Steve"}, srv.OnlinePlayers())

	srv.HandleLine(steveLeft)
	require.Equal(t, []string{"Alex"}, srv.OnlinePlayers())

	srv.Sync()
	require.Equal(t, []string{"list"}, f.exec.take())
	srv.HandleLine("[12:04:00] [Server thread/INFO]: There are 2 of a max of 20 players online: Notch, jeb_")
	require.Equal(t, []string{"Notch", "jeb_"}, srv.OnlinePlayers())

	srv.HandleLine("[12:05:00] [Server thread/INFO]: There are 0 of a max of 20 players online:")
	require.Zero(t, srv.Players())
}

func TestChatCannotSpoofServerLines(t *testing.T) {
	f := newFixture(t, &minecraft.Adapter{})
	srv := f.srv
	srv.HandleLine(steveJoins)

	srv.HandleLine("[12:01:00] [Server thread/INFO]: <Steve> lol: Steve left the game")
	srv.HandleLine("[12:01:01] [Server thread/INFO]: <Steve> x: Herobrine joined the game")
	require.Equal(t, []string{"Steve"}, srv.OnlinePlayers())
	require.Equal(t, []string{"Steve: lol: Steve left the game", "Steve: x: Herobrine joined the game"}, f.chat)

	require.NoError(t, srv.Ban("Steve", "griefing", time.Hour))
	require.Equal(t, []string{"kick Steve griefing"}, f.exec.take())
}

func TestListResyncKicksBannedPlayers(t *testing.T) {
	f := newFixture(t, &minecraft.Adapter{})
	srv := f.srv
	require.NoError(t, srv.Ban("Notch", "", 0))

	srv.HandleLine("[12:04:00] [Server thread/INFO]: There are 2 of a max of 20 players online: Notch, jeb_")
	require.Equal(t, []string{"kick Notch"}, f.exec.take())
}

func TestVintageStoryPlayerTracking(t *testing.T) {
	f := newFixture(t, &vintagestory.Adapter{})
	srv := f.srv
	require.NoError(t, srv.Ban("Griefer", "", 0))

	srv.HandleLine("18.10.2026 09:00:01 [Server Event] Player Tyron joins.")
	srv.HandleLine("18.10.2026 09:00:05 [Server Chat] 0 | Tyron: Player Herobrine joins.")
	require.Equal(t, []string{"Tyron"}, srv.OnlinePlayers())

	srv.Sync()
	require.Equal(t, []string{"/list clients"}, f.exec.take())

	// reply after a reconnect: Tyron left and two others came in unseen
	srv.HandleLine("18.10.2026 09:10:00 [Server Notification] List of online Players")
	srv.HandleLine("[1] Saraty [::ffff:192.168.1.20]:51234")
	srv.HandleLine("[2] Griefer [::ffff:192.168.1.21]:51240")
	require.Equal(t, []string{"Griefer", "Saraty"}, srv.OnlinePlayers())
	require.Equal(t, []string{"/kick Griefer"}, f.exec.take())
}

func TestChatRelay(t *testing.T) {
	f := newFixture(t, &minecraft.Adapter{})
	f.srv.HandleLine("[12:00:05] [Server thread/INFO]: <Steve> anyone got iron?")
	require.Equal(t, []string{"Steve: anyone got iron?"}, f.chat)
}

func TestBanKicksOnlinePlayer(t *testing.T) {
	f := newFixture(t, &minecraft.Adapter{})
	srv := f.srv
	srv.HandleLine(steveJoins)

	require.NoError(t, srv.Ban("STEVE", "griefing", time.Hour))
	require.Equal(t, []string{"kick Steve griefing"}, f.exec.take())

	banned, err := srv.IsBanned("steve")
	require.NoError(t, err)
	require.True(t, banned)

	// already banned: no second kick
	require.NoError(t, srv.Ban("Steve", "griefing", time.Hour))
	require.Empty(t, f.exec.take())

	f.clock.advance(10 * time.Minute)
	left, err := srv.BanTimeRemaining("Steve")
	require.NoError(t, err)
	require.Equal(t, 50*time.Minute, left)

	require.NoError(t, srv.Unban("Steve"))
	_, err = srv.BanTimeRemaining("Steve")
	require.ErrorIs(t, err, game.ErrNotFound)
}

func TestBannedPlayerKickedOnJoin(t *testing.T) {
	f := newFixture(t, &minecraft.Adapter{})
	srv := f.srv

	require.NoError(t, srv.Ban("Steve", "", 0))
	require.Empty(t, f.exec.take())

	srv.HandleLine(steveJoins)
	require.Equal(t, []string{"kick Steve"}, f.exec.take())

	left, err := srv.BanTimeRemaining("Steve")
	require.NoError(t, err)
	require.Equal(t, game.Forever, left)

	entries, err := srv.Bans()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "steve", entries[0].Subject)
}

func TestBanRejectsInvalidNames(t *testing.T) {
	f := newFixture(t, &minecraft.Adapter{})
	for _, id := range []string{"", "a b", "xy", "this_name_is_way_too_long"} {
		err := f.srv.Ban(id, "", time.Minute)
		require.ErrorIs(t, err, game.ErrInvalidIdentity, id)
		_, err = f.srv.IsBanned(id)
		require.ErrorIs(t, err, game.ErrInvalidIdentity, id)
	}
}

func TestBroadcastAndWhisper(t *testing.T) {
	f := newFixture(t, &minecraft.Adapter{})
	srv := f.srv
	srv.HandleLine(steveJoins)

	srv.Broadcast("Restart in 5 minutes")
	require.Equal(t, []string{"say Restart in 5 minutes"}, f.exec.take())
	require.Equal(t, []string{"Restart in 5 minutes"}, f.web.broadcasts)
	require.Equal(t, 1, f.logs.FilterMessage("[Broadcast] Restart in 5 minutes").Len())

	require.NoError(t, srv.Whisper("steve", "you have mail"))
	require.Equal(t, []string{"tell Steve you have mail"}, f.exec.take())

	require.ErrorIs(t, srv.Whisper("Alex", "hello"), game.ErrSessionNotFound)
	require.ErrorIs(t, srv.Whisper("not a name", "hello"), game.ErrInvalidIdentity)
}

func TestSessionsFollowPresence(t *testing.T) {
	f := newFixture(t, &minecraft.Adapter{})
	f.srv.HandleLine(steveJoins)

	session, err := f.srv.Session("Steve")
	require.NoError(t, err)
	require.Equal(t, "steve", session.ID())
	require.True(t, session.Connected())

	f.srv.HandleLine(steveLeft)
	require.False(t, session.Connected())
}

func TestCommands(t *testing.T) {
	f := newFixture(t, &minecraft.Adapter{})
	srv := f.srv

	srv.Command("teleport", "Alice", 10, 20, 30)
	srv.Save()
	srv.Stop()
	require.Equal(t, []string{"teleport Alice 10 20 30", "save-all", "stop"}, f.exec.take())
}

func TestExecutorFailuresAreLogged(t *testing.T) {
	f := newFixture(t, &minecraft.Adapter{})
	f.exec.err = errors.New("container is not running")

	f.srv.Save()
	f.srv.Broadcast("hello")

	assert.Equal(t, 1, f.logs.FilterMessage("console command failed").Len())
	assert.Equal(t, 1, f.logs.FilterMessage("broadcast failed").Len())
}

func TestMaxPlayersClamped(t *testing.T) {
	f := newFixture(t, &minecraft.Adapter{})
	f.srv.SetMaxPlayers(-5)
	require.Zero(t, f.srv.MaxPlayers())
	require.Empty(t, f.exec.take())

	vs := newFixture(t, &vintagestory.Adapter{})
	vs.srv.SetMaxPlayers(5000)
	require.Equal(t, 1000, vs.srv.MaxPlayers())
	require.Equal(t, []string{"/serverconfig maxclients 1000"}, vs.exec.take())
}

func TestClockAdvances(t *testing.T) {
	f := newFixture(t, &minecraft.Adapter{})
	srv := f.srv

	srv.SetTime(time.Date(2026, 10, 18, 18, 0, 0, 0, time.UTC))
	require.Equal(t, []string{"time set 12000"}, f.exec.take())
	require.Equal(t, time.Date(2026, 10, 18, 18, 0, 0, 0, time.UTC), srv.Time())

	// 1000 ticks are one in-game hour
	f.clock.advance(50 * time.Second)
	require.Equal(t, time.Date(2026, 10, 18, 19, 0, 0, 0, time.UTC), srv.Time())
}

func TestVintageStoryClock(t *testing.T) {
	f := newFixture(t, &vintagestory.Adapter{})
	f.srv.SetTime(time.Date(2026, 10, 18, 7, 30, 0, 0, time.UTC))
	require.Equal(t, []string{"/time set 07:30"}, f.exec.take())

	// two real minutes are one in-game hour
	f.clock.advance(2 * time.Minute)
	require.Equal(t, time.Date(2026, 10, 18, 8, 30, 0, 0, time.UTC), f.srv.Time())
}
