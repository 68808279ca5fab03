package game_test

import (
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/reedfamily/serverkit/internal/game"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestFormatCommand(t *testing.T) {
	require.Equal(t, "teleport Alice 10 20 30", game.FormatCommand("teleport", "Alice", 10, 20, 30))
	require.Equal(t, "save", game.FormatCommand("save"))
	require.Equal(t, "weather rain 1.5 true", game.FormatCommand("weather", "rain", 1.5, true))
	require.Equal(t, "give  stick", game.FormatCommand("give", nil, "stick"))
	require.Equal(t, "wait 1m30s", game.FormatCommand("wait", 90*time.Second))
}

type recordingExecutor struct {
	lines   []string
	issuers []game.Issuer
	err     error
}

func (e *recordingExecutor) Execute(issuer game.Issuer, line string) error {
	e.lines = append(e.lines, line)
	e.issuers = append(e.issuers, issuer)
	return e.err
}

func TestCommanderRunsWithSystemAuthority(t *testing.T) {
	exec := &recordingExecutor{}
	game.NewCommander(exec, nil).Run("kick", "bob", "afk")

	require.Equal(t, []string{"kick bob afk"}, exec.lines)
	require.Nil(t, exec.issuers[0])
}

func TestCommanderLogsFailures(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	exec := &recordingExecutor{err: errors.New("container gone")}

	require.NotPanics(t, func() { game.NewCommander(exec, zap.New(core)).Run("save-all") })
	require.Equal(t, 1, logs.FilterMessage("console command failed").Len())
}

type recordingTransport struct {
	broadcasts []string
	sent       map[string][]string
	err        error
}

func (t *recordingTransport) BroadcastAll(text string) error {
	t.broadcasts = append(t.broadcasts, text)
	return t.err
}

func (t *recordingTransport) SendTo(s game.Session, text string) error {
	if t.sent == nil {
		t.sent = make(map[string][]string)
	}
	t.sent[s.ID()] = append(t.sent[s.ID()], text)
	return t.err
}

type session struct {
	id        string
	connected bool
}

func (s session) ID() string      { return s.id }
func (s session) Connected() bool { return s.connected }

func TestAnnouncerMirrorsBroadcasts(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	tr := &recordingTransport{}
	a := game.NewAnnouncer(tr, zap.New(core))

	a.Broadcast("Server", "restarting soon")
	a.Broadcast("", "hello")

	require.Equal(t, []string{"Server restarting soon", "hello"}, tr.broadcasts)
	require.Equal(t, 1, logs.FilterMessage("[Broadcast] Server restarting soon").Len())
	require.Equal(t, 1, logs.FilterMessage("[Broadcast] hello").Len())
}

func TestAnnouncerSendSkipsDisconnected(t *testing.T) {
	tr := &recordingTransport{}
	a := game.NewAnnouncer(tr, nil)

	a.Send(session{id: "a", connected: true}, "Admin", "hi")
	a.Send(session{id: "b"}, "Admin", "hi")
	a.Send(nil, "Admin", "hi")

	require.Equal(t, map[string][]string{"a": {"Admin hi"}}, tr.sent)
}

func TestAnnouncerAbsorbsTransportFailures(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	tr := &recordingTransport{err: errors.New("rpc down")}
	a := game.NewAnnouncer(tr, zap.New(core))

	a.Broadcast("", "hello")
	a.Send(session{id: "a", connected: true}, "", "hello")
	require.Equal(t, 2, logs.Len())
}

func TestChatLine(t *testing.T) {
	require.Equal(t, "Bob hi", game.ChatLine("Bob", "hi"))
	require.Equal(t, "hi", game.ChatLine("", "hi"))
	require.Equal(t, "Bob", game.ChatLine("Bob", ""))
}

func TestDayClock(t *testing.T) {
	now := time.Date(2026, 5, 4, 15, 30, 0, 0, time.UTC)
	c := game.DayClock{Unit: 3600 * time.Millisecond, Offset: 6 * time.Hour, Now: func() time.Time { return now }}

	require.Equal(t, time.Date(2026, 5, 4, 6, 0, 0, 0, time.UTC), c.Canonical(0))
	require.Equal(t, time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC), c.Canonical(6000))
	require.Equal(t, time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC), c.Canonical(18000))
	// Values past a full day wrap around midnight.
	require.Equal(t, time.Date(2026, 5, 4, 6, 0, 0, 0, time.UTC), c.Canonical(24000))

	require.InDelta(t, 6000, c.Native(time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC)), 0.001)
	require.InDelta(t, 18000, c.Native(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)), 0.001)

	for _, native := range []float64{0, 1000, 12345, 23999} {
		require.InDelta(t, native, c.Native(c.Canonical(native)), 0.001)
	}
}

func TestClamp(t *testing.T) {
	require.Equal(t, 255, game.Clamp(300, 0, 255))
	require.Equal(t, 0, game.Clamp(-4, 0, 255))
	require.Equal(t, 42, game.Clamp(42, 0, 255))
}

func TestSteamFormat(t *testing.T) {
	id, err := game.SteamFormat{}.Parse(" 76561197960287930 ")
	require.NoError(t, err)
	require.Equal(t, "76561197960287930", id.String())
	require.Equal(t, "steam", id.Format())
	require.EqualValues(t, uint64(76561197960287930), game.SteamID64(id))

	_, err = game.SteamFormat{}.Parse("STEAM_0:1:1234")
	require.ErrorIs(t, err, game.ErrInvalidIdentity)
}

func TestSteamID64PanicsOnForeignID(t *testing.T) {
	id := game.NewSubjectID("minecraft-name", "steve")
	require.Panics(t, func() { game.SteamID64(id) })
}

func TestNameFormat(t *testing.T) {
	f := game.NameFormat{Game: "minecraft", Pattern: regexp.MustCompile(`^[A-Za-z0-9_]{3,16}$`)}

	id, err := f.Parse("Notch_99")
	require.NoError(t, err)
	require.Equal(t, "notch_99", id.String())

	for _, bad := range []string{"", "ab", "has space", "waytoolongforaminecraftname"} {
		_, err := f.Parse(bad)
		require.ErrorIs(t, err, game.ErrInvalidIdentity, bad)
		require.Contains(t, err.Error(), fmt.Sprintf("%q", bad))
	}
}

func TestActivateOnlyOnce(t *testing.T) {
	first := &stubServer{name: "first"}
	second := &stubServer{name: "second"}

	require.NoError(t, game.Activate(first))
	t.Cleanup(func() { game.Deactivate(first) })

	require.ErrorIs(t, game.Activate(second), game.ErrAlreadyActive)
	require.Same(t, first, game.Active())

	game.Deactivate(second)
	require.Same(t, first, game.Active())

	game.Deactivate(first)
	require.Nil(t, game.Active())
}

type stubServer struct {
	game.Server
	name string
}
