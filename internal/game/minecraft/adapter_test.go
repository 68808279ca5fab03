package minecraft

import (
	"testing"
	"time"

	"github.com/reedfamily/serverkit/internal/game"
	"github.com/reedfamily/serverkit/internal/game/console"
	"github.com/stretchr/testify/require"
)

func TestParseLogLine(t *testing.T) {
	a := &Adapter{}
	cases := []struct {
		line string
		want *console.LogEvent
	}{
		{"[09:14:02] [Server thread/INFO]: Steve joined the game", &console.LogEvent{Type: console.EventJoin, Player: "Steve"}},
		{"[09:20:11] [Server thread/INFO]: Steve left the game", &console.LogEvent{Type: console.EventLeave, Player: "Steve"}},
		{"[09:15:40] [Server thread/INFO]: <Steve> hello there", &console.LogEvent{Type: console.EventChat, Player: "Steve", Message: "hello there"}},
		{"[09:16:00] [Server thread/INFO]: There are 2 of a max of 20 players online: Steve, Alex", &console.LogEvent{Type: console.EventPlayers, Players: []string{"Steve", "Alex"}}},
		{"[09:16:00] [Server thread/INFO]: There are 0 of a max of 20 players online:", &console.LogEvent{Type: console.EventPlayers, Players: []string{}}},
		{"[09:17:00] [Server thread/ERROR]: Encountered an unexpected exception", &console.LogEvent{Type: console.EventError, Message: "[09:17:00] [Server thread/ERROR]: Encountered an unexpected exception"}},
		{"[09:18:00] [Server thread/INFO]: Saved the game", nil},
		{"[09:14:02] [Server thread/INFO] [minecraft/DedicatedServer]: Alex joined the game", &console.LogEvent{Type: console.EventJoin, Player: "Alex"}},
		// chat that mimics server messages stays chat
		{"[09:19:00] [Server thread/INFO]: <Steve> lol: Steve left the game", &console.LogEvent{Type: console.EventChat, Player: "Steve", Message: "lol: Steve left the game"}},
		{"[09:19:01] [Server thread/INFO]: <Steve> There are 1 of a max of 20 players online: Herobrine", &console.LogEvent{Type: console.EventChat, Player: "Steve", Message: "There are 1 of a max of 20 players online: Herobrine"}},
		{"[09:19:02] [Server thread/INFO]: <Steve> ERROR", &console.LogEvent{Type: console.EventChat, Player: "Steve", Message: "ERROR"}},
		{"[09:19:03] [User Authenticator #1/INFO]: Herobrine joined the game", nil},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, a.ParseLogLine(tc.line), tc.line)
	}
}

func TestIDFormat(t *testing.T) {
	f := (&Adapter{}).IDFormat()
	id, err := f.Parse(" Notch ")
	require.NoError(t, err)
	require.Equal(t, "notch", id.String())
	require.Equal(t, "minecraft-name", id.Format())

	_, err = f.Parse("bad-name")
	require.ErrorIs(t, err, game.ErrInvalidIdentity)
}

func TestClock(t *testing.T) {
	a := &Adapter{}
	day := a.Clock().Day
	day.Now = func() time.Time { return time.Date(2026, 10, 18, 3, 0, 0, 0, time.UTC) }

	require.Equal(t, time.Date(2026, 10, 18, 6, 0, 0, 0, time.UTC), day.Canonical(0))
	require.Equal(t, time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC), day.Canonical(18000))
	require.InDelta(t, 6000, day.Native(time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)), 0.001)
	require.Equal(t, "time set 6000", a.SetTimeCommand(6000.7))
}
