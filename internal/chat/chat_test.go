package chat

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/reedfamily/serverkit/internal/game"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, hub *Hub, name string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(w, r, name)
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	return string(msg)
}

func TestHubBroadcastAndSend(t *testing.T) {
	hub := NewHub(nil, nil)
	alice := dialHub(t, hub, "alice")
	bob := dialHub(t, hub, "bob")
	require.Eventually(t, func() bool { return len(hub.Sessions()) == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.BroadcastAll("Server restarting"))
	require.Equal(t, "Server restarting", readText(t, alice))
	require.Equal(t, "Server restarting", readText(t, bob))

	sessions := hub.Sessions()
	require.Equal(t, "alice", sessions[0].Name())
	require.True(t, sessions[0].Connected())
	require.NoError(t, hub.SendTo(sessions[1], "psst"))
	require.Equal(t, "psst", readText(t, bob))
}

func TestHubRelaysIncomingMessages(t *testing.T) {
	got := make(chan string, 1)
	hub := NewHub(nil, func(from *Client, text string) {
		got <- from.Name() + ": " + text
	})
	conn := dialHub(t, hub, "carol")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello")))
	select {
	case line := <-got:
		require.Equal(t, "carol: hello", line)
	case <-time.After(2 * time.Second):
		t.Fatal("message was not relayed")
	}
}

func TestHubForgetsClosedSessions(t *testing.T) {
	hub := NewHub(nil, nil)
	conn := dialHub(t, hub, "dave")
	require.Eventually(t, func() bool { return len(hub.Sessions()) == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return len(hub.Sessions()) == 0 }, 2*time.Second, 10*time.Millisecond)
}

type fakeSession string

func (s fakeSession) ID() string      { return string(s) }
func (s fakeSession) Connected() bool { return true }

func TestHubSendToUnknownSession(t *testing.T) {
	hub := NewHub(nil, nil)
	require.ErrorIs(t, hub.SendTo(fakeSession("nobody"), "hi"), game.ErrSessionNotFound)
}

type fakeTransport struct {
	owns       string
	broadcasts []string
	sent       []string
	err        error
}

func (f *fakeTransport) BroadcastAll(text string) error {
	f.broadcasts = append(f.broadcasts, text)
	return f.err
}

func (f *fakeTransport) SendTo(s game.Session, text string) error {
	if s.ID() != f.owns {
		return game.ErrSessionNotFound
	}
	f.sent = append(f.sent, text)
	return f.err
}

func TestTee(t *testing.T) {
	boom := errors.New("rpc down")
	game1 := &fakeTransport{owns: "steve", err: boom}
	web := &fakeTransport{owns: "web-1"}
	tee := Tee{game1, web}

	require.ErrorIs(t, tee.BroadcastAll("hi"), boom)
	require.Equal(t, []string{"hi"}, game1.broadcasts)
	require.Equal(t, []string{"hi"}, web.broadcasts)

	require.NoError(t, tee.SendTo(fakeSession("web-1"), "psst"))
	require.Equal(t, []string{"psst"}, web.sent)
	require.Empty(t, game1.sent)

	require.ErrorIs(t, tee.SendTo(fakeSession("nobody"), "psst"), game.ErrSessionNotFound)
}
