package docker

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	inspect  types.ContainerJSON
	logs     string
	attaches int
	conns    chan net.Conn
}

func (f *fakeEngine) ContainerInspect(ctx context.Context, id string) (types.ContainerJSON, error) {
	return f.inspect, nil
}

func (f *fakeEngine) ContainerLogs(ctx context.Context, id string, options container.LogsOptions) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(f.logs)), nil
}

func (f *fakeEngine) ContainerAttach(ctx context.Context, id string, options container.AttachOptions) (types.HijackedResponse, error) {
	if !options.Stdin {
		return types.HijackedResponse{}, errors.New("stdin not requested")
	}
	f.attaches++
	client, server := net.Pipe()
	f.conns <- server
	return types.HijackedResponse{Conn: client, Reader: bufio.NewReader(client)}, nil
}

func (f *fakeEngine) Close() error { return nil }

func frame(stream byte, payload string) string {
	header := make([]byte, 8)
	header[0] = stream
	binary.BigEndian.PutUint32(header[4:], uint32(len(payload)))
	return string(header) + payload
}

func withConfig(tty bool) types.ContainerJSON {
	return types.ContainerJSON{Config: &container.Config{Tty: tty}}
}

func TestFollowLogsTTY(t *testing.T) {
	eng := &fakeEngine{inspect: withConfig(true), logs: "first line\r\nsecond line\n"}
	c := &Client{cli: eng}

	var lines []string
	err := c.FollowLogs(context.Background(), "mc", "0", func(line string) { lines = append(lines, line) })
	require.NoError(t, err)
	require.Equal(t, []string{"first line", "second line"}, lines)
}

func TestFollowLogsMultiplexed(t *testing.T) {
	// frames split lines at arbitrary points
	logs := frame(1, "[Server thread/INFO]: Steve jo") + frame(1, "ined the game\nhal") + frame(2, "f\n") + frame(1, "")
	eng := &fakeEngine{inspect: withConfig(false), logs: logs}
	c := &Client{cli: eng}

	var lines []string
	err := c.FollowLogs(context.Background(), "mc", "0", func(line string) { lines = append(lines, line) })
	require.NoError(t, err)
	require.Equal(t, []string{"[Server thread/INFO]: Steve joined the game", "half"}, lines)
}

func TestFollowLogsBadFrame(t *testing.T) {
	eng := &fakeEngine{inspect: withConfig(false), logs: frame(1, "ok\n") + frame(9, "garbage")}
	c := &Client{cli: eng}

	var lines []string
	err := c.FollowLogs(context.Background(), "mc", "0", func(line string) { lines = append(lines, line) })
	require.Error(t, err)
	require.Equal(t, []string{"ok"}, lines)
}

func TestHostPort(t *testing.T) {
	inspect := withConfig(true)
	inspect.NetworkSettings = &types.NetworkSettings{}
	inspect.NetworkSettings.Ports = nat.PortMap{
		"25565/tcp": {{HostIP: "0.0.0.0", HostPort: "30001"}},
	}
	c := &Client{cli: &fakeEngine{inspect: inspect}}

	port, err := c.HostPort(context.Background(), "mc", 25565, "")
	require.NoError(t, err)
	require.Equal(t, uint16(30001), port)

	port, err = c.HostPort(context.Background(), "mc", 25565, "udp")
	require.NoError(t, err)
	require.Zero(t, port)
}

func TestConsoleWritesLines(t *testing.T) {
	eng := &fakeEngine{conns: make(chan net.Conn, 2)}
	console := NewConsole(&Client{cli: eng}, "mc", 1000, nil)
	t.Cleanup(console.Close)

	done := make(chan error, 1)
	go func() { done <- console.Execute(nil, "say hello") }()

	server := <-eng.conns
	require.NoError(t, server.SetReadDeadline(time.Now().Add(2*time.Second)))
	line, err := bufio.NewReader(server).ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "say hello\n", line)
	require.NoError(t, <-done)
	require.Equal(t, 1, eng.attaches)
}

func TestConsoleReattachesAfterFailure(t *testing.T) {
	eng := &fakeEngine{conns: make(chan net.Conn, 2)}
	console := NewConsole(&Client{cli: eng}, "mc", 1000, nil)
	t.Cleanup(console.Close)

	go func() { _ = console.Execute(nil, "list") }()
	first := <-eng.conns
	_, err := bufio.NewReader(first).ReadString('\n')
	require.NoError(t, err)
	require.NoError(t, first.Close())

	require.Error(t, console.Execute(nil, "save-all"))

	done := make(chan error, 1)
	go func() { done <- console.Execute(nil, "save-all") }()
	second := <-eng.conns
	line, err := bufio.NewReader(second).ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "save-all\n", line)
	require.NoError(t, <-done)
	require.Equal(t, 2, eng.attaches)
}

func TestConsoleRejectsMultiline(t *testing.T) {
	console := NewConsole(&Client{cli: &fakeEngine{}}, "mc", 1000, nil)
	require.ErrorIs(t, console.Execute(nil, "say hi\nop Steve"), ErrMultiline)
}
