package docker

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/pkg/stdcopy"
)

// FollowLogs streams the container's output to fn one line at a time until ctx is done or the
// container stops. tail selects how much history is replayed first ("0" for none, "all").
func (c *Client) FollowLogs(ctx context.Context, id, tail string, fn func(line string)) error {
	// TTY containers stream raw output, the rest multiplex stdout and stderr
	inspect, err := c.InspectContainer(ctx, id)
	if err != nil {
		return fmt.Errorf("inspect container: %w", err)
	}
	isTTY := inspect.Config != nil && inspect.Config.Tty

	logReader, err := c.ContainerLogs(ctx, id, tail)
	if err != nil {
		return fmt.Errorf("container logs: %w", err)
	}
	defer logReader.Close()

	err = scanLines(logReader, isTTY, fn)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func scanLines(r io.Reader, isTTY bool, fn func(line string)) error {
	if !isTTY {
		pr, pw := io.Pipe()
		go func() {
			_, err := stdcopy.StdCopy(pw, pw, r)
			pw.CloseWithError(err)
		}()
		defer pr.Close()
		r = pr
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 4096), 1024*1024)
	for scanner.Scan() {
		fn(strings.TrimRight(scanner.Text(), "\r"))
	}
	return scanner.Err()
}
