package docker

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
)

// engine is the part of the Docker API the console needs.
type engine interface {
	ContainerInspect(ctx context.Context, id string) (types.ContainerJSON, error)
	ContainerLogs(ctx context.Context, id string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerAttach(ctx context.Context, id string, options container.AttachOptions) (types.HijackedResponse, error)
	Close() error
}

type Client struct {
	cli engine
}

func NewClient() (*Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	return &Client{cli: cli}, nil
}

func (c *Client) Close() error {
	return c.cli.Close()
}

func (c *Client) InspectContainer(ctx context.Context, id string) (*types.ContainerJSON, error) {
	resp, err := c.cli.ContainerInspect(ctx, id)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ContainerLogs(ctx context.Context, id string, tail string) (io.ReadCloser, error) {
	return c.cli.ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
		Tail:       tail,
	})
}

// AttachStdin attaches to the stdin of the container's main process.
func (c *Client) AttachStdin(ctx context.Context, id string) (types.HijackedResponse, error) {
	return c.cli.ContainerAttach(ctx, id, container.AttachOptions{
		Stream: true,
		Stdin:  true,
	})
}

// HostPort returns the host port published for the container port, or 0 if it isn't published.
func (c *Client) HostPort(ctx context.Context, id string, port uint16, proto string) (uint16, error) {
	if proto == "" {
		proto = "tcp"
	}
	key, err := nat.NewPort(proto, strconv.Itoa(int(port)))
	if err != nil {
		return 0, err
	}
	inspect, err := c.InspectContainer(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("inspect container: %w", err)
	}
	if inspect.NetworkSettings == nil {
		return 0, nil
	}
	for _, binding := range inspect.NetworkSettings.Ports[key] {
		if binding.HostPort == "" {
			continue
		}
		hp, err := nat.ParsePort(binding.HostPort)
		if err != nil {
			return 0, fmt.Errorf("host port %q: %w", binding.HostPort, err)
		}
		return uint16(hp), nil
	}
	return 0, nil
}
