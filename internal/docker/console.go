package docker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/docker/docker/api/types"
	"github.com/reedfamily/serverkit/internal/game"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"
)

var ErrMultiline = errors.New("console command spans several lines")

// Console is a CommandExecutor typing command lines into a container's stdin. Commands are
// throttled to a fixed rate so bursts don't flood the game's console reader.
type Console struct {
	client    *Client
	container string
	limiter   ratelimit.Limiter
	log       *zap.Logger

	mu     sync.Mutex
	attach *types.HijackedResponse
}

func NewConsole(client *Client, container string, perSecond int, log *zap.Logger) *Console {
	if log == nil {
		log = zap.NewNop()
	}
	if perSecond <= 0 {
		perSecond = 10
	}
	return &Console{
		client:    client,
		container: container,
		limiter:   ratelimit.New(perSecond),
		log:       log,
	}
}

func (c *Console) Execute(issuer game.Issuer, line string) error {
	if strings.ContainsAny(line, "\r\n") {
		return ErrMultiline
	}
	c.limiter.Take()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.attach == nil {
		attach, err := c.client.AttachStdin(context.Background(), c.container)
		if err != nil {
			return fmt.Errorf("attach %s: %w", c.container, err)
		}
		c.attach = &attach
	}

	if _, err := c.attach.Conn.Write([]byte(line + "\n")); err != nil {
		// reattach on the next command
		c.attach.Close()
		c.attach = nil
		return fmt.Errorf("write console: %w", err)
	}

	by := "system"
	if issuer != nil {
		by = issuer.IssuerName()
	}
	c.log.Debug("console command", zap.String("container", c.container), zap.String("issuer", by), zap.String("line", line))
	return nil
}

// Close detaches from the container.
func (c *Console) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.attach != nil {
		c.attach.Close()
		c.attach = nil
	}
}

var _ game.CommandExecutor = (*Console)(nil)
