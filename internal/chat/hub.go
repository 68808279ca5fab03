// Package chat provides ChatTransport implementations: a websocket hub relaying chat to web
// clients and a tee fanning chat out to several transports.
package chat

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/reedfamily/serverkit/internal/game"
	"go.uber.org/zap"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub is a ChatTransport whose sessions are websocket connections.
type Hub struct {
	log       *zap.Logger
	onMessage func(from *Client, text string)

	mu      sync.RWMutex
	clients map[string]*Client
}

// NewHub returns a Hub. onMessage, if not nil, is called for every text message a client sends.
func NewHub(log *zap.Logger, onMessage func(from *Client, text string)) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{log: log, onMessage: onMessage, clients: make(map[string]*Client)}
}

// Client is one websocket session of a Hub.
type Client struct {
	id     string
	name   string
	conn   *websocket.Conn
	wmu    sync.Mutex
	closed atomic.Bool
}

func (c *Client) ID() string      { return c.id }
func (c *Client) Name() string    { return c.name }
func (c *Client) Connected() bool { return !c.closed.Load() }

func (c *Client) write(text string) error {
	if c.closed.Load() {
		return fmt.Errorf("session %s: %w", c.id, websocket.ErrCloseSent)
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, []byte(text))
}

func (c *Client) close() {
	if c.closed.Swap(true) {
		return
	}
	_ = c.conn.Close()
}

// Serve upgrades the request to a websocket and relays chat to and from it until the client goes
// away. name identifies the participant in chat lines.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, name string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("chat websocket upgrade error", zap.Error(err))
		return
	}
	c := &Client{id: uuid.New().String(), name: name, conn: conn}

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	h.log.Debug("chat session opened", zap.String("session", c.id), zap.String("name", name))

	defer func() {
		h.mu.Lock()
		delete(h.clients, c.id)
		h.mu.Unlock()
		c.close()
		h.log.Debug("chat session closed", zap.String("session", c.id))
	}()

	for {
		kind, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if kind != websocket.TextMessage || len(msg) == 0 || h.onMessage == nil {
			continue
		}
		h.onMessage(c, string(msg))
	}
}

// BroadcastAll writes text to every connected client. Clients that fail are disconnected.
func (h *Hub) BroadcastAll(text string) error {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	var errs []error
	for _, c := range clients {
		if err := c.write(text); err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", c.id, err))
			c.close()
		}
	}
	return errors.Join(errs...)
}

// SendTo writes text to one client of this hub.
func (h *Hub) SendTo(session game.Session, text string) error {
	h.mu.RLock()
	c, ok := h.clients[session.ID()]
	h.mu.RUnlock()
	if !ok {
		return game.ErrSessionNotFound
	}
	if err := c.write(text); err != nil {
		c.close()
		return err
	}
	return nil
}

// Sessions returns the connected clients ordered by name.
func (h *Hub) Sessions() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].name < clients[j].name })
	return clients
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		c.close()
	}
}

var _ game.ChatTransport = (*Hub)(nil)
