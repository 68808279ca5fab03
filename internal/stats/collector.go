// Package stats samples the player population of the active server.
package stats

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/reedfamily/serverkit/internal/game"
	"go.uber.org/zap"
)

const timeLayout = "2006-01-02 15:04:05"

// Retention is how long samples are kept.
const Retention = 24 * time.Hour

type Sample struct {
	ID         int64  `json:"id"`
	Players    int    `json:"players"`
	MaxPlayers int    `json:"max_players"`
	RecordedAt string `json:"recorded_at"`
}

type Collector struct {
	db     *sql.DB
	server func() game.Server
	log    *zap.Logger
	now    func() time.Time

	mu        sync.RWMutex
	latest    *Sample
	listeners []chan *Sample

	cancel context.CancelFunc
}

// NewCollector returns a Collector sampling the server returned by server, game.Active if nil.
func NewCollector(db *sql.DB, server func() game.Server, log *zap.Logger) *Collector {
	if server == nil {
		server = game.Active
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Collector{db: db, server: server, log: log, now: time.Now}
}

func (c *Collector) Start(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		// Run immediately on start
		c.Collect()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Collect()
			}
		}
	}()

	c.log.Info("stats collector started", zap.Duration("interval", interval))
}

func (c *Collector) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

// Collect records one sample of the active server and hands it to the subscribers. It returns nil
// if no server is active.
func (c *Collector) Collect() *Sample {
	srv := c.server()
	if srv == nil {
		return nil
	}
	now := c.now().UTC()
	sample := &Sample{
		Players:    srv.Players(),
		MaxPlayers: srv.MaxPlayers(),
		RecordedAt: now.Format(time.RFC3339),
	}

	res, err := c.db.Exec(
		`INSERT INTO population (players, max_players, recorded_at) VALUES (?, ?, ?)`,
		sample.Players, sample.MaxPlayers, now.Format(timeLayout),
	)
	if err != nil {
		c.log.Warn("stats: insert sample", zap.Error(err))
	} else {
		sample.ID, _ = res.LastInsertId()
	}

	// Update latest cache and notify listeners
	c.mu.Lock()
	c.latest = sample
	for _, ch := range c.listeners {
		select {
		case ch <- sample:
		default:
			// Drop if listener is slow
		}
	}
	c.mu.Unlock()

	if _, err := c.db.Exec("DELETE FROM population WHERE recorded_at < ?", now.Add(-Retention).Format(timeLayout)); err != nil {
		c.log.Warn("stats: cleanup", zap.Error(err))
	}
	return sample
}

func (c *Collector) Latest() *Sample {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest
}

// History returns the samples recorded since the given time, oldest first.
func (c *Collector) History(since time.Time) ([]Sample, error) {
	rows, err := c.db.Query(
		`SELECT id, players, max_players, recorded_at FROM population WHERE recorded_at >= ? ORDER BY recorded_at ASC, id ASC`,
		since.UTC().Format(timeLayout),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []Sample{}
	for rows.Next() {
		var s Sample
		var recordedAt time.Time
		if err := rows.Scan(&s.ID, &s.Players, &s.MaxPlayers, &recordedAt); err != nil {
			return nil, err
		}
		s.RecordedAt = recordedAt.UTC().Format(time.RFC3339)
		result = append(result, s)
	}
	return result, rows.Err()
}

func (c *Collector) Subscribe() chan *Sample {
	ch := make(chan *Sample, 1)
	c.mu.Lock()
	c.listeners = append(c.listeners, ch)
	c.mu.Unlock()
	return ch
}

func (c *Collector) Unsubscribe(ch chan *Sample) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, l := range c.listeners {
		if l == ch {
			c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}
