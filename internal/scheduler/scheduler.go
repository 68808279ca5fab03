// Package scheduler runs recurring administrative actions against the active game server.
package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/reedfamily/serverkit/internal/game"
	"go.uber.org/zap"
)

const (
	ActionSave      = "save"
	ActionBroadcast = "broadcast"
	ActionCommand   = "command"
)

var (
	ErrNotFound = errors.New("schedule not found")
	ErrInvalid  = errors.New("invalid schedule")
)

type Schedule struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CronExpr  string `json:"cron_expr"`
	Action    string `json:"action"` // save, broadcast, command
	Payload   string `json:"payload"`
	Enabled   bool   `json:"enabled"`
	LastRun   string `json:"last_run"`
	CreatedAt string `json:"created_at"`
}

// Validate checks the cron expression and that the action has the payload it needs.
func (s *Schedule) Validate() error {
	if s.Name == "" || s.CronExpr == "" || s.Action == "" {
		return fmt.Errorf("%w: name, cron_expr, and action required", ErrInvalid)
	}
	if _, err := ParseCron(s.CronExpr); err != nil {
		return fmt.Errorf("%w: invalid cron expression: %v", ErrInvalid, err)
	}
	switch s.Action {
	case ActionSave:
	case ActionBroadcast, ActionCommand:
		if s.Payload == "" {
			return fmt.Errorf("%w: action %s requires a payload", ErrInvalid, s.Action)
		}
	default:
		return fmt.Errorf("%w: action must be one of: save, broadcast, command", ErrInvalid)
	}
	return nil
}

type Scheduler struct {
	db     *sql.DB
	server func() game.Server
	log    *zap.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns a Scheduler running actions against the server returned by server, game.Active if
// nil.
func New(db *sql.DB, server func() game.Server, log *zap.Logger) *Scheduler {
	if server == nil {
		server = game.Active
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{db: db, server: server, log: log}
}

func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		// Check every 60 seconds, aligned to the minute
		for {
			now := time.Now()
			nextMinute := now.Truncate(time.Minute).Add(time.Minute)

			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Until(nextMinute)):
				s.RunDue(nextMinute)
			}
		}
	}()

	s.log.Info("scheduler started")
}

func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

// RunDue runs every enabled schedule matching now.
func (s *Scheduler) RunDue(now time.Time) {
	schedules, err := s.List()
	if err != nil {
		s.log.Error("list schedules", zap.Error(err))
		return
	}

	for _, sc := range schedules {
		if !sc.Enabled {
			continue
		}
		cron, err := ParseCron(sc.CronExpr)
		if err != nil {
			s.log.Warn("invalid cron expression", zap.String("schedule", sc.ID), zap.String("cron_expr", sc.CronExpr), zap.Error(err))
			continue
		}
		if !cron.Matches(now) {
			continue
		}

		srv := s.server()
		if srv == nil {
			s.log.Warn("no active server, skipping schedule", zap.String("schedule", sc.ID))
			continue
		}
		s.log.Info("running schedule", zap.String("schedule", sc.ID), zap.String("action", sc.Action))
		execute(srv, sc)

		if _, err := s.db.Exec("UPDATE schedules SET last_run = ? WHERE id = ?", now.UTC(), sc.ID); err != nil {
			s.log.Warn("update last_run", zap.String("schedule", sc.ID), zap.Error(err))
		}
	}
}

func execute(srv game.Server, sc Schedule) {
	switch sc.Action {
	case ActionSave:
		srv.Save()
	case ActionBroadcast:
		srv.Broadcast(sc.Payload)
	case ActionCommand:
		srv.Command(sc.Payload)
	}
}

const selectSchedule = `SELECT id, name, cron_expr, action, payload, enabled, COALESCE(last_run, ''), created_at FROM schedules`

func scanSchedule(row interface{ Scan(...any) error }) (Schedule, error) {
	var sc Schedule
	var enabled int
	err := row.Scan(&sc.ID, &sc.Name, &sc.CronExpr, &sc.Action, &sc.Payload, &enabled, &sc.LastRun, &sc.CreatedAt)
	sc.Enabled = enabled == 1
	return sc, err
}

func (s *Scheduler) List() ([]Schedule, error) {
	rows, err := s.db.Query(selectSchedule + ` ORDER BY created_at DESC, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	schedules := []Schedule{}
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, sc)
	}
	return schedules, rows.Err()
}

func (s *Scheduler) Get(id string) (Schedule, error) {
	sc, err := scanSchedule(s.db.QueryRow(selectSchedule+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Schedule{}, ErrNotFound
	}
	return sc, err
}

func (s *Scheduler) Create(sc Schedule) (Schedule, error) {
	if err := sc.Validate(); err != nil {
		return Schedule{}, err
	}
	id := uuid.New().String()[:8]
	_, err := s.db.Exec(
		`INSERT INTO schedules (id, name, cron_expr, action, payload) VALUES (?, ?, ?, ?, ?)`,
		id, sc.Name, sc.CronExpr, sc.Action, sc.Payload,
	)
	if err != nil {
		return Schedule{}, fmt.Errorf("create schedule: %w", err)
	}
	return s.Get(id)
}

// Update stores the editable fields of sc.
func (s *Scheduler) Update(sc Schedule) (Schedule, error) {
	if err := sc.Validate(); err != nil {
		return Schedule{}, err
	}
	enabled := 0
	if sc.Enabled {
		enabled = 1
	}
	res, err := s.db.Exec(
		`UPDATE schedules SET name = ?, cron_expr = ?, action = ?, payload = ?, enabled = ? WHERE id = ?`,
		sc.Name, sc.CronExpr, sc.Action, sc.Payload, enabled, sc.ID,
	)
	if err != nil {
		return Schedule{}, fmt.Errorf("update schedule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Schedule{}, ErrNotFound
	}
	return s.Get(sc.ID)
}

func (s *Scheduler) Delete(id string) error {
	res, err := s.db.Exec("DELETE FROM schedules WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
