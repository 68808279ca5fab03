package bans

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/reedfamily/serverkit/internal/game"
)

// SQLite stores bans in the bans table created by db.Migrate.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite returns a registry backed by db.
func NewSQLite(db *sql.DB, opts ...Option) *SQLite {
	o := buildOptions(opts)
	return &SQLite{db: db, now: o.now}
}

func (s *SQLite) Find(subject string) (game.BanEntry, bool, error) {
	var e game.BanEntry
	var duration, bannedAt int64
	err := s.db.QueryRow(
		`SELECT subject, reason, duration_ns, banned_at FROM bans WHERE subject = ?`, subject,
	).Scan(&e.Subject, &e.Reason, &duration, &bannedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return game.BanEntry{}, false, nil
		}
		return game.BanEntry{}, false, fmt.Errorf("query ban: %w", err)
	}
	e.Duration = time.Duration(duration)
	e.BannedAt = time.Unix(0, bannedAt)
	if e.Expired(s.now()) {
		if _, err := s.db.Exec(`DELETE FROM bans WHERE subject = ?`, subject); err != nil {
			return game.BanEntry{}, false, fmt.Errorf("prune ban: %w", err)
		}
		return game.BanEntry{}, false, nil
	}
	return e, true, nil
}

func (s *SQLite) Insert(entry game.BanEntry) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO bans (subject, reason, duration_ns, banned_at) VALUES (?, ?, ?, ?)`,
		entry.Subject, entry.Reason, int64(entry.Duration), entry.BannedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert ban: %w", err)
	}
	return nil
}

func (s *SQLite) Remove(subject string) error {
	if _, err := s.db.Exec(`DELETE FROM bans WHERE subject = ?`, subject); err != nil {
		return fmt.Errorf("delete ban: %w", err)
	}
	return nil
}

func (s *SQLite) CheckActive(subject string) (bool, error) {
	_, ok, err := s.Find(subject)
	return ok, err
}

func (s *SQLite) List() ([]game.BanEntry, error) {
	now := s.now()
	if _, err := s.db.Exec(
		`DELETE FROM bans WHERE duration_ns > 0 AND banned_at + duration_ns <= ?`, now.UnixNano(),
	); err != nil {
		return nil, fmt.Errorf("prune bans: %w", err)
	}

	rows, err := s.db.Query(`SELECT subject, reason, duration_ns, banned_at FROM bans ORDER BY banned_at, subject`)
	if err != nil {
		return nil, fmt.Errorf("query bans: %w", err)
	}
	defer rows.Close()

	entries := []game.BanEntry{}
	for rows.Next() {
		var e game.BanEntry
		var duration, bannedAt int64
		if err := rows.Scan(&e.Subject, &e.Reason, &duration, &bannedAt); err != nil {
			return nil, fmt.Errorf("scan ban: %w", err)
		}
		e.Duration = time.Duration(duration)
		e.BannedAt = time.Unix(0, bannedAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

var (
	_ game.BanRegistry = (*SQLite)(nil)
	_ game.BanLister   = (*SQLite)(nil)
)
