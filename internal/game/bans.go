package game

import (
	"fmt"
	"sync"
	"time"
)

// Bans composes a backend's IDFormat and BanRegistry into the ban policy shared by every adapter:
// ids are parsed once, banning an already banned subject and unbanning a subject that is not banned
// are no-ops, and the check and the mutation happen under one per-subject lock.
type Bans struct {
	format   IDFormat
	registry BanRegistry
	narrow   func(time.Duration) time.Duration
	onBan    func(id SubjectID, reason string)
	onUnban  func(id SubjectID)
	now      func() time.Time

	locks subjectLocks
}

// BansOption configures optional behaviour of Bans.
type BansOption func(*Bans)

// WithDurationNarrowing converts requested ban durations to what the backend can store. It is only
// called for non-zero durations and must not return zero for them.
func WithDurationNarrowing(f func(time.Duration) time.Duration) BansOption {
	return func(b *Bans) { b.narrow = f }
}

// WithBanHooks registers functions run after a ban was inserted or removed, while the subject lock
// is still held.
func WithBanHooks(onBan func(id SubjectID, reason string), onUnban func(id SubjectID)) BansOption {
	return func(b *Bans) {
		b.onBan = onBan
		b.onUnban = onUnban
	}
}

// WithNow replaces the clock used to stamp new bans.
func WithNow(now func() time.Time) BansOption {
	return func(b *Bans) { b.now = now }
}

// NewBans returns the ban policy for a backend.
func NewBans(format IDFormat, registry BanRegistry, opts ...BansOption) *Bans {
	b := &Bans{
		format:   format,
		registry: registry,
		now:      time.Now,
		locks:    subjectLocks{m: make(map[string]*subjectLock)},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Format returns the id format subject ids are parsed with.
func (b *Bans) Format() IDFormat { return b.format }

// Ban bans the subject with the raw id. A zero duration bans permanently.
func (b *Bans) Ban(raw, reason string, duration time.Duration) error {
	id, err := b.format.Parse(raw)
	if err != nil {
		return err
	}
	if duration < 0 {
		return ErrInvalidDuration
	}
	if duration > 0 && b.narrow != nil {
		duration = b.narrow(duration)
	}

	unlock := b.locks.lock(id.String())
	defer unlock()

	banned, err := b.registry.CheckActive(id.String())
	if err != nil {
		return fmt.Errorf("check ban %s: %w", id, err)
	}
	if banned {
		return nil
	}
	entry := BanEntry{Subject: id.String(), Reason: reason, Duration: duration, BannedAt: b.now()}
	if err := b.registry.Insert(entry); err != nil {
		return fmt.Errorf("insert ban %s: %w", id, err)
	}
	if b.onBan != nil {
		b.onBan(id, reason)
	}
	return nil
}

// Unban lifts the ban on the subject with the raw id.
func (b *Bans) Unban(raw string) error {
	id, err := b.format.Parse(raw)
	if err != nil {
		return err
	}

	unlock := b.locks.lock(id.String())
	defer unlock()

	banned, err := b.registry.CheckActive(id.String())
	if err != nil {
		return fmt.Errorf("check ban %s: %w", id, err)
	}
	if !banned {
		return nil
	}
	if err := b.registry.Remove(id.String()); err != nil {
		return fmt.Errorf("remove ban %s: %w", id, err)
	}
	if b.onUnban != nil {
		b.onUnban(id)
	}
	return nil
}

// IsBanned reports if the subject with the raw id is banned.
func (b *Bans) IsBanned(raw string) (bool, error) {
	id, err := b.format.Parse(raw)
	if err != nil {
		return false, err
	}
	banned, err := b.registry.CheckActive(id.String())
	if err != nil {
		return false, fmt.Errorf("check ban %s: %w", id, err)
	}
	return banned, nil
}

// Remaining returns the time left on the subject's ban.
func (b *Bans) Remaining(raw string) (time.Duration, error) {
	id, err := b.format.Parse(raw)
	if err != nil {
		return 0, err
	}
	entry, ok, err := b.registry.Find(id.String())
	if err != nil {
		return 0, fmt.Errorf("find ban %s: %w", id, err)
	}
	if !ok {
		return 0, fmt.Errorf("ban for %s: %w", id, ErrNotFound)
	}
	left := entry.Remaining(b.now())
	if left == 0 {
		return 0, fmt.Errorf("ban for %s: %w", id, ErrNotFound)
	}
	return left, nil
}

// List returns the active bans if the registry can enumerate them.
func (b *Bans) List() ([]BanEntry, bool, error) {
	lister, ok := b.registry.(BanLister)
	if !ok {
		return nil, false, nil
	}
	entries, err := lister.List()
	return entries, true, err
}

type subjectLock struct {
	sync.Mutex
	refs int
}

// subjectLocks hands out one mutex per subject and forgets it once nobody holds or waits for it.
type subjectLocks struct {
	mu sync.Mutex
	m  map[string]*subjectLock
}

func (l *subjectLocks) lock(key string) (unlock func()) {
	l.mu.Lock()
	sl, ok := l.m[key]
	if !ok {
		sl = &subjectLock{}
		l.m[key] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.Lock()
	return func() {
		sl.Unlock()
		l.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(l.m, key)
		}
		l.mu.Unlock()
	}
}
