package bans

import (
	"sync"
	"time"

	"github.com/reedfamily/serverkit/internal/game"
)

// Memory keeps bans in process memory. Bans are lost on restart.
type Memory struct {
	mu      sync.Mutex
	entries map[string]game.BanEntry
	now     func() time.Time
}

// NewMemory returns an empty in-memory registry.
func NewMemory(opts ...Option) *Memory {
	o := buildOptions(opts)
	return &Memory{entries: make(map[string]game.BanEntry), now: o.now}
}

func (m *Memory) Find(subject string) (game.BanEntry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findLocked(subject)
}

func (m *Memory) findLocked(subject string) (game.BanEntry, bool, error) {
	e, ok := m.entries[subject]
	if !ok {
		return game.BanEntry{}, false, nil
	}
	if e.Expired(m.now()) {
		delete(m.entries, subject)
		return game.BanEntry{}, false, nil
	}
	return e, true, nil
}

func (m *Memory) Insert(entry game.BanEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.Subject] = entry
	return nil
}

func (m *Memory) Remove(subject string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, subject)
	return nil
}

func (m *Memory) CheckActive(subject string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok, err := m.findLocked(subject)
	return ok, err
}

func (m *Memory) List() ([]game.BanEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	entries := make([]game.BanEntry, 0, len(m.entries))
	for subject, e := range m.entries {
		if e.Expired(now) {
			delete(m.entries, subject)
			continue
		}
		entries = append(entries, e)
	}
	sortEntries(entries)
	return entries, nil
}

var (
	_ game.BanRegistry = (*Memory)(nil)
	_ game.BanLister   = (*Memory)(nil)
)
