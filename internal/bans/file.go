package bans

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/reedfamily/serverkit/internal/game"
)

// File keeps bans in a TOML blacklist file. Every mutation rewrites the file; a failed write leaves
// the in-memory list as it was before the call.
type File struct {
	mu      sync.Mutex
	path    string
	entries map[string]game.BanEntry
	now     func() time.Time
}

type blacklistFile struct {
	Bans []blacklistEntry `toml:"bans"`
}

type blacklistEntry struct {
	Subject  string    `toml:"subject"`
	Reason   string    `toml:"reason"`
	Duration string    `toml:"duration"`
	BannedAt time.Time `toml:"banned_at"`
}

// LoadFile loads the blacklist at path, creating an empty one if it does not exist yet.
func LoadFile(path string, opts ...Option) (*File, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("blacklist path must not be empty")
	}
	o := buildOptions(opts)
	f := &File{path: path, entries: make(map[string]game.BanEntry), now: o.now}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.readLocked(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) Find(subject string) (game.BanEntry, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.findLocked(subject)
}

func (f *File) findLocked(subject string) (game.BanEntry, bool, error) {
	e, ok := f.entries[subject]
	if !ok {
		return game.BanEntry{}, false, nil
	}
	if !e.Expired(f.now()) {
		return e, true, nil
	}
	delete(f.entries, subject)
	if err := f.writeLocked(); err != nil {
		f.entries[subject] = e
		return game.BanEntry{}, false, err
	}
	return game.BanEntry{}, false, nil
}

func (f *File) Insert(entry game.BanEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	previous, existed := f.entries[entry.Subject]
	f.entries[entry.Subject] = entry
	if err := f.writeLocked(); err != nil {
		if existed {
			f.entries[entry.Subject] = previous
		} else {
			delete(f.entries, entry.Subject)
		}
		return err
	}
	return nil
}

func (f *File) Remove(subject string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	previous, existed := f.entries[subject]
	if !existed {
		return nil
	}
	delete(f.entries, subject)
	if err := f.writeLocked(); err != nil {
		f.entries[subject] = previous
		return err
	}
	return nil
}

func (f *File) CheckActive(subject string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok, err := f.findLocked(subject)
	return ok, err
}

func (f *File) List() ([]game.BanEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	entries := make([]game.BanEntry, 0, len(f.entries))
	for _, e := range f.entries {
		if !e.Expired(now) {
			entries = append(entries, e)
		}
	}
	sortEntries(entries)
	return entries, nil
}

func (f *File) readLocked() error {
	contents, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return f.writeLocked()
		}
		return fmt.Errorf("read blacklist: %w", err)
	}
	var data blacklistFile
	if len(contents) != 0 {
		if err := toml.Unmarshal(contents, &data); err != nil {
			return fmt.Errorf("decode blacklist: %w", err)
		}
	}
	for _, be := range data.Bans {
		subject := strings.TrimSpace(be.Subject)
		if subject == "" {
			continue
		}
		var duration time.Duration
		if be.Duration != "" {
			if duration, err = time.ParseDuration(be.Duration); err != nil {
				return fmt.Errorf("decode blacklist entry %s: %w", subject, err)
			}
		}
		f.entries[subject] = game.BanEntry{
			Subject:  subject,
			Reason:   be.Reason,
			Duration: duration,
			BannedAt: be.BannedAt,
		}
	}
	return nil
}

func (f *File) writeLocked() error {
	dir := filepath.Dir(f.path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create blacklist directory: %w", err)
		}
	}

	entries := make([]game.BanEntry, 0, len(f.entries))
	for _, e := range f.entries {
		entries = append(entries, e)
	}
	sortEntries(entries)

	data := blacklistFile{Bans: make([]blacklistEntry, 0, len(entries))}
	for _, e := range entries {
		data.Bans = append(data.Bans, blacklistEntry{
			Subject:  e.Subject,
			Reason:   e.Reason,
			Duration: e.Duration.String(),
			BannedAt: e.BannedAt.UTC().Truncate(time.Millisecond),
		})
	}
	encoded, err := toml.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode blacklist: %w", err)
	}
	if err := os.WriteFile(f.path, encoded, 0o644); err != nil {
		return fmt.Errorf("write blacklist: %w", err)
	}
	return nil
}

var (
	_ game.BanRegistry = (*File)(nil)
	_ game.BanLister   = (*File)(nil)
)
