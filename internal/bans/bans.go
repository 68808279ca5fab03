// Package bans provides BanRegistry implementations: an in-memory list, a SQLite table and a TOML
// blacklist file. Expired bans are treated as absent and pruned when they are next looked at.
package bans

import (
	"slices"
	"strings"
	"time"

	"github.com/reedfamily/serverkit/internal/game"
)

// Option configures a registry.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces the clock used to decide if a ban has expired.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func sortEntries(entries []game.BanEntry) {
	slices.SortFunc(entries, func(a, b game.BanEntry) int {
		if c := a.BannedAt.Compare(b.BannedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Subject, b.Subject)
	})
}
