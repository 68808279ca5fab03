package game

import (
	"math"
	"time"
)

// Forever is the remaining time reported for permanent bans.
const Forever = time.Duration(math.MaxInt64)

// BanEntry is one ban held by a BanRegistry.
type BanEntry struct {
	Subject  string        `json:"subject"`
	Reason   string        `json:"reason"`
	Duration time.Duration `json:"duration"` // zero means permanent
	BannedAt time.Time     `json:"banned_at"`
}

// Permanent reports if the ban never expires.
func (e BanEntry) Permanent() bool { return e.Duration == 0 }

// Remaining returns the time left on the ban at now, Forever for permanent bans and zero once the
// ban has run out.
func (e BanEntry) Remaining(now time.Time) time.Duration {
	if e.Permanent() {
		return Forever
	}
	left := e.BannedAt.Add(e.Duration).Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// Expired reports if the ban has run out at now.
func (e BanEntry) Expired(now time.Time) bool {
	return !e.Permanent() && e.Remaining(now) == 0
}

// BanRegistry stores the bans of one backend. Implementations treat expired entries as absent.
type BanRegistry interface {
	// Find returns the entry for subject. The bool is false if there is none.
	Find(subject string) (BanEntry, bool, error)
	// Insert stores entry, replacing any entry for the same subject.
	Insert(entry BanEntry) error
	// Remove deletes the entry for subject, if any.
	Remove(subject string) error
	// CheckActive reports if subject has an unexpired ban.
	CheckActive(subject string) (bool, error)
}

// BanLister is implemented by registries able to enumerate their active bans.
type BanLister interface {
	List() ([]BanEntry, error)
}

// Session is a connected chat participant of a ChatTransport.
type Session interface {
	ID() string
	Connected() bool
}

// ChatTransport delivers chat text to connected sessions.
type ChatTransport interface {
	BroadcastAll(text string) error
	SendTo(session Session, text string) error
}

// Issuer is the identity a console command is attributed to.
type Issuer interface {
	IssuerName() string
}

// CommandExecutor submits a single console command line to a backend. A nil issuer runs the
// command with system authority.
type CommandExecutor interface {
	Execute(issuer Issuer, line string) error
}
