package game

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// SubjectID is the identity of a player targeted by an administrative action. A SubjectID only
// exists once a backend's IDFormat has accepted the raw string, so holding one means the id is valid
// for that backend.
type SubjectID struct {
	format string
	value  string
}

// NewSubjectID wraps an already validated, canonical id. It is meant for IDFormat implementations.
func NewSubjectID(format, value string) SubjectID {
	return SubjectID{format: format, value: value}
}

// String returns the canonical form of the id.
func (id SubjectID) String() string { return id.value }

// Format returns the name of the IDFormat that produced the id.
func (id SubjectID) Format() string { return id.format }

// IsZero reports if id was never produced by a format.
func (id SubjectID) IsZero() bool { return id.value == "" }

// IDFormat parses raw subject ids in a backend's native format. Parse is the only place an
// ErrInvalidIdentity originates.
type IDFormat interface {
	Name() string
	Parse(raw string) (SubjectID, error)
}

// SteamFormat accepts 64-bit Steam ids written in decimal.
type SteamFormat struct{}

func (SteamFormat) Name() string { return "steam" }

func (f SteamFormat) Parse(raw string) (SubjectID, error) {
	trimmed := strings.TrimSpace(raw)
	v, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return SubjectID{}, &IdentityError{Format: f.Name(), ID: raw, Err: err}
	}
	if v == 0 {
		return SubjectID{}, &IdentityError{Format: f.Name(), ID: raw}
	}
	return NewSubjectID(f.Name(), strconv.FormatUint(v, 10)), nil
}

// SteamID64 returns the numeric Steam id held by id. It panics if id was not produced by SteamFormat.
func SteamID64(id SubjectID) uint64 {
	if id.format != (SteamFormat{}).Name() {
		panic(fmt.Sprintf("game: %s id passed where a steam id is required", id.format))
	}
	v, _ := strconv.ParseUint(id.value, 10, 64)
	return v
}

// NameFormat accepts player names matching Pattern. Names are case-insensitive: the canonical form
// is lower case.
type NameFormat struct {
	Game    string
	Pattern *regexp.Regexp
}

func (f NameFormat) Name() string { return f.Game + "-name" }

func (f NameFormat) Parse(raw string) (SubjectID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || !f.Pattern.MatchString(trimmed) {
		return SubjectID{}, &IdentityError{Format: f.Name(), ID: raw}
	}
	return NewSubjectID(f.Name(), strings.ToLower(trimmed)), nil
}
