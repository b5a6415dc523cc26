package model

import (
	"fmt"
	"strings"
)

// User mode flags reported by WHOIS numerics
const (
	ModeIdentified = 'r'
	ModeSecure     = 'z'
	ModeOper       = 'o'
)

// User is a tracked IRC user. Nick keeps its display casing; lookups use Key().
type User struct {
	Nick   string
	User   string
	Host   string
	Modes  string
	IsSelf bool
}

// ParseUser builds a User from a nick!user@host mask. Missing parts are left empty.
func ParseUser(mask string) *User {
	nick, rest, _ := strings.Cut(mask, "!")
	user, host, _ := strings.Cut(rest, "@")
	return &User{Nick: nick, User: user, Host: host}
}

// Key returns the case-folded nick used for all lookups.
func (u *User) Key() string {
	return Fold(u.Nick)
}

// Mask returns the nick!user@host form.
func (u *User) Mask() string {
	return fmt.Sprintf("%s!%s@%s", u.Nick, u.User, u.Host)
}

func (u *User) String() string {
	return u.Nick
}

// SetMode adds or removes a single mode flag. It is idempotent.
func (u *User) SetMode(added bool, mode rune) {
	has := strings.ContainsRune(u.Modes, mode)
	switch {
	case added && !has:
		u.Modes += string(mode)
	case !added && has:
		u.Modes = strings.ReplaceAll(u.Modes, string(mode), "")
	}
}

// HasMode reports whether the flag is set.
func (u *User) HasMode(mode rune) bool {
	return strings.ContainsRune(u.Modes, mode)
}

func (u *User) IsIdentified() bool { return u.HasMode(ModeIdentified) }
func (u *User) IsSecure() bool     { return u.HasMode(ModeSecure) }
func (u *User) IsOper() bool       { return u.HasMode(ModeOper) }

// Fold lowercases a nick or channel name for use as a map key.
func Fold(s string) string {
	return strings.ToLower(s)
}
