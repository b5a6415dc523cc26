package model

import (
	"slices"
	"sort"
	"strings"
)

// Privilege is one of the five ranked channel roles.
type Privilege int

const (
	Owner Privilege = iota
	Admin
	Operator
	HalfOperator
	Voice

	numPrivileges
)

var privilegeNames = [...]string{"owner", "admin", "operator", "halfop", "voice"}

func (p Privilege) String() string {
	if p < 0 || p >= numPrivileges {
		return "unknown"
	}
	return privilegeNames[p]
}

// privilegeModes maps channel mode letters to the privilege they grant.
var privilegeModes = map[rune]Privilege{
	'q': Owner,
	'a': Admin,
	'o': Operator,
	'h': HalfOperator,
	'v': Voice,
}

// PrivilegeForMode returns the privilege a mode letter controls, if any.
func PrivilegeForMode(mode rune) (Privilege, bool) {
	p, ok := privilegeModes[mode]
	return p, ok
}

const ModeBan = 'b'

type nickSet map[string]struct{}

func (s nickSet) add(nick string) {
	s[nick] = struct{}{}
}

func (s nickSet) has(nick string) bool {
	_, ok := s[nick]
	return ok
}

// Channel is a joined channel, or a pseudo-channel standing in for a private query.
type Channel struct {
	Name  string
	Modes string
	Topic string

	users      nickSet
	privileges [numPrivileges]nickSet
	bans       []string
}

// NewChannel creates an empty channel record.
func NewChannel(name string) *Channel {
	c := &Channel{
		Name:  name,
		users: nickSet{},
	}
	for i := range c.privileges {
		c.privileges[i] = nickSet{}
	}
	return c
}

// Key returns the case-folded channel name.
func (c *Channel) Key() string {
	return Fold(c.Name)
}

// IsUser reports whether this is a pseudo-channel for a private query.
func (c *Channel) IsUser() bool {
	return !IsChannelName(c.Name)
}

// IsChannelName reports whether name carries a channel prefix.
func IsChannelName(name string) bool {
	return strings.HasPrefix(name, "#") || strings.HasPrefix(name, "&")
}

func (c *Channel) String() string {
	return c.Name
}

// AddUser adds a nick to the membership set.
func (c *Channel) AddUser(nick string) {
	c.users.add(Fold(nick))
}

// HasUser reports membership.
func (c *Channel) HasUser(nick string) bool {
	return c.users.has(Fold(nick))
}

// RemoveUser drops a nick from membership and from every privilege set.
func (c *Channel) RemoveUser(nick string) {
	key := Fold(nick)
	delete(c.users, key)
	for _, set := range c.privileges {
		delete(set, key)
	}
}

// RenameUser re-keys a nick in membership and privilege sets.
func (c *Channel) RenameUser(old, newNick string) {
	oldKey, newKey := Fold(old), Fold(newNick)
	if oldKey == newKey {
		return
	}
	if c.users.has(oldKey) {
		delete(c.users, oldKey)
		c.users.add(newKey)
	}
	for _, set := range c.privileges {
		if set.has(oldKey) {
			delete(set, oldKey)
			set.add(newKey)
		}
	}
}

// Users returns the member nicks, sorted.
func (c *Channel) Users() []string {
	nicks := make([]string, 0, len(c.users))
	for nick := range c.users {
		nicks = append(nicks, nick)
	}
	sort.Strings(nicks)
	return nicks
}

// Len returns the number of members.
func (c *Channel) Len() int {
	return len(c.users)
}

// Has reports whether nick holds the given privilege.
func (c *Channel) Has(p Privilege, nick string) bool {
	if p < 0 || p >= numPrivileges {
		return false
	}
	return c.privileges[p].has(Fold(nick))
}

func (c *Channel) IsOwner(nick string) bool        { return c.Has(Owner, nick) }
func (c *Channel) IsAdmin(nick string) bool        { return c.Has(Admin, nick) }
func (c *Channel) IsOperator(nick string) bool     { return c.Has(Operator, nick) }
func (c *Channel) IsHalfOperator(nick string) bool { return c.Has(HalfOperator, nick) }
func (c *Channel) IsVoice(nick string) bool        { return c.Has(Voice, nick) }

// Bans returns a copy of the ban masks.
func (c *Channel) Bans() []string {
	return slices.Clone(c.bans)
}

// ApplyMode applies one mode change. An empty arg means the mode carried no argument.
//
// Privilege letters and bans need an argument; any letter without one is tracked
// as a flag on Modes. Other letters with an argument (keys, limits) are ignored.
func (c *Channel) ApplyMode(added bool, mode rune, arg string) {
	if arg == "" {
		has := strings.ContainsRune(c.Modes, mode)
		switch {
		case added && !has:
			c.Modes += string(mode)
		case !added && has:
			c.Modes = strings.ReplaceAll(c.Modes, string(mode), "")
		}
		return
	}

	key := Fold(arg)
	if p, ok := privilegeModes[mode]; ok {
		if added {
			c.privileges[p].add(key)
		} else {
			delete(c.privileges[p], key)
		}
		return
	}

	if mode == ModeBan {
		idx := slices.Index(c.bans, key)
		switch {
		case added && idx == -1:
			c.bans = append(c.bans, key)
		case !added && idx != -1:
			c.bans = slices.Delete(c.bans, idx, idx+1)
		}
	}
}
