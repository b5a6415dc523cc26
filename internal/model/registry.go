package model

import "sort"

// Users is the global user table keyed by lowercase nick.
type Users struct {
	byNick map[string]*User
}

func NewUsers() *Users {
	return &Users{byNick: make(map[string]*User)}
}

// Get looks a user up by nick in any casing.
func (u *Users) Get(nick string) (*User, bool) {
	user, ok := u.byNick[Fold(nick)]
	return user, ok
}

// Add stores user unless one with the same key already exists. It returns the
// tracked record and whether it was newly created.
func (u *Users) Add(user *User) (*User, bool) {
	key := user.Key()
	if existing, ok := u.byNick[key]; ok {
		return existing, false
	}
	u.byNick[key] = user
	return user, true
}

// Rename re-keys a tracked user. It returns false if old is not tracked.
func (u *Users) Rename(old, newNick string) (*User, bool) {
	user, ok := u.byNick[Fold(old)]
	if !ok {
		return nil, false
	}
	delete(u.byNick, Fold(old))
	user.Nick = newNick
	u.byNick[Fold(newNick)] = user
	return user, true
}

// Remove drops a user and returns the removed record, if any.
func (u *Users) Remove(nick string) (*User, bool) {
	key := Fold(nick)
	user, ok := u.byNick[key]
	if ok {
		delete(u.byNick, key)
	}
	return user, ok
}

func (u *Users) Len() int {
	return len(u.byNick)
}

// All returns tracked users sorted by key.
func (u *Users) All() []*User {
	out := make([]*User, 0, len(u.byNick))
	for _, user := range u.byNick {
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Channels is the table of joined channels keyed by lowercase name.
type Channels struct {
	byName map[string]*Channel
}

func NewChannels() *Channels {
	return &Channels{byName: make(map[string]*Channel)}
}

func (c *Channels) Get(name string) (*Channel, bool) {
	ch, ok := c.byName[Fold(name)]
	return ch, ok
}

// Ensure returns the tracked channel, creating it when absent.
func (c *Channels) Ensure(name string) *Channel {
	key := Fold(name)
	if ch, ok := c.byName[key]; ok {
		return ch
	}
	ch := NewChannel(name)
	c.byName[key] = ch
	return ch
}

func (c *Channels) Remove(name string) (*Channel, bool) {
	key := Fold(name)
	ch, ok := c.byName[key]
	if ok {
		delete(c.byName, key)
	}
	return ch, ok
}

func (c *Channels) Len() int {
	return len(c.byName)
}

// All returns tracked channels sorted by key.
func (c *Channels) All() []*Channel {
	out := make([]*Channel, 0, len(c.byName))
	for _, ch := range c.byName {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Contains reports whether nick is a member of any tracked channel.
func (c *Channels) Contains(nick string) bool {
	for _, ch := range c.byName {
		if ch.HasUser(nick) {
			return true
		}
	}
	return false
}
