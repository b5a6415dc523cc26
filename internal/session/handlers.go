package session

import (
	"context"
	"strings"

	"github.com/lrstanley/girc"

	"pkdindustries/forkingdongles/internal/event"
	"pkdindustries/forkingdongles/internal/irc"
	"pkdindustries/forkingdongles/internal/metrics"
	"pkdindustries/forkingdongles/internal/model"
)

// WHOIS numerics girc has no names for
const (
	rplWhoisAccount = "330"
	rplWhoisSecure  = "671"
)

func (s *Session) isSelf(nick string) bool {
	return model.Fold(nick) == model.Fold(s.nick)
}

// source returns the tracked user behind e, or a transient record built from
// its mask. It returns nil for server-originated lines.
func (s *Session) source(e *girc.Event) *model.User {
	if e.Source == nil || e.Source.Name == "" {
		return nil
	}
	if u, ok := s.users.Get(e.Source.Name); ok {
		return u
	}
	u := model.ParseUser(e.Source.String())
	u.IsSelf = s.isSelf(u.Nick)
	return u
}

// addUser tracks user, issuing a WHOIS the first time a nick is seen.
func (s *Session) addUser(user *model.User) *model.User {
	user.IsSelf = s.isSelf(user.Nick)
	tracked, created := s.users.Add(user)
	if created {
		s.whois(tracked.Nick)
	} else if tracked.User == "" && user.User != "" {
		tracked.User, tracked.Host = user.User, user.Host
	}
	return tracked
}

// purge drops nick from the user table unless a tracked channel still has it.
func (s *Session) purge(nick string) {
	if !s.channels.Contains(nick) {
		s.users.Remove(nick)
	}
}

// dropChannel forgets a channel the bot left and any users only it contained.
func (s *Session) dropChannel(name string) (*model.Channel, bool) {
	ch, ok := s.channels.Remove(name)
	if !ok {
		return nil, false
	}
	for _, nick := range ch.Users() {
		s.purge(nick)
	}
	return ch, true
}

func param(e *girc.Event, i int) string {
	if i < len(e.Params) {
		return e.Params[i]
	}
	return ""
}

func (s *Session) onJoin(ctx context.Context, e *girc.Event) {
	name := param(e, 0)
	if e.Source == nil || name == "" {
		return
	}

	var user *model.User
	if s.isSelf(e.Source.Name) {
		ch := s.channels.Ensure(name)
		user = s.source(e)
		s.line.Infow("Joined channel", "channel", ch.Name)

		s.after(s.opts.StateDelay, func(context.Context) { s.Send(girc.MODE, ch.Name) })
		s.after(s.opts.StateDelay, func(context.Context) { s.Send(girc.MODE, ch.Name, "b") })
	} else {
		ch, ok := s.channels.Get(name)
		if !ok {
			s.line.Debugw("Join for untracked channel", "channel", name)
			return
		}
		user = s.addUser(model.ParseUser(e.Source.String()))
		ch.AddUser(user.Nick)
	}

	ch, _ := s.channels.Get(name)
	s.fire(ctx, event.Join, user, ch)
}

func (s *Session) onPart(ctx context.Context, e *girc.Event) {
	name := param(e, 0)
	if e.Source == nil || name == "" {
		return
	}
	user := s.source(e)

	ch, ok := s.leave(e.Source.Name, name)
	if !ok {
		return
	}
	s.fire(ctx, event.Part, user, ch, param(e, 1))
}

func (s *Session) onKick(ctx context.Context, e *girc.Event) {
	name, nick := param(e, 0), param(e, 1)
	if nick == "" {
		return
	}
	kicker := s.source(e)
	user, ok := s.users.Get(nick)
	if !ok {
		user = &model.User{Nick: nick, IsSelf: s.isSelf(nick)}
	}

	ch, ok := s.leave(nick, name)
	if !ok {
		return
	}
	s.fire(ctx, event.Kick, user, ch, kicker, param(e, 2))
}

// leave removes nick from channel name, or drops the channel when nick is us.
func (s *Session) leave(nick, name string) (*model.Channel, bool) {
	if s.isSelf(nick) {
		ch, ok := s.dropChannel(name)
		if ok {
			s.line.Infow("Left channel", "channel", ch.Name)
		}
		return ch, ok
	}

	ch, ok := s.channels.Get(name)
	if !ok {
		return nil, false
	}
	ch.RemoveUser(nick)
	s.purge(nick)
	return ch, true
}

func (s *Session) onQuit(ctx context.Context, e *girc.Event) {
	if e.Source == nil {
		return
	}
	user := s.source(e)
	for _, ch := range s.channels.All() {
		ch.RemoveUser(user.Nick)
	}
	s.users.Remove(user.Nick)
	s.fire(ctx, event.Quit, user, param(e, 0))
}

func (s *Session) onNick(ctx context.Context, e *girc.Event) {
	newNick := param(e, 0)
	if e.Source == nil || newNick == "" {
		return
	}
	oldNick := e.Source.Name

	user, ok := s.users.Rename(oldNick, newNick)
	if !ok {
		user = model.ParseUser(e.Source.String())
		user.Nick = newNick
	}
	for _, ch := range s.channels.All() {
		ch.RenameUser(oldNick, newNick)
	}
	if s.isSelf(oldNick) {
		s.nick = newNick
		s.logger = s.opts.Logger.With("nick", newNick)
	}
	user.IsSelf = s.isSelf(newNick)

	s.fire(ctx, event.Nick, user, oldNick)
}

func (s *Session) onMode(ctx context.Context, e *girc.Event) {
	target, modes := param(e, 0), param(e, 1)
	if target == "" {
		return
	}
	var args []string
	if len(e.Params) > 2 {
		args = e.Params[2:]
	}

	s.applyModes(target, modes, args)
	s.fire(ctx, event.Mode, s.source(e), target, strings.Join(e.Params[1:], " "))
}

// applyModes parses and applies a mode line to a tracked channel or user. A
// malformed line changes nothing.
func (s *Session) applyModes(target, modes string, args []string) {
	rules := s.rules
	if !irc.IsChannel(target) {
		rules = irc.ModeRules{}
	}

	changes, err := irc.ParseModes(modes, args, rules)
	if err != nil {
		metrics.BadModeLines.Inc()
		s.line.Errorw("Failed to parse modes", "target", target, "modes", modes, "args", args, "error", err)
		return
	}

	if irc.IsChannel(target) {
		ch, ok := s.channels.Get(target)
		if !ok {
			return
		}
		for _, c := range changes {
			ch.ApplyMode(c.Added, c.Mode, c.Arg)
		}
		return
	}

	user, ok := s.users.Get(target)
	if !ok {
		return
	}
	for _, c := range changes {
		user.SetMode(c.Added, c.Mode)
	}
}

func (s *Session) onTopic(ctx context.Context, e *girc.Event) {
	name, topic := param(e, 0), param(e, 1)
	ch, ok := s.channels.Get(name)
	if !ok {
		ch = model.NewChannel(name)
	}
	ch.Topic = topic
	s.fire(ctx, event.Topic, s.source(e), ch, topic)
}

func (s *Session) onTopicReply(e *girc.Event) {
	if ch, ok := s.channels.Get(param(e, 1)); ok {
		ch.Topic = param(e, 2)
	}
}

func (s *Session) onInvite(ctx context.Context, e *girc.Event) {
	name := e.Last()
	ch, ok := s.channels.Get(name)
	if !ok {
		ch = model.NewChannel(name)
	}
	s.fire(ctx, event.Invite, s.source(e), ch)
}

// resolve returns the channel a message was sent to, or a pseudo-channel named
// after the sender for private messages.
func (s *Session) resolve(target string, user *model.User) *model.Channel {
	if ch, ok := s.channels.Get(target); ok {
		return ch
	}
	if user != nil && !irc.IsChannel(target) {
		return model.NewChannel(user.Nick)
	}
	return model.NewChannel(target)
}

// onPrivmsg routes the message to plugin commands first; the generic message
// event only fires if no handler returned StopAll.
func (s *Session) onPrivmsg(ctx context.Context, e *girc.Event) {
	user := s.source(e)
	if user == nil || len(e.Params) < 2 {
		return
	}
	ch := s.resolve(param(e, 0), user)
	msg := e.Last()

	// "nick: !cmd" routes the same as "!cmd".
	if s.engine.FireAddressed(ctx, user, ch, msg, s.nick) == event.StopAll {
		return
	}
	s.fire(ctx, event.Privmsg, user, ch, msg)
}

func (s *Session) onNotice(ctx context.Context, e *girc.Event) {
	user := s.source(e)
	if user == nil || len(e.Params) < 2 {
		return
	}
	s.fire(ctx, event.Notice, user, s.resolve(param(e, 0), user), e.Last())
}

// onChannelModeIs handles the reply to MODE #channel.
func (s *Session) onChannelModeIs(e *girc.Event) {
	if len(e.Params) < 3 {
		return
	}
	modes := e.Params[2]
	if modes != "" && modes[0] != '+' && modes[0] != '-' {
		modes = "+" + modes
	}
	s.applyModes(e.Params[1], modes, e.Params[3:])
}

// onBanList handles one entry of the reply to MODE #channel b.
func (s *Session) onBanList(e *girc.Event) {
	ch, ok := s.channels.Get(param(e, 1))
	if !ok || param(e, 2) == "" {
		return
	}
	ch.ApplyMode(true, model.ModeBan, param(e, 2))
}

// onNames ingests a NAMES snapshot. Privilege symbols are translated with the
// server's PREFIX table when it sent one.
func (s *Session) onNames(e *girc.Event) {
	if len(e.Params) < 2 {
		return
	}
	ch, ok := s.channels.Get(e.Params[len(e.Params)-2])
	if !ok {
		return
	}

	for _, entry := range strings.Fields(e.Last()) {
		nick, modes := irc.SplitName(entry, s.prefixes)
		if nick == "" {
			continue
		}
		// userhost-in-names sends full masks
		user := s.addUser(model.ParseUser(nick))
		ch.AddUser(user.Nick)
		for _, mode := range modes {
			ch.ApplyMode(true, mode, user.Nick)
		}
	}
}

// onWhoisUser merges user and host into the tracked record, creating it if needed.
func (s *Session) onWhoisUser(e *girc.Event) {
	nick, ident, host := param(e, 1), param(e, 2), param(e, 3)
	if nick == "" {
		return
	}
	user, ok := s.users.Get(nick)
	if !ok {
		user, _ = s.users.Add(&model.User{Nick: nick, IsSelf: s.isSelf(nick)})
	}
	user.User, user.Host = ident, host
}

func (s *Session) flagUser(e *girc.Event, mode rune) {
	if user, ok := s.users.Get(param(e, 1)); ok {
		user.SetMode(true, mode)
	}
}
