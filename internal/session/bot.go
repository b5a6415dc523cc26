package session

import (
	"github.com/lrstanley/girc"
	"go.uber.org/zap"

	"pkdindustries/forkingdongles/internal/event"
	"pkdindustries/forkingdongles/internal/fetch"
	"pkdindustries/forkingdongles/internal/irc"
	"pkdindustries/forkingdongles/internal/model"
	"pkdindustries/forkingdongles/internal/plugin"
	"pkdindustries/forkingdongles/internal/settings"
	"pkdindustries/forkingdongles/internal/storage"
)

var _ plugin.Bot = (*Session)(nil)

func (s *Session) Nick() string {
	return s.nick
}

func (s *Session) User(nick string) (*model.User, bool) {
	return s.users.Get(nick)
}

func (s *Session) Channel(name string) (*model.Channel, bool) {
	return s.channels.Get(name)
}

func (s *Session) Channels() []*model.Channel {
	return s.channels.All()
}

// IsAdmin reports whether user's mask matches a configured admin pattern.
func (s *Session) IsAdmin(user *model.User) bool {
	if user == nil {
		return false
	}
	return irc.CheckAdmin(user.Mask(), s.opts.Admins)
}

// Message sends text to target, split into as many lines as needed.
func (s *Session) Message(target, text string) {
	for _, line := range irc.Split(text, irc.MaxMessageLength) {
		s.Send(girc.PRIVMSG, target, line)
	}
}

func (s *Session) Notice(target, text string) {
	for _, line := range irc.Split(text, irc.MaxMessageLength) {
		s.Send(girc.NOTICE, target, line)
	}
}

func (s *Session) Action(target, text string) {
	for _, line := range irc.Split(text, irc.MaxMessageLength) {
		s.Send(girc.PRIVMSG, target, "\x01ACTION "+line+"\x01")
	}
}

func (s *Session) Join(channels ...string) {
	for _, ch := range channels {
		s.Send(girc.JOIN, ch)
	}
}

func (s *Session) Part(channel, reason string) {
	if reason == "" {
		s.Send(girc.PART, channel)
		return
	}
	s.Send(girc.PART, channel, reason)
}

// Send writes a raw line. Lines are dropped when no sender is attached.
func (s *Session) Send(command string, params ...string) {
	if s.opts.Sender == nil {
		s.logger.Warnw("No sender, dropping line", "command", command)
		return
	}
	s.opts.Sender.Send(&girc.Event{Command: command, Params: params})
}

func (s *Session) Events() *event.Registry[plugin.Bot] {
	return s.events
}

func (s *Session) Plugins() *plugin.Engine {
	return s.engine
}

func (s *Session) Settings() *settings.Store {
	return s.opts.Settings
}

func (s *Session) Fetcher() *fetch.Fetcher {
	return s.opts.Fetcher
}

func (s *Session) DB() *storage.DB {
	return s.opts.DB
}

func (s *Session) Logger() *zap.SugaredLogger {
	return s.logger
}
