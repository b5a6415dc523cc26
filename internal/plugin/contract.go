package plugin

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"pkdindustries/forkingdongles/internal/event"
	"pkdindustries/forkingdongles/internal/fetch"
	"pkdindustries/forkingdongles/internal/model"
	"pkdindustries/forkingdongles/internal/settings"
	"pkdindustries/forkingdongles/internal/storage"
)

var (
	ErrNotFound      = errors.New("plugin not found")
	ErrBadEntryPoint = errors.New("bad plugin entry point")
	ErrBadHandler    = errors.New("bad plugin handler")

	// ErrNeedsArgs is returned by a command handler that was invoked without the
	// arguments it requires. The handler is skipped without being logged.
	ErrNeedsArgs = errors.New("command needs arguments")
)

// Bot is the session surface plugins see.
type Bot interface {
	Nick() string
	User(nick string) (*model.User, bool)
	Channel(name string) (*model.Channel, bool)
	Channels() []*model.Channel
	IsAdmin(user *model.User) bool

	Message(target, text string)
	Notice(target, text string)
	Action(target, text string)
	Join(channels ...string)
	Part(channel, reason string)
	Send(command string, params ...string)

	Events() *event.Registry[Bot]
	Plugins() *Engine

	Settings() *settings.Store
	Fetcher() *fetch.Fetcher
	DB() *storage.DB
	Logger() *zap.SugaredLogger
}

// Instance is what a plugin entry point returns.
type Instance interface {
	Handlers() []Handler
}

// Closer is implemented by instances that need teardown on unload or reload.
type Closer interface {
	Close() error
}

// BotCloser is the teardown variant that receives the session.
type BotCloser interface {
	Teardown(bot Bot) error
}

// Handler is one of Command, Regex or Subscriber.
type Handler interface {
	handler()
}

// CommandFunc handles a command. token is the literal token that matched and
// args is the rest of the message after the first space.
type CommandFunc func(ctx context.Context, bot Bot, token string, user *model.User, channel *model.Channel, args string) (event.Result, error)

// Command binds a handler to one or more literal tokens such as "!seen".
type Command struct {
	Tokens    []string
	NeedsArgs bool
	Help      string
	Func      CommandFunc
}

// RegexFunc handles a message matching a Regex. msg is the full raw message.
type RegexFunc func(ctx context.Context, bot Bot, user *model.User, channel *model.Channel, msg string) (event.Result, error)

// Regex binds a handler to a pattern searched anywhere in the message.
type Regex struct {
	Pattern *regexp.Regexp
	Func    RegexFunc
}

// Subscriber binds an event callback to one or more event kinds.
type Subscriber struct {
	Events   []event.Kind
	Params   int
	Variadic bool
	Func     event.Func[Bot]
}

func (Command) handler()    {}
func (Regex) handler()      {}
func (Subscriber) handler() {}

func validate(h Handler) error {
	switch h := h.(type) {
	case Command:
		if len(h.Tokens) == 0 || h.Func == nil {
			return fmt.Errorf("%w: command needs tokens and a func", ErrBadHandler)
		}
	case Regex:
		if h.Pattern == nil || h.Func == nil {
			return fmt.Errorf("%w: regex needs a pattern and a func", ErrBadHandler)
		}
	case Subscriber:
		if len(h.Events) == 0 {
			return fmt.Errorf("%w: subscriber needs at least one event", ErrBadHandler)
		}
	default:
		return fmt.Errorf("%w: %T", ErrBadHandler, h)
	}
	return nil
}
