package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lrstanley/girc"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"pkdindustries/forkingdongles/internal/event"
	"pkdindustries/forkingdongles/internal/fetch"
	"pkdindustries/forkingdongles/internal/irc"
	"pkdindustries/forkingdongles/internal/metrics"
	"pkdindustries/forkingdongles/internal/model"
	"pkdindustries/forkingdongles/internal/plugin"
	"pkdindustries/forkingdongles/internal/settings"
	"pkdindustries/forkingdongles/internal/storage"
)

// ChannelsKey is where joined channels are persisted on disconnect.
const ChannelsKey = "core.channels"

const (
	DefaultStateDelay = time.Second
	inboxSize         = 1024
)

// Sender writes an outbound line. *girc.Client satisfies it.
type Sender interface {
	Send(e *girc.Event)
}

type Options struct {
	Nick     string
	Channels []string
	Plugins  []string
	Admins   []string

	// StateDelay is how long after joining a channel its modes and bans are requested.
	StateDelay time.Duration
	// WhoisRate and WhoisBurst limit WHOIS queries for newly seen users. Queries
	// over the limit are delayed, not dropped.
	WhoisRate  float64
	WhoisBurst int

	Sender   Sender
	Catalog  *plugin.Catalog
	Settings *settings.Store
	Fetcher  *fetch.Fetcher
	DB       *storage.DB
	Logger   *zap.SugaredLogger
}

// Session is the protocol state machine for one bot. Everything that touches
// its state runs on the goroutine executing Run, or synchronously via Handle.
type Session struct {
	opts   Options
	logger *zap.SugaredLogger
	line   *zap.SugaredLogger

	nick       string
	registered bool
	users      *model.Users
	channels   *model.Channels
	events     *event.Registry[plugin.Bot]
	engine     *plugin.Engine
	prefixes   irc.Prefixes
	rules      irc.ModeRules
	limiter    *rate.Limiter

	inbox   chan func(context.Context)
	done    chan struct{}
	stopped sync.Once

	timerMu sync.Mutex
	timers  map[*time.Timer]struct{}
}

// New creates a disconnected session.
func New(opts Options) *Session {
	if opts.StateDelay <= 0 {
		opts.StateDelay = DefaultStateDelay
	}
	if opts.WhoisRate <= 0 {
		opts.WhoisRate = 2
	}
	if opts.WhoisBurst <= 0 {
		opts.WhoisBurst = 5
	}
	if opts.Catalog == nil {
		opts.Catalog = plugin.NewCatalog()
	}
	if opts.Settings == nil {
		opts.Settings = settings.Memory()
	}
	if opts.Logger == nil {
		opts.Logger = zap.S()
	}

	s := &Session{
		opts:     opts,
		logger:   opts.Logger.With("nick", opts.Nick),
		nick:     opts.Nick,
		users:    model.NewUsers(),
		channels: model.NewChannels(),
		rules:    irc.DefaultModeRules(),
		limiter:  rate.NewLimiter(rate.Limit(opts.WhoisRate), opts.WhoisBurst),
		inbox:    make(chan func(context.Context), inboxSize),
		done:     make(chan struct{}),
		timers:   make(map[*time.Timer]struct{}),
	}
	s.line = s.logger
	return s
}

// Attach registers the session on a girc client so every inbound line is
// queued for Run.
func (s *Session) Attach(client *girc.Client) {
	client.Handlers.Add(girc.ALL_EVENTS, func(_ *girc.Client, e girc.Event) {
		s.Enqueue(e)
	})
}

// Enqueue queues an inbound line for the loop. It blocks while the inbox is full
// and drops the line once Run has returned.
func (s *Session) Enqueue(e girc.Event) {
	s.post(func(ctx context.Context) {
		s.Handle(ctx, &e)
	})
}

func (s *Session) post(task func(context.Context)) {
	select {
	case s.inbox <- task:
	case <-s.done:
	}
}

// Run processes queued lines and timer tasks until ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	defer s.stopped.Do(func() {
		close(s.done)
		s.cancelTimers()
		if s.engine != nil {
			s.engine.Close()
		}
	})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case task := <-s.inbox:
			task(ctx)
		}
	}
}

// Handle processes one inbound line synchronously.
func (s *Session) Handle(ctx context.Context, e *girc.Event) {
	s.line = s.logger.With("line", uuid.NewString())
	defer func() { s.line = s.logger }()

	s.line.Debugw("Handling line", "command", e.Command, "params", e.Params)

	switch e.Command {
	case girc.RPL_WELCOME:
		s.onWelcome(e)
	case girc.RPL_ISUPPORT:
		s.onISupport(e)
	case girc.DISCONNECTED, girc.ERROR:
		s.onDisconnect()
		return
	}

	if !s.registered {
		return
	}

	switch e.Command {
	case girc.JOIN:
		s.onJoin(ctx, e)
	case girc.PART:
		s.onPart(ctx, e)
	case girc.KICK:
		s.onKick(ctx, e)
	case girc.QUIT:
		s.onQuit(ctx, e)
	case girc.NICK:
		s.onNick(ctx, e)
	case girc.MODE:
		s.onMode(ctx, e)
	case girc.TOPIC:
		s.onTopic(ctx, e)
	case girc.INVITE:
		s.onInvite(ctx, e)
	case girc.PRIVMSG:
		s.onPrivmsg(ctx, e)
	case girc.NOTICE:
		s.onNotice(ctx, e)
	case girc.RPL_TOPIC:
		s.onTopicReply(e)
	case girc.RPL_CHANNELMODEIS:
		s.onChannelModeIs(e)
	case girc.RPL_BANLIST:
		s.onBanList(e)
	case girc.RPL_NAMREPLY:
		s.onNames(e)
	case girc.RPL_WHOISUSER:
		s.onWhoisUser(e)
	case girc.RPL_WHOISOPERATOR:
		s.flagUser(e, model.ModeOper)
	case rplWhoisAccount:
		s.flagUser(e, model.ModeIdentified)
	case rplWhoisSecure:
		s.flagUser(e, model.ModeSecure)
	}

	if !strings.HasPrefix(e.Command, "CLIENT_") {
		s.fire(ctx, event.Raw, e.Command, append([]string(nil), e.Params...))
	}

	metrics.TrackedUsers.Set(float64(s.users.Len()))
	metrics.TrackedChannels.Set(float64(s.channels.Len()))
}

// onWelcome resets connection state, builds a fresh event registry and plugin
// engine, and joins the configured and persisted channels.
func (s *Session) onWelcome(e *girc.Event) {
	if len(e.Params) > 0 && e.Params[0] != "" {
		s.nick = e.Params[0]
	}
	s.cancelTimers()
	if s.engine != nil {
		s.engine.Close()
	}

	s.users = model.NewUsers()
	s.channels = model.NewChannels()
	s.prefixes = nil
	s.rules = irc.DefaultModeRules()

	s.events = event.NewRegistry[plugin.Bot](s, s.logger)
	for _, a := range event.Arities {
		if err := s.events.Register(a.Kind, a.Arity); err != nil {
			s.logger.Errorw("Failed to register event", "event", a.Kind.String(), "error", err)
		}
	}

	s.engine = plugin.NewEngine(s, s.events, s.opts.Catalog, s.logger)
	if failed := s.engine.Load(s.opts.Plugins...); len(failed) > 0 {
		s.logger.Warnw("Some plugins failed to load", "plugins", failed)
	}
	s.registered = true
	s.logger.Infow("Registered with server", "nick", s.nick, "plugins", s.engine.Loaded())

	s.Join(s.autojoin()...)
}

func (s *Session) autojoin() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, ch := range append(append([]string(nil), s.opts.Channels...), s.opts.Settings.Strings(ChannelsKey)...) {
		key := model.Fold(ch)
		if ch == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, ch)
	}
	return out
}

func (s *Session) onISupport(e *girc.Event) {
	if len(e.Params) < 2 {
		return
	}
	features := irc.ParseISupport(e.Params[1:])

	if value, ok := features["PREFIX"]; ok {
		prefixes, err := irc.ParsePrefix(value)
		if err != nil {
			s.line.Warnw("Ignoring bad PREFIX", "error", err)
		} else {
			s.prefixes = prefixes
			s.rules.Prefix = prefixes.Modes()
		}
	}
	if value, ok := features["CHANMODES"]; ok {
		s.rules = s.rules.ParseChanModes(value)
	}
}

// onDisconnect drops timers, saves joined channels, and tears down plugins.
// Handlers already running are not interrupted.
func (s *Session) onDisconnect() {
	if !s.registered {
		return
	}
	s.registered = false
	s.cancelTimers()

	names := make([]string, 0, s.channels.Len())
	for _, ch := range s.channels.All() {
		names = append(names, ch.Name)
	}
	if err := s.opts.Settings.Set(ChannelsKey, names); err != nil {
		s.logger.Errorw("Failed to persist channels", "error", err)
	} else if err := s.opts.Settings.Save(); err != nil {
		s.logger.Errorw("Failed to save settings", "error", err)
	}

	if s.engine != nil {
		s.engine.Close()
	}
	s.logger.Infow("Disconnected", "channels", names)
}

func (s *Session) fire(ctx context.Context, kind event.Kind, params ...any) event.Result {
	if s.events == nil {
		return event.Continue
	}
	result, err := s.events.Fire(ctx, kind, params...)
	if err != nil {
		s.line.Errorw("Failed to fire event", "event", kind.String(), "error", err)
	}
	return result
}

// Registered reports whether the handshake has completed.
func (s *Session) Registered() bool {
	return s.registered
}
