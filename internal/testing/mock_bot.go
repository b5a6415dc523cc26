package testing

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"pkdindustries/forkingdongles/internal/event"
	"pkdindustries/forkingdongles/internal/fetch"
	"pkdindustries/forkingdongles/internal/irc"
	"pkdindustries/forkingdongles/internal/model"
	"pkdindustries/forkingdongles/internal/plugin"
	"pkdindustries/forkingdongles/internal/settings"
	"pkdindustries/forkingdongles/internal/storage"
)

// Line is one recorded outbound message.
type Line struct {
	Target string
	Text   string
}

// MockBot implements plugin.Bot for testing. It tracks users and channels in
// memory, records everything sent, and owns a real event registry and plugin
// engine so plugins can be loaded against it.
type MockBot struct {
	mu sync.Mutex

	// Configurable
	NickName string
	Admins   []string

	// Recorded calls (for assertions)
	Messages []Line
	Notices  []Line
	Actions  []Line
	Joins    []string
	Parts    []Line
	Raw      [][]string

	users    *model.Users
	channels *model.Channels
	events   *event.Registry[plugin.Bot]
	engine   *plugin.Engine
	catalog  *plugin.Catalog
	settings *settings.Store
	fetcher  *fetch.Fetcher
	db       *storage.DB
	logger   *zap.SugaredLogger
}

var _ plugin.Bot = (*MockBot)(nil)

// NewMockBot creates a MockBot with sensible defaults
func NewMockBot() *MockBot {
	m := &MockBot{
		NickName: "testbot",
		users:    model.NewUsers(),
		channels: model.NewChannels(),
		catalog:  plugin.NewCatalog(),
		settings: settings.Memory(),
		logger:   zap.NewNop().Sugar(),
	}
	m.events = event.NewRegistry[plugin.Bot](m, m.logger)
	for _, a := range event.Arities {
		_ = m.events.Register(a.Kind, a.Arity)
	}
	m.engine = plugin.NewEngine(m, m.events, m.catalog, m.logger)
	return m
}

// Builder methods for fluent test setup

func (m *MockBot) WithNick(nick string) *MockBot {
	m.NickName = nick
	return m
}

func (m *MockBot) WithAdmins(patterns ...string) *MockBot {
	m.Admins = patterns
	return m
}

// WithUser tracks the user behind mask and adds it to each named channel.
func (m *MockBot) WithUser(mask string, channels ...string) *MockBot {
	u, _ := m.users.Add(model.ParseUser(mask))
	for _, name := range channels {
		m.channels.Ensure(name).AddUser(u.Nick)
	}
	return m
}

func (m *MockBot) WithChannel(name string) *MockBot {
	m.channels.Ensure(name)
	return m
}

func (m *MockBot) WithPlugin(id string, entry plugin.EntryPoint) *MockBot {
	m.catalog.Register(id, entry)
	return m
}

func (m *MockBot) WithSettings(s *settings.Store) *MockBot {
	m.settings = s
	return m
}

func (m *MockBot) WithFetcher(f *fetch.Fetcher) *MockBot {
	m.fetcher = f
	return m
}

func (m *MockBot) WithDB(db *storage.DB) *MockBot {
	m.db = db
	return m
}

func (m *MockBot) WithLogger(l *zap.SugaredLogger) *MockBot {
	m.logger = l
	return m
}

// Say routes msg from the user behind mask to target the way a session does:
// commands first, then the Privmsg event unless a handler stopped everything.
func (m *MockBot) Say(ctx context.Context, mask, target, msg string) event.Result {
	user, ok := m.users.Get(model.ParseUser(mask).Nick)
	if !ok {
		user = model.ParseUser(mask)
		user.IsSelf = model.Fold(user.Nick) == model.Fold(m.NickName)
	}
	ch, ok := m.channels.Get(target)
	if !ok {
		ch = model.NewChannel(target)
		if !irc.IsChannel(target) {
			ch = model.NewChannel(user.Nick)
		}
	}

	if m.engine.FireAddressed(ctx, user, ch, msg, m.NickName) == event.StopAll {
		return event.StopAll
	}
	result, _ := m.events.Fire(ctx, event.Privmsg, user, ch, msg)
	return result
}

// Replies returns the text of every message sent to target.
func (m *MockBot) Replies(target string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, l := range m.Messages {
		if l.Target == target {
			out = append(out, l.Text)
		}
	}
	return out
}

// Reset clears recorded calls.
func (m *MockBot) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages, m.Notices, m.Actions = nil, nil, nil
	m.Joins, m.Parts, m.Raw = nil, nil, nil
}

// plugin.Bot

func (m *MockBot) Nick() string { return m.NickName }

func (m *MockBot) User(nick string) (*model.User, bool) { return m.users.Get(nick) }

func (m *MockBot) Channel(name string) (*model.Channel, bool) { return m.channels.Get(name) }

func (m *MockBot) Channels() []*model.Channel { return m.channels.All() }

func (m *MockBot) IsAdmin(user *model.User) bool {
	return user != nil && irc.CheckAdmin(user.Mask(), m.Admins)
}

func (m *MockBot) Message(target, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, Line{target, text})
}

func (m *MockBot) Notice(target, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Notices = append(m.Notices, Line{target, text})
}

func (m *MockBot) Action(target, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Actions = append(m.Actions, Line{target, text})
}

func (m *MockBot) Join(channels ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Joins = append(m.Joins, channels...)
}

func (m *MockBot) Part(channel, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Parts = append(m.Parts, Line{channel, reason})
}

func (m *MockBot) Send(command string, params ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Raw = append(m.Raw, append([]string{command}, params...))
}

func (m *MockBot) Events() *event.Registry[plugin.Bot] { return m.events }
func (m *MockBot) Plugins() *plugin.Engine              { return m.engine }
func (m *MockBot) Settings() *settings.Store            { return m.settings }
func (m *MockBot) Fetcher() *fetch.Fetcher              { return m.fetcher }
func (m *MockBot) DB() *storage.DB                      { return m.db }
func (m *MockBot) Logger() *zap.SugaredLogger           { return m.logger }
