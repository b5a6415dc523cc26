package seen

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkdindustries/forkingdongles/internal/event"
	"pkdindustries/forkingdongles/internal/model"
	"pkdindustries/forkingdongles/internal/storage"
	mocktest "pkdindustries/forkingdongles/internal/testing"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newBot(t *testing.T) (*mocktest.MockBot, *clock) {
	t.Helper()
	db, err := storage.Open(storage.Memory)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	c := &clock{t: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)}
	bot := mocktest.NewMockBot().
		WithDB(db).
		WithChannel("#test").
		WithPlugin(ID, New(c.now))
	require.Empty(t, bot.Plugins().Load(ID))
	return bot, c
}

func ask(bot *mocktest.MockBot, nick string) []string {
	bot.Reset()
	bot.Say(context.Background(), "asker!a@host", "#test", "!seen "+nick)
	return bot.Replies("#test")
}

func fire(t *testing.T, bot *mocktest.MockBot, kind event.Kind, params ...any) {
	t.Helper()
	_, err := bot.Events().Fire(context.Background(), kind, params...)
	require.NoError(t, err)
}

func TestSeen_NeedsDatabase(t *testing.T) {
	bot := mocktest.NewMockBot().WithPlugin(ID, New(nil))
	assert.Equal(t, []string{ID}, bot.Plugins().Load(ID))
}

func TestSeen_Privmsg(t *testing.T) {
	bot, c := newBot(t)

	bot.Say(context.Background(), "alice!ali@alice.host", "#test", "hello there")
	c.t = c.t.Add(5 * time.Minute)

	assert.Equal(t, []string{"alice was last seen 5 minutes ago saying in #test: hello there"}, ask(bot, "ALICE"))
}

func TestSeen_BlankArgs(t *testing.T) {
	bot, _ := newBot(t)
	assert.Equal(t, []string{"Usage: !seen <nick>"}, ask(bot, "  "))
}

func TestSeen_LocalChannel(t *testing.T) {
	bot, c := newBot(t)
	bot.WithChannel("&local")

	bot.Say(context.Background(), "alice!ali@alice.host", "&local", "over here")
	c.t = c.t.Add(time.Minute)

	assert.Equal(t, []string{"alice was last seen 1 minute ago saying in &local: over here"}, ask(bot, "alice"))
}

func TestSeen_IgnoresQueries(t *testing.T) {
	bot, _ := newBot(t)

	bot.Say(context.Background(), "alice!ali@alice.host", "testbot", "secret")

	assert.Equal(t, []string{"I haven't seen alice."}, ask(bot, "alice"))
}

func TestSeen_Events(t *testing.T) {
	bot, c := newBot(t)
	ch, _ := bot.Channel("#test")
	alice := model.ParseUser("alice!ali@alice.host")
	op := model.ParseUser("op!o@host")

	tests := []struct {
		name   string
		kind   event.Kind
		params []any
		nick   string
		want   string
	}{
		{"join", event.Join, []any{alice, ch}, "alice", "alice was last seen 1 hour ago joining #test"},
		{"part", event.Part, []any{alice, ch, "bye"}, "alice", "alice was last seen 1 hour ago leaving #test (bye)"},
		{"kick", event.Kick, []any{alice, ch, op, "behave"}, "alice", "alice was last seen 1 hour ago being kicked from #test (behave)"},
		{"quit", event.Quit, []any{alice, "gone"}, "alice", "alice was last seen 1 hour ago quitting (gone)"},
		{"nick", event.Nick, []any{&model.User{Nick: "alicia"}, "alice"}, "alice", "alice was last seen 1 hour ago changing nick to alicia"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fire(t, bot, tt.kind, tt.params...)
			c.t = c.t.Add(time.Hour)
			defer func() { c.t = c.t.Add(-time.Hour) }()
			assert.Equal(t, []string{tt.want}, ask(bot, tt.nick))
		})
	}
}

func TestSeen_SkipsSelf(t *testing.T) {
	bot, _ := newBot(t)
	ch, _ := bot.Channel("#test")

	fire(t, bot, event.Join, &model.User{Nick: "testbot", IsSelf: true}, ch)

	assert.Equal(t, []string{"I'm right here."}, ask(bot, "testbot"))
	assert.Equal(t, []string{"Looking for yourself?"}, ask(bot, "asker"))
	assert.Equal(t, []string{"I haven't seen nobody."}, ask(bot, "nobody"))
}

func TestSeen_RecordAndLookup(t *testing.T) {
	bot, c := newBot(t)
	unit, ok := bot.Plugins().Unit(ID)
	require.True(t, ok)
	p := unit.Instance.(*Plugin)

	ctx := context.Background()
	require.NoError(t, p.Record(ctx, Sighting{Nick: "Bob", Mask: "Bob!b@h", Channel: "#x", Action: "joining", At: c.t}))
	require.NoError(t, p.Record(ctx, Sighting{Nick: "bob", Mask: "bob!b@h", Channel: "#y", Action: "joining", At: c.t.Add(time.Second)}))

	s, ok, err := p.Lookup(ctx, "BOB")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "bob", s.Nick)
	assert.Equal(t, "#y", s.Channel)
	assert.True(t, s.At.Equal(c.t.Add(time.Second)))

	_, ok, err = p.Lookup(ctx, "carol")
	require.NoError(t, err)
	assert.False(t, ok)
}
