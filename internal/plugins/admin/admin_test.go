package admin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkdindustries/forkingdongles/internal/event"
	"pkdindustries/forkingdongles/internal/model"
	"pkdindustries/forkingdongles/internal/plugin"
	mocktest "pkdindustries/forkingdongles/internal/testing"
)

const (
	adminMask = "admin!a@admin.host"
	userMask  = "eve!e@evil.host"
)

type echo struct{}

func (echo) Handlers() []plugin.Handler {
	return []plugin.Handler{plugin.Command{
		Tokens:    []string{"!echo"},
		NeedsArgs: true,
		Func: func(_ context.Context, bot plugin.Bot, _ string, _ *model.User, ch *model.Channel, args string) (event.Result, error) {
			bot.Message(ch.Name, args)
			return event.Continue, nil
		},
	}}
}

func newBot(t *testing.T) *mocktest.MockBot {
	t.Helper()
	bot := mocktest.NewMockBot().
		WithAdmins("admin!*@admin.host").
		WithPlugin(ID, New("v1.2.3")).
		WithPlugin("echo", func() plugin.Instance { return echo{} })
	require.Empty(t, bot.Plugins().Load(ID))
	return bot
}

// say sends msg as mask in #test and returns the replies it produced.
func say(bot *mocktest.MockBot, mask, msg string) []string {
	bot.Reset()
	bot.Say(context.Background(), mask, "#test", msg)
	return bot.Replies("#test")
}

func TestAdmin_DeniesNonAdmins(t *testing.T) {
	bot := newBot(t)

	for _, cmd := range []string{"!load echo", "!unload admin", "!plugins", "!join #x", "!set a b", "!get a"} {
		assert.Equal(t, []string{denied}, say(bot, userMask, cmd), cmd)
	}
	assert.Equal(t, []string{ID}, bot.Plugins().Loaded())
	assert.Empty(t, bot.Joins)
}

func TestAdmin_LoadAndUnload(t *testing.T) {
	bot := newBot(t)

	assert.Equal(t, []string{"Loaded: echo; Failed: missing"}, say(bot, adminMask, "!load echo missing"))
	assert.Equal(t, []string{ID, "echo"}, bot.Plugins().Loaded())
	assert.Equal(t, []string{"hi"}, say(bot, userMask, "!echo hi"))

	assert.Equal(t, []string{"Loaded: admin"}, say(bot, adminMask, "!reload admin"))
	assert.Equal(t, 1, bot.Plugins().Reloads())

	assert.Equal(t, []string{"Unloaded: echo"}, say(bot, adminMask, "!unload echo"))
	assert.Empty(t, say(bot, userMask, "!echo hi"))
	assert.Equal(t, []string{"Failed: echo"}, say(bot, adminMask, "!unload echo"))
}

func TestAdmin_Blacklist(t *testing.T) {
	bot := newBot(t)
	require.Empty(t, bot.Plugins().Load("echo"))

	assert.Equal(t, []string{"Blacklisted echo in #test"}, say(bot, adminMask, "!blacklist echo"))
	assert.Empty(t, say(bot, userMask, "!echo hi"))

	bot.Reset()
	bot.Say(context.Background(), userMask, "#other", "!echo hi")
	assert.Equal(t, []string{"hi"}, bot.Replies("#other"))

	assert.Equal(t, []string{"echo was not blacklisted in #nowhere"}, say(bot, adminMask, "!unblacklist echo #nowhere"))
	assert.Equal(t, []string{"Unblacklisted echo in #test"}, say(bot, adminMask, "!unblacklist echo"))
	assert.Equal(t, []string{"hi"}, say(bot, userMask, "!echo hi"))

	assert.Equal(t, []string{"Plugin not loaded: nope"}, say(bot, adminMask, "!blacklist nope"))
	assert.Equal(t, []string{"Plugin not loaded: nope"}, say(bot, adminMask, "!unblacklist nope"))
}

func TestAdmin_BlacklistBlankArgs(t *testing.T) {
	bot := newBot(t)
	require.Empty(t, bot.Plugins().Load("echo"))

	assert.Equal(t, []string{"Usage: !blacklist <plugin> [channel]..."}, say(bot, adminMask, "!blacklist   "))
	assert.Equal(t, []string{"Usage: !unblacklist <plugin> [channel]..."}, say(bot, adminMask, "!unblacklist  "))
	assert.Equal(t, []string{"hi"}, say(bot, userMask, "!echo hi"))
}

func TestAdmin_Plugins(t *testing.T) {
	bot := newBot(t)

	assert.Equal(t, []string{"Loaded: admin | Available: echo"}, say(bot, adminMask, "!plugins"))

	require.Empty(t, bot.Plugins().Load("echo"))
	assert.Equal(t, []string{"Loaded: admin, echo"}, say(bot, adminMask, "!plugins"))
}

func TestAdmin_JoinAndPart(t *testing.T) {
	bot := newBot(t)

	assert.Equal(t, []string{"Not a channel: nope"}, say(bot, adminMask, "!join #a nope #b"))
	assert.Equal(t, []string{"#a", "#b"}, bot.Joins)

	say(bot, adminMask, "!part")
	assert.Equal(t, []mocktest.Line{{Target: "#test"}}, bot.Parts)

	say(bot, adminMask, "!part #a see you")
	assert.Equal(t, []mocktest.Line{{Target: "#a", Text: "see you"}}, bot.Parts)

	say(bot, adminMask, "!part bye all")
	assert.Equal(t, []mocktest.Line{{Target: "#test", Text: "bye all"}}, bot.Parts)
}

func TestAdmin_Settings(t *testing.T) {
	bot := newBot(t)

	assert.Equal(t, []string{"greeting set to: hello world"}, say(bot, adminMask, "!set greeting hello world"))
	assert.Equal(t, "hello world", bot.Settings().String("greeting", ""))

	assert.Equal(t, []string{`greeting: "hello world"`}, say(bot, adminMask, "!get greeting"))
	assert.Equal(t, []string{"Unknown key: missing"}, say(bot, adminMask, "!get missing"))
	assert.Equal(t, []string{"Usage: !set <key> <value>"}, say(bot, adminMask, "!set lonely"))
}

func TestAdmin_HelpAndVersion(t *testing.T) {
	bot := newBot(t)

	replies := say(bot, userMask, "!help")
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0], "!load, !reload, !unload")
	assert.Contains(t, replies[0], "!version")

	assert.Equal(t, []string{"!join <channel>..."}, say(bot, userMask, "!help !join"))
	assert.Equal(t, []string{"No help for !nope"}, say(bot, userMask, "!help !nope"))
	assert.Equal(t, []string{"testbot v1.2.3"}, say(bot, userMask, "!version"))
}
