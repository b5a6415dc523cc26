package bot

import (
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkdindustries/forkingdongles/internal/config"
	"pkdindustries/forkingdongles/internal/plugins/admin"
	"pkdindustries/forkingdongles/internal/plugins/seen"
	"pkdindustries/forkingdongles/internal/plugins/urltitle"
	"pkdindustries/forkingdongles/internal/session"
	mocktest "pkdindustries/forkingdongles/internal/testing"
)

var ansi = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func TestGetBanner(t *testing.T) {
	plain := ansi.ReplaceAllString(GetBanner("9.9.9"), "")
	assert.Contains(t, plain, "a  pluggable  irc  bot  [v9.9.9]")
	assert.Contains(t, GetBanner("9.9.9"), "\x1b[38;2;")
}

func TestNewCatalog(t *testing.T) {
	catalog := NewCatalog(mocktest.DefaultTestConfig())
	assert.ElementsMatch(t, []string{admin.ID, seen.ID, urltitle.ID}, catalog.Names())
}

func testConfig(t *testing.T) *config.Configuration {
	cfg := mocktest.DefaultTestConfig()
	dir := t.TempDir()
	cfg.Storage.Database = filepath.Join(dir, "bot.db")
	cfg.Storage.Settings = filepath.Join(dir, "settings.json")
	return cfg
}

func TestNewSystem(t *testing.T) {
	cfg := testConfig(t)

	sys, err := NewSystem(cfg)
	require.NoError(t, err)
	assert.NotNil(t, sys.DB)
	assert.NotNil(t, sys.Fetcher)
	assert.FileExists(t, cfg.Storage.Settings)
	assert.Empty(t, sys.Settings.Strings(session.ChannelsKey))

	require.NoError(t, sys.Settings.Set(session.ChannelsKey, []string{"#kept"}))
	require.NoError(t, sys.Close())

	reopened, err := NewSystem(cfg)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, []string{"#kept"}, reopened.Settings.Strings(session.ChannelsKey))
}

func TestNewSession(t *testing.T) {
	cfg := testConfig(t)
	sys, err := NewSystem(cfg)
	require.NoError(t, err)
	defer sys.Close()

	client := NewClient(cfg)
	assert.Nil(t, client.Config.SASL)

	sess := NewSession(cfg, sys, client)
	assert.Equal(t, "testbot", sess.Nick())
	assert.Same(t, sys.DB, sess.DB())
	assert.Same(t, sys.Settings, sess.Settings())
}

func TestNewClientSASL(t *testing.T) {
	cfg := mocktest.DefaultTestConfig()
	cfg.Server.SASLNick = "bot"
	cfg.Server.SASLPass = "secret"

	client := NewClient(cfg)
	require.NotNil(t, client.Config.SASL)
	assert.Equal(t, "irc.test.local", client.Config.Server)
}
