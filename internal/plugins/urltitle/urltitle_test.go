package urltitle

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkdindustries/forkingdongles/internal/fetch"
	mocktest "pkdindustries/forkingdongles/internal/testing"
)

type server struct {
	*httptest.Server
	pageHits atomic.Int32
}

func newServer(t *testing.T) *server {
	t.Helper()

	var pngBody bytes.Buffer
	require.NoError(t, png.Encode(&pngBody, image.NewRGBA(image.Rect(0, 0, 4, 3))))

	s := &server{}
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		s.pageHits.Add(1)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><head><title>Forking   Dongles\n</title></head></html>"))
	})
	mux.HandleFunc("/long", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<title>" + strings.Repeat("é", maxTitleLen+10) + "</title>"))
	})
	mux.HandleFunc("/image", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngBody.Bytes())
	})
	mux.HandleFunc("/blob", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte("0123456789"))
	})
	mux.HandleFunc("/data", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func newBot(t *testing.T) *mocktest.MockBot {
	t.Helper()
	bot := mocktest.NewMockBot().
		WithChannel("#test").
		WithFetcher(fetch.New(fetch.Options{Timeout: 5 * time.Second})).
		WithPlugin(ID, New(10))
	require.Empty(t, bot.Plugins().Load(ID))
	return bot
}

func say(bot *mocktest.MockBot, mask, msg string) []string {
	bot.Reset()
	bot.Say(context.Background(), mask, "#test", msg)
	return bot.Replies("#test")
}

func TestURLTitle_NeedsFetcher(t *testing.T) {
	bot := mocktest.NewMockBot().WithPlugin(ID, New(10))
	assert.Equal(t, []string{ID}, bot.Plugins().Load(ID))
}

func TestURLTitle_AnnouncesTitles(t *testing.T) {
	srv := newServer(t)
	bot := newBot(t)

	replies := say(bot, "alice!a@h", "look (at "+srv.URL+"/page). and "+srv.URL+"/blob")

	assert.Equal(t, []string{
		"[ Forking Dongles ] - 127.0.0.1",
		"[ application/octet-stream, 10 B ] - 127.0.0.1",
	}, replies)
}

func TestURLTitle_CachesTitles(t *testing.T) {
	srv := newServer(t)
	bot := newBot(t)

	for range 3 {
		assert.Equal(t, []string{"[ Forking Dongles ] - 127.0.0.1"}, say(bot, "alice!a@h", srv.URL+"/page"))
	}
	assert.Equal(t, int32(1), srv.pageHits.Load())
}

func TestURLTitle_SkipsUninteresting(t *testing.T) {
	srv := newServer(t)
	bot := newBot(t)

	assert.Empty(t, say(bot, "alice!a@h", srv.URL+"/data"))
	assert.Empty(t, say(bot, "alice!a@h", srv.URL+"/broken"))
	assert.Empty(t, say(bot, "testbot!bot@h", srv.URL+"/page"))
	assert.Empty(t, say(bot, "alice!a@h", "no links here"))
	assert.Zero(t, srv.pageHits.Load())
}

func TestURLTitle_DescribesImagesAndLongTitles(t *testing.T) {
	srv := newServer(t)
	bot := newBot(t)

	replies := say(bot, "alice!a@h", srv.URL+"/image")
	require.Len(t, replies, 1)
	assert.True(t, strings.HasPrefix(replies[0], "[ png image, 4x3, "), replies[0])

	replies = say(bot, "alice!a@h", srv.URL+"/long")
	require.Len(t, replies, 1)
	assert.Equal(t, "[ "+strings.Repeat("é", maxTitleLen)+"... ] - 127.0.0.1", replies[0])
}

func TestURLTitle_CloseClearsCache(t *testing.T) {
	srv := newServer(t)
	bot := newBot(t)

	say(bot, "alice!a@h", srv.URL+"/page")
	require.Empty(t, bot.Plugins().Load(ID))
	say(bot, "alice!a@h", srv.URL+"/page")

	assert.Equal(t, int32(2), srv.pageHits.Load())
}
