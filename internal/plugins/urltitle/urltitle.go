// Package urltitle announces the titles of links posted in channels.
package urltitle

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/dustin/go-humanize"

	"pkdindustries/forkingdongles/internal/cache"
	"pkdindustries/forkingdongles/internal/event"
	"pkdindustries/forkingdongles/internal/fetch"
	"pkdindustries/forkingdongles/internal/model"
	"pkdindustries/forkingdongles/internal/plugin"
)

const (
	ID = "urltitle"

	// maxLinks bounds how many links in one message are looked up.
	maxLinks    = 3
	maxTitleLen = 200
)

var (
	urlPattern = regexp.MustCompile(`https?://[^\s<>"]+`)

	errNoFetcher = errors.New("urltitle needs a fetcher")
)

type Plugin struct {
	titles *cache.Memo[string]
}

// New returns the entry point to register under ID. cacheSize bounds the
// number of remembered titles.
func New(cacheSize int) plugin.EntryPoint {
	return func(bot plugin.Bot) (plugin.Instance, error) {
		if bot.Fetcher() == nil {
			return nil, errNoFetcher
		}
		return &Plugin{titles: cache.New[string](ID, cacheSize)}, nil
	}
}

func (p *Plugin) Handlers() []plugin.Handler {
	return []plugin.Handler{
		plugin.Regex{Pattern: urlPattern, Func: p.announce},
	}
}

// Close drops remembered titles.
func (p *Plugin) Close() error {
	p.titles.Clear()
	return nil
}

func (p *Plugin) announce(ctx context.Context, bot plugin.Bot, user *model.User, channel *model.Channel, msg string) (event.Result, error) {
	if user != nil && user.IsSelf {
		return event.Continue, nil
	}

	for _, link := range urlPattern.FindAllString(msg, maxLinks) {
		link = strings.TrimRight(link, ".,;:!?)]'")
		title, cached, err := p.titles.Get(ctx, link, func(ctx context.Context) (string, error) {
			resp, err := bot.Fetcher().Fetch(ctx, link)
			if err != nil {
				return "", err
			}
			return Describe(resp), nil
		})
		if err != nil {
			bot.Logger().Debugw("Failed to fetch link", "url", link, "error", err)
			continue
		}
		bot.Logger().Debugw("Resolved link", "url", link, "cached", cached, "title", title)
		if title == "" {
			continue
		}
		bot.Message(channel.Name, fmt.Sprintf("[ %s ] - %s", title, host(link)))
	}
	return event.Continue, nil
}

// Describe summarises a response in one line: the page title for HTML, the
// format and size for images, and the content type and length otherwise.
func Describe(resp *fetch.Response) string {
	switch resp.Kind {
	case fetch.KindHTML:
		title := fetch.Title(resp.Document)
		if r := []rune(title); len(r) > maxTitleLen {
			title = strings.TrimSpace(string(r[:maxTitleLen])) + "..."
		}
		return title
	case fetch.KindImage:
		b := resp.Image.Bounds()
		return fmt.Sprintf("%s image, %dx%d, %s", resp.Format, b.Dx(), b.Dy(), humanize.Bytes(uint64(resp.Length)))
	case fetch.KindJSON:
		return ""
	default:
		return fmt.Sprintf("%s, %s", resp.ContentType, humanize.Bytes(uint64(resp.Length)))
	}
}

func host(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return link
	}
	return u.Hostname()
}
