// Package seen records when each nick was last active and answers !seen.
package seen

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"pkdindustries/forkingdongles/internal/event"
	"pkdindustries/forkingdongles/internal/model"
	"pkdindustries/forkingdongles/internal/plugin"
	"pkdindustries/forkingdongles/internal/storage"
)

const ID = "seen"

var errNoDatabase = errors.New("seen needs a database")

const schema = `
CREATE TABLE IF NOT EXISTS seen (
	nick TEXT PRIMARY KEY,
	display TEXT NOT NULL,
	mask TEXT NOT NULL,
	channel TEXT NOT NULL,
	action TEXT NOT NULL,
	message TEXT NOT NULL DEFAULT '',
	seen_at INTEGER NOT NULL
)`

// Sighting is the last thing a nick was seen doing.
type Sighting struct {
	Nick    string
	Mask    string
	Channel string
	Action  string
	Message string
	At      time.Time
}

type Plugin struct {
	db  *storage.DB
	now func() time.Time
}

// New returns the entry point to register under ID. now may be nil.
func New(now func() time.Time) plugin.EntryPoint {
	if now == nil {
		now = time.Now
	}
	return func(bot plugin.Bot) (plugin.Instance, error) {
		db := bot.DB()
		if db == nil {
			return nil, errNoDatabase
		}
		if err := db.Migrate(context.Background(), "seen_v1", schema); err != nil {
			return nil, err
		}
		return &Plugin{db: db, now: now}, nil
	}
}

func (p *Plugin) Handlers() []plugin.Handler {
	return []plugin.Handler{
		plugin.Command{Tokens: []string{"!seen"}, NeedsArgs: true, Help: "!seen <nick> shows when nick was last active", Func: p.seen},
		plugin.Subscriber{
			Events:   []event.Kind{event.Privmsg, event.Join, event.Part, event.Kick, event.Quit, event.Nick},
			Variadic: true,
			Func:     p.observe,
		},
	}
}

func (p *Plugin) observe(ctx context.Context, _ plugin.Bot, kind event.Kind, params ...any) (event.Result, error) {
	user, _ := params[0].(*model.User)
	if user == nil || user.IsSelf {
		return event.Continue, nil
	}

	s := Sighting{Nick: user.Nick, Mask: user.Mask(), At: p.now()}
	switch kind {
	case event.Privmsg:
		ch := params[1].(*model.Channel)
		if ch.IsUser() {
			return event.Continue, nil
		}
		s.Channel, s.Action, s.Message = ch.Name, "saying", params[2].(string)
	case event.Join:
		s.Channel, s.Action = params[1].(*model.Channel).Name, "joining"
	case event.Part:
		s.Channel, s.Action, s.Message = params[1].(*model.Channel).Name, "leaving", params[2].(string)
	case event.Kick:
		s.Channel, s.Action, s.Message = params[1].(*model.Channel).Name, "being kicked from", params[3].(string)
	case event.Quit:
		s.Action, s.Message = "quitting", params[1].(string)
	case event.Nick:
		s.Nick, s.Action, s.Message = params[1].(string), "changing nick", user.Nick
	}

	return event.Continue, p.Record(ctx, s)
}

// Record upserts the sighting for s.Nick.
func (p *Plugin) Record(ctx context.Context, s Sighting) error {
	_, err := p.db.SQL().ExecContext(ctx, `
INSERT INTO seen (nick, display, mask, channel, action, message, seen_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(nick) DO UPDATE SET
	display = excluded.display,
	mask = excluded.mask,
	channel = excluded.channel,
	action = excluded.action,
	message = excluded.message,
	seen_at = excluded.seen_at
`,
		model.Fold(s.Nick), s.Nick, s.Mask, s.Channel, s.Action, s.Message, s.At.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record sighting: %w", err)
	}
	return nil
}

// Lookup returns the last sighting of nick, or false if there is none.
func (p *Plugin) Lookup(ctx context.Context, nick string) (Sighting, bool, error) {
	var (
		s  Sighting
		at int64
	)
	row := p.db.SQL().QueryRowContext(ctx, `
SELECT display, mask, channel, action, message, seen_at FROM seen WHERE nick = ?
`, model.Fold(nick))
	err := row.Scan(&s.Nick, &s.Mask, &s.Channel, &s.Action, &s.Message, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return Sighting{}, false, nil
	}
	if err != nil {
		return Sighting{}, false, fmt.Errorf("lookup sighting: %w", err)
	}
	s.At = time.UnixMilli(at)
	return s, true, nil
}

func (p *Plugin) seen(ctx context.Context, bot plugin.Bot, _ string, user *model.User, channel *model.Channel, args string) (event.Result, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		bot.Message(channel.Name, "Usage: !seen <nick>")
		return event.Continue, nil
	}
	nick := fields[0]

	switch {
	case model.Fold(nick) == model.Fold(bot.Nick()):
		bot.Message(channel.Name, "I'm right here.")
		return event.Continue, nil
	case user != nil && model.Fold(nick) == model.Fold(user.Nick):
		bot.Message(channel.Name, "Looking for yourself?")
		return event.Continue, nil
	}

	s, ok, err := p.Lookup(ctx, nick)
	if err != nil {
		return event.Continue, err
	}
	if !ok {
		bot.Message(channel.Name, fmt.Sprintf("I haven't seen %s.", nick))
		return event.Continue, nil
	}
	bot.Message(channel.Name, p.describe(s))
	return event.Continue, nil
}

func (p *Plugin) describe(s Sighting) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s was last seen %s %s", s.Nick, humanize.RelTime(s.At, p.now(), "ago", "from now"), s.Action)
	switch {
	case s.Action == "changing nick":
		fmt.Fprintf(&b, " to %s", s.Message)
		return b.String()
	case s.Channel != "" && s.Action == "saying":
		fmt.Fprintf(&b, " in %s: %s", s.Channel, s.Message)
		return b.String()
	case s.Channel != "":
		fmt.Fprintf(&b, " %s", s.Channel)
	}
	if s.Message != "" {
		fmt.Fprintf(&b, " (%s)", s.Message)
	}
	return b.String()
}
