// Package admin is the built-in plugin for managing the bot from IRC.
package admin

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"pkdindustries/forkingdongles/internal/event"
	"pkdindustries/forkingdongles/internal/irc"
	"pkdindustries/forkingdongles/internal/model"
	"pkdindustries/forkingdongles/internal/plugin"
)

const ID = "admin"

const denied = "You don't have permission to perform this action."

type Plugin struct {
	version string
}

// New returns the entry point to register under ID.
func New(version string) plugin.EntryPoint {
	return func() plugin.Instance {
		return &Plugin{version: version}
	}
}

func (p *Plugin) Handlers() []plugin.Handler {
	return []plugin.Handler{
		plugin.Command{Tokens: []string{"!load", "!reload"}, NeedsArgs: true, Help: "!load <plugin>... loads or reloads plugins", Func: restricted(p.load)},
		plugin.Command{Tokens: []string{"!unload"}, NeedsArgs: true, Help: "!unload <plugin>... unloads plugins", Func: restricted(p.unload)},
		plugin.Command{Tokens: []string{"!blacklist"}, NeedsArgs: true, Help: "!blacklist <plugin> [channel]... disables a plugin's commands", Func: restricted(p.blacklist)},
		plugin.Command{Tokens: []string{"!unblacklist"}, NeedsArgs: true, Help: "!unblacklist <plugin> [channel]... re-enables a plugin's commands", Func: restricted(p.unblacklist)},
		plugin.Command{Tokens: []string{"!plugins"}, Help: "!plugins lists loaded and available plugins", Func: restricted(p.plugins)},
		plugin.Command{Tokens: []string{"!join"}, NeedsArgs: true, Help: "!join <channel>...", Func: restricted(p.join)},
		plugin.Command{Tokens: []string{"!part"}, Help: "!part [channel] [reason]", Func: restricted(p.part)},
		plugin.Command{Tokens: []string{"!set"}, NeedsArgs: true, Help: "!set <key> <value> stores a setting", Func: restricted(p.set)},
		plugin.Command{Tokens: []string{"!get"}, NeedsArgs: true, Help: "!get <key> shows a setting", Func: restricted(p.get)},
		plugin.Command{Tokens: []string{"!help"}, Help: "!help lists commands", Func: p.help},
		plugin.Command{Tokens: []string{"!version"}, Help: "!version", Func: p.versionCmd},
	}
}

// restricted gates fn behind the admin hostmask list.
func restricted(fn plugin.CommandFunc) plugin.CommandFunc {
	return func(ctx context.Context, bot plugin.Bot, token string, user *model.User, channel *model.Channel, args string) (event.Result, error) {
		if !bot.IsAdmin(user) {
			bot.Logger().Warnw("Denied admin command", "command", token, "user", user.Mask())
			bot.Message(channel.Name, denied)
			return event.Continue, nil
		}
		return fn(ctx, bot, token, user, channel, args)
	}
}

func (p *Plugin) load(_ context.Context, bot plugin.Bot, _ string, _ *model.User, channel *model.Channel, args string) (event.Result, error) {
	ids := strings.Fields(args)
	failed := bot.Plugins().Load(ids...)
	bot.Message(channel.Name, summary(ids, failed, "Loaded"))
	return event.Continue, nil
}

func (p *Plugin) unload(_ context.Context, bot plugin.Bot, _ string, _ *model.User, channel *model.Channel, args string) (event.Result, error) {
	ids := strings.Fields(args)
	failed := bot.Plugins().Unload(ids...)
	bot.Message(channel.Name, summary(ids, failed, "Unloaded"))
	return event.Continue, nil
}

// summary reports which ids succeeded and which failed.
func summary(ids, failed []string, verb string) string {
	var ok []string
	for _, id := range ids {
		if !slices.Contains(failed, id) {
			ok = append(ok, id)
		}
	}
	var parts []string
	if len(ok) > 0 {
		parts = append(parts, fmt.Sprintf("%s: %s", verb, strings.Join(ok, ", ")))
	}
	if len(failed) > 0 {
		parts = append(parts, fmt.Sprintf("Failed: %s", strings.Join(failed, ", ")))
	}
	return strings.Join(parts, "; ")
}

// targets splits "<plugin> [channel]..." defaulting to the current channel.
// ok is false when args names no plugin.
func targets(args string, channel *model.Channel) (id string, channels []string, ok bool) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return "", nil, false
	}
	channels = fields[1:]
	if len(channels) == 0 {
		channels = []string{channel.Name}
	}
	return fields[0], channels, true
}

func (p *Plugin) blacklist(_ context.Context, bot plugin.Bot, _ string, _ *model.User, channel *model.Channel, args string) (event.Result, error) {
	id, channels, ok := targets(args, channel)
	if !ok {
		bot.Message(channel.Name, "Usage: !blacklist <plugin> [channel]...")
		return event.Continue, nil
	}
	if !bot.Plugins().Blacklist(id, channels...) {
		bot.Message(channel.Name, fmt.Sprintf("Plugin not loaded: %s", id))
		return event.Continue, nil
	}
	bot.Message(channel.Name, fmt.Sprintf("Blacklisted %s in %s", id, strings.Join(channels, ", ")))
	return event.Continue, nil
}

func (p *Plugin) unblacklist(_ context.Context, bot plugin.Bot, _ string, _ *model.User, channel *model.Channel, args string) (event.Result, error) {
	id, channels, ok := targets(args, channel)
	if !ok {
		bot.Message(channel.Name, "Usage: !unblacklist <plugin> [channel]...")
		return event.Continue, nil
	}
	missing, ok := bot.Plugins().Unblacklist(id, channels...)
	if !ok {
		bot.Message(channel.Name, fmt.Sprintf("Plugin not loaded: %s", id))
		return event.Continue, nil
	}
	if len(missing) > 0 {
		bot.Message(channel.Name, fmt.Sprintf("%s was not blacklisted in %s", id, strings.Join(missing, ", ")))
		return event.Continue, nil
	}
	bot.Message(channel.Name, fmt.Sprintf("Unblacklisted %s in %s", id, strings.Join(channels, ", ")))
	return event.Continue, nil
}

func (p *Plugin) plugins(_ context.Context, bot plugin.Bot, _ string, _ *model.User, channel *model.Channel, _ string) (event.Result, error) {
	engine := bot.Plugins()
	loaded := engine.Loaded()
	var available []string
	for _, id := range engine.Catalog().Names() {
		if !slices.Contains(loaded, id) {
			available = append(available, id)
		}
	}
	msg := "Loaded: " + strings.Join(loaded, ", ")
	if len(available) > 0 {
		msg += " | Available: " + strings.Join(available, ", ")
	}
	bot.Message(channel.Name, msg)
	return event.Continue, nil
}

func (p *Plugin) join(_ context.Context, bot plugin.Bot, _ string, _ *model.User, channel *model.Channel, args string) (event.Result, error) {
	var names []string
	for _, name := range strings.Fields(args) {
		if !irc.IsChannel(name) {
			bot.Message(channel.Name, fmt.Sprintf("Not a channel: %s", name))
			continue
		}
		names = append(names, name)
	}
	bot.Join(names...)
	return event.Continue, nil
}

func (p *Plugin) part(_ context.Context, bot plugin.Bot, _ string, _ *model.User, channel *model.Channel, args string) (event.Result, error) {
	target, reason := channel.Name, args
	if first, rest, _ := strings.Cut(args, " "); irc.IsChannel(first) {
		target, reason = first, rest
	}
	if !irc.IsChannel(target) {
		bot.Message(channel.Name, "Usage: !part [channel] [reason]")
		return event.Continue, nil
	}
	bot.Part(target, reason)
	return event.Continue, nil
}

func (p *Plugin) set(_ context.Context, bot plugin.Bot, _ string, _ *model.User, channel *model.Channel, args string) (event.Result, error) {
	key, value, _ := strings.Cut(args, " ")
	if value == "" {
		bot.Message(channel.Name, "Usage: !set <key> <value>")
		return event.Continue, nil
	}

	store := bot.Settings()
	if err := store.Set(key, value); err != nil {
		return event.Continue, err
	}
	if err := store.Save(); err != nil {
		return event.Continue, err
	}
	bot.Logger().Debugw("Setting changed", "key", key, "value", value)
	bot.Message(channel.Name, fmt.Sprintf("%s set to: %s", key, value))
	return event.Continue, nil
}

func (p *Plugin) get(_ context.Context, bot plugin.Bot, _ string, _ *model.User, channel *model.Channel, args string) (event.Result, error) {
	key := strings.TrimSpace(args)
	value, err := bot.Settings().Get(key)
	if err != nil {
		bot.Message(channel.Name, fmt.Sprintf("Unknown key: %s", key))
		return event.Continue, nil
	}
	bot.Message(channel.Name, fmt.Sprintf("%s: %s", key, value.Raw))
	return event.Continue, nil
}

func (p *Plugin) help(_ context.Context, bot plugin.Bot, _ string, _ *model.User, channel *model.Channel, args string) (event.Result, error) {
	commands := bot.Plugins().Commands(channel.Name)

	if token := strings.TrimSpace(args); token != "" {
		for _, cmd := range commands {
			if slices.Contains(cmd.Tokens, token) && cmd.Help != "" {
				bot.Message(channel.Name, cmd.Help)
				return event.Continue, nil
			}
		}
		bot.Message(channel.Name, fmt.Sprintf("No help for %s", token))
		return event.Continue, nil
	}

	var tokens []string
	for _, cmd := range commands {
		tokens = append(tokens, cmd.Tokens...)
	}
	bot.Message(channel.Name, "Supported commands: "+strings.Join(tokens, ", "))
	return event.Continue, nil
}

func (p *Plugin) versionCmd(_ context.Context, bot plugin.Bot, _ string, _ *model.User, channel *model.Channel, _ string) (event.Result, error) {
	bot.Message(channel.Name, bot.Nick()+" "+p.version)
	return event.Continue, nil
}
