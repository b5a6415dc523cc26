package plugin

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"pkdindustries/forkingdongles/internal/core"
	"pkdindustries/forkingdongles/internal/event"
	"pkdindustries/forkingdongles/internal/irc"
	"pkdindustries/forkingdongles/internal/metrics"
	"pkdindustries/forkingdongles/internal/model"
)

type subscription struct {
	kind event.Kind
	id   event.ID
}

// Unit is one loaded plugin.
type Unit struct {
	ID          string
	Instance    Instance
	Commands    []Command
	Regexes     []Regex
	Subscribers []Subscriber
	LoadedAt    time.Time

	// commands and regexes in declaration order
	routes        []Handler
	subscriptions []subscription
	blacklist     map[string]struct{}
}

// Blacklisted reports whether the unit's commands are suppressed in channel.
func (u *Unit) Blacklisted(channel string) bool {
	_, ok := u.blacklist[model.Fold(channel)]
	return ok
}

// Blacklist returns the channels the unit is suppressed in, sorted.
func (u *Unit) Blacklist() []string {
	out := make([]string, 0, len(u.blacklist))
	for ch := range u.blacklist {
		out = append(out, ch)
	}
	slices.Sort(out)
	return out
}

// Callbacks returns the event callback handles the unit holds, per kind.
func (u *Unit) Callbacks() map[event.Kind][]event.ID {
	out := make(map[event.Kind][]event.ID)
	for _, s := range u.subscriptions {
		out[s.kind] = append(out[s.kind], s.id)
	}
	return out
}

// Engine loads plugin units from a Catalog, wires their subscribers into an
// event registry, and routes messages to their commands.
type Engine struct {
	mu      sync.Mutex
	bot     Bot
	events  *event.Registry[Bot]
	catalog *Catalog
	logger  *zap.SugaredLogger
	units   map[string]*Unit
	reloads int
}

// NewEngine creates an engine with nothing loaded.
func NewEngine(bot Bot, events *event.Registry[Bot], catalog *Catalog, logger *zap.SugaredLogger) *Engine {
	if logger == nil {
		logger = zap.S()
	}
	return &Engine{
		bot:     bot,
		events:  events,
		catalog: catalog,
		logger:  logger,
		units:   make(map[string]*Unit),
	}
}

// Catalog returns the catalog plugins are loaded from.
func (e *Engine) Catalog() *Catalog {
	return e.catalog
}

// Load loads or reloads each id and returns the ids that failed. A failed
// reload leaves the previously loaded unit in place.
func (e *Engine) Load(ids ...string) []string {
	var failed []string
	for _, id := range ids {
		if err := e.load(id); err != nil {
			e.logger.Errorw("Failed to load plugin", "plugin", id, "error", err)
			metrics.PluginLoads.WithLabelValues(id, "failed").Inc()
			failed = append(failed, id)
			continue
		}
		metrics.PluginLoads.WithLabelValues(id, "loaded").Inc()
	}
	return failed
}

func (e *Engine) load(id string) error {
	defer core.LogDuration(e.logger, "load "+id, time.Now())

	e.mu.Lock()
	prev := e.units[id]
	e.mu.Unlock()

	if prev != nil {
		if err := e.teardown(prev); err != nil {
			e.logger.Debugw("Ignoring teardown failure before reload", "plugin", id, "error", err)
		}
	}

	entry, err := e.catalog.Lookup(id)
	if err != nil {
		return err
	}
	inst, err := instantiate(entry, e.bot)
	if err != nil {
		return err
	}
	unit, err := e.build(id, inst)
	if err != nil {
		return err
	}

	if err := e.subscribe(unit); err != nil {
		e.unsubscribe(unit)
		return err
	}

	e.mu.Lock()
	prev = e.units[id]
	if prev != nil {
		unit.blacklist = prev.blacklist
		e.reloads++
	}
	e.units[id] = unit
	metrics.PluginsLoaded.Set(float64(len(e.units)))
	e.mu.Unlock()

	if prev != nil {
		e.unsubscribe(prev)
		e.logger.Infow("Reloaded plugin", "plugin", id)
	} else {
		e.logger.Infow("Loaded plugin", "plugin", id)
	}
	return nil
}

func (e *Engine) build(id string, inst Instance) (unit *Unit, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("collecting handlers panicked: %v", p)
		}
	}()

	unit = &Unit{
		ID:        id,
		Instance:  inst,
		LoadedAt:  time.Now(),
		blacklist: make(map[string]struct{}),
	}
	for _, h := range inst.Handlers() {
		if err := validate(h); err != nil {
			return nil, err
		}
		switch h := h.(type) {
		case Command:
			unit.Commands = append(unit.Commands, h)
			unit.routes = append(unit.routes, h)
		case Regex:
			unit.Regexes = append(unit.Regexes, h)
			unit.routes = append(unit.routes, h)
		case Subscriber:
			unit.Subscribers = append(unit.Subscribers, h)
		}
	}
	return unit, nil
}

func (e *Engine) subscribe(unit *Unit) error {
	for _, sub := range unit.Subscribers {
		for _, kind := range sub.Events {
			id, err := e.events.RegisterCallback(kind, event.Callback[Bot]{
				Params:   sub.Params,
				Variadic: sub.Variadic,
				Func:     sub.Func,
			})
			if err != nil {
				return err
			}
			unit.subscriptions = append(unit.subscriptions, subscription{kind: kind, id: id})
		}
	}
	return nil
}

func (e *Engine) unsubscribe(unit *Unit) {
	for _, s := range unit.subscriptions {
		e.events.UnregisterCallback(s.kind, s.id)
	}
	unit.subscriptions = nil
}

func (e *Engine) teardown(unit *Unit) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("teardown panicked: %v", p)
		}
	}()

	switch inst := unit.Instance.(type) {
	case BotCloser:
		return inst.Teardown(e.bot)
	case Closer:
		return inst.Close()
	}
	return nil
}

// Unload removes each id and returns the ids that were not loaded or whose
// teardown failed. A failed teardown still removes the unit.
func (e *Engine) Unload(ids ...string) []string {
	var failed []string
	for _, id := range ids {
		e.mu.Lock()
		unit, ok := e.units[id]
		if ok {
			delete(e.units, id)
			metrics.PluginsLoaded.Set(float64(len(e.units)))
		}
		e.mu.Unlock()

		if !ok {
			e.logger.Errorw("Failed to unload plugin", "plugin", id, "error", fmt.Errorf("%w: %s", ErrNotFound, id))
			failed = append(failed, id)
			continue
		}

		e.unsubscribe(unit)
		if err := e.teardown(unit); err != nil {
			e.logger.Errorw("Plugin teardown failed", "plugin", id, "error", err)
			failed = append(failed, id)
			continue
		}
		e.logger.Infow("Unloaded plugin", "plugin", id)
	}
	return failed
}

// Close unloads every plugin.
func (e *Engine) Close() {
	if failed := e.Unload(e.Loaded()...); len(failed) > 0 {
		e.logger.Warnw("Some plugins did not unload cleanly", "plugins", failed)
	}
}

// Blacklist suppresses id's commands in channels. It returns false if id is not loaded.
func (e *Engine) Blacklist(id string, channels ...string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	unit, ok := e.units[id]
	if !ok {
		return false
	}
	for _, ch := range channels {
		unit.blacklist[model.Fold(ch)] = struct{}{}
	}
	return true
}

// Unblacklist lifts the suppression for channels. It returns the channels that
// were not blacklisted, and false if id is not loaded.
func (e *Engine) Unblacklist(id string, channels ...string) ([]string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	unit, ok := e.units[id]
	if !ok {
		return nil, false
	}
	var missing []string
	for _, ch := range channels {
		key := model.Fold(ch)
		if _, ok := unit.blacklist[key]; !ok {
			missing = append(missing, ch)
			continue
		}
		delete(unit.blacklist, key)
	}
	return missing, true
}

// Loaded returns the loaded ids, sorted.
func (e *Engine) Loaded() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := make([]string, 0, len(e.units))
	for id := range e.units {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Unit returns the loaded unit for id.
func (e *Engine) Unit(id string) (*Unit, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	unit, ok := e.units[id]
	return unit, ok
}

// Reloads returns how many successful reloads the engine has performed.
func (e *Engine) Reloads() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reloads
}

// Commands returns the commands usable in channel, ordered by plugin id.
func (e *Engine) Commands(channel string) []Command {
	var out []Command
	for _, unit := range e.sorted() {
		if unit.Blacklisted(channel) {
			continue
		}
		out = append(out, unit.Commands...)
	}
	return out
}

// sorted snapshots the loaded units ordered by id.
func (e *Engine) sorted() []*Unit {
	e.mu.Lock()
	defer e.mu.Unlock()

	units := make([]*Unit, 0, len(e.units))
	for _, unit := range e.units {
		units = append(units, unit)
	}
	slices.SortFunc(units, func(a, b *Unit) int { return strings.Compare(a.ID, b.ID) })
	return units
}

// FireCommand routes raw to every matching command and regex handler. Units are
// visited in id order, skipping those blacklisted in channel. A handler
// returning StopAll ends routing and StopAll is returned.
func (e *Engine) FireCommand(ctx context.Context, user *model.User, channel *model.Channel, raw string) event.Result {
	return e.route(ctx, user, channel, raw, raw)
}

// FireAddressed is FireCommand for a line that may start with "nick:" or
// "nick,". Commands see the line without the address; regex handlers still
// match and receive raw.
func (e *Engine) FireAddressed(ctx context.Context, user *model.User, channel *model.Channel, raw, nick string) event.Result {
	command, _ := irc.StripAddressed(raw, nick)
	return e.route(ctx, user, channel, raw, command)
}

func (e *Engine) route(ctx context.Context, user *model.User, channel *model.Channel, raw, command string) event.Result {
	token, args, _ := strings.Cut(command, " ")

	for _, unit := range e.sorted() {
		if channel != nil && unit.Blacklisted(channel.Name) {
			continue
		}
		for _, route := range unit.routes {
			var (
				result event.Result
				err    error
			)
			switch h := route.(type) {
			case Command:
				if !slices.Contains(h.Tokens, token) || (h.NeedsArgs && args == "") {
					continue
				}
				result, err = e.invoke(unit.ID, func() (event.Result, error) {
					return h.Func(ctx, e.bot, token, user, channel, args)
				})
			case Regex:
				if !h.Pattern.MatchString(raw) {
					continue
				}
				result, err = e.invoke(unit.ID, func() (event.Result, error) {
					return h.Func(ctx, e.bot, user, channel, raw)
				})
			}
			metrics.CommandsHandled.WithLabelValues(unit.ID).Inc()
			switch {
			case errors.Is(err, ErrNeedsArgs):
				continue
			case err != nil:
				metrics.HandlerFailures.WithLabelValues(unit.ID).Inc()
				e.handlerLogger(unit.ID, user, channel).Errorw("Plugin handler failed", "command", token, "error", err)
				continue
			}
			if result == event.StopAll {
				return event.StopAll
			}
		}
	}
	return event.Continue
}

func (e *Engine) handlerLogger(id string, user *model.User, channel *model.Channel) *zap.SugaredLogger {
	var nick, name string
	if user != nil {
		nick = user.Nick
	}
	if channel != nil {
		name = channel.Name
	}
	return core.WithIRCContext(core.WithPlugin(e.logger, id), name, nick)
}

func (e *Engine) invoke(id string, fn func() (event.Result, error)) (result event.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("plugin %s panicked: %v", id, p)
		}
	}()
	return fn()
}
