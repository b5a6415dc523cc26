package plugin

import (
	"fmt"
	"slices"
	"sync"
)

// EntryPoint is any of
//
//	func() Instance
//	func() (Instance, error)
//	func(Bot) Instance
//	func(Bot) (Instance, error)
type EntryPoint any

// Catalog maps plugin identifiers to their entry points. Loading a plugin looks
// its identifier up here; reloading calls the entry point again.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]EntryPoint
}

func NewCatalog() *Catalog {
	return &Catalog{entries: make(map[string]EntryPoint)}
}

// Register adds or replaces an entry point.
func (c *Catalog) Register(id string, entry EntryPoint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = entry
}

// Lookup returns the entry point registered for id.
func (c *Catalog) Lookup(id string) (EntryPoint, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return entry, nil
}

// Names returns every registered identifier, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// instantiate calls entry with the shapes listed on EntryPoint.
func instantiate(entry EntryPoint, bot Bot) (inst Instance, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("entry point panicked: %v", p)
		}
	}()

	switch fn := entry.(type) {
	case func() Instance:
		inst = fn()
	case func() (Instance, error):
		inst, err = fn()
	case func(Bot) Instance:
		inst = fn(bot)
	case func(Bot) (Instance, error):
		inst, err = fn(bot)
	default:
		return nil, fmt.Errorf("%w: %T", ErrBadEntryPoint, entry)
	}
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, fmt.Errorf("%w: returned no instance", ErrBadEntryPoint)
	}
	return inst, nil
}
