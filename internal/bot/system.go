package bot

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"pkdindustries/forkingdongles/internal/config"
	"pkdindustries/forkingdongles/internal/core"
	"pkdindustries/forkingdongles/internal/fetch"
	"pkdindustries/forkingdongles/internal/plugin"
	"pkdindustries/forkingdongles/internal/plugins/admin"
	"pkdindustries/forkingdongles/internal/plugins/seen"
	"pkdindustries/forkingdongles/internal/plugins/urltitle"
	"pkdindustries/forkingdongles/internal/session"
	"pkdindustries/forkingdongles/internal/settings"
	"pkdindustries/forkingdongles/internal/storage"
)

// System holds the services a session hands to its plugins.
type System struct {
	Settings *settings.Store
	DB       *storage.DB
	Fetcher  *fetch.Fetcher
	Catalog  *plugin.Catalog
}

func NewSystem(c *config.Configuration) (*System, error) {
	s := &System{}

	start := time.Now()
	store, err := settings.Open(c.Storage.Settings, map[string]any{
		session.ChannelsKey: []string{},
	})
	if err != nil {
		return nil, err
	}
	s.Settings = store
	core.LogDuration(zap.S(), "open settings "+c.Storage.Settings, start)

	start = time.Now()
	db, err := storage.Open(c.Storage.Database)
	if err != nil {
		return nil, err
	}
	s.DB = db
	core.LogDuration(zap.S(), "open database "+c.Storage.Database, start)

	s.Fetcher = fetch.New(fetch.Options{
		Timeout:   c.HTTP.Timeout,
		MaxBytes:  c.HTTP.MaxBytes,
		UserAgent: c.HTTP.UserAgent,
	})

	s.Catalog = NewCatalog(c)
	zap.S().Infow("Registered plugins", "available", s.Catalog.Names())

	return s, nil
}

// NewCatalog registers the built-in plugins.
func NewCatalog(c *config.Configuration) *plugin.Catalog {
	catalog := plugin.NewCatalog()
	catalog.Register(admin.ID, admin.New("v"+Version))
	catalog.Register(seen.ID, seen.New(nil))
	catalog.Register(urltitle.ID, urltitle.New(c.Plugins.CacheSize))
	return catalog
}

// Close writes settings back and closes the database.
func (s *System) Close() error {
	var errs []error
	if s.Settings != nil {
		errs = append(errs, s.Settings.Save())
	}
	if s.DB != nil {
		errs = append(errs, s.DB.Close())
	}
	return errors.Join(errs...)
}
