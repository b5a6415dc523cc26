package testing

import (
	"time"

	"pkdindustries/forkingdongles/internal/config"
)

// DefaultTestConfig returns a minimal configuration for testing
func DefaultTestConfig() *config.Configuration {
	return &config.Configuration{
		Server: &config.ServerConfig{
			Nick:     "testbot",
			Server:   "irc.test.local",
			Port:     6667,
			Channels: []string{"#test"},
		},
		Bot: &config.BotConfig{
			Admins:     []string{"admin!*@admin.host"},
			StateDelay: 10 * time.Millisecond,
			WhoisRate:  100,
			WhoisBurst: 100,
		},
		Plugins: &config.PluginsConfig{
			CacheSize: 10,
		},
		Storage: &config.StorageConfig{
			Database: ":memory:",
		},
		HTTP: &config.HTTPConfig{
			Timeout:   5 * time.Second,
			MaxBytes:  1 << 20,
			UserAgent: "testbot",
		},
		Metrics: &config.MetricsConfig{},
	}
}
