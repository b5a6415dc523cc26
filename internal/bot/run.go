package bot

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/lrstanley/girc"
	"go.uber.org/zap"

	"pkdindustries/forkingdongles/internal/config"
	"pkdindustries/forkingdongles/internal/core"
	"pkdindustries/forkingdongles/internal/metrics"
	"pkdindustries/forkingdongles/internal/session"
)

const (
	maxRetries     = 5
	reconnectDelay = 5 * time.Second
	// A connection that lasted this long resets the retry count.
	stableAfter = time.Minute
)

// NewClient builds the girc client described by cfg.
func NewClient(cfg *config.Configuration) *girc.Client {
	client := girc.New(girc.Config{
		Server:    cfg.Server.Server,
		Port:      cfg.Server.Port,
		Nick:      cfg.Server.Nick,
		User:      "forkingdongles",
		Name:      "forkingdongles",
		SSL:       cfg.Server.SSL,
		TLSConfig: &tls.Config{InsecureSkipVerify: cfg.Server.TLSInsecure},
	})

	if cfg.Server.SASLNick != "" && cfg.Server.SASLPass != "" {
		client.Config.SASL = &girc.SASLPlain{
			User: cfg.Server.SASLNick,
			Pass: cfg.Server.SASLPass,
		}
	}
	return client
}

// NewSession builds the session that drives client.
func NewSession(cfg *config.Configuration, sys *System, client *girc.Client) *session.Session {
	return session.New(session.Options{
		Nick:       cfg.Server.Nick,
		Channels:   cfg.Server.Channels,
		Plugins:    cfg.Plugins.Load,
		Admins:     cfg.Bot.Admins,
		StateDelay: cfg.Bot.StateDelay,
		WhoisRate:  cfg.Bot.WhoisRate,
		WhoisBurst: cfg.Bot.WhoisBurst,
		Sender:     client,
		Catalog:    sys.Catalog,
		Settings:   sys.Settings,
		Fetcher:    sys.Fetcher,
		DB:         sys.DB,
		Logger:     zap.S(),
	})
}

// Run starts the IRC bot with the given configuration
func Run(ctx context.Context, cfg *config.Configuration) error {
	core.InitLogger(cfg.Bot.Verbose)
	defer zap.L().Sync()

	sys, err := NewSystem(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer func() {
		if err := sys.Close(); err != nil {
			zap.S().Errorw("Failed to close system", "error", err)
		}
	}()

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr); err != nil {
				zap.S().Errorw("Metrics server failed", "error", err)
			}
		}()
	}

	ircClient := NewClient(cfg)
	sess := NewSession(cfg, sys, ircClient)
	sess.Attach(ircClient)

	sessionDone := make(chan struct{})
	go func() {
		defer close(sessionDone)
		sess.Run(ctx)
	}()
	defer func() { <-sessionDone }()

	go func() {
		<-ctx.Done()
		ircClient.Quit("Shutting down...")
		zap.S().Info("IRC client closed")
	}()

	// Reconnect loop
	failures := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		zap.S().Infow("Connecting to server",
			"server", ircClient.Config.Server,
			"port", ircClient.Config.Port,
			"tls", ircClient.Config.SSL,
			"sasl", ircClient.Config.SASL != nil,
		)

		started := time.Now()
		err := ircClient.Connect()
		if ctx.Err() != nil {
			return nil
		}
		if time.Since(started) >= stableAfter {
			failures = 0
		}
		failures++
		if failures > maxRetries {
			return fmt.Errorf("failed to connect after %d attempts: %w", maxRetries, err)
		}

		if err != nil {
			zap.S().Errorw("Connection failed", "error", err)
		} else {
			zap.S().Warn("Disconnected from server")
		}
		zap.S().Infof("Reconnecting in %s (attempt %d/%d)", reconnectDelay, failures, maxRetries)

		select {
		case <-time.After(reconnectDelay):
		case <-ctx.Done():
			return nil
		}
	}
}
