package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"pkdindustries/forkingdongles/internal/bot"
	"pkdindustries/forkingdongles/internal/config"
)

func main() {
	fmt.Printf("%s\n", bot.GetBanner(bot.Version))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:    "forkingdongles",
		Usage:   "a pluggable irc bot",
		Version: bot.Version + " - http://github.com/pkdindustries/forkingdongles",
		Flags:   config.GetFlags(),
		Action:  runBot,
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		// Print to stderr first in case logger isn't initialized
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		zap.S().Fatal(err)
	}
}

func runBot(ctx context.Context, c *cli.Command) error {
	cfg := config.NewConfiguration(c)
	if cfg.Bot.Verbose {
		cfg.PrintConfig()
	}
	return bot.Run(ctx, cfg)
}
