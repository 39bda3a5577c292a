package main

import (
	"context"

	"github.com/charmbracelet/log"

	"renamebot/internal/bot"
	"renamebot/internal/config"
	"renamebot/internal/tracing"
)

func main() {
	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal("Failed to load configuration:", "err", err)
	}
	defer func() { _ = cfg.Close() }()

	tp, err := tracing.Init(context.Background(), cfg)
	if err != nil {
		// Tracing is optional, run without it rather than refuse to start.
		cfg.Logger.Error("Error initializing tracing", "err", err)
		tp = tracing.Disabled()
	}

	renameBot, err := bot.New(cfg, tp)
	if err != nil {
		cfg.Logger.Fatal("Failed to create bot:", "err", err)
	}

	if err := renameBot.Start(); err != nil {
		cfg.Logger.Fatal("Failed to start bot:", "err", err)
	}
}
