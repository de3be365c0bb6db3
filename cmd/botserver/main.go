package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/eightyone/botdock/internal/botserver"
	"github.com/eightyone/botdock/internal/config"
	"github.com/eightyone/botdock/internal/line"
	"github.com/eightyone/botdock/internal/reports"
	"github.com/eightyone/botdock/internal/statapi"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Str("service", "botserver").Logger()

	cfg, err := config.LoadBot()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.ChannelSecret == "" || cfg.ChannelToken == "" {
		log.Fatal().Msg("LINE_CHANNEL_SECRET and LINE_CHANNEL_ACCESS_TOKEN are required")
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("failed to create data dir")
	}
	store, err := reports.NewStore(filepath.Join(cfg.DataDir, "reports.db"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open report store")
	}
	defer store.Close()

	fetcher := statapi.NewClient(cfg.Stat.BaseURL, cfg.Stat.ChurchID, cfg.Stat.Account, cfg.Stat.Password, cfg.Stat.OrgLevel)
	replier := line.NewClient(cfg.ChannelToken)

	srv := botserver.New(cfg, store, fetcher, replier, log)

	// Mounted report files from earlier runs seed the store.
	if err := srv.SyncFromFiles(context.Background()); err != nil {
		log.Error().Err(err).Msg("failed to import report files")
	}
	if err := srv.StartWeeklyRefresh(); err != nil {
		log.Fatal().Err(err).Msg("failed to start weekly refresh")
	}

	go func() {
		if err := srv.Listen(); err != nil {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	if err := srv.Shutdown(); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
}
