package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/streamweld/streamweld/internal/api"
	"github.com/streamweld/streamweld/internal/config"
	"github.com/streamweld/streamweld/internal/database"
	"github.com/streamweld/streamweld/internal/epg"
	"github.com/streamweld/streamweld/internal/events"
	"github.com/streamweld/streamweld/internal/ingest"
	"github.com/streamweld/streamweld/internal/logger"
	"github.com/streamweld/streamweld/internal/scheduler"
	"github.com/streamweld/streamweld/internal/scheduler/tasks"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Path:       cfg.Logging.Path,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	defer log.Close()

	log.Info().
		Str("version", config.Version).
		Str("logLevel", cfg.Logging.Level).
		Msg("starting StreamWeld")

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	log.Info().Msg("running database migrations")
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	hub := events.NewHub(log.Logger)
	go hub.Run()

	sched, err := scheduler.New(log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create scheduler")
	}

	fetcher := epg.NewXMLTVFetcher(cfg.EPG.Endpoint, log.Logger)
	server := api.NewServer(db, hub, sched, fetcher, cfg, log.Logger)

	server.Coordinator().RegisterProvider(ingest.NewPlaylistProvider(log.Logger))

	ctx := context.Background()

	// Verify the full-text index before serving queries; a corrupt
	// index is rebuilt from the item rows.
	if err := server.StoreService().EnsureIndex(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to verify search index")
	}

	if cfg.Sources.BootstrapFile != "" {
		if err := server.SourceService().Bootstrap(ctx, cfg.Sources.BootstrapFile); err != nil {
			log.Warn().Err(err).Msg("failed to bootstrap sources")
		}
	}

	if err := tasks.RegisterSourceSyncTask(sched, server.Coordinator(), cfg.Sources.SyncInterval); err != nil {
		log.Fatal().Err(err).Msg("failed to register source sync task")
	}
	if err := tasks.RegisterEPGRefreshTask(sched, server.EPGManager(), cfg.EPG.SweepInterval); err != nil {
		log.Fatal().Err(err).Msg("failed to register guide refresh task")
	}
	if err := tasks.RegisterMaintenanceTask(sched, server.ReconcileService()); err != nil {
		log.Fatal().Err(err).Msg("failed to register maintenance task")
	}

	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}

	go func() {
		addr := cfg.Server.Address()
		log.Info().Str("address", addr).Msg("HTTP server listening")
		if err := server.Start(addr); err != nil {
			log.Info().Msg("server stopped")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("received shutdown signal")

	if err := sched.Stop(); err != nil {
		log.Error().Err(err).Msg("scheduler shutdown error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	log.Info().Msg("server stopped")
}
