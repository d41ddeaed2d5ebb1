package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"catmate-tracker/config"
	"catmate-tracker/internal/api"
	"catmate-tracker/internal/db"
	"catmate-tracker/internal/live"
	"catmate-tracker/internal/logging"
	"catmate-tracker/internal/notification"
	"catmate-tracker/internal/store"
	"catmate-tracker/internal/tracker"
)

func main() {
	loaded, envErr := config.LoadDotEnv()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration from %s: %v\n", configPath, err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log, os.Stdout)
	if envErr != nil {
		logger.Warn().Err(envErr).Msg("could not load .env file")
	}
	logger.Info().Str("path", configPath).Strs("env_files", loaded).Str("timezone", cfg.Schedule.Timezone).Msg("configuration loaded")

	// Initialize database
	gormDB, err := db.Init(&cfg.Database, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize database")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)

	var webpushOptions *webpush.Options
	if cfg.Push.Enabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
	} else {
		logger.Warn().Msg("VAPID keys not configured, refill reminders are disabled")
	}

	pool := notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, webpushOptions, logger)
	pool.Start(ctx)

	hub := live.NewHub(logger)
	defer hub.Close()

	trackerSvc := tracker.NewService(cfg, appStore, pool, hub, logger)
	go func() {
		if err := trackerSvc.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("refill checks stopped")
		}
	}()

	handler := api.NewHandler(cfg, trackerSvc, appStore, hub, webpushOptions, logger)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: api.NewRouter(handler),
	}

	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("HTTP server ListenAndServe")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info().Msg("shutdown signal received, stopping services")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server Shutdown")
	}

	logger.Info().Msg("server gracefully stopped")
}
