package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"homestock/internal/apiclient"
	"homestock/internal/config"
	"homestock/internal/logging"
	"homestock/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var sessions web.SessionStore
	if cfg.Web.RedisURL != "" {
		store, err := web.NewRedisSessionStore(ctx, cfg.Web.RedisURL)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to connect session store")
		}
		defer store.Close()
		sessions = store
		logging.Info().Msg("Sessions stored in redis")
	} else {
		store := web.NewMemorySessionStore()
		sessions = store

		// Expired sessions are dropped lazily on read; sweep the rest
		scheduler := cron.New()
		if _, err := scheduler.AddFunc("@every 15m", func() {
			if n := store.Cleanup(); n > 0 {
				logging.Debug().Int("removed", n).Msg("Expired sessions removed")
			}
		}); err != nil {
			logging.Fatal().Err(err).Msg("Failed to schedule session cleanup")
		}
		scheduler.Start()
		defer scheduler.Stop()
		logging.Warn().Msg("web.redis_url not set; sessions are kept in memory")
	}

	api := apiclient.New(apiclient.Config{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
	})

	ui, err := web.New(web.Config{
		BaseURL:            cfg.Web.BaseURL,
		GoogleClientID:     cfg.Auth.GoogleClientID,
		GoogleClientSecret: cfg.Auth.GoogleClientSecret,
		RedirectURL:        cfg.Auth.RedirectURL,
		SessionSecret:      cfg.Web.SessionSecret,
		DevJWTSecret:       cfg.Auth.DevJWTSecret,
	}, api, sessions)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize web UI")
	}

	addr := ":" + cfg.Web.Port
	server := &http.Server{
		Addr:              addr,
		Handler:           ui.Router(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logging.Info().Str("addr", addr).Str("api", cfg.API.BaseURL).Msg("Web UI starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	logging.Info().Msg("Web UI shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("Graceful shutdown failed")
		os.Exit(1)
	}
}
