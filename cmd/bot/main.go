package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"homestock/internal/apiclient"
	"homestock/internal/bot"
	"homestock/internal/config"
	"homestock/internal/logging"
	"homestock/internal/memory"
)

const memoryGCSchedule = "@every 10m"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	if cfg.Bot.Token == "" || cfg.Bot.ApplicationID == "" {
		logging.Fatal().Msg("bot.token and bot.application_id are required")
	}

	rest := bot.NewRESTClient(bot.RESTConfig{
		Token:         cfg.Bot.Token,
		ApplicationID: cfg.Bot.ApplicationID,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// `bot register` publishes the slash command table and exits
	if len(os.Args) > 1 && os.Args[1] == "register" {
		n, err := rest.RegisterCommands(ctx, bot.Commands())
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to register commands")
		}
		logging.Info().Int("commands", n).Msg("Slash commands registered")
		return
	}

	if cfg.Bot.PublicKey == "" {
		logging.Fatal().Msg("bot.public_key is required to verify interactions")
	}
	verifier, err := bot.NewVerifier(cfg.Bot.PublicKey)
	if err != nil {
		logging.Fatal().Err(err).Msg("Invalid bot.public_key")
	}

	api := apiclient.New(apiclient.Config{
		BaseURL:   cfg.API.BaseURL,
		Timeout:   cfg.API.Timeout,
		BotAPIKey: cfg.Bot.APIKey,
	})

	var store *memory.Store
	var mem bot.Memory
	if cfg.Bot.MemoryExtraction {
		store, err = memory.Open(memory.Options{Path: cfg.Bot.MemoryPath})
		if err != nil {
			logging.Fatal().Err(err).Str("path", cfg.Bot.MemoryPath).Msg("Failed to open memory store")
		}
		defer store.Close()
		mem = store
		logging.Info().Str("path", cfg.Bot.MemoryPath).Msg("Memory extraction enabled")
	}

	b := bot.New(api, mem, rest, bot.Options{
		NaturalLanguage:  cfg.Bot.NaturalLanguage,
		MemoryExtraction: cfg.Bot.MemoryExtraction,
	})

	sup := bot.NewSupervisor(cfg.Server.ShutdownTimeout)
	sup.Add(bot.NewHTTPService(&http.Server{
		Addr:              ":" + cfg.Bot.Port,
		Handler:           bot.NewRouter(bot.NewHandler(b, verifier)),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}, cfg.Server.ShutdownTimeout))

	// Free text only arrives over the gateway
	if cfg.Bot.NaturalLanguage || cfg.Bot.MemoryExtraction {
		sup.Add(bot.NewGateway(bot.GatewayConfig{Token: cfg.Bot.Token}, rest, b))
	}
	if store != nil {
		gc, err := bot.NewGCService(memoryGCSchedule, store)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to schedule memory GC")
		}
		sup.Add(gc)
	}

	logging.Info().
		Bool("natural_language", cfg.Bot.NaturalLanguage).
		Bool("memory", cfg.Bot.MemoryExtraction).
		Str("api", cfg.API.BaseURL).
		Msg("Bot starting")

	if err := sup.Serve(ctx); err != nil && ctx.Err() == nil {
		logging.Error().Err(err).Msg("Supervisor stopped")
		os.Exit(1)
	}
	logging.Info().Msg("Bot stopped")
}
