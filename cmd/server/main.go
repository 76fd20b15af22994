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

	"homestock/internal/authz"
	"homestock/internal/config"
	"homestock/internal/database"
	"homestock/internal/handlers"
	"homestock/internal/logging"
	"homestock/internal/metrics"
	"homestock/internal/repository"
	"homestock/internal/security"
	"homestock/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	if !cfg.IdentityConfigured() {
		logging.Warn().Msg("Neither auth.google_client_id nor auth.dev_jwt_secret is set; every bearer request will be rejected")
	}

	// Initialize database with config (supports sqlite, postgres, mysql)
	db, err := database.InitializeWithConfig(cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	logging.Info().Str("type", cfg.Database.Type).Msg("Database connection established")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := db.Migrate(ctx); err != nil {
		logging.Fatal().Err(err).Msg("Failed to run migrations")
	}
	logging.Info().Msg("Migrations completed successfully")

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	familyRepo := repository.NewFamilyRepository(db)
	inviteRepo := repository.NewInvitationRepository(db)
	typeRepo := repository.NewItemTypeRepository(db)
	locationRepo := repository.NewLocationRepository(db)
	boxRepo := repository.NewBoxRepository(db)
	tagRepo := repository.NewTagRepository(db)
	itemRepo := repository.NewItemRepository(db)
	wishlistRepo := repository.NewWishlistRepository(db)

	emailService, err := service.NewEmailService(ctx, cfg.Email.AWSRegion, cfg.Email.FromAddress, cfg.Email.FromName, cfg.Web.BaseURL)
	if err != nil {
		logging.Warn().Err(err).Msg("Email service unavailable; invite emails are disabled")
		emailService = nil
	}

	// Initialize services
	authService := service.NewAuthService(userRepo, inviteRepo)
	inviteService := service.NewInviteService(inviteRepo, familyRepo, emailService)
	familyService := service.NewFamilyService(familyRepo, userRepo)

	enforcer, err := authz.NewEnforcer()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load authorization policy")
	}

	verifier := security.NewTokenVerifier(security.TokenConfig{
		JWKSURL:   cfg.Auth.JWKSURL,
		Issuer:    cfg.Auth.Issuer,
		Audience:  cfg.Auth.GoogleClientID,
		DevSecret: cfg.Auth.DevJWTSecret,
	})

	middleware := handlers.NewMiddleware(verifier, authService, enforcer, security.NewAPIKeyMatcher(cfg.Bot.APIKey))
	router := handlers.NewRouter(handlers.RouterConfig{
		CORSOrigins:        cfg.Server.CORSOrigins,
		RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
	}, middleware, handlers.Handlers{
		Health:    handlers.NewHealthHandler(db),
		Auth:      handlers.NewAuthHandler(authService, inviteService),
		Family:    handlers.NewFamilyHandler(familyService),
		ItemTypes: handlers.NewItemTypeHandler(service.NewItemTypeService(typeRepo)),
		Locations: handlers.NewLocationHandler(service.NewLocationService(locationRepo)),
		Boxes:     handlers.NewBoxHandler(service.NewBoxService(boxRepo, locationRepo)),
		Tags:      handlers.NewTagHandler(service.NewTagService(tagRepo)),
		Items:     handlers.NewItemHandler(service.NewItemService(itemRepo, typeRepo, boxRepo)),
		Wishlist:  handlers.NewWishlistHandler(service.NewWishlistService(wishlistRepo, typeRepo, boxRepo)),
	})

	// Hourly purge of spent invite codes
	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@hourly", func() { purgeInvites(ctx, inviteService, cfg.Server.InvitePurgeAge) }); err != nil {
		logging.Fatal().Err(err).Msg("Failed to schedule invite purge")
	}
	scheduler.Start()
	defer scheduler.Stop()

	addr := ":" + cfg.Server.Port
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logging.Info().Str("addr", addr).Msg("API server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	logging.Info().Msg("Server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("Graceful shutdown failed")
		os.Exit(1)
	}
}

func purgeInvites(ctx context.Context, invites *service.InviteService, olderThan time.Duration) {
	purged, err := invites.Purge(ctx, olderThan)
	if err != nil {
		logging.Error().Err(err).Msg("Invite purge failed")
		return
	}
	metrics.InvitesPurged.Add(float64(purged))
	if purged > 0 {
		logging.Info().Int64("purged", purged).Msg("Purged spent invite codes")
	}
}
