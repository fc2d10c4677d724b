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

	"github.com/isdelr/traderlibrary-be/internal/api"
	"github.com/isdelr/traderlibrary-be/internal/api/handlers"
	"github.com/isdelr/traderlibrary-be/internal/auth"
	"github.com/isdelr/traderlibrary-be/internal/config"
	"github.com/isdelr/traderlibrary-be/internal/database"
	"github.com/isdelr/traderlibrary-be/internal/logger"
	"github.com/isdelr/traderlibrary-be/internal/monitoring"
	"github.com/isdelr/traderlibrary-be/internal/services"
	"github.com/isdelr/traderlibrary-be/internal/store"
	"github.com/isdelr/traderlibrary-be/internal/websocket"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	// Set up the credential store
	st, err := openStore(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DatabaseDriver).Msg("Failed to initialize database")
	}
	defer st.Close()

	// Set up WebSocket Hub
	hubCtx, stopHub := context.WithCancel(context.Background())
	hub := websocket.NewHub()
	go hub.Run(hubCtx)

	// Set up services
	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTExpire, cfg.JWTIssuer)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize token issuer")
	}
	eventService := services.NewEventService(st)
	accountService := services.NewAccountService(st, auth.NewPasswordHasher(cfg.BcryptRounds), tokens, eventService, cfg.ResetTokenTTL).
		WithSessionNotifier(hub)
	adminService := services.NewAdminService(st, eventService, hub)
	authenticator := auth.NewAuthenticator(tokens, st, cfg.CookieName, handlers.RespondError)

	apiLimiter := api.NewRateLimiter("api", cfg.RateLimitMax, cfg.RateLimitWindow, eventService)
	authLimiter := api.NewRateLimiter("auth", cfg.AuthRateLimit, cfg.RateLimitWindow, eventService)

	// Set up and run the background stats updater
	statUpdater := monitoring.NewStatUpdater(30*time.Second, eventService)
	go statUpdater.Run()

	// Set up and run the maintenance scheduler
	scheduler, err := monitoring.NewScheduler(cfg.MaintenanceSchedule, adminService, cfg.RateLimitWindow, apiLimiter, authLimiter)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize scheduler")
	}
	scheduler.Start()

	// Set up router
	router := api.NewRouter(api.Dependencies{
		Config:        cfg,
		Accounts:      accountService,
		Admin:         adminService,
		Events:        eventService,
		Authenticator: authenticator,
		Hub:           hub,
		DB:            st,
		Stats:         statUpdater,
		APILimiter:    apiLimiter,
		AuthLimiter:   authLimiter,
	})

	// Set up server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.ServerPort).Str("environment", cfg.AppEnv).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("ListenAndServe failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	statUpdater.Stop() // Stop the monitoring service
	scheduler.Stop()   // Stop the scheduler

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	stopHub()

	log.Info().Msg("Server exiting")
}

// openStore connects to the configured backend and prepares its schema.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.DatabaseDriver {
	case "mongo":
		client, err := database.NewMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		ms := store.NewMongoStore(client, cfg.MongoDatabase)
		if err := ms.EnsureIndexes(ctx); err != nil {
			ms.Close()
			return nil, fmt.Errorf("ensure indexes: %w", err)
		}
		return ms, nil
	case "postgres":
		return openSQLStore(ctx, database.Postgres, cfg.DatabaseURL)
	default:
		return openSQLStore(ctx, database.SQLite, cfg.DatabasePath)
	}
}

func openSQLStore(ctx context.Context, dialect database.Dialect, dsn string) (store.Store, error) {
	db, err := database.New(ctx, dialect, dsn)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, db, dialect); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return store.NewSQLStore(db, dialect), nil
}
