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

	"parcel-locator/internal/app"
	"parcel-locator/internal/auth"
	"parcel-locator/internal/config"
	"parcel-locator/internal/db"
	httphandler "parcel-locator/internal/http"
	"parcel-locator/internal/http/middleware"
	"parcel-locator/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.ValidateServer(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.Environment)

	// The database is optional: without it searches are not persisted.
	database, err := db.New(cfg, appLogger)
	if err != nil && !errors.Is(err, db.ErrNotConfigured) {
		appLogger.Fatal().Err(err).Msg("failed to connect database")
	}
	if err != nil {
		appLogger.Warn().Msg("DB_DSN not set, search history and transactions disabled")
	}

	components, err := app.Build(context.Background(), cfg, database, appLogger)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("failed to build locate pipeline")
	}

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)

	handler := httphandler.NewHandler(components.Service, components.Visuals, cfg, appLogger)
	authMiddleware := middleware.Auth(tokenParser)
	router := httphandler.NewRouter(handler, authMiddleware, cfg.Environment, database, appLogger)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	appLogger.Info().Str("addr", addr).Msg("starting parcel locator")

	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error().Err(err).Msg("failed to start server")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error().Err(err).Msg("server forced to shutdown")
	}

	appLogger.Info().Msg("server exited")
}
