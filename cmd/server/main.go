package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chesslessons/backend/internal/config"
	domain "chesslessons/backend/internal/domain/auth"
	"chesslessons/backend/internal/httpserver"
	"chesslessons/backend/internal/infrastructure/notify"
	"chesslessons/backend/internal/infrastructure/password"
	"chesslessons/backend/internal/infrastructure/postgres"
	"chesslessons/backend/internal/infrastructure/revocation"
	"chesslessons/backend/internal/infrastructure/token"
	"chesslessons/backend/internal/obs"
	authusecase "chesslessons/backend/internal/usecase/auth"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger := obs.SetupLogger(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	if cfg.LogFormat == "console" {
		figure.NewFigure(cfg.AppName, "", true).Print()
	}
	obs.Init()

	rootCtx := context.Background()
	db, err := postgres.New(rootCtx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	if err := db.Migrate(rootCtx); err != nil {
		logger.Fatal().Err(err).Msg("failed to run database migrations")
	}

	tokenManager, err := token.NewJWTManager(cfg.JWTSecret, cfg.JWTAlgorithm)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure token manager")
	}

	var revoked domain.RevocationStore = revocation.NewMemoryStore()
	if cfg.RevocationBackend == config.RevocationPostgres {
		revoked = postgres.NewRevocationRepository(db.SQL())
	}

	authService := authusecase.NewService(
		postgres.NewUserRepository(db.Pool),
		tokenManager,
		password.NewBcryptHasher(cfg.BcryptCost),
		revoked,
		notify.NewLogNotifier(logger.With().Str("component", "recovery").Logger()),
		authusecase.WithTTLs(authusecase.TTLs{
			Access:   cfg.AccessTTL,
			Refresh:  cfg.RefreshTTL,
			Recovery: cfg.RecoveryTTL,
		}),
		authusecase.WithLogger(logger.With().Str("component", "auth").Logger()),
	)

	server := httpserver.NewServer(cfg, authService, logger)
	logger.Info().
		Str("addr", server.Addr()).
		Str("revocation", cfg.RevocationBackend).
		Str("jwt_alg", cfg.JWTAlgorithm).
		Msg("HTTP server listening")

	go func() {
		if err := server.Start(); err != nil {
			if errors.Is(err, http.ErrServerClosed) {
				logger.Info().Msg("HTTP server closed")
				return
			}
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	} else {
		logger.Info().Msg("graceful shutdown completed")
	}
}
