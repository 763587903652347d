package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"plannr/internal/cache"
	"plannr/internal/challenge"
	"plannr/internal/config"
	"plannr/internal/database"
	"plannr/internal/handlers"
	"plannr/internal/jobs"
	"plannr/internal/log"
	"plannr/internal/mail"
	"plannr/internal/queue"
	"plannr/internal/repository"
	"plannr/internal/server"
	"plannr/internal/service"
	"plannr/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, "")

	ctx := context.Background()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres, "plannr-api")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}
	if err := objectStore.EnsureBucket(ctx); err != nil {
		logger.Warn().Err(err).Msg("ensure avatar bucket failed")
	}

	accounts, err := service.NewDirectory(dbPool)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build account directory")
	}
	loginEvents := repository.NewLoginEventRepository(dbPool)

	producer := queue.NewProducer(redisClient, cfg.Redis.Stream)
	mailer := mail.NewQueueMailer(producer)

	challenges := challenge.NewIssuer(
		challenge.NewStore(redisClient),
		cfg.Challenge.CodeTTL,
		challenge.WithRetention(challenge.PurposeRegistration, cfg.Challenge.PendingTTL),
	)
	tokens := service.NewTokenService(
		cfg.Security,
		cache.NewRevocationRegistry(redisClient, nil),
		cache.NewCSRFStore(redisClient, cfg.Security.RefreshTTL, nil),
		nil,
	)

	registration := service.NewRegistrationService(accounts, challenges, tokens, mailer, logger)
	auth := service.NewAuthService(accounts, tokens, challenges, mailer, loginEvents, logger)
	accountService := service.NewAccountService(accounts, loginEvents, objectStore, mailer, cfg.Storage.MaxAvatarSize, logger)

	if created, err := accountService.SeedAdmin(ctx, cfg.Admin.SeedEmail, cfg.Admin.SeedPassword, cfg.Admin.SeedName); err != nil {
		logger.Error().Err(err).Msg("seed admin failed")
	} else if created {
		logger.Info().Str("email", cfg.Admin.SeedEmail).Msg("seed admin created")
	}

	handlerSet := handlers.NewHandlerSet(handlers.Dependencies{
		Log:          logger,
		Config:       cfg,
		Registration: registration,
		Auth:         auth,
		Accounts:     accountService,
		Tokens:       tokens,
		Redis:        redisClient,
		Database:     dbPool,
		Storage:      objectStore,
	})
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	scheduler := jobs.NewScheduler(producer, cfg.Jobs, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, dbPool, redisClient)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, db *pgxpool.Pool, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	scheduler.Stop()

	db.Close()
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("redis close error")
	}

	logger.Info().Msg("server exited cleanly")
}
