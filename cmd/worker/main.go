package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"plannr/internal/cache"
	"plannr/internal/challenge"
	"plannr/internal/config"
	"plannr/internal/database"
	"plannr/internal/log"
	"plannr/internal/mail"
	"plannr/internal/models"
	"plannr/internal/queue"
	"plannr/internal/repository"
	"plannr/internal/tasks"
)

func main() {
	cfg, err := config.LoadWorker()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres, "plannr-worker")
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection failed")
	}
	defer dbPool.Close()

	accounts := make(map[models.Role]tasks.AccountChecker, len(models.Roles))
	for _, role := range models.Roles {
		repo, err := repository.NewAccountRepository(dbPool, role)
		if err != nil {
			logger.Fatal().Err(err).Msg("account repository")
		}
		accounts[role] = repo
	}

	processor := tasks.NewProcessor(
		mail.NewSMTPSender(cfg.SMTP),
		repository.NewLoginEventRepository(dbPool),
		challenge.NewStore(client),
		accounts,
		cfg.Jobs.LoginEventRetention,
		logger,
	)
	consumer := queue.NewConsumer(
		client,
		cfg.Redis.Stream,
		cfg.Redis.Group,
		cfg.Redis.Consumer,
		cfg.Queues.ClaimInterval,
		logger,
		processor,
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("consumer stopped unexpectedly")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		logger.Warn().Msg("consumer did not stop in time")
	}
}
