package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/marigunting/presenced/internal/config"
	"github.com/marigunting/presenced/internal/database"
	"github.com/marigunting/presenced/internal/notifier"
	"github.com/marigunting/presenced/internal/queue"
	"github.com/marigunting/presenced/internal/repositories"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	ctx := context.Background()

	godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.AMQPURL == "" {
		log.Fatal().Msg("AMQP_URL is required for the notifier")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	postgresPool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create postgres pool")
	}
	defer postgresPool.Close()

	amqpConn, err := database.NewRabbitMQConnection(cfg.AMQPURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to rabbitmq")
	}
	defer amqpConn.Close()

	pushQueue, err := queue.NewPushQueue(amqpConn, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create push queue")
	}
	defer pushQueue.Close()

	actorRepo := repositories.NewPostgresActorRepository(postgresPool)
	sender := notifier.NewExpoSender(os.Getenv("PUSH_ENDPOINT"))
	worker := notifier.NewWorker(pushQueue, actorRepo, sender, logger)

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().Msg("starting notifier worker")
	if err := worker.Run(runCtx); err != nil && runCtx.Err() == nil {
		logger.Fatal().Err(err).Msg("notifier worker error")
	}

	logger.Info().Msg("notifier stopped gracefully")
}
