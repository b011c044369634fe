package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/marigunting/presenced/internal/config"
	"github.com/marigunting/presenced/internal/database"
	"github.com/marigunting/presenced/internal/handlers"
	"github.com/marigunting/presenced/internal/metrics"
	"github.com/marigunting/presenced/internal/pubsub"
	"github.com/marigunting/presenced/internal/queue"
	"github.com/marigunting/presenced/internal/repositories"
	"github.com/marigunting/presenced/internal/services"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx := context.Background()

	godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	// Initialize database connections
	postgresPool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create postgres pool")
	}
	defer postgresPool.Close()

	redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create redis client")
	}
	defer redisClient.Close()

	// The push queue is optional: without AMQP the realtime channel still
	// works, only the wake-up notifications are skipped.
	var offlineNotifier services.OfflineNotifier
	if cfg.AMQPURL != "" {
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
		offlineNotifier = pushQueue
	} else {
		logger.Warn().Msg("AMQP_URL not set, offline push notifications disabled")
	}

	m := metrics.New()

	actorRepo := repositories.NewPostgresActorRepository(postgresPool)
	presenceRepo := repositories.NewRedisPresenceRepository(redisClient)
	bus := pubsub.NewRedisBus(redisClient, logger)

	publisher := services.NewPublisher(bus, offlineNotifier, m, logger)
	ledger := services.NewLedger(presenceRepo, publisher, m, logger, cfg.ExpiryWindow, cfg.SweepInterval)
	authService := services.NewAuthService(actorRepo, cfg.JWTSecret, cfg.JWTExpiry)

	router := handlers.NewRouter(handlers.RouterDeps{
		Auth:        handlers.NewAuthHandler(authService),
		Presence:    handlers.NewPresenceHandler(ledger),
		Subscribe:   handlers.NewSubscribeHandler(bus, m, logger),
		Profile:     handlers.NewProfileHandler(actorRepo),
		AuthService: authService,
		Metrics:     m,
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: router,
	}

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(runCtx)

	group.Go(func() error {
		logger.Info().Str("port", cfg.ServerPort).Msg("starting server")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	group.Go(func() error {
		return ledger.Run(groupCtx)
	})

	group.Go(func() error {
		<-groupCtx.Done()

		logger.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		logger.Fatal().Err(err).Msg("server error")
	}

	logger.Info().Msg("server stopped gracefully")
}
