package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"travelhub/api/internal/avatar"
	"travelhub/api/internal/booking"
	"travelhub/api/internal/cache"
	"travelhub/api/internal/config"
	"travelhub/api/internal/database"
	"travelhub/api/internal/handlers"
	"travelhub/api/internal/identity"
	"travelhub/api/internal/jobs"
	"travelhub/api/internal/log"
	"travelhub/api/internal/metrics"
	"travelhub/api/internal/payment"
	"travelhub/api/internal/queue"
	"travelhub/api/internal/repository"
	"travelhub/api/internal/server"
	"travelhub/api/internal/session"
	"travelhub/api/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis, logger)
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

	users := repository.NewUserRepository(dbPool)
	packages := repository.NewPackageRepository(dbPool)
	bookings := repository.NewBookingRepository(dbPool)

	broker := identity.NewRedisBroker(redisClient, cfg.Redis.AuthChannel, logger)
	go broker.Relay(ctx)

	identities := identity.NewService(
		repository.NewIdentityRepository(dbPool),
		repository.NewSessionRepository(dbPool),
		broker,
		cfg.Security,
		logger,
	)
	registry := session.NewRegistry(identities, users, logger)
	registry.SetRecheckInterval(cfg.Security.SessionRecheck)
	wizards := booking.NewWizards()

	gateway := payment.NewClient(cfg.Payment, logger)
	producer := queue.NewProducer(redisClient, cfg.Queue.Stream)

	m := metrics.New()
	m.Gauge("session_stores", "Session stores held in memory", func() float64 { return float64(registry.Len()) })
	m.Gauge("booking_drafts", "Open booking drafts", func() float64 { return float64(wizards.Len()) })

	handlerSet := handlers.NewHandlerSet(handlers.Deps{
		Config:    cfg,
		Log:       logger,
		Metrics:   m,
		Registry:  registry,
		Identity:  identities,
		Users:     users,
		Bookings:  bookings,
		Wizard:    booking.NewService(wizards, packages, bookings, logger),
		Checkout:  payment.NewAdapter(gateway, bookings, cfg.Payment, logger),
		Purchases: gateway,
		Queue:     producer,
		Avatars:   avatar.NewService(objectStore, users, cfg.Storage, logger),
		Redis:     redisClient,
		Probes: []handlers.Probe{
			{Name: "postgres", Check: packages.Probe},
			{Name: "redis", Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
			{Name: "storage", Check: objectStore.Probe},
		},
	})
	httpServer := server.NewHTTPServer(cfg, logger, m, handlerSet)

	scheduler := jobs.NewScheduler(jobs.Deps{
		Stores:   registry,
		Drafts:   wizards,
		Sessions: identities,
		Bookings: bookings,
		Queue:    producer,
	}, *cfg, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")
	shutdown(logger, httpServer, scheduler, registry, dbPool, redisClient)
}

func shutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, registry *session.Registry, db *pgxpool.Pool, redisClient *redis.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	scheduler.Stop(ctx)
	registry.Close()

	db.Close()
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("redis close error")
	}

	logger.Info().Msg("server exited cleanly")
}
