package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/auth"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/cache"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/cart"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/catalog"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/config"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/db"
	marketHTTP "github.com/vasiliy-maslov/secondhand-marketplace/internal/handler/http"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/metrics"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/order"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/outbox"
)

func setupLogger(cfg config.LogConfig, service string) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Logger = log.With().Str("service", service).Logger()
}

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	setupLogger(cfg.Log, cfg.App.Name)

	log.Info().Msg("Marketplace service starting...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := db.ApplyMigrations(cfg.Postgres); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	pg, err := db.New(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pg.Close()

	m := metrics.New()
	catalogRepo := catalog.NewRepository(pg.Pool)
	cartService := cart.NewService(cart.NewRepository(pg.Pool), catalogRepo)

	orderOpts := []order.Option{
		order.WithObserver(m),
		order.WithCheckoutTimeout(cfg.App.CheckoutTimeout),
	}
	if cfg.Redis.Addr != "" {
		redisClient, err := cache.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, checkout replay disabled")
		} else {
			defer redisClient.Close()
			receipts := order.NewReceiptCache(cache.NewRedisCache(redisClient, cfg.App.Name), cfg.Redis.ReceiptTTL)
			orderOpts = append(orderOpts, order.WithReceiptCache(receipts))
			log.Info().Str("addr", cfg.Redis.Addr).Msg("Checkout receipt cache enabled")
		}
	}

	orderService := order.NewService(
		order.NewRepository(pg.Pool, cfg.Kafka.Topic),
		order.NewQueryRepository(pg.X),
		cartService,
		catalogRepo,
		orderOpts...,
	)

	var workers sync.WaitGroup
	if len(cfg.Kafka.Brokers) > 0 {
		writer := outbox.NewKafkaWriter(cfg.Kafka.Brokers)
		defer func() {
			if err := writer.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close kafka writer")
			}
		}()

		relay := outbox.NewRelay(outbox.NewPostgresStore(pg.Pool), writer, cfg.Kafka.PollInterval, cfg.Kafka.BatchSize)
		workers.Add(1)
		go func() {
			defer workers.Done()
			relay.Run(ctx)
		}()
	} else {
		log.Info().Msg("No kafka brokers configured, outbox relay disabled")
	}

	router := marketHTTP.NewRouter(marketHTTP.RouterConfig{
		Cart:    cartService,
		Orders:  orderService,
		Tokens:  auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL),
		Metrics: m,
		Ping:    pg.Pool.Ping,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.App.CheckoutTimeout + 5*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown failed")
	}
	workers.Wait()
	log.Info().Msg("Server stopped")
}
