package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TFFe0123/woody-nest/internal/auth"
	"github.com/TFFe0123/woody-nest/internal/catalog"
	"github.com/TFFe0123/woody-nest/internal/config"
	h "github.com/TFFe0123/woody-nest/internal/http"
	"github.com/TFFe0123/woody-nest/internal/idempotency"
	"github.com/TFFe0123/woody-nest/internal/payment"
	"github.com/TFFe0123/woody-nest/internal/publisher"
	"github.com/TFFe0123/woody-nest/internal/repository"
	"github.com/TFFe0123/woody-nest/internal/service"
	"github.com/TFFe0123/woody-nest/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, os.Stdout)
	slog.SetDefault(log)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if cfg.TossSecretKey == "" {
		log.Error("TOSS_SECRET_KEY is not set; payment confirmations will fail with a configuration error")
	}

	// Orders and payments database
	creds := cfg.OrdersCredentials()
	repo, err := repository.NewRepository(creds)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	if err := repo.RunMigrations(creds); err != nil {
		log.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	log.Info("database migrations completed")

	// Catalog
	catalogRepo, err := catalog.NewRepository(cfg.CatalogDriver, cfg.CatalogDSN())
	if err != nil {
		log.Error("failed to open catalog", "driver", cfg.CatalogDriver, "error", err)
		os.Exit(1)
	}
	defer catalogRepo.Close()

	if cfg.CatalogMigrationsPath != "" {
		if err := catalogRepo.RunMigrations(cfg.CatalogMigrationsPath); err != nil {
			log.Error("failed to run catalog migrations", "error", err)
			os.Exit(1)
		}
	}
	lookup := catalog.NewLookup(catalogRepo, cfg.CatalogLookupTimeout, log)

	// Outbound HTTP for the processor and the identity provider
	outbound := &http.Client{
		Timeout:   cfg.RequestTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	gateway := payment.NewClient(cfg.TossAPIBase, cfg.TossSecretKey, outbound)

	authn := newAuthenticator(cfg, outbound)

	var claims idempotency.ClaimStore = idempotency.NoopClaimStore{}
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer redisClient.Close()

		pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Warn("redis not reachable at startup; claims will be retried per request", "addr", cfg.RedisAddr, "error", err)
		}
		pingCancel()
		claims = idempotency.NewRedisClaimStore(redisClient, cfg.ClaimTTL)
	}

	var events publisher.EventPublisher = publisher.NoopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		events = publisher.NewKafkaPublisher(cfg.KafkaBrokers...)
	}
	defer func() {
		if err := events.Close(); err != nil {
			log.Error("failed to close event publisher", "error", err)
		}
	}()

	recorder := service.NewOrderRecorder(repo, lookup, log)
	confirmations := service.NewConfirmationService(gateway, repo, recorder, claims, events, log)

	limiter := h.NewIPRateLimiter(cfg.RateRPS, cfg.RateBurst)
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	go limiter.Cleanup(bgCtx, 5*time.Minute)

	router := h.NewRouter(h.RouterConfig{
		Logger:             log,
		Authenticator:      authn,
		Limiter:            limiter,
		RequestTimeout:     cfg.RequestTimeout,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
		TrustProxyHeaders:  cfg.TrustProxyHeaders,
		Payments:           h.NewPaymentHandler(confirmations, authn, log, cfg.RequestTimeout),
		Orders:             h.NewOrdersHandler(repo, log, cfg.RequestTimeout),
		Furniture:          h.NewFurnitureHandler(catalogRepo, log, cfg.RequestTimeout),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "woody-api"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("api starting", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	log.Info("server exited")
}

func newAuthenticator(cfg *config.Config, client *http.Client) auth.Authenticator {
	if cfg.AuthMode == config.AuthModeJWT {
		return auth.NewJWTAuthenticator(cfg.SupabaseJWTSecret)
	}
	return auth.NewSupabaseAuthenticator(cfg.SupabaseURL, cfg.SupabaseAnonKey, client)
}
