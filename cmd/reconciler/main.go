package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/TFFe0123/woody-nest/internal/config"
	"github.com/TFFe0123/woody-nest/internal/reconciler"
	"github.com/TFFe0123/woody-nest/internal/repository"
	"github.com/TFFe0123/woody-nest/internal/service"
	"github.com/TFFe0123/woody-nest/pkg/logger"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, os.Stdout).With("component", "reconciler")
	slog.SetDefault(log)
	log.Info("reconciler starting")

	var wg sync.WaitGroup

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

	recorder := service.NewOrderRecorder(repo, nil, log)
	runCtx, runCancel := context.WithCancel(context.Background())

	sweeper := reconciler.NewSweeper(repo, recorder, cfg.ReconcileInterval, cfg.ReconcileGrace, log)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Run(runCtx)
	}()

	var consumer *reconciler.Consumer
	if len(cfg.KafkaBrokers) > 0 {
		consumer = reconciler.NewConsumer(recorder, log, cfg.KafkaBrokers...)
		wg.Add(1)
		go func() {
			defer wg.Done()
			consumer.Run(runCtx)
		}()
	} else {
		log.Warn("KAFKA_BROKERS not set; relying on the ledger sweep only")
	}

	// gRPC health endpoint
	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCPort))
	if err != nil {
		log.Error("failed to listen", "port", cfg.GRPCPort, "error", err)
		os.Exit(1)
	}

	grpcServer, healthServer := newGRPCServer()

	go func() {
		log.Info("reconciler health listening", "port", cfg.GRPCPort)
		if err := grpcServer.Serve(lis); err != nil {
			log.Error("failed to serve", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down reconciler")
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	grpcServer.GracefulStop()
	runCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	doneChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(doneChan)
	}()

	select {
	case <-doneChan:
		log.Info("workers stopped cleanly")
	case <-shutdownCtx.Done():
		log.Warn("workers didn't stop in time")
	}

	if consumer != nil {
		consumer.Close()
	}
	log.Info("reconciler stopped")
}

// newGRPCServer builds the health endpoint server, reporting SERVING.
func newGRPCServer() (*grpc.Server, *health.Server) {
	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)
	return grpcServer, healthServer
}
