package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/mxdgroup/pracsuit-script/internal/archive"
	"github.com/mxdgroup/pracsuit-script/internal/config"
	"github.com/mxdgroup/pracsuit-script/internal/ingest"
	"github.com/mxdgroup/pracsuit-script/internal/logging"
	"github.com/mxdgroup/pracsuit-script/internal/postgres"
	"github.com/mxdgroup/pracsuit-script/internal/webhook"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if len(os.Args) > 1 && os.Args[1] == "health" {
		os.Exit(healthCheck())
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ingestLogger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	logger := ingestLogger.Logger
	defer logger.Sync()

	ctx := context.Background()

	provisioner, err := postgres.NewProvisioner(ctx, cfg.GetConnectionConfig(), postgres.Options{
		BatchSize: cfg.BatchSize(),
		Atomic:    cfg.AtomicAttachments(),
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create PostgreSQL provisioner", zap.Error(err))
	}
	defer provisioner.Close()

	if err := provisioner.Ping(ctx); err != nil {
		// Requests fail per attachment until the server is reachable.
		logger.Warn("PostgreSQL is not reachable yet", zap.Error(err))
	}

	archiver, err := archive.New(ctx, cfg.GetArchiveConfig(), logger)
	if err != nil {
		logger.Fatal("Failed to create notification archive", zap.Error(err))
	}
	if err := archiver.Ping(ctx); err != nil {
		logger.Warn("Notification archive is not reachable", zap.Error(err))
	}

	srv := webhook.NewServer(webhook.Options{
		Ingester:     ingest.NewOrchestrator(provisioner, logger),
		Archiver:     archiver,
		Database:     provisioner,
		Summarizer:   postgres.NewInspector(provisioner.Admin(), cfg.GetConnectionConfig(), logger),
		MaxBodyBytes: cfg.MaxBodyBytes(),
	}, logger)

	port := cfg.HTTPPort()
	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Ingestion service starting",
		zap.String("port", port),
		zap.Int("batch_size", cfg.BatchSize()),
		zap.Bool("atomic_attachments", cfg.AtomicAttachments()))

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to serve HTTP", zap.Error(err))
		}
	}()

	var grpcServer *grpc.Server
	var healthServer *health.Server
	if grpcPort := cfg.GRPCPort(); grpcPort != "" {
		grpcServer = grpc.NewServer()
		healthServer = health.NewServer()
		healthpb.RegisterHealthServer(grpcServer, healthServer)
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

		listener, err := net.Listen("tcp", ":"+grpcPort)
		if err != nil {
			logger.Fatal("Failed to listen", zap.String("port", grpcPort), zap.Error(err))
		}
		logger.Info("gRPC health server starting", zap.String("port", grpcPort))

		go func() {
			if err := grpcServer.Serve(listener); err != nil {
				logger.Fatal("Failed to serve gRPC", zap.Error(err))
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	if healthServer != nil {
		healthServer.Shutdown()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown did not complete", zap.Error(err))
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	logger.Info("Server stopped")
}

func newLogger(cfg *config.Config) (*logging.IngestLogger, error) {
	return logging.NewLogger(logging.Config{
		Level:  cfg.GetString("LOG_LEVEL", "info"),
		Format: cfg.GetString("LOG_FORMAT", "json"),
		Fields: map[string]string{"service": "ingestd"},
	})
}

func healthCheck() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		return 1
	}

	ingestLogger, err := newLogger(cfg)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		return 1
	}
	logger := ingestLogger.Logger
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := postgres.NewClient(ctx, cfg.GetConnectionConfig(), logger)
	if err != nil {
		logger.Error("Failed to create client", zap.Error(err))
		return 1
	}
	defer client.Close()

	if err := client.Ping(ctx); err != nil {
		logger.Error("Health check failed", zap.Error(err))
		return 1
	}

	return 0
}
