package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joseph-ayodele/docbatch/internal/common"
	"github.com/joseph-ayodele/docbatch/internal/core/async"
	"github.com/joseph-ayodele/docbatch/internal/core/backend"
	"github.com/joseph-ayodele/docbatch/internal/export"
	repo "github.com/joseph-ayodele/docbatch/internal/repository"
	svc "github.com/joseph-ayodele/docbatch/internal/server"
)

func main() {
	configPath := flag.String("config", "", "optional config file (yaml, toml or json)")
	flag.Parse()

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := common.NewLogger(os.Stdout, cfg.Log)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repo.Open(ctx, cfg.Store, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err, "driver", cfg.Store.Driver)
		os.Exit(1)
	}
	defer db.Close()

	// Ping DB to ensure connectivity
	if err := db.HealthCheck(ctx, 5*time.Second); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	outcomes := repo.NewOutcomeRepository(db, logger)

	registry, err := backend.Defaults(cfg.Tools, backend.ExecRunner{}, logger)
	if err != nil {
		logger.Error("failed to build backend registry", "error", err)
		os.Exit(1)
	}
	scheduler := async.NewScheduler(registry, logger,
		async.WithDefaultConcurrency(cfg.Engine.Concurrency),
		async.WithOutcomeStore(outcomes),
	)

	// gRPC server
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	grpcServer, _ := svc.NewGRPCServer(svc.NewBatchService(scheduler, outcomes, logger), logger)

	logger.Info("docbatchd listening", "grpc_addr", cfg.Server.GRPCAddr, "http_addr", cfg.Server.HTTPAddr)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			stop()
		}
	}()

	var httpServer *http.Server
	if cfg.Server.HTTPAddr != "" {
		httpServer = &http.Server{
			Addr:              cfg.Server.HTTPAddr,
			Handler:           svc.NewHTTPHandler(scheduler, export.NewService(outcomes, logger), logger),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http serve error", "error", err)
				stop()
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if httpServer != nil {
		_ = httpServer.Shutdown(shutdownCtx)
	}
	scheduler.Shutdown(shutdownCtx)
	grpcServer.GracefulStop()
}
